package txn

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/repoview"
)

func setupTestRepo(t *testing.T) *gitrepo.Repo {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v: %s", args, err, out)
		}
	}
	run("init")
	run("config", "user.name", "Test User")
	run("config", "user.email", "test@example.com")

	repo, err := gitrepo.Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return repo
}

func mustTemplate(t *testing.T) *asset.NameTemplate {
	t.Helper()
	tmpl, err := asset.ParseTemplate(asset.DefaultNameFormat)
	if err != nil {
		t.Fatalf("ParseTemplate() failed: %v", err)
	}
	return tmpl
}

func buildView(t *testing.T, ctx context.Context, repo *gitrepo.Repo) *repoview.View {
	t.Helper()
	view, err := repoview.Build(ctx, repo)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	return view
}

func TestTransactionCommitNewDirectoryAndAsset(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	tmpl := mustTemplate(t)
	view := buildView(t, ctx, repo)

	tx := New(repo, view, tmpl)
	if err := tx.Push(ctx, invops.Operation{Kind: invops.NewDirectory, Path: "warehouse"}); err != nil {
		t.Fatalf("Push(new-directory) failed: %v", err)
	}
	if err := tx.Push(ctx, invops.Operation{Kind: invops.NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"}); err != nil {
		t.Fatalf("Push(new-asset) failed: %v", err)
	}

	id, err := tx.Commit(ctx, CommitOptions{
		Identity: gitrepo.Identity{Name: "Test User", Email: "test@example.com"},
		When:     time.Now(),
	})
	if err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty commit id")
	}
	if tx.State() != Committed {
		t.Fatalf("State() = %v, want Committed", tx.State())
	}

	clean, err := repo.IsClean(ctx)
	if err != nil {
		t.Fatalf("IsClean() failed: %v", err)
	}
	if !clean {
		t.Fatal("expected working tree to be clean after commit")
	}

	blob, err := repo.ReadBlob(ctx, "warehouse/laptop_apple_macbookpro.867", "HEAD")
	if err != nil {
		t.Fatalf("ReadBlob() failed: %v", err)
	}
	if !strings.Contains(string(blob), "serial: \"867\"") && !strings.Contains(string(blob), "serial: 867") {
		t.Fatalf("asset body missing bound serial: %s", blob)
	}
}

func TestTransactionCommitIsNoopWithoutOperations(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	tmpl := mustTemplate(t)
	view := buildView(t, ctx, repo)

	tx := New(repo, view, tmpl)
	id, err := tx.Commit(ctx, CommitOptions{When: time.Now()})
	if err != nil {
		t.Fatalf("Commit() on an empty transaction should not error, got: %v", err)
	}
	if id != "" {
		t.Fatalf("expected empty commit id, got %q", id)
	}
	if tx.State() != Abandoned {
		t.Fatalf("State() = %v, want Abandoned", tx.State())
	}
}

func TestTransactionPushRejectsAndAbandons(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	tmpl := mustTemplate(t)
	view := buildView(t, ctx, repo)

	tx := New(repo, view, tmpl)
	err := tx.Push(ctx, invops.Operation{Kind: invops.NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"})
	if err == nil {
		t.Fatal("expected push to fail: warehouse does not exist yet")
	}
	if tx.State() != Abandoned {
		t.Fatalf("State() = %v, want Abandoned", tx.State())
	}
	op, rejErr := tx.Rejection()
	if op == nil || rejErr == nil {
		t.Fatal("expected Rejection() to report the offending push")
	}
}

func TestTransactionNoAutoMessageRequiresUserParagraph(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	tmpl := mustTemplate(t)
	view := buildView(t, ctx, repo)

	tx := New(repo, view, tmpl)
	if err := tx.Push(ctx, invops.Operation{Kind: invops.NewDirectory, Path: "warehouse"}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	_, err := tx.Commit(ctx, CommitOptions{
		Identity:      gitrepo.Identity{Name: "Test User", Email: "test@example.com"},
		When:          time.Now(),
		NoAutoMessage: true,
	})
	if err == nil {
		t.Fatal("expected error: --no-auto-message with no user paragraphs")
	}
}

func TestTransactionRenderDiffListsOperations(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	tmpl := mustTemplate(t)
	view := buildView(t, ctx, repo)

	tx := New(repo, view, tmpl)
	_ = tx.Push(ctx, invops.Operation{Kind: invops.NewDirectory, Path: "warehouse"})
	_ = tx.Push(ctx, invops.Operation{Kind: invops.NewAsset, Path: "warehouse/laptop_apple_macbookpro.867"})

	out := tx.RenderDiff(ctx, false)
	if !strings.Contains(out, "warehouse/laptop_apple_macbookpro.867") {
		t.Fatalf("RenderDiff() missing asset path: %s", out)
	}
	if !strings.Contains(out, "Inventory Operations Summary") {
		t.Fatalf("RenderDiff() missing summary section: %s", out)
	}
}

// TestConvertFromAssetDirRejectsNonEmptyDirectory covers spec §4.5's
// "directory with only the body file" precondition: an asset directory
// that has picked up a stray tracked file must refuse to convert back
// to a plain file, since the commit plan would otherwise delete that
// file along with the rest of the directory.
func TestConvertFromAssetDirRejectsNonEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	tmpl := mustTemplate(t)
	identity := gitrepo.Identity{Name: "Test User", Email: "test@example.com"}

	view := buildView(t, ctx, repo)
	tx := New(repo, view, tmpl)
	assetPath := "warehouse/laptop_apple_macbookpro.867"
	_ = tx.Push(ctx, invops.Operation{Kind: invops.NewDirectory, Path: "warehouse"})
	_ = tx.Push(ctx, invops.Operation{Kind: invops.NewAsset, Path: assetPath})
	if err := tx.Push(ctx, invops.Operation{Kind: invops.ConvertToAssetDir, Path: assetPath}); err != nil {
		t.Fatalf("Push(convert-to-asset-dir) failed: %v", err)
	}
	if _, err := tx.Commit(ctx, CommitOptions{Identity: identity, When: time.Now()}); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	strayPath := assetPath + "/notes.txt"
	if err := repo.WriteFile(strayPath, []byte("stray\n")); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	if err := repo.Stage(ctx, strayPath); err != nil {
		t.Fatalf("Stage() failed: %v", err)
	}
	if _, err := repo.Commit(ctx, "add stray file", identity, time.Now()); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	view2 := buildView(t, ctx, repo)
	tx2 := New(repo, view2, tmpl)
	err := tx2.Push(ctx, invops.Operation{Kind: invops.ConvertFromAssetDir, Path: assetPath})
	if err == nil {
		t.Fatal("expected convert-from-asset-dir to be rejected")
	}
	if kind, ok := onyoerr.Of(err); !ok || kind != onyoerr.NotEmpty {
		t.Fatalf("expected NotEmpty, got %v", err)
	}
}
