package cli

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/cliutil"
	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/repoview"
	"github.com/onyo-org/onyo/internal/txn"
)

func setupCommitFlowRepo(t *testing.T) *gitrepo.Repo {
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

	r, err := gitrepo.Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return r
}

// TestFinishTransactionRejectsDirtyWorkingTree covers spec §5's "any
// detected pre-commit dirtiness ... aborts the transaction with
// DirtyWorkingTree" and §8 scenario 6: an untracked file present at
// commit time must refuse the write and leave no log entry, even
// though the pushed operations themselves are perfectly valid.
func TestFinishTransactionRejectsDirtyWorkingTree(t *testing.T) {
	ctx := context.Background()

	oldRepo, oldView, oldTmpl, oldDisplay := repo, view, nameTpl, display
	oldQuiet, oldYes := flagQuiet, flagYes
	defer func() {
		repo, view, nameTpl, display = oldRepo, oldView, oldTmpl, oldDisplay
		flagQuiet, flagYes = oldQuiet, oldYes
	}()

	repo = setupCommitFlowRepo(t)
	tmpl, err := asset.ParseTemplate(asset.DefaultNameFormat)
	if err != nil {
		t.Fatalf("ParseTemplate() failed: %v", err)
	}
	nameTpl = tmpl
	view, err = repoview.Build(ctx, repo)
	if err != nil {
		t.Fatalf("Build() failed: %v", err)
	}
	display = cliutil.NewDisplayWithWidth(80)
	flagQuiet = true
	flagYes = true

	tx := txn.New(repo, view, nameTpl)
	if err := tx.Push(ctx, invops.Operation{Kind: invops.NewDirectory, Path: "warehouse"}); err != nil {
		t.Fatalf("Push() failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(repo.Root(), "stray.txt"), []byte("untracked\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	err = finishTransaction(ctx, tx)
	if kind, ok := onyoerr.Of(err); !ok || kind != onyoerr.DirtyWorkingTree {
		t.Fatalf("expected DirtyWorkingTree, got %v", err)
	}
	if tx.State() != txn.Abandoned {
		t.Fatalf("State() = %v, want Abandoned", tx.State())
	}
	if repo.Exists("warehouse/.anchor") {
		t.Fatal("dirty-tree abort must not have created any tracked path")
	}
}
