package config

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/onyo-org/onyo/internal/gitrepo"
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

	if err := os.MkdirAll(filepath.Join(dir, ".onyo"), 0o755); err != nil {
		t.Fatalf("mkdir .onyo: %v", err)
	}

	repo, err := gitrepo.Open(context.Background(), dir)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return repo
}

func TestGetFallsBackToOnyoTrackedConfig(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	cfg := New(repo)

	if err := cfg.Set(ctx, KeyAssetsNameFormat, "{type}.{serial}", gitrepo.ScopeTracked); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}

	got, err := cfg.AssetsNameFormat(ctx)
	if err != nil {
		t.Fatalf("AssetsNameFormat() failed: %v", err)
	}
	if got != "{type}.{serial}" {
		t.Fatalf("AssetsNameFormat() = %q, want onyo-tracked value", got)
	}
}

func TestGetPrefersLocalGitConfigOverOnyoTracked(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	cfg := New(repo)

	if err := cfg.Set(ctx, KeyNewTemplate, "from-onyo", gitrepo.ScopeTracked); err != nil {
		t.Fatalf("Set(tracked) failed: %v", err)
	}
	if err := cfg.Set(ctx, KeyNewTemplate, "from-local", gitrepo.ScopeLocal); err != nil {
		t.Fatalf("Set(local) failed: %v", err)
	}

	got, err := cfg.NewTemplate(ctx)
	if err != nil {
		t.Fatalf("NewTemplate() failed: %v", err)
	}
	if got != "from-local" {
		t.Fatalf("NewTemplate() = %q, want %q", got, "from-local")
	}
}

func TestDefaultsApplyWhenUnset(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	cfg := New(repo)

	if got, err := cfg.NewTemplate(ctx); err != nil || got != DefaultNewTemplate {
		t.Fatalf("NewTemplate() = (%q, %v), want %q", got, err, DefaultNewTemplate)
	}
	if got, err := cfg.AssetsNameFormat(ctx); err != nil || got != DefaultAssetsNameFormat {
		t.Fatalf("AssetsNameFormat() = (%q, %v), want %q", got, err, DefaultAssetsNameFormat)
	}
	if got, err := cfg.HistoryInteractive(ctx); err != nil || got != DefaultHistoryInteractive {
		t.Fatalf("HistoryInteractive() = (%q, %v), want %q", got, err, DefaultHistoryInteractive)
	}
	if got, err := cfg.HistoryNonInteractive(ctx); err != nil || got != DefaultHistoryNonInteractive {
		t.Fatalf("HistoryNonInteractive() = (%q, %v), want %q", got, err, DefaultHistoryNonInteractive)
	}
}

func TestEditorFallbackChain(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	cfg := New(repo)

	t.Setenv("EDITOR", "")
	os.Unsetenv("EDITOR")
	if got, err := cfg.Editor(ctx); err != nil || got != DefaultEditor {
		t.Fatalf("Editor() = (%q, %v), want %q", got, err, DefaultEditor)
	}

	t.Setenv("EDITOR", "ed")
	if got, err := cfg.Editor(ctx); err != nil || got != "ed" {
		t.Fatalf("Editor() = (%q, %v), want %q", got, err, "ed")
	}

	if err := cfg.Set(ctx, "core.editor", "vim", gitrepo.ScopeLocal); err != nil {
		t.Fatalf("Set(core.editor) failed: %v", err)
	}
	if got, err := cfg.Editor(ctx); err != nil || got != "vim" {
		t.Fatalf("Editor() = (%q, %v), want %q", got, err, "vim")
	}

	if err := cfg.Set(ctx, KeyCoreEditor, "emacs", gitrepo.ScopeLocal); err != nil {
		t.Fatalf("Set(onyo.core.editor) failed: %v", err)
	}
	if got, err := cfg.Editor(ctx); err != nil || got != "emacs" {
		t.Fatalf("Editor() = (%q, %v), want %q", got, err, "emacs")
	}
}

func TestRepoVersionRejectsNonInteger(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	cfg := New(repo)

	if err := cfg.Set(ctx, KeyRepoVersion, "not-a-number", gitrepo.ScopeTracked); err != nil {
		t.Fatalf("Set() failed: %v", err)
	}
	if _, _, err := cfg.RepoVersion(ctx); err == nil {
		t.Fatal("expected RepoVersion() to fail on a non-integer value")
	}
}

func TestRepoVersionUnsetReturnsNotOK(t *testing.T) {
	ctx := context.Background()
	repo := setupTestRepo(t)
	cfg := New(repo)

	_, ok, err := cfg.RepoVersion(ctx)
	if err != nil {
		t.Fatalf("RepoVersion() failed: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for an unset onyo.repo.version")
	}
}
