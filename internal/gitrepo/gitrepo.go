// Package gitrepo is the Git Plumbing Adapter: the only subsystem that
// touches the filesystem or spawns a subprocess. Every other Onyo
// component reads and writes history exclusively through a *Repo.
package gitrepo

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/onyo-org/onyo/internal/onyoerr"
)

// ConfigScope selects which git-config file a read or write targets.
type ConfigScope string

const (
	ScopeLocal   ConfigScope = "local"
	ScopeGlobal  ConfigScope = "global"
	ScopeSystem  ConfigScope = "system"
	ScopeTracked ConfigScope = "onyo-tracked" // .onyo/config, read via `git config -f`
)

// Identity is the author/committer identity used for a commit. Zero-value
// Name/Email fall back to git's own configured identity.
type Identity struct {
	Name  string
	Email string
}

// Repo is a handle onto a single non-bare git working tree.
type Repo struct {
	root         string // absolute path of the worktree root
	onyoConfig   string // absolute path to .onyo/config, for ScopeTracked
	trackedCache []string
}

// Open locates the git worktree containing path and returns a handle to
// it. It fails with onyoerr.NotARepository if path is not inside a git
// repository, and refuses bare repositories (spec's Open Question #1:
// "onyo init" — and by extension every other command — requires a
// non-bare working tree).
func Open(ctx context.Context, path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	root, err := revParse(ctx, abs, "--show-toplevel")
	if err != nil {
		return nil, onyoerr.Wrap(onyoerr.NotARepository, "open", abs, err)
	}

	isBare, err := revParse(ctx, abs, "--is-bare-repository")
	if err != nil {
		return nil, onyoerr.Wrap(onyoerr.NotARepository, "open", abs, err)
	}
	if isBare == "true" {
		return nil, onyoerr.New(onyoerr.NotARepository, abs+" (bare repository)")
	}

	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolved = root
	}

	r := &Repo{root: resolved, onyoConfig: filepath.Join(resolved, ".onyo", "config")}

	if r.Exists(".onyo") {
		version, err := r.RepoVersion(ctx)
		if err != nil {
			return nil, err
		}
		if !KnownRepoVersions[version] {
			return nil, onyoerr.New(onyoerr.NotARepository, fmt.Sprintf("%s (onyo.repo.version %d is not supported by this binary)", resolved, version))
		}
	}

	return r, nil
}

// KnownRepoVersions is the set of onyo.repo.version values this binary
// can operate against (mirrors KNOWN_REPO_VERSIONS in the Python
// original). Open refuses any repository whose tracked config names a
// version outside this set.
var KnownRepoVersions = map[int]bool{1: true}

// Init creates a new git repository at path (running `git init`) and
// returns a handle to it. If path already contains a non-bare git
// repository, Init is a no-op and simply opens it; if it is inside a
// *different* repository in a conflicting way, it returns
// onyoerr.AlreadyARepository.
func Init(ctx context.Context, path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	if repo, err := Open(ctx, abs); err == nil {
		if repo.root != abs {
			return nil, onyoerr.New(onyoerr.AlreadyARepository, abs)
		}
		return repo, nil
	}

	if _, err := run(ctx, abs, "init"); err != nil {
		return nil, onyoerr.Wrap(onyoerr.PluginFailure, "init", abs, err)
	}

	return Open(ctx, abs)
}

func revParse(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := run(ctx, dir, append([]string{"rev-parse"}, args...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func run(ctx context.Context, dir string, args ...string) (string, error) {
	start := time.Now()
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	slog.Debug("git subprocess", "args", args, "dir", dir, "elapsed", time.Since(start), "err", err)
	if err != nil {
		return stdout.String(), fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Root returns the absolute path of the worktree root.
func (r *Repo) Root() string { return r.root }

// git runs a git subcommand rooted at the repository and returns a
// typed PluginFailure on non-zero exit.
func (r *Repo) git(ctx context.Context, op string, args ...string) (string, error) {
	out, err := run(ctx, r.root, args...)
	if err != nil {
		return out, onyoerr.Wrap(onyoerr.PluginFailure, op, r.root, err)
	}
	return out, nil
}

// ListTracked returns the repo-relative paths of all tracked files under
// subtree (relative to the root; "" for the whole repo).
func (r *Repo) ListTracked(ctx context.Context, subtree string) ([]string, error) {
	args := []string{"ls-files", "-z"}
	if subtree != "" {
		args = append(args, "--", subtree)
	}
	out, err := r.git(ctx, "list-tracked", args...)
	if err != nil {
		return nil, err
	}
	return splitNUL(out), nil
}

func splitNUL(s string) []string {
	parts := strings.Split(s, "\x00")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// IsClean reports whether the working tree has no staged, unstaged, or
// untracked changes (files matched by ignore rules, including
// .onyoignore, are excluded from the untracked scan).
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	out, err := r.git(ctx, "is-clean", "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return false, err
	}
	patterns := r.onyoIgnorePatterns()
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		if len(line) < 4 {
			return true, nil
		}
		status, rel := line[:2], line[3:]
		if status == "??" && matchesAny(patterns, rel) {
			continue
		}
		return false, nil
	}
	return true, nil
}

// onyoIgnorePatterns reads .onyoignore from the working tree root, one
// glob pattern per line (# comments and blank lines skipped). git
// itself never sees this file: it is an Onyo-only exclusion list for
// untracked-file scans (fsck, IsClean), layered on top of .gitignore.
func (r *Repo) onyoIgnorePatterns() []string {
	data, err := r.ReadFile(".onyoignore")
	if err != nil {
		return nil
	}
	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}

// matchesAny reports whether rel matches one of patterns: as a shell glob
// against the full relative path or against its basename, or as a literal
// directory prefix of rel (a trailing "/" on the pattern is ignored).
// Globs are not applied to rel's ancestor directories or inner segments.
func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, rel); ok {
			return true
		}
		if ok, _ := filepath.Match(p, filepath.Base(rel)); ok {
			return true
		}
		if strings.HasPrefix(rel, strings.TrimSuffix(p, "/")+"/") {
			return true
		}
	}
	return false
}

// Stage adds paths (repo-relative) to the index.
func (r *Repo) Stage(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := r.git(ctx, "stage", append([]string{"add", "--"}, paths...)...)
	return err
}

// Rename moves a tracked path, preserving history, and stages the result.
func (r *Repo) Rename(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(filepath.Join(r.root, dst)), 0o755); err != nil {
		return fmt.Errorf("create destination parent: %w", err)
	}
	_, err := r.git(ctx, "rename", "mv", src, dst)
	return err
}

// Remove removes a tracked path (recursively, if it is a directory) and
// stages the removal.
func (r *Repo) Remove(ctx context.Context, path string) error {
	_, err := r.git(ctx, "remove", "rm", "-r", "--", path)
	return err
}

// Commit creates a commit from whatever is currently staged. It returns
// the new commit id. If nothing is staged, it returns ("", nil) — callers
// use the empty id to recognise the no-op case described in spec §4.6e.
func (r *Repo) Commit(ctx context.Context, message string, identity Identity, when time.Time) (string, error) {
	diff, err := r.git(ctx, "commit", "diff", "--cached", "--name-only")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(diff) == "" {
		return "", nil
	}

	args := []string{"commit", "--message", message}
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.root
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE="+when.Format(time.RFC3339),
		"GIT_COMMITTER_DATE="+when.Format(time.RFC3339),
	)
	if identity.Name != "" {
		cmd.Env = append(cmd.Env, "GIT_AUTHOR_NAME="+identity.Name, "GIT_COMMITTER_NAME="+identity.Name)
	}
	if identity.Email != "" {
		cmd.Env = append(cmd.Env, "GIT_AUTHOR_EMAIL="+identity.Email, "GIT_COMMITTER_EMAIL="+identity.Email)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", onyoerr.Wrap(onyoerr.PluginFailure, "commit", r.root, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String())))
	}

	id, err := revParse(ctx, r.root, "HEAD")
	if err != nil {
		return "", onyoerr.Wrap(onyoerr.PluginFailure, "commit", r.root, err)
	}
	return id, nil
}

// ResetHard discards staged and unstaged changes, restoring the working
// tree to HEAD. Used for best-effort rollback after a failed commit
// sequence (spec §4.6 step 4 / §5 cancellation).
func (r *Repo) ResetHard(ctx context.Context) error {
	_, err := r.git(ctx, "reset", "reset", "--hard", "HEAD")
	return err
}

// Clean removes untracked files left behind by a failed commit sequence.
func (r *Repo) Clean(ctx context.Context) error {
	_, err := r.git(ctx, "clean", "clean", "-fd")
	return err
}

// ReadBlob returns the bytes of path as they existed at revision (e.g.
// "HEAD", a commit id, or "" for the current index via ":path").
func (r *Repo) ReadBlob(ctx context.Context, path, revision string) ([]byte, error) {
	spec := revision + ":" + path
	out, err := r.git(ctx, "read-blob", "show", spec)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// ConfigGet reads a single key from the given scope. ok is false if the
// key is unset in that scope (not an error).
func (r *Repo) ConfigGet(ctx context.Context, key string, scope ConfigScope) (value string, ok bool, err error) {
	args := r.configArgs(scope)
	args = append(args, "--get", key)
	out, runErr := run(ctx, r.root, args...)
	if runErr != nil {
		// git config --get exits 1 when the key is unset; that is not a
		// PluginFailure, it is simply "not set".
		return "", false, nil
	}
	return strings.TrimSpace(out), true, nil
}

// ConfigSet writes key=value into the given scope.
func (r *Repo) ConfigSet(ctx context.Context, key, value string, scope ConfigScope) error {
	if scope == ScopeTracked {
		if err := os.MkdirAll(filepath.Dir(r.onyoConfig), 0o755); err != nil {
			return fmt.Errorf("create onyo config directory: %w", err)
		}
	}
	args := r.configArgs(scope)
	args = append(args, key, value)
	_, err := r.git(ctx, "config-set", args...)
	return err
}

// ConfigUnset removes key from the given scope. Unsetting a missing key
// is a no-op.
func (r *Repo) ConfigUnset(ctx context.Context, key string, scope ConfigScope) error {
	args := r.configArgs(scope)
	args = append(args, "--unset", key)
	// `git config --unset` of a missing key exits 5; treat as success.
	_, _ = run(ctx, r.root, args...)
	return nil
}

func (r *Repo) configArgs(scope ConfigScope) []string {
	switch scope {
	case ScopeGlobal:
		return []string{"config", "--global"}
	case ScopeSystem:
		return []string{"config", "--system"}
	case ScopeTracked:
		return []string{"config", "-f", r.onyoConfig}
	default:
		return []string{"config", "--local"}
	}
}

// Exec runs an arbitrary git subcommand rooted at the repository and
// returns its stdout. Used by onyo history's built-in fallback pager.
func (r *Repo) Exec(ctx context.Context, args ...string) (string, error) {
	return r.git(ctx, "exec:"+strings.Join(args, " "), args...)
}

// Version returns the installed git binary's version string.
func Version(ctx context.Context) (string, error) {
	out, err := run(ctx, "", "--version")
	if err != nil {
		return "", onyoerr.Wrap(onyoerr.PluginFailure, "version", "", err)
	}
	v := strings.TrimSpace(out)
	return strings.TrimPrefix(v, "git version "), nil
}

// EnsureAnchor creates the anchor marker file at dir/anchorName if
// missing, and returns the repo-relative path written.
func (r *Repo) EnsureAnchor(dir, anchorName string) (string, error) {
	abs := filepath.Join(r.root, dir)
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	anchorPath := filepath.Join(abs, anchorName)
	if _, err := os.Stat(anchorPath); os.IsNotExist(err) {
		if err := os.WriteFile(anchorPath, nil, 0o644); err != nil {
			return "", fmt.Errorf("write anchor %s: %w", anchorPath, err)
		}
	}
	rel, err := filepath.Rel(r.root, anchorPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// WriteFile writes data to the repo-relative path rel, creating parent
// directories as needed. It does not stage the file; callers stage
// explicitly as part of the commit sequence.
func (r *Repo) WriteFile(rel string, data []byte) error {
	abs := filepath.Join(r.root, rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", rel, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(abs), ".onyo-tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", rel, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file for %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file for %s: %w", rel, err)
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place %s: %w", rel, err)
	}
	return nil
}

// ReadFile reads a repo-relative file directly off disk, for content
// that is never read by revision (templates, ignore files): spec §6's
// `.onyo/templates/` store is consulted as it exists in the working
// tree, not at a particular commit.
func (r *Repo) ReadFile(rel string) ([]byte, error) {
	return os.ReadFile(r.AbsPath(rel))
}

// AbsPath joins a repo-relative path onto the root.
func (r *Repo) AbsPath(rel string) string { return filepath.Join(r.root, rel) }

// Exists reports whether a repo-relative path exists on disk.
func (r *Repo) Exists(rel string) bool {
	_, err := os.Stat(r.AbsPath(rel))
	return err == nil
}

// IsDir reports whether a repo-relative path is a directory on disk.
func (r *Repo) IsDir(rel string) bool {
	st, err := os.Stat(r.AbsPath(rel))
	return err == nil && st.IsDir()
}

// RepoVersion reads onyo.repo.version from the tracked config, falling
// back to "1" if unset (spec's §9 original-source compatibility gate).
func (r *Repo) RepoVersion(ctx context.Context) (int, error) {
	v, ok, err := r.ConfigGet(ctx, "onyo.repo.version", ScopeTracked)
	if err != nil {
		return 0, err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, onyoerr.Wrap(onyoerr.MalformedDocument, "repo-version", ".onyo/config", err)
	}
	return n, nil
}
