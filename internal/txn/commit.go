package txn

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

// CommitOptions configures message composition and commit authorship.
type CommitOptions struct {
	Identity       gitrepo.Identity
	When           time.Time
	UserParagraphs []string // one or more --message paragraphs
	NoAutoMessage  bool     // disable subject autogeneration
}

// Commit materialises the Transaction's overlay to disk and git in a
// single commit (spec §4.6 step 3). On success it transitions to
// Committed and returns the new commit id, or "" if there was nothing
// to commit (a no-op batch). On any failure after filesystem writes
// begin, it attempts a best-effort rollback via ResetHard/Clean and
// returns a typed error; the Transaction becomes Abandoned either way,
// since a Transaction is single-use.
func (t *Transaction) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if t.state != Open {
		return "", onyoerr.New(onyoerr.UserAbort, "commit on a "+t.state.String()+" transaction")
	}
	if len(t.ops) == 0 {
		t.state = Abandoned
		return "", nil
	}

	message, err := t.composeMessage(opts)
	if err != nil {
		return "", err
	}

	plan := t.buildPlan()

	if err := t.applyPlan(ctx, plan); err != nil {
		_ = t.repo.ResetHard(ctx)
		_ = t.repo.Clean(ctx)
		t.state = Abandoned
		return "", err
	}

	staged := plan.stagePaths()
	if err := t.repo.Stage(ctx, staged...); err != nil {
		_ = t.repo.ResetHard(ctx)
		_ = t.repo.Clean(ctx)
		t.state = Abandoned
		return "", err
	}

	id, err := t.repo.Commit(ctx, message, opts.Identity, opts.When)
	if err != nil {
		_ = t.repo.ResetHard(ctx)
		_ = t.repo.Clean(ctx)
		t.state = Abandoned
		return "", err
	}

	t.state = Committed
	return id, nil
}

// plan is the ordered sequence of filesystem operations derived from
// the overlay, grouped so that directories are created before writes,
// writes before renames, and renames before removes (spec §4.6 step
// 3d: "never leaves the tree violating its invariants mid-sequence").
type plan struct {
	mkdirs   []mkdirStep
	writes   []writeStep
	renames  []renameStep
	removes  []string
	converts []convertStep
}

// convertStep handles convert-to-asset-dir / convert-from-asset-dir:
// both replace whatever sits at oldPath with newPath's content, so the
// removal must run immediately before the write rather than being
// deferred to the plan's general remove phase.
type convertStep struct {
	oldPath   string
	writePath string
	data      []byte
}

type mkdirStep struct {
	dir string
}

type writeStep struct {
	path string
	data []byte
}

type renameStep struct {
	src, dst string
}

// stagePaths returns the paths that still need an explicit `git add`:
// mkdir's anchor files and plain content writes, both written straight
// to disk by the Git Adapter's WriteFile/EnsureAnchor. Renames and
// removes are staged by git itself as part of `git mv`/`git rm`.
func (p *plan) stagePaths() []string {
	var out []string
	for _, m := range p.mkdirs {
		out = append(out, m.dir+"/"+asset.AnchorFileName)
	}
	for _, w := range p.writes {
		out = append(out, w.path)
	}
	for _, c := range p.converts {
		out = append(out, c.writePath)
	}
	return out
}

func (t *Transaction) buildPlan() *plan {
	p := &plan{}
	for _, op := range t.ops {
		switch op.Kind {
		case invops.NewDirectory:
			p.mkdirs = append(p.mkdirs, mkdirStep{dir: op.Path})

		case invops.NewAsset:
			a := t.ov.Asset(op.Path)
			if a != nil && a.Body != nil {
				data, _ := yamldoc.Dump(a.Body)
				p.writes = append(p.writes, writeStep{path: a.ContentFile(), data: data})
			}

		case invops.ModifyAsset:
			a := t.ov.Asset(op.Path)
			if a != nil && a.Body != nil {
				data, _ := yamldoc.Dump(a.Body)
				p.writes = append(p.writes, writeStep{path: a.ContentFile(), data: data})
			}

		case invops.RenameAsset:
			newPath := joinPath(parentDir(op.Path), op.Dest)
			p.renames = append(p.renames, renameStep{src: op.Path, dst: newPath})
			if a := t.ov.Asset(newPath); a != nil && a.Body != nil {
				data, _ := yamldoc.Dump(a.Body)
				p.writes = append(p.writes, writeStep{path: a.ContentFile(), data: data})
			}

		case invops.MoveAsset:
			newPath := joinPath(op.Dest, baseNameOf(op.Path))
			p.renames = append(p.renames, renameStep{src: op.Path, dst: newPath})

		case invops.MoveDirectory:
			p.renames = append(p.renames, renameStep{src: op.Path, dst: op.Dest})

		case invops.RemoveAsset:
			p.removes = append(p.removes, op.Path)

		case invops.RemoveDirectory:
			p.removes = append(p.removes, op.Path)

		case invops.ConvertToAssetDir:
			// The plain file at op.Path becomes a directory holding the
			// asset-directory body file; the old file must be gone
			// before the new path (op.Path/.onyo-asset-dir) can be
			// created underneath it.
			if a := t.ov.Asset(op.Path); a != nil && a.Body != nil {
				data, _ := yamldoc.Dump(a.Body)
				p.converts = append(p.converts, convertStep{oldPath: op.Path, writePath: a.ContentFile(), data: data})
			}

		case invops.ConvertFromAssetDir:
			// The directory at op.Path (and its lone body file) becomes
			// a plain file of the same name; the directory must be gone
			// before the file can be written in its place.
			if a := t.ov.Asset(op.Path); a != nil && a.Body != nil {
				data, _ := yamldoc.Dump(a.Body)
				p.converts = append(p.converts, convertStep{oldPath: op.Path, writePath: a.Path(), data: data})
			}
		}
	}
	return p
}

func (t *Transaction) applyPlan(ctx context.Context, p *plan) error {
	for _, m := range p.mkdirs {
		if _, err := t.repo.EnsureAnchor(m.dir, asset.AnchorFileName); err != nil {
			return err
		}
	}
	for _, w := range p.writes {
		if err := t.repo.WriteFile(w.path, w.data); err != nil {
			return err
		}
	}
	for _, c := range p.converts {
		// Only a path tracked before this transaction has anything to
		// remove; an asset created earlier in the same plan was already
		// written to its final content file by the writes above.
		if t.view.IsAsset(c.oldPath) {
			if err := t.repo.Remove(ctx, c.oldPath); err != nil {
				return err
			}
		}
		if err := t.repo.WriteFile(c.writePath, c.data); err != nil {
			return err
		}
	}
	for _, r := range p.renames {
		if err := t.repo.Rename(ctx, r.src, r.dst); err != nil {
			return err
		}
	}
	for _, rm := range p.removes {
		if !t.repo.Exists(rm) {
			continue
		}
		if err := t.repo.Remove(ctx, rm); err != nil {
			return err
		}
	}
	return nil
}

// composeMessage builds the commit message per spec §4.6: subject is
// "⟨op⟩ [N]: ⟨comma-joined affected basenames⟩", using the dominant op
// kind when the transaction mixes kinds; user paragraphs follow a blank
// line. --no-auto-message drops the subject entirely, and fails if no
// user paragraph was supplied.
func (t *Transaction) composeMessage(opts CommitOptions) (string, error) {
	if opts.NoAutoMessage {
		if len(opts.UserParagraphs) == 0 {
			return "", onyoerr.New(onyoerr.UserAbort, "--no-auto-message requires at least one --message")
		}
		return strings.Join(opts.UserParagraphs, "\n\n"), nil
	}

	subject := t.subjectLine()
	body := t.operationsSummary()

	parts := []string{subject, body}
	parts = append(parts, opts.UserParagraphs...)
	return strings.Join(parts, "\n\n"), nil
}

// operationsSummary renders the "--- Inventory Operations ---" section
// (spec §6): one group per affected category, each a bullet list of
// "- path" (create/remove) or "- src -> dst" (move/rename) lines,
// paths within a group in lexicographic order.
func (t *Transaction) operationsSummary() string {
	groups := []struct {
		title string
		lines []string
	}{
		{"New assets:", nil},
		{"Moved assets:", nil},
		{"Modified assets:", nil},
		{"Removed assets:", nil},
		{"New directories:", nil},
		{"Moved directories:", nil},
		{"Removed directories:", nil},
	}
	const (
		newAssets = iota
		movedAssets
		modifiedAssets
		removedAssets
		newDirs
		movedDirs
		removedDirs
	)

	for _, op := range t.ops {
		switch op.Kind {
		case invops.NewAsset:
			groups[newAssets].lines = append(groups[newAssets].lines, "- "+op.Path)
		case invops.RenameAsset:
			groups[movedAssets].lines = append(groups[movedAssets].lines, fmt.Sprintf("- %s -> %s", op.Path, renamedPath(op)))
		case invops.MoveAsset:
			groups[movedAssets].lines = append(groups[movedAssets].lines, fmt.Sprintf("- %s -> %s", op.Path, op.Dest))
		case invops.ModifyAsset:
			groups[modifiedAssets].lines = append(groups[modifiedAssets].lines, "- "+op.Path)
		case invops.RemoveAsset:
			groups[removedAssets].lines = append(groups[removedAssets].lines, "- "+op.Path)
		case invops.ConvertToAssetDir, invops.ConvertFromAssetDir:
			groups[modifiedAssets].lines = append(groups[modifiedAssets].lines, "- "+op.Path)
		case invops.NewDirectory:
			groups[newDirs].lines = append(groups[newDirs].lines, "- "+op.Path)
		case invops.MoveDirectory:
			groups[movedDirs].lines = append(groups[movedDirs].lines, fmt.Sprintf("- %s -> %s", op.Path, op.Dest))
		case invops.RemoveDirectory:
			groups[removedDirs].lines = append(groups[removedDirs].lines, "- "+op.Path)
		}
	}

	var b strings.Builder
	b.WriteString("--- Inventory Operations ---\n")
	for _, g := range groups {
		if len(g.lines) == 0 {
			continue
		}
		sort.Strings(g.lines)
		b.WriteString("\n")
		b.WriteString(g.title)
		b.WriteString("\n")
		b.WriteString(strings.Join(g.lines, "\n"))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// renamedPath returns the full destination path of a rename-asset
// operation: op.Dest is a bare basename, joined against op.Path's
// parent directory.
func renamedPath(op invops.Operation) string {
	dir := op.Path[:len(op.Path)-len(baseNameOf(op.Path))]
	return dir + op.Dest
}

func (t *Transaction) subjectLine() string {
	counts := map[invops.Kind]int{}
	var order []invops.Kind
	var names []string
	for _, op := range t.ops {
		if counts[op.Kind] == 0 {
			order = append(order, op.Kind)
		}
		counts[op.Kind]++
		names = append(names, subjectName(op))
	}

	dominant := order[0]
	for _, k := range order {
		if counts[k] > counts[dominant] {
			dominant = k
		}
	}

	sort.Strings(names)
	return fmt.Sprintf("%s [%d]: %s", dominant, len(t.ops), strings.Join(names, ", "))
}

func subjectName(op invops.Operation) string {
	switch op.Kind {
	case invops.RenameAsset:
		return op.Dest
	case invops.MoveAsset, invops.MoveDirectory:
		return baseNameOf(op.Path)
	default:
		return baseNameOf(op.Path)
	}
}
