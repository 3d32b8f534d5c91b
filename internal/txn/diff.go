package txn

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var (
	styleAdd    = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ADE80"))
	styleRemove = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
	styleHeader = lipgloss.NewStyle().Bold(true)
	styleMuted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
)

// RenderDiff produces a deterministic, human-readable rendering of the
// Transaction's operations so far: a unified-diff-flavoured hunk per
// body change, a create/remove/move/rename summary per path, and a
// trailing "Inventory Operations Summary" with counts by kind over
// affected paths in lexicographic order (spec §4.6 step 2).
func (t *Transaction) RenderDiff(ctx context.Context, color bool) string {
	var b strings.Builder

	paths := t.affectedPaths()
	for _, p := range paths {
		b.WriteString(t.renderPathSection(ctx, p, color))
	}

	b.WriteString(t.RenderSummary(color))
	return b.String()
}

func (t *Transaction) affectedPaths() []string {
	seen := map[string]bool{}
	var paths []string
	for _, op := range t.ops {
		for _, p := range operationPaths(op) {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	sort.Strings(paths)
	return paths
}

func operationPaths(op invops.Operation) []string {
	switch op.Kind {
	case invops.RenameAsset:
		return []string{op.Path, joinPath(parentDir(op.Path), op.Dest)}
	case invops.MoveAsset:
		return []string{op.Path, joinPath(op.Dest, baseNameOf(op.Path))}
	case invops.MoveDirectory:
		return []string{op.Path, op.Dest}
	default:
		return []string{op.Path}
	}
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func (t *Transaction) renderPathSection(ctx context.Context, path string, color bool) string {
	var kinds []string
	for _, op := range t.ops {
		for _, p := range operationPaths(op) {
			if p == path {
				kinds = append(kinds, string(op.Kind))
			}
		}
	}
	header := fmt.Sprintf("--- %s (%s)\n", path, strings.Join(kinds, ", "))
	if color {
		header = styleHeader.Render(header)
	}

	var b strings.Builder
	b.WriteString(header)

	after := t.ov.Asset(path)
	if after == nil || after.Body == nil {
		return b.String()
	}
	before, err := t.view.Document(ctx, path, "")
	if err != nil {
		// A brand-new path (no prior HEAD/index content): render the
		// whole body as additions instead of a before/after hunk.
		before = yamldoc.Empty()
	}
	b.WriteString(renderBodyHunk(before, after.Body, color))
	return b.String()
}

// renderBodyHunk produces a line-based unified-diff hunk between a
// document's before and after states, used for modify-asset changes
// where both sides are known documents.
func renderBodyHunk(before, after *yamldoc.Document, color bool) string {
	var b strings.Builder
	oldKeys := map[string]yamldoc.Value{}
	for _, k := range before.Keys() {
		oldKeys[k] = before.Get(k)
	}
	newKeys := map[string]yamldoc.Value{}
	for _, k := range after.Keys() {
		newKeys[k] = after.Get(k)
	}

	var keys []string
	seen := map[string]bool{}
	for _, k := range before.Keys() {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for _, k := range after.Keys() {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		ov, oOK := oldKeys[k]
		nv, nOK := newKeys[k]
		switch {
		case !oOK && nOK:
			line := fmt.Sprintf("+%s: %s\n", k, renderToken(nv))
			if color {
				line = styleAdd.Render(line)
			}
			b.WriteString(line)
		case oOK && !nOK:
			line := fmt.Sprintf("-%s: %s\n", k, renderToken(ov))
			if color {
				line = styleRemove.Render(line)
			}
			b.WriteString(line)
		case oOK && nOK && !valueEqual(ov, nv):
			removed := fmt.Sprintf("-%s: %s\n", k, renderToken(ov))
			added := fmt.Sprintf("+%s: %s\n", k, renderToken(nv))
			if color {
				removed = styleRemove.Render(removed)
				added = styleAdd.Render(added)
			}
			b.WriteString(removed)
			b.WriteString(added)
		}
	}
	return b.String()
}

func renderToken(v yamldoc.Value) string {
	switch v.Kind {
	case yamldoc.KindNull:
		return "[unset]"
	case yamldoc.KindMapping:
		return "[dict]"
	case yamldoc.KindSequence:
		return "[list]"
	default:
		return v.Scalar
	}
}

func valueEqual(a, b yamldoc.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	return a.Kind == yamldoc.KindScalar && a.Scalar == b.Scalar
}

// RenderSummary produces just the "Inventory Operations Summary"
// section on its own: counts by op kind, then affected paths in
// lexicographic order. RenderDiff appends it after the per-path
// sections; it is exported for callers that want the summary alone.
func (t *Transaction) RenderSummary(color bool) string {
	var b strings.Builder
	title := "Inventory Operations Summary\n"
	if color {
		title = styleHeader.Render(title)
	}
	b.WriteString(title)

	counts := map[invops.Kind]int{}
	var order []invops.Kind
	for _, op := range t.ops {
		if counts[op.Kind] == 0 {
			order = append(order, op.Kind)
		}
		counts[op.Kind]++
	}
	for _, k := range order {
		line := fmt.Sprintf("  %s: %d\n", k, counts[k])
		if color {
			line = styleMuted.Render(line)
		}
		b.WriteString(line)
	}

	paths := t.affectedPaths()
	for _, p := range paths {
		b.WriteString(fmt.Sprintf("  %s\n", p))
	}
	return b.String()
}
