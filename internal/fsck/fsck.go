// Package fsck runs a read-only battery of repository consistency
// checks: a clean working tree, an anchor in every tracked directory,
// well-formed YAML in every asset, unique asset basenames, and
// bound-field equality between each asset's name and its body.
package fsck

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/repoview"
)

// Problem is one failed check, with enough context to act on it.
type Problem struct {
	Check string
	Path  string
	Issue string
}

func (p Problem) String() string {
	if p.Path == "" {
		return fmt.Sprintf("%s: %s", p.Check, p.Issue)
	}
	return fmt.Sprintf("%s: %s: %s", p.Check, p.Path, p.Issue)
}

// Run executes every check against repo/view/nameTpl and returns every
// problem found, in deterministic order. A nil/empty result means the
// repository is clean.
func Run(ctx context.Context, repo *gitrepo.Repo, view *repoview.View, nameTpl *asset.NameTemplate) ([]Problem, error) {
	var problems []Problem

	clean, err := repo.IsClean(ctx)
	if err != nil {
		return nil, err
	}
	if !clean {
		problems = append(problems, Problem{Check: "working-tree", Issue: "the working tree has uncommitted or untracked changes"})
	}

	for _, dir := range view.Dirs() {
		if dir == "" {
			continue // the repository root carries no anchor
		}
		if !repo.Exists(path.Join(dir, asset.AnchorFileName)) {
			problems = append(problems, Problem{Check: "anchor", Path: dir, Issue: "missing " + asset.AnchorFileName})
		}
	}

	seenNames := map[string][]string{}
	for _, assetPath := range view.Assets() {
		doc, err := view.Document(ctx, assetPath, "")
		if err != nil {
			problems = append(problems, Problem{Check: "yaml", Path: assetPath, Issue: err.Error()})
			continue
		}

		if err := asset.VerifyBinding(nameTpl, path.Base(assetPath), doc); err != nil {
			problems = append(problems, Problem{Check: "binding", Path: assetPath, Issue: err.Error()})
		}

		base := path.Base(assetPath)
		seenNames[base] = append(seenNames[base], assetPath)
	}

	bases := make([]string, 0, len(seenNames))
	for base := range seenNames {
		bases = append(bases, base)
	}
	sort.Strings(bases)
	for _, base := range bases {
		paths := seenNames[base]
		if len(paths) > 1 {
			problems = append(problems, Problem{Check: "unique-name", Path: base, Issue: fmt.Sprintf("used by %d assets: %v", len(paths), paths)})
		}
	}

	sort.SliceStable(problems, func(i, j int) bool {
		if problems[i].Check != problems[j].Check {
			return problems[i].Check < problems[j].Check
		}
		return problems[i].Path < problems[j].Path
	})

	return problems, nil
}
