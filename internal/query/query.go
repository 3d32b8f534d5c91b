// Package query is the Query Engine: a read-only matcher over the
// Repository View that supports include/exclude path scoping, a depth
// bound, key=regex predicates, dotted-key output projection, and a
// stable multi-key natural sort.
package query

import (
	"context"
	"path"
	"strings"

	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/repoview"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

// Reserved render-time tokens (spec §4.2): never stored, only ever
// produced when projecting a value for display.
const (
	TokenUnset = "[unset]"
	TokenDict  = "[dict]"
	TokenList  = "[list]"
)

// Options describes a single get() query.
type Options struct {
	Include []string // path-scoped roots to search; empty means the whole tree
	Exclude []string // paths to prune; exclude wins over include
	Depth   int      // 0 = unbounded; 1 = direct children of the include root only
	Match   []Predicate
	Keys    []string // output projection, dotted keys allowed
	Sort    []SortKey
}

// Row is one asset's projected output.
type Row struct {
	Path string
	// Values holds the rendered token for each of Options.Keys, in order.
	Values []string

	sortValues map[string]string // Options.Sort keys, rendered, kept even if not in Keys
}

// Run evaluates opts against view and returns matching rows in stable
// sorted order.
func Run(ctx context.Context, view *repoview.View, opts Options) ([]Row, error) {
	predicateKeys := map[string]bool{}
	for _, p := range opts.Match {
		predicateKeys[p.Key] = true
	}
	sortKeys := map[string]bool{}
	for _, s := range opts.Sort {
		sortKeys[s.Key] = true
	}

	var rows []Row
	for _, assetPath := range view.Assets() {
		if !inScope(assetPath, opts.Include, opts.Exclude, opts.Depth) {
			continue
		}

		values, err := renderedValues(ctx, view, assetPath, unionKeys(opts.Keys, predicateKeys, sortKeys))
		if err != nil {
			return nil, err
		}

		matched := true
		for _, p := range opts.Match {
			if !p.Match(values[p.Key]) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}

		row := Row{Path: assetPath, sortValues: map[string]string{}}
		for _, k := range opts.Keys {
			row.Values = append(row.Values, values[k])
		}
		for k := range sortKeys {
			row.sortValues[k] = values[k]
		}
		rows = append(rows, row)
	}

	stableSort(rows, opts.Sort)
	return rows, nil
}

func unionKeys(keys []string, sets ...map[string]bool) []string {
	seen := map[string]bool{}
	var out []string
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range keys {
		add(k)
	}
	for _, s := range sets {
		for k := range s {
			add(k)
		}
	}
	return out
}

// inScope reports whether assetPath is under one of include's roots (or
// under the tree root if include is empty), not under any of exclude's
// roots, and within depth of its include root.
func inScope(assetPath string, include, exclude []string, depth int) bool {
	for _, ex := range exclude {
		if underRoot(assetPath, ex) {
			return false
		}
	}
	if len(include) == 0 {
		return withinDepth(assetPath, "", depth)
	}
	for _, in := range include {
		if underRoot(assetPath, in) && withinDepth(assetPath, in, depth) {
			return true
		}
	}
	return false
}

func underRoot(p, root string) bool {
	root = strings.Trim(root, "/")
	if root == "" || root == "." {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}

func withinDepth(p, root string, depth int) bool {
	if depth <= 0 {
		return true
	}
	root = strings.Trim(root, "/")
	rel := p
	if root != "" && root != "." {
		rel = strings.TrimPrefix(p, root+"/")
	}
	return strings.Count(rel, "/")+1 <= depth
}

// renderedValues resolves keys (pseudo-keys and dotted body keys) for
// the asset at assetPath into their render-time string form.
func renderedValues(ctx context.Context, view *repoview.View, assetPath string, keys []string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var doc *yamldoc.Document
	var docErr error

	for _, key := range keys {
		if v, ok := pseudoValue(view, assetPath, key); ok {
			out[key] = v
			continue
		}
		if doc == nil && docErr == nil {
			// "" reads the current index, matching the tracked-file set
			// repoview.Build derived Assets() from, rather than HEAD,
			// which may lag behind uncommitted (but staged) changes.
			doc, docErr = view.Document(ctx, assetPath, "")
		}
		if docErr != nil {
			if kind, ok := onyoerr.Of(docErr); ok && kind == onyoerr.NoSuchAsset {
				out[key] = TokenUnset
				continue
			}
			return nil, docErr
		}
		out[key] = renderValue(doc.Get(key))
	}
	return out, nil
}

func pseudoValue(view *repoview.View, assetPath, key string) (string, bool) {
	switch key {
	case "path", "onyo.path.relative":
		return assetPath, true
	case "onyo.path.absolute":
		return assetPath, true
	case "directory", "onyo.path.parent":
		return path.Dir(assetPath), true
	case "onyo.path.file":
		return path.Base(assetPath), true
	case "onyo.is.asset":
		return renderBool(true), true
	case "onyo.is.directory":
		return renderBool(false), true
	case "onyo.is.template":
		return renderBool(false), true
	case "is_asset_directory", "onyo.is.asset_directory":
		return renderBool(view.IsAssetDirectory(assetPath)), true
	default:
		return "", false
	}
}

func renderBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func renderValue(v yamldoc.Value) string {
	switch v.Kind {
	case yamldoc.KindNull:
		return TokenUnset
	case yamldoc.KindMapping:
		return TokenDict
	case yamldoc.KindSequence:
		return TokenList
	default:
		return v.Scalar
	}
}
