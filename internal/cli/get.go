package cli

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/query"
)

// errNoResults signals a clean, empty `get` query (grep convention: no
// matches exits 1, not 2, and prints nothing to stderr).
var errNoResults = errors.New("no matching assets")

var (
	getKeys     []string
	getMatch    []string
	getInclude  []string
	getExclude  []string
	getDepth    int
	getSortAsc  []string
	getSortDesc []string
	getMachine  bool
	getTypes    []string
)

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Query asset keys across the tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := query.Options{
			Include: getInclude,
			Exclude: getExclude,
			Depth:   getDepth,
			Keys:    getKeys,
		}

		for _, m := range getMatch {
			p, err := query.ParsePredicate(m)
			if err != nil {
				return err
			}
			opts.Match = append(opts.Match, p)
		}
		if len(getTypes) > 0 {
			p, err := query.ParsePredicate("type=" + alternation(getTypes))
			if err != nil {
				return err
			}
			opts.Match = append(opts.Match, p)
		}

		opts.Sort = append(opts.Sort, sortKeysFor(getSortAsc, false)...)
		opts.Sort = append(opts.Sort, sortKeysFor(getSortDesc, true)...)
		if len(opts.Sort) == 0 {
			opts.Sort = []query.SortKey{{Key: "path"}}
		}

		rows, err := query.Run(ctx, view, opts)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return errNoResults
		}

		printRows(rows, opts.Keys)
		return nil
	},
}

func init() {
	getCmd.Flags().StringArrayVarP(&getKeys, "keys", "k", nil, "keys to print (repeatable)")
	getCmd.Flags().StringArrayVarP(&getMatch, "match", "M", nil, "KEY=REGEX match predicates (repeatable, AND-combined)")
	getCmd.Flags().StringArrayVarP(&getInclude, "include", "i", nil, "paths to restrict the query to (repeatable)")
	getCmd.Flags().StringArrayVarP(&getExclude, "exclude", "e", nil, "paths to prune from the query (repeatable)")
	getCmd.Flags().IntVarP(&getDepth, "depth", "d", 0, "descent limit under each include root (0 = unbounded)")
	getCmd.Flags().StringArrayVarP(&getSortAsc, "sort-ascending", "s", nil, "sort ascending by KEY (repeatable)")
	getCmd.Flags().StringArrayVarP(&getSortDesc, "sort-descending", "S", nil, "sort descending by KEY (repeatable)")
	getCmd.Flags().BoolVarP(&getMachine, "machine-readable", "H", false, "tab-separated output, no header")
	getCmd.Flags().StringArrayVarP(&getTypes, "types", "t", nil, "restrict to assets whose type matches one of these values")
	rootCmd.AddCommand(getCmd)
}

func alternation(vals []string) string {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = regexp.QuoteMeta(v)
	}
	return "^(" + strings.Join(quoted, "|") + ")$"
}

func sortKeysFor(keys []string, desc bool) []query.SortKey {
	out := make([]query.SortKey, len(keys))
	for i, k := range keys {
		out[i] = query.SortKey{Key: k, Descending: desc}
	}
	return out
}

func printRows(rows []query.Row, keys []string) {
	header := keys
	if len(header) == 0 {
		header = []string{"path"}
	}
	if !getMachine {
		fmt.Println(strings.Join(header, "\t"))
	}
	for _, r := range rows {
		fmt.Println(strings.Join(rowColumns(r, keys), "\t"))
	}
}

func rowColumns(r query.Row, keys []string) []string {
	if len(keys) == 0 {
		return []string{r.Path}
	}
	return r.Values
}
