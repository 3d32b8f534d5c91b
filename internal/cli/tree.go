package cli

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/onyoerr"
)

var treeDirsOnly bool

var treeCmd = &cobra.Command{
	Use:   "tree [DIR...]",
	Short: "Print the directory/asset tree rooted at the given paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots := args
		if len(roots) == 0 {
			roots = []string{""}
		}

		dirStyle := lipgloss.NewStyle()
		if display.Color(quiet()) {
			dirStyle = dirStyle.Bold(true)
		}

		for _, root := range roots {
			root = strings.Trim(root, "/")
			if root != "" && !view.IsTrackedDir(root) {
				return onyoerr.New(onyoerr.NoSuchDirectory, root)
			}
			label := root
			if label == "" {
				label = "."
			}
			fmt.Println(dirStyle.Render(label))
			printChildren(root, dirStyle, "")
		}
		return nil
	},
}

func init() {
	treeCmd.Flags().BoolVarP(&treeDirsOnly, "dirs-only", "d", false, "only print directories")
	rootCmd.AddCommand(treeCmd)
}

func printChildren(root string, dirStyle lipgloss.Style, prefix string) {
	children := directChildren(root)
	for i, c := range children {
		last := i == len(children)-1
		branch, nextPrefix := "├── ", prefix+"│   "
		if last {
			branch, nextPrefix = "└── ", prefix+"    "
		}
		name := path.Base(c)
		if view.IsTrackedDir(c) {
			fmt.Println(prefix + branch + dirStyle.Render(name))
			printChildren(c, dirStyle, nextPrefix)
		} else if !treeDirsOnly {
			fmt.Println(prefix + branch + name)
		}
	}
}

// directChildren lists the direct tracked-dir and asset children of
// root (root itself excluded), sorted lexicographically.
func directChildren(root string) []string {
	seen := map[string]bool{}
	var out []string
	add := func(p string) {
		if p != root && isDirectChild(root, p) && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, d := range view.Dirs() {
		add(d)
	}
	if !treeDirsOnly {
		for _, a := range view.Assets() {
			add(a)
		}
	}
	sort.Strings(out)
	return out
}

func isDirectChild(root, p string) bool {
	if root == "" {
		return !strings.Contains(p, "/")
	}
	rest := strings.TrimPrefix(p, root+"/")
	if rest == p {
		return false
	}
	return !strings.Contains(rest, "/")
}
