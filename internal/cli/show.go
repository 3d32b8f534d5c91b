package cli

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var showBase string

var showCmd = &cobra.Command{
	Use:   "show PATH...",
	Short: "Serialize assets and directories into a multi-document YAML stream",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		base := strings.Trim(showBase, "/")

		var assetPaths []string
		seen := map[string]bool{}
		for _, p := range args {
			p = strings.Trim(p, "/")
			switch {
			case view.IsAsset(p):
				if !seen[p] {
					seen[p] = true
					assetPaths = append(assetPaths, p)
				}
			case p == "" || view.IsTrackedDir(p):
				for _, a := range view.Assets() {
					if underRoot(a, p) && !seen[a] {
						seen[a] = true
						assetPaths = append(assetPaths, a)
					}
				}
			default:
				return onyoerr.New(onyoerr.NoSuchAsset, p)
			}
		}
		sort.Strings(assetPaths)

		first := true
		for _, assetPath := range assetPaths {
			doc, err := view.Document(ctx, assetPath, "")
			if err != nil {
				return err
			}
			doc, err = withPathPseudoKeys(doc, assetPath, base)
			if err != nil {
				return err
			}
			data, err := yamldoc.Dump(doc)
			if err != nil {
				return err
			}
			if !first {
				fmt.Println("---")
			}
			first = false
			fmt.Print(string(data))
		}
		return nil
	},
}

func init() {
	showCmd.Flags().StringVarP(&showBase, "base-path", "b", "", "base path that pseudokey-paths are relative to (default: repository root)")
	rootCmd.AddCommand(showCmd)
}

func underRoot(p, root string) bool {
	root = strings.Trim(root, "/")
	if root == "" {
		return true
	}
	return p == root || strings.HasPrefix(p, root+"/")
}

// withPathPseudoKeys annotates doc with onyo.path.relative/parent
// pseudokeys, relative to base, before serialization.
func withPathPseudoKeys(doc *yamldoc.Document, assetPath, base string) (*yamldoc.Document, error) {
	rel := strings.TrimPrefix(assetPath, base)
	rel = strings.TrimPrefix(rel, "/")
	if base != "" && !strings.HasPrefix(assetPath, base) {
		rel = assetPath
	}
	return yamldoc.ApplyPatch(doc, yamldoc.Patch{
		Set: map[string]any{
			"onyo.path.relative": rel,
			"onyo.path.parent":   path.Dir(rel),
		},
		CreateIntermediate: true,
		ReplaceScalar:      true,
	})
}
