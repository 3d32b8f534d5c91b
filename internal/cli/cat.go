package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var catCmd = &cobra.Command{
	Use:   "cat ASSET...",
	Short: "Print the raw YAML content of one or more assets",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		invalid := false
		for _, assetPath := range args {
			if !view.IsAsset(assetPath) {
				return onyoerr.New(onyoerr.NoSuchAsset, assetPath)
			}
			doc, err := view.Document(ctx, assetPath, "")
			if err != nil {
				return err
			}
			data, err := yamldoc.Dump(doc)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "onyo: %s: %v\n", assetPath, err)
				invalid = true
				continue
			}
			fmt.Print(string(data))
		}
		if invalid {
			return onyoerr.New(onyoerr.MalformedDocument, "one or more assets had invalid content")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catCmd)
}
