package cli

import (
	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
)

var rmdirCmd = &cobra.Command{
	Use:   "rmdir DIR...",
	Short: "Delete directories, or convert an empty asset directory into an asset file",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tx := txn.New(repo, view, nameTpl)

		for _, dir := range args {
			switch {
			case view.IsAssetDirectory(dir):
				if err := tx.Push(ctx, invops.Operation{Kind: invops.ConvertFromAssetDir, Path: dir}); err != nil {
					return err
				}
			case view.IsTrackedDir(dir):
				if err := tx.Push(ctx, invops.Operation{Kind: invops.RemoveDirectory, Path: dir}); err != nil {
					return err
				}
			default:
				return onyoerr.New(onyoerr.NoSuchDirectory, dir)
			}
		}

		return finishTransaction(ctx, tx)
	},
}

func init() {
	rootCmd.AddCommand(rmdirCmd)
}
