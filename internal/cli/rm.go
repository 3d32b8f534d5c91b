package cli

import (
	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
)

var rmRecursive bool

var rmCmd = &cobra.Command{
	Use:   "rm PATH...",
	Short: "Remove assets or directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tx := txn.New(repo, view, nameTpl)

		for _, p := range args {
			switch {
			case view.IsAsset(p):
				if err := tx.Push(ctx, invops.Operation{Kind: invops.RemoveAsset, Path: p}); err != nil {
					return err
				}
			case view.IsTrackedDir(p):
				if err := tx.Push(ctx, invops.Operation{Kind: invops.RemoveDirectory, Path: p, Recursive: rmRecursive}); err != nil {
					return err
				}
			default:
				return onyoerr.New(onyoerr.NoSuchAsset, p)
			}
		}

		return finishTransaction(ctx, tx)
	},
}

func init() {
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "remove non-empty directories")
	rootCmd.AddCommand(rmCmd)
}
