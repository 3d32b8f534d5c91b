package cli

import (
	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var (
	unsetKeys   []string
	unsetAssets []string
)

var unsetCmd = &cobra.Command{
	Use:   "unset",
	Short: "Remove keys from one or more assets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(unsetKeys) == 0 {
			return onyoerr.New(onyoerr.InvalidAssetName, "unset requires at least one -k/--keys entry")
		}
		for _, k := range unsetKeys {
			if asset.IsBoundKey(nameTpl, k) || asset.IsReservedKey(k) {
				return onyoerr.New(onyoerr.BoundKeyMutation, k)
			}
		}

		tx := txn.New(repo, view, nameTpl)
		for _, assetPath := range unsetAssets {
			if !view.IsAsset(assetPath) {
				return onyoerr.New(onyoerr.NoSuchAsset, assetPath)
			}
			if err := tx.Push(ctx, invops.Operation{
				Kind:  invops.ModifyAsset,
				Path:  assetPath,
				Patch: yamldoc.Patch{Unset: unsetKeys},
			}); err != nil {
				return err
			}
		}

		return finishTransaction(ctx, tx)
	},
}

func init() {
	unsetCmd.Flags().StringArrayVarP(&unsetKeys, "keys", "k", nil, "keys to remove (repeatable)")
	unsetCmd.Flags().StringArrayVarP(&unsetAssets, "asset", "a", nil, "assets to modify (repeatable)")
	rootCmd.AddCommand(unsetCmd)
}
