package cli

import (
	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var editCmd = &cobra.Command{
	Use:   "edit ASSET...",
	Short: "Open one or more assets in the configured editor",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		editor, err := cfg.Editor(ctx)
		if err != nil {
			return err
		}

		tx := txn.New(repo, view, nameTpl)
		for _, assetPath := range args {
			if !view.IsAsset(assetPath) {
				return onyoerr.New(onyoerr.NoSuchAsset, assetPath)
			}
			body, err := view.Document(ctx, assetPath, "")
			if err != nil {
				return err
			}
			edited, err := editDocument(ctx, editor, body)
			if err != nil {
				return err
			}

			set := map[string]any{}
			unset := []string{}
			for _, k := range body.Keys() {
				if asset.IsBoundKey(nameTpl, k) {
					continue
				}
				if !edited.Has(k) {
					unset = append(unset, k)
				}
			}
			for _, k := range edited.Keys() {
				if asset.IsBoundKey(nameTpl, k) {
					continue
				}
				v := edited.Get(k)
				if v.Kind != yamldoc.KindScalar {
					continue
				}
				set[k] = v.Scalar
			}
			if len(set) == 0 && len(unset) == 0 {
				continue
			}
			if err := tx.Push(ctx, invops.Operation{
				Kind:  invops.ModifyAsset,
				Path:  assetPath,
				Patch: yamldoc.Patch{Set: set, Unset: unset, ReplaceScalar: true},
			}); err != nil {
				return err
			}
		}

		return finishTransaction(ctx, tx)
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
}
