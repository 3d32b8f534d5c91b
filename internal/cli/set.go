package cli

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
	"github.com/onyo-org/onyo/internal/yamldoc"
)

var (
	setKeysFlag []string
	setAssets   []string
	setRename   bool
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Set KEY=VALUE pairs on one or more assets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		patch, err := parseSingleKeyValues(setKeysFlag)
		if err != nil {
			return err
		}
		if len(patch) == 0 {
			return onyoerr.New(onyoerr.InvalidAssetName, "set requires at least one -k/--keys pair")
		}

		tx := txn.New(repo, view, nameTpl)
		for _, assetPath := range setAssets {
			if !view.IsAsset(assetPath) {
				return onyoerr.New(onyoerr.NoSuchAsset, assetPath)
			}
			if err := applySetToAsset(ctx, tx, assetPath, patch); err != nil {
				return err
			}
		}

		return finishTransaction(ctx, tx)
	},
}

func init() {
	setCmd.Flags().StringArrayVarP(&setKeysFlag, "keys", "k", nil, "KEY=VALUE pairs to set (repeatable)")
	setCmd.Flags().StringArrayVarP(&setAssets, "asset", "a", nil, "assets to modify (repeatable)")
	setCmd.Flags().BoolVar(&setRename, "rename", false, "permit setting a name-bound key by renaming the asset")
	rootCmd.AddCommand(setCmd)
}

// parseSingleKeyValues parses "-k KEY=VALUE" flags into a map, one
// value per key, applied identically across every -a target (unlike
// `new`'s per-asset value lists).
func parseSingleKeyValues(pairs []string) (map[string]string, error) {
	out := map[string]string{}
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, onyoerr.New(onyoerr.InvalidAssetName, "malformed --keys entry (want KEY=VALUE): "+p)
		}
		out[k] = v
	}
	return out, nil
}

// applySetToAsset splits patch into bound-field changes (which require
// renaming the asset, and are rejected unless --rename was passed) and
// ordinary body changes, pushing the resulting rename-asset and/or
// modify-asset operations against assetPath's current path.
func applySetToAsset(ctx context.Context, tx *txn.Transaction, assetPath string, patch map[string]string) error {
	bound := map[string]string{}
	body := map[string]any{}

	for k, v := range patch {
		switch {
		case asset.IsBoundKey(nameTpl, k):
			bound[k] = v
		case asset.IsReservedKey(k):
			return onyoerr.New(onyoerr.BoundKeyMutation, k)
		default:
			body[k] = v
		}
	}

	target := assetPath
	if len(bound) > 0 {
		if !setRename {
			return onyoerr.New(onyoerr.BoundKeyMutation, strings.Join(sortedKeys(bound), ","))
		}
		newName, err := renderRenamedName(assetPath, bound)
		if err != nil {
			return err
		}
		if err := tx.Push(ctx, invops.Operation{Kind: invops.RenameAsset, Path: assetPath, Dest: newName}); err != nil {
			return err
		}
		target = path.Join(path.Dir(assetPath), newName)
	}

	if len(body) > 0 {
		if err := tx.Push(ctx, invops.Operation{Kind: invops.ModifyAsset, Path: target, Patch: yamldoc.Patch{Set: body, ReplaceScalar: true, CreateIntermediate: true}}); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// renderRenamedName re-renders assetPath's basename with overrides
// layered on top of its current bound-field values.
func renderRenamedName(assetPath string, overrides map[string]string) (string, error) {
	values, err := nameTpl.Parse(path.Base(assetPath))
	if err != nil {
		return "", err
	}
	for k, v := range overrides {
		values[k] = v
	}
	return nameTpl.Render(values)
}
