package cli

import (
	"path"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/invops"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/txn"
)

var mvCmd = &cobra.Command{
	Use:   "mv SRC... DST",
	Short: "Move or rename assets and directories",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		srcs, dst := args[:len(args)-1], args[len(args)-1]

		tx := txn.New(repo, view, nameTpl)
		destIsDir := view.IsTrackedDir(dst)

		if len(srcs) > 1 && !destIsDir {
			return onyoerr.New(onyoerr.NoSuchDirectory, dst)
		}

		for _, src := range srcs {
			var op invops.Operation
			switch {
			case destIsDir && view.IsAsset(src):
				op = invops.Operation{Kind: invops.MoveAsset, Path: src, Dest: dst}
			case destIsDir && view.IsTrackedDir(src):
				op = invops.Operation{Kind: invops.MoveDirectory, Path: src, Dest: path.Join(dst, path.Base(src))}
			case !destIsDir && view.IsAsset(src):
				op = invops.Operation{Kind: invops.RenameAsset, Path: src, Dest: path.Base(dst)}
			case !destIsDir && view.IsTrackedDir(src):
				op = invops.Operation{Kind: invops.MoveDirectory, Path: src, Dest: dst}
			default:
				return onyoerr.New(onyoerr.NoSuchAsset, src)
			}
			if err := tx.Push(ctx, op); err != nil {
				return err
			}
		}

		return finishTransaction(ctx, tx)
	},
}

func init() {
	rootCmd.AddCommand(mvCmd)
}
