package cli

import (
	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/txn"
)

var mkdirCmd = &cobra.Command{
	Use:   "mkdir DIR...",
	Short: "Create one or more tracked directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		tx := txn.New(repo, view, nameTpl)
		created := map[string]bool{}

		for _, dir := range args {
			if view.IsTrackedDir(dir) {
				// Already tracked: no-op for this directory (spec §6:
				// "no-op if dir already tracked").
				continue
			}
			if err := ensureDirs(ctx, tx, created, dir); err != nil {
				return err
			}
		}

		return finishTransaction(ctx, tx)
	},
}

func init() {
	rootCmd.AddCommand(mkdirCmd)
}
