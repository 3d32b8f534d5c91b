package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/gitrepo"
)

var initCmd = &cobra.Command{
	Use:   "init [DIR]",
	Short: "Initialize a new onyo repository",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}

		ctx := cmd.Context()
		r, err := gitrepo.Init(ctx, dir)
		if err != nil {
			return err
		}

		if r.Exists(".onyo") {
			// Already an initialized onyo repository; init is a no-op.
			return nil
		}

		if err := r.WriteFile(".onyo/templates/empty", []byte("---\n")); err != nil {
			return err
		}
		if err := r.WriteFile(".onyo/validation/.keep", nil); err != nil {
			return err
		}
		if err := r.ConfigSet(ctx, "onyo.repo.version", "1", gitrepo.ScopeTracked); err != nil {
			return err
		}

		if err := r.Stage(ctx, ".onyo"); err != nil {
			return err
		}
		id, err := r.Commit(ctx, "Initialize onyo repository", gitrepo.Identity{}, time.Now())
		if err != nil {
			return err
		}
		if id != "" && !quiet() {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
