package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/fsck"
)

var fsckCmd = &cobra.Command{
	Use:   "fsck",
	Short: "Check the repository for consistency problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		problems, err := fsck.Run(ctx, repo, view, nameTpl)
		if err != nil {
			return err
		}
		if len(problems) == 0 {
			if !quiet() {
				fmt.Println("onyo: repository is clean")
			}
			return nil
		}
		for _, p := range problems {
			fmt.Println(p.String())
		}
		return errFsckProblems
	},
}

var errFsckProblems = fmt.Errorf("fsck found problems")

func init() {
	rootCmd.AddCommand(fsckCmd)
}
