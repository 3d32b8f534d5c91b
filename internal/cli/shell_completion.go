package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/onyoerr"
)

var shellCompletionShell string

var shellCompletionCmd = &cobra.Command{
	Use:   "shell-completion",
	Short: "Print a shell completion script",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch shellCompletionShell {
		case "", "zsh":
			return rootCmd.GenZshCompletion(os.Stdout)
		case "bash":
			return rootCmd.GenBashCompletion(os.Stdout)
		case "fish":
			return rootCmd.GenFishCompletion(os.Stdout, true)
		default:
			return onyoerr.New(onyoerr.InvalidAssetName, "unsupported shell: "+shellCompletionShell)
		}
	},
}

func init() {
	shellCompletionCmd.Flags().StringVarP(&shellCompletionShell, "shell", "s", "zsh", "shell to generate completions for (zsh, bash, fish)")
	rootCmd.AddCommand(shellCompletionCmd)
}
