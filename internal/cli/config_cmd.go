package cli

import (
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/onyoerr"
)

// forbiddenConfigFlags mirrors the original's conflict list: onyo
// config always writes to the repository's own tracked config file, so
// flags that pick a different git-config layer are meaningless here.
var forbiddenConfigFlags = map[string]bool{
	"--system": true, "--global": true, "--local": true,
	"--worktree": true, "--file": true, "--blob": true,
	"--help": true, "-h": true,
}

var configCmd = &cobra.Command{
	Use:                "config -- GIT_CONFIG_ARGS...",
	Short:              "A thin wrapper around `git config -f .onyo/config`",
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, a := range args {
			if forbiddenConfigFlags[a] {
				return onyoerr.New(onyoerr.InvalidAssetName, "forbidden for onyo config: "+a)
			}
		}

		ctx := cmd.Context()
		gitArgs := append([]string{"config", "-f", ".onyo/config"}, args...)
		c := exec.CommandContext(ctx, "git", gitArgs...)
		c.Dir = repo.Root()
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		runErr := c.Run()

		if runErr == nil {
			if clean, err := repo.IsClean(ctx); err == nil && !clean {
				if stageErr := repo.Stage(ctx, ".onyo/config"); stageErr == nil {
					_, _ = repo.Commit(ctx, "config: modify repository config", identity(), time.Now())
				}
			}
		}

		if exitErr, ok := runErr.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		if runErr != nil {
			return onyoerr.Wrap(onyoerr.PluginFailure, "config", repo.Root(), runErr)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
