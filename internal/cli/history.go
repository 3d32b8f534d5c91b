package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/cliutil"
	"github.com/onyo-org/onyo/internal/onyoerr"
)

var historyNonInteractive bool

var historyCmd = &cobra.Command{
	Use:   "history [PATH]",
	Short: "Display the history of an asset or directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target := "."
		if len(args) == 1 {
			target = args[0]
			if !view.IsAsset(target) && !view.IsTrackedDir(target) && target != "." {
				return onyoerr.New(onyoerr.NoSuchAsset, target)
			}
		}

		interactive := !historyNonInteractive && display.IsTTY
		var historyLine string
		var err error
		if interactive {
			historyLine, err = cfg.HistoryInteractive(ctx)
		} else {
			historyLine, err = cfg.HistoryNonInteractive(ctx)
		}
		if err != nil {
			return err
		}

		fields := strings.Fields(historyLine)
		if len(fields) == 0 {
			return renderHistoryFallback(ctx, target)
		}
		c := exec.CommandContext(ctx, fields[0], append(fields[1:], target)...)
		c.Dir = repo.Root()
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		runErr := c.Run()
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		if errors.Is(runErr, exec.ErrNotFound) {
			return renderHistoryFallback(ctx, target)
		}
		if runErr != nil {
			return onyoerr.Wrap(onyoerr.PluginFailure, "history", target, runErr)
		}
		return nil
	},
}

// renderHistoryFallback is onyo history's built-in pager: when the
// resolved history command is empty or its executable is not found, render the
// target's git log as Markdown via glamour instead of failing the
// command outright.
func renderHistoryFallback(ctx context.Context, target string) error {
	out, err := repo.Exec(ctx, "log", "--follow", "--format=## %h %s%n%n%b", "--", target)
	if err != nil {
		return onyoerr.Wrap(onyoerr.PluginFailure, "history", target, err)
	}
	rendered, err := cliutil.RenderMarkdown(out, display.TermWidth)
	if err != nil {
		return onyoerr.Wrap(onyoerr.PluginFailure, "history", target, err)
	}
	fmt.Print(rendered)
	return nil
}

func init() {
	historyCmd.Flags().BoolVarP(&historyNonInteractive, "non-interactive", "I", false, "use the non-interactive history tool")
	rootCmd.AddCommand(historyCmd)
}
