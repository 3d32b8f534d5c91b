// Package cli is the command-line surface: one cobra.Command per
// subcommand, wired against the Transaction Engine, Query Engine,
// Repository View, and Config Layer resolved once in the root command's
// PersistentPreRunE.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/onyo-org/onyo/internal/asset"
	"github.com/onyo-org/onyo/internal/cliutil"
	"github.com/onyo-org/onyo/internal/config"
	"github.com/onyo-org/onyo/internal/gitrepo"
	"github.com/onyo-org/onyo/internal/onyoerr"
	"github.com/onyo-org/onyo/internal/repoview"
)

var (
	// Persistent flags, shared by every subcommand (spec §6: "Each
	// takes an optional -C PATH ... -q/--quiet, -y/--yes,
	// -m/--message (repeatable), --no-auto-message").
	flagChdir         string
	flagQuiet         bool
	flagYes           bool
	flagMessages      []string
	flagNoAutoMessage bool

	// Resolved once per invocation by PersistentPreRunE.
	repo    *gitrepo.Repo
	view    *repoview.View
	cfg     *config.Config
	nameTpl *asset.NameTemplate
	display *cliutil.Display
)

var skipResolve = map[string]bool{
	"init":             true,
	"shell-completion": true,
	"help":             true,
	"tsv-to-yaml":      true,
}

var rootCmd = &cobra.Command{
	Use:   "onyo",
	Short: "A text-based inventory system, backed by files and git",
	Long: `Onyo tracks an inventory as a plain directory tree of YAML
assets, using the filesystem layout itself as the index and git as the
append-only history of every change.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipResolve[cmd.Name()] {
			return nil
		}
		if cmd.Parent() != nil && cmd.Parent().Name() == "shell-completion" {
			return nil
		}

		ctx := cmd.Context()
		dir := flagChdir
		if dir == "" {
			dir = "."
		}

		var err error
		repo, err = gitrepo.Open(ctx, dir)
		if err != nil {
			return err
		}

		view, err = repoview.Build(ctx, repo)
		if err != nil {
			return err
		}

		cfg = config.New(repo)
		format, err := cfg.AssetsNameFormat(ctx)
		if err != nil {
			return err
		}
		nameTpl, err = asset.ParseTemplate(format)
		if err != nil {
			return err
		}

		display = cliutil.NewDisplay()
		return nil
	},
}

// configureLogging sets the default slog handler's level from
// ONYO_DEBUG, quiet by default: subprocess and cache-invalidation
// debug lines (internal/gitrepo, internal/repoview) are otherwise
// noise on every invocation.
func configureLogging() {
	level := slog.LevelWarn
	if os.Getenv("ONYO_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Execute runs the CLI, returning the process exit code to use.
func Execute() int {
	configureLogging()
	ctx := context.Background()
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errNoResults) {
			return 1
		}
		if errors.Is(err, errFsckProblems) {
			return 2
		}
		printError(err)
		return onyoerr.ExitCode(err)
	}
	return 0
}

func printError(err error) {
	fmt.Fprintln(os.Stderr, "onyo: "+err.Error())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagChdir, "chdir", "C", "", "run as if invoked from PATH")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress confirmation prompts and diff output")
	rootCmd.PersistentFlags().BoolVarP(&flagYes, "yes", "y", false, "answer yes to all prompts")
	rootCmd.PersistentFlags().StringArrayVarP(&flagMessages, "message", "m", nil, "commit message paragraph (repeatable)")
	rootCmd.PersistentFlags().BoolVar(&flagNoAutoMessage, "no-auto-message", false, "disable subject autogeneration; require -m")
}

// commitOptions builds txn.CommitOptions from the persistent flags
// shared by every write command.
func commitOptions() (time.Time, []string, bool) {
	return time.Now(), flagMessages, flagNoAutoMessage
}

// identity returns the zero Identity, deferring to git's own configured
// author/committer (spec §6: "the process inherits git's own
// environment for authorship and dates").
func identity() gitrepo.Identity {
	return gitrepo.Identity{}
}

func quiet() bool { return flagQuiet }
func yes() bool    { return flagYes }
