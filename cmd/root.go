package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/cmd/absorb"
	"github.com/bjulian5/gg/cmd/clean"
	"github.com/bjulian5/gg/cmd/co"
	"github.com/bjulian5/gg/cmd/conflict"
	"github.com/bjulian5/gg/cmd/hook"
	"github.com/bjulian5/gg/cmd/install"
	"github.com/bjulian5/gg/cmd/land"
	"github.com/bjulian5/gg/cmd/lint"
	"github.com/bjulian5/gg/cmd/ls"
	"github.com/bjulian5/gg/cmd/nav"
	"github.com/bjulian5/gg/cmd/rebase"
	"github.com/bjulian5/gg/cmd/reconcile"
	"github.com/bjulian5/gg/cmd/reorder"
	"github.com/bjulian5/gg/cmd/sc"
	"github.com/bjulian5/gg/cmd/sync"
	"github.com/bjulian5/gg/internal/app"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/git"
	"github.com/bjulian5/gg/internal/logs"
	"github.com/bjulian5/gg/internal/ui"
)

var (
	verbose bool
	closeLogs = func() {}
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gg",
	Short: "Git-native stacked diffs",
	Long: `gg manages a stack of commits on one branch and publishes each commit
as its own pull request (GitHub) or merge request (GitLab).

Every commit carries a GG-ID trailer so it keeps its identity, branch and
review request across amends, reorders and rebases.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		opts := logs.Options{Verbose: verbose}
		if gitClient, err := git.NewClient(); err == nil {
			opts.Dir = app.LogDir(gitClient.CommonDir())
		}
		closeLogs = logs.Setup(opts)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	closeLogs()
	if err == nil {
		return
	}
	if !errors.Is(err, app.ErrReported) {
		ui.Error(err.Error())
	}
	os.Exit(exitCode(err))
}

// exitCode is 2 when a rewrite stopped on a conflict and 1 otherwise
func exitCode(err error) int {
	if errors.Is(err, ggerrors.ErrRebaseConflict) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to stderr")
	rootCmd.PersistentFlags().Bool("json", false, "Print results as JSON")

	commands := []Command{
		&co.Command{},
		&ls.Command{},
		&nav.MoveCommand{},
		&nav.StepCommand{Direction: nav.First},
		&nav.StepCommand{Direction: nav.Last},
		&nav.StepCommand{Direction: nav.Prev},
		&nav.StepCommand{Direction: nav.Next},
		&sc.Command{},
		&absorb.Command{},
		&reorder.Command{},
		&rebase.Command{},
		&conflict.ContinueCommand{},
		&conflict.AbortCommand{},
		&sync.Command{},
		&reconcile.Command{},
		&land.Command{},
		&clean.Command{},
		&lint.Command{},
		&install.Command{},
		&hook.Command{},
	}

	for _, cmd := range commands {
		cmd.Register(rootCmd)
	}
}
