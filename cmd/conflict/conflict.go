// Package conflict holds the commands that resolve a replay paused on a
// conflict.
package conflict

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/ui"
)

// ContinueCommand resumes a paused replay
type ContinueCommand struct {
	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *ContinueCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "continue",
		Short: "Continue a replay after resolving conflicts",
		Long: `Commit the resolved entry and replay the remaining ones. Stage the
resolution with 'git add' first.`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	parent.AddCommand(command)
}

// Run executes the command
func (c *ContinueCommand) Run(ctx context.Context) error {
	return c.App.Guard(ctx, "continue", func() error {
		res, err := c.App.Stacks.Continue(ctx)
		if err != nil {
			return err
		}
		ui.Successf("Finished %s of %s", res.Kind, ui.Bold(res.Branch))
		return nil
	})
}

// AbortCommand cancels a paused replay
type AbortCommand struct {
	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *AbortCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "abort",
		Short: "Abort a paused replay and restore the stack",
		Args:  cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	parent.AddCommand(command)
}

// Run executes the command
func (c *AbortCommand) Run(ctx context.Context) error {
	return c.App.Guard(ctx, "abort", func() error {
		status, err := c.App.Stacks.Status()
		if err != nil {
			return err
		}
		if err := c.App.Stacks.Abort(ctx); err != nil {
			return err
		}
		ui.Success(fmt.Sprintf("Aborted %s, %s is unchanged", status.Kind, status.Target))
		return nil
	})
}
