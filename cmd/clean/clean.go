package clean

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/review"
	"github.com/bjulian5/gg/internal/ui"
)

// Command removes stacks that have fully landed
type Command struct {
	// Arguments
	Stack string

	// Flags
	All bool
	Yes bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "clean [stack]",
		Short: "Delete stacks whose review requests have all merged",
		Long: `Delete a landed stack: its branch, its entry branches locally and on the
remote, its worktree and its recorded review requests. Stacks with open
work are left alone. Without --yes each stack is confirmed first; when no
terminal is attached nothing is deleted without --yes.

Example:
  gg clean              # the current stack
  gg clean auth         # a named stack
  gg clean --all --yes  # every landed stack, no questions`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				c.Stack = args[0]
			}
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.All, "all", "a", false, "Consider every stack")
	command.Flags().BoolVarP(&c.Yes, "yes", "y", false, "Do not ask for confirmation")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	engine, err := c.App.Engine(ctx)
	if err != nil {
		return err
	}
	return c.App.Guard(ctx, "clean", func() error {
		reports, err := engine.Clean(ctx, review.CleanOptions{All: c.All, Yes: c.Yes, Stack: c.Stack})
		if err == nil && len(reports) == 0 {
			ui.Info("No stacks to clean")
			return nil
		}
		for _, r := range reports {
			switch {
			case r.Cleaned:
				ui.Successf("Cleaned %s", ui.Bold(r.Stack))
			case r.Skipped != "":
				ui.Infof("Kept %s: %s", r.Stack, r.Skipped)
			}
			for _, w := range r.Warnings {
				ui.Warning(w)
			}
		}
		return err
	})
}
