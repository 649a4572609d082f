package co

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/ui"
)

// Command creates a stack or switches to an existing one
type Command struct {
	// Arguments
	Name string

	// Flags
	Base     string
	Worktree bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "co <name>",
		Short: "Create or check out a stack",
		Long: `Create a stack branch <user>/<name> at the base branch, or switch to it if it
already exists.

Example:
  gg co auth                 # create or switch to alice/auth
  gg co auth --base develop  # stack on top of develop
  gg co auth --worktree      # check the stack out in its own worktree`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c.Name = args[0]
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().StringVar(&c.Base, "base", "", "Base branch for a new stack")
	command.Flags().BoolVar(&c.Worktree, "worktree", false, "Check the stack out in a linked worktree")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	return c.App.Guard(ctx, "co", func() error {
		res, err := c.App.Stacks.Checkout(ctx, c.Name, c.Base, c.Worktree)
		if err != nil {
			return err
		}

		switch {
		case res.Created:
			ui.Successf("Created stack %s on %s", ui.Bold(res.Branch), res.Base)
		default:
			ui.Successf("Switched to stack %s", ui.Bold(res.Branch))
		}
		if res.Worktree != "" {
			ui.Infof("Worktree: %s", res.Worktree)
		}
		return nil
	})
}
