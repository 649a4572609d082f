package sc

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/config"
	"github.com/bjulian5/gg/internal/stack"
	"github.com/bjulian5/gg/internal/ui"
)

// Command squashes staged changes into the current entry
type Command struct {
	// Flags
	All      bool
	Unstaged string

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "sc",
		Short: "Squash staged changes into the current entry",
		Long: `Fold the staged changes into the entry HEAD is at and replay every entry
above it. If a later entry conflicts, resolve it and run 'gg continue', or
run 'gg abort' to restore the stack and your staged changes.

Example:
  gg mv 2 && git add -p && gg sc   # amend entry 2
  gg sc --all                      # stage tracked modifications first`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.All, "all", "a", false, "Stage modifications of tracked files first")
	command.Flags().StringVar(&c.Unstaged, "unstaged", "", "What to do with unstaged changes: ask, add, stash, continue or abort")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	action := config.UnstagedAction(c.Unstaged)
	if action != "" && !action.Valid() {
		return fmt.Errorf("invalid --unstaged value %q: use ask, add, stash, continue or abort", c.Unstaged)
	}

	return c.App.Guard(ctx, "squash", func() error {
		res, err := c.App.Stacks.Squash(ctx, stack.SquashOptions{
			All:            c.All,
			UnstagedAction: action,
		})
		if err != nil {
			return err
		}
		ui.Successf("Squashed into %s", ui.Bold(res.Branch))
		if n := len(res.Rewritten); n > 1 {
			ui.Infof("Rewrote %d entries", n)
		}
		return nil
	})
}
