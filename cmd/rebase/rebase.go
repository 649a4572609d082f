package rebase

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/ui"
)

// Command replays the stack onto the latest base
type Command struct {
	// Arguments
	Target string

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "rebase [target]",
		Short: "Rebase the stack onto its base",
		Long: `Fetch the base branch and replay every entry onto it. Entries whose change
already landed upstream are dropped. With a target the stack is replayed
onto that ref instead; on a branch that is not a stack, the branch's own
commits since its merge-base with target are replayed.

Example:
  gg rebase              # onto origin/<base>
  gg rebase release-1.2  # onto another ref`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				c.Target = args[0]
			}
			return c.Run(cobraCmd.Context())
		},
	}

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	return c.App.Guard(ctx, "rebase", func() error {
		res, err := c.App.Stacks.Rebase(ctx, c.Target)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			ui.Warning(w)
		}
		if res.UpToDate {
			ui.Successf("Already up to date with %s", res.Onto)
			return nil
		}
		ui.Successf("Rebased %s onto %s", ui.Bold(res.Branch), res.Onto)
		if res.Dropped > 0 {
			ui.Infof("Dropped %d entry(s) already in %s", res.Dropped, res.Onto)
		}
		return nil
	})
}
