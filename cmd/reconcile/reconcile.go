package reconcile

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/ui"
)

// Command rebuilds GG-IDs and review request mappings from the remote
type Command struct {
	// Flags
	DryRun bool
	JSON   bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "reconcile",
		Short: "Recover GG-IDs and review request mappings",
		Long: `Restore stack metadata that was lost, for example after a fresh clone or a
rebase that dropped trailers. Entries without a GG-ID take the token of the
remote entry branch with the same title, or a fresh one. Entries without a
mapping are matched to the open review request of their branch.

Existing mappings are never changed.

Example:
  gg reconcile --dry-run   # show what would change
  gg reconcile`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c.JSON, _ = cobraCmd.Flags().GetBool("json")
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.DryRun, "dry-run", "n", false, "Show the plan without changing anything")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	engine, err := c.App.Engine(ctx)
	if err != nil {
		return err
	}
	return c.App.Guard(ctx, "reconcile", func() error {
		res, err := engine.Reconcile(ctx, c.DryRun)
		if err != nil {
			return err
		}
		return app.Report(ui.Stdout(), res, c.JSON)
	})
}
