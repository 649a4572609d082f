package sync

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/review"
	"github.com/bjulian5/gg/internal/ui"
)

// Command publishes every entry of the stack for review
type Command struct {
	// Flags
	Draft         bool
	Force         bool
	UpdateTitle   bool
	UpdateBody    bool
	Lint          bool
	NoRebaseCheck bool
	JSON          bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "sync",
		Short: "Push every entry and create or update its review request",
		Long: `Push one branch per entry, <user>/<stack>--<gg-id>, and make sure each has a
review request targeting the entry below it. Entries without a GG-ID get
one first. Rewritten entries are force pushed with a lease; a branch that
changed on the remote since the last fetch is only overwritten with
--force or after confirmation.

Example:
  gg sync                  # publish the stack
  gg sync --draft          # new requests are drafts
  gg sync --update-title   # refresh titles from commit messages
  gg sync --json           # machine readable result`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c.JSON, _ = cobraCmd.Flags().GetBool("json")
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.Draft, "draft", "d", false, "Create new review requests as drafts")
	command.Flags().BoolVarP(&c.Force, "force", "f", false, "Overwrite entry branches that changed on the remote")
	command.Flags().BoolVar(&c.UpdateTitle, "update-title", false, "Update existing titles from the commit messages")
	command.Flags().BoolVar(&c.UpdateBody, "update-body", false, "Update existing descriptions from the commit messages")
	command.Flags().BoolVar(&c.Lint, "lint", false, "Run the lint commands on every entry first")
	command.Flags().BoolVar(&c.NoRebaseCheck, "no-rebase-check", false, "Skip the behind-base check")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	engine, err := c.App.Engine(ctx)
	if err != nil {
		return err
	}
	return c.App.Guard(ctx, "sync", func() error {
		res, err := engine.Sync(ctx, review.SyncOptions{
			Draft:         c.Draft,
			Force:         c.Force,
			UpdateTitle:   c.UpdateTitle,
			UpdateBody:    c.UpdateBody,
			Lint:          c.Lint,
			NoRebaseCheck: c.NoRebaseCheck,
		})
		if err != nil {
			return err
		}
		return app.Report(ui.Stdout(), res, c.JSON)
	})
}
