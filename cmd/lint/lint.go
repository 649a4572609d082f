package lint

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/ui"
)

// Command runs the lint commands against every entry
type Command struct {
	// Flags
	Until int
	JSON  bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "lint",
		Short: "Run the lint commands at every entry",
		Long: `Check out each entry in turn, bottom first, and run the lint commands from
the config with 'sh -c'. Stops at the first failing entry and restores
HEAD afterwards. History is never rewritten.

Example:
  gg lint             # every entry
  gg lint --until 3   # entries 1 to 3`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c.JSON, _ = cobraCmd.Flags().GetBool("json")
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().IntVar(&c.Until, "until", 0, "Stop after this position")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	engine := c.App.LocalEngine()
	return c.App.Guard(ctx, "lint", func() error {
		res, err := engine.Lint(ctx, c.Until)
		if err != nil {
			return err
		}
		return app.Report(ui.Stdout(), res, c.JSON)
	})
}
