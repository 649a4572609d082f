package reorder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/ui"
)

// Command reorders the entries of the current stack
type Command struct {
	// Flags
	Order []int

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "reorder",
		Short: "Reorder the entries of the stack",
		Long: `Replay the entries of the current stack in a new order. --order lists the
current positions in their new order, bottom first. Without --order an
interactive finder asks for the entry at each position.

Example:
  gg reorder --order 3,1,2   # entry 3 becomes the bottom entry
  gg reorder                 # pick the order interactively`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().IntSliceVarP(&c.Order, "order", "o", nil, "New order as a comma-separated list of current positions")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	return c.App.Guard(ctx, "reorder", func() error {
		order := c.Order
		if len(order) == 0 {
			if !ui.IsInteractive() {
				return fmt.Errorf("no order given: pass --order, e.g. --order 3,1,2")
			}
			s, err := c.App.Stacks.Load(ctx, "", "")
			if err != nil {
				return err
			}
			if s.Len() < 2 {
				ui.Info("Nothing to reorder")
				return nil
			}
			order, err = ui.SelectOrder(s)
			if err != nil {
				return err
			}
		}

		res, err := c.App.Stacks.Reorder(ctx, order)
		if err != nil {
			return err
		}
		if res == nil || res.OldTip == res.NewTip {
			ui.Info("Order unchanged")
			return nil
		}
		ui.Successf("Reordered %s", ui.Bold(res.Branch))
		return nil
	})
}
