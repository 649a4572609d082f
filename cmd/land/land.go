package land

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/review"
	"github.com/bjulian5/gg/internal/ui"
)

// Command merges review requests from the bottom of the stack
type Command struct {
	// Flags
	All            bool
	Merge          bool
	Wait           bool
	Timeout        time.Duration
	IgnoreApproval bool
	IgnoreChecks   bool
	Clean          bool
	JSON           bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "land",
		Short: "Merge the bottom review request of the stack",
		Long: `Merge the lowest review request that is approved and green, then retarget
the next one to the base. With --all, keep going up the stack until an
entry is not ready. With --wait, poll entries that are not ready yet, and
merge-queue entries, until they merge or the timeout passes.

Example:
  gg land                  # land the bottom entry
  gg land --all --wait     # land everything, waiting for checks
  gg land --all --clean    # remove the stack once it has fully landed`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c.JSON, _ = cobraCmd.Flags().GetBool("json")
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.All, "all", "a", false, "Land every ready entry")
	command.Flags().BoolVar(&c.Merge, "merge", false, "Use a merge commit instead of squashing")
	command.Flags().BoolVarP(&c.Wait, "wait", "w", false, "Wait for checks, approval and merge queues")
	command.Flags().DurationVar(&c.Timeout, "timeout", 0, "How long --wait polls (default from config)")
	command.Flags().BoolVar(&c.IgnoreApproval, "ignore-approval", false, "Merge without an approving review")
	command.Flags().BoolVar(&c.IgnoreChecks, "ignore-checks", false, "Merge while checks are pending or failing")
	command.Flags().BoolVar(&c.Clean, "clean", false, "Clean the stack once every entry has landed")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	engine, err := c.App.Engine(ctx)
	if err != nil {
		return err
	}
	opts := review.LandOptions{
		All:            c.All,
		Wait:           c.Wait,
		Timeout:        c.Timeout,
		IgnoreApproval: c.IgnoreApproval,
		IgnoreChecks:   c.IgnoreChecks,
		Clean:          c.Clean,
	}
	if c.Merge {
		opts.Method = provider.MergeCommit
	}

	return c.App.Guard(ctx, "land", func() error {
		res, err := engine.Land(ctx, opts)
		if res != nil {
			if reportErr := app.Report(ui.Stdout(), res, c.JSON); err == nil {
				return reportErr
			}
		}
		return err
	})
}
