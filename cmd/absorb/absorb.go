package absorb

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/stack"
	"github.com/bjulian5/gg/internal/ui"
)

// Command distributes staged hunks into the entries that introduced them
type Command struct {
	// Flags
	WholeFile         bool
	MaxStack          int
	NoLimit           bool
	OneFixupPerCommit bool
	Squash            bool
	AndRebase         bool
	DryRun            bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "absorb",
		Short: "Absorb staged changes into the entries that last touched them",
		Long: `For every staged hunk, find the entry that last changed those lines and
create a fixup commit for it. With --and-rebase the fixups are folded into
their targets right away. Hunks without a clear target stay staged.

Example:
  gg absorb --dry-run      # show where each hunk would go
  gg absorb --and-rebase   # fold the changes in now
  gg absorb --whole-file   # attribute whole files, not hunks`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.WholeFile, "whole-file", "w", false, "Attribute whole files to the newest entry that touched them")
	command.Flags().IntVar(&c.MaxStack, "max-stack", 0, "Only consider the newest N entries (default from config)")
	command.Flags().BoolVar(&c.NoLimit, "no-limit", false, "Consider every entry of the stack")
	command.Flags().BoolVar(&c.OneFixupPerCommit, "one-fixup-per-commit", false, "Create one fixup per target entry")
	command.Flags().BoolVarP(&c.Squash, "squash", "s", false, "Create squash! commits instead of fixup! commits")
	command.Flags().BoolVarP(&c.AndRebase, "and-rebase", "r", false, "Fold the fixups into their targets")
	command.Flags().BoolVarP(&c.DryRun, "dry-run", "n", false, "Show the attribution without committing")
	command.MarkFlagsMutuallyExclusive("max-stack", "no-limit")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	if c.MaxStack < 0 {
		return fmt.Errorf("--max-stack must be positive, use --no-limit to consider every entry")
	}
	opts := stack.AbsorbOptions{
		MaxStack:          c.MaxStack,
		WholeFile:         c.WholeFile,
		OneFixupPerCommit: c.OneFixupPerCommit,
		Squash:            c.Squash,
		AndRebase:         c.AndRebase,
		DryRun:            c.DryRun,
	}
	if c.NoLimit {
		opts.MaxStack = -1
	}

	return c.App.Guard(ctx, "absorb", func() error {
		res, err := c.App.Stacks.Absorb(ctx, opts)
		if res != nil {
			report(res, c.DryRun)
		}
		return err
	})
}

func report(res *stack.AbsorbResult, dryRun bool) {
	if dryRun {
		t := ui.NewSimpleTable("FILE", "HUNK", "ENTRY")
		for _, a := range res.Assignments {
			target := ui.Dim("(stays staged)")
			if a.Target != nil {
				target = fmt.Sprintf("%d %s", a.Target.Position, ui.Truncate(a.Target.Title, 50))
			}
			t.Row(a.File, a.Hunk.HeaderLine(), target)
		}
		ui.Print(t.String())
	} else {
		for _, f := range res.Fixups {
			ui.Successf("%s (%d hunk(s))", f.Title, f.Hunks)
		}
		if res.Replay != nil {
			ui.Successf("Folded %d fixup(s) into %s", len(res.Fixups), ui.Bold(res.Replay.Branch))
		}
	}

	for _, w := range res.Warnings {
		ui.Warning(w)
	}
	if res.Absorbed() == 0 {
		ui.Info("Nothing could be absorbed")
	}
}
