// Package nav holds the commands that move HEAD between entries of a stack
// without rewriting anything.
package nav

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/stack"
	"github.com/bjulian5/gg/internal/ui"
)

// MoveCommand moves HEAD to an entry by position or GG-ID
type MoveCommand struct {
	// Arguments
	Target string

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *MoveCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "mv [position|gg-id]",
		Short: "Move to an entry of the stack",
		Long: `Detach HEAD at an entry of the current stack. Without an argument an
interactive finder lists the entries.

Amend the entry with 'gg sc' and return to the top with 'gg last'.

Example:
  gg mv 2          # entry at position 2
  gg mv c-1a2b3c4  # entry with that GG-ID
  gg mv            # pick interactively`,
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
func (c *MoveCommand) Run(ctx context.Context) error {
	return c.App.Guard(ctx, "mv", func() error {
		target := c.Target
		if target == "" {
			if !ui.IsInteractive() {
				return fmt.Errorf("no entry given: pass a position or GG-ID")
			}
			s, err := c.App.Stacks.Load(ctx, "", "")
			if err != nil {
				return err
			}
			entry, err := ui.SelectEntry(s, "move to> ")
			if err != nil {
				return err
			}
			target = fmt.Sprint(entry.Position)
		}

		entry, err := c.App.Stacks.Move(ctx, target)
		if err != nil {
			return err
		}
		printPosition(entry)
		return nil
	})
}

// Direction selects one of the fixed navigation commands
type Direction string

const (
	First Direction = "first"
	Last  Direction = "last"
	Prev  Direction = "prev"
	Next  Direction = "next"
)

var directionHelp = map[Direction]string{
	First: "Move to the bottom entry of the stack",
	Last:  "Move to the top of the stack and re-attach the stack branch",
	Prev:  "Move one entry down the stack",
	Next:  "Move one entry up the stack",
}

// StepCommand runs one fixed navigation step
type StepCommand struct {
	Direction Direction

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *StepCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   string(c.Direction),
		Short: directionHelp[c.Direction],
		Args:  cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	parent.AddCommand(command)
}

// Run executes the command
func (c *StepCommand) Run(ctx context.Context) error {
	return c.App.Guard(ctx, string(c.Direction), func() error {
		var step func(context.Context) (*stack.Entry, error)
		switch c.Direction {
		case First:
			step = c.App.Stacks.First
		case Last:
			step = c.App.Stacks.Last
		case Prev:
			step = c.App.Stacks.Prev
		case Next:
			step = c.App.Stacks.Next
		default:
			return fmt.Errorf("unknown direction %q", c.Direction)
		}

		entry, err := step(ctx)
		if err != nil {
			return err
		}
		printPosition(entry)
		return nil
	})
}

func printPosition(e *stack.Entry) {
	if e == nil {
		ui.Success("At the top of the stack")
		return
	}
	hash := e.Hash
	if len(hash) > 7 {
		hash = hash[:7]
	}
	ui.Successf("At entry %d: %s %s", e.Position, e.Title, ui.Dim("("+hash+")"))
}
