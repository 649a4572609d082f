// Package hook holds the commands git hooks call back into
package hook

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
)

// Command is the parent of the hook subcommands
type Command struct {
	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the hook command and its subcommands
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:    "hook",
		Short:  "Git hook callbacks (internal use)",
		Long:   `Hook commands are called by the git hooks 'gg install' writes and are not meant to be run by hand.`,
		Hidden: true,
	}

	commitMsg := &CommitMsgCommand{parent: c}
	commitMsg.Register(command)

	parent.AddCommand(command)
}

// CommitMsgCommand stamps a GG-ID on commits made on a stack branch
type CommitMsgCommand struct {
	// Arguments
	MessageFile string

	parent *Command
}

// Register registers the commit-msg command
func (c *CommitMsgCommand) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "commit-msg <file>",
		Short: "commit-msg git hook",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.parent.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c.MessageFile = args[0]
			return c.Run(cobraCmd.Context())
		},
	}

	parent.AddCommand(command)
}

// Run rewrites the message file in place. A hook must never block a
// commit because gg is confused, so failures are logged and swallowed.
func (c *CommitMsgCommand) Run(ctx context.Context) error {
	content, err := os.ReadFile(c.MessageFile)
	if err != nil {
		return fmt.Errorf("failed to read commit message: %w", err)
	}

	message, stamped, err := c.parent.App.Stacks.StampMessage(ctx, string(content))
	if err != nil {
		slog.Warn("commit left without a GG-ID", slog.String("error", err.Error()))
		return nil
	}
	if !stamped {
		return nil
	}
	if err := os.WriteFile(c.MessageFile, []byte(message), 0644); err != nil {
		return fmt.Errorf("failed to write commit message: %w", err)
	}
	return nil
}
