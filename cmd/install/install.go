package install

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	"github.com/bjulian5/gg/internal/hooks"
	"github.com/bjulian5/gg/internal/ui"
)

// Command installs or removes the commit-msg hook
type Command struct {
	// Flags
	Force     bool
	Uninstall bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "install",
		Short: "Install the commit-msg hook that adds GG-IDs",
		Long: `Install a commit-msg hook so that every commit made on a stack branch gets
its GG-ID right away instead of at the next 'gg sync'. The hook respects
auto_add_gg_ids and leaves fixup!/squash! commits alone.

Running it again is safe.

Example:
  gg install              # install the hook
  gg install --uninstall  # remove it`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.Force, "force", "f", false, "Replace a commit-msg hook gg did not write")
	command.Flags().BoolVar(&c.Uninstall, "uninstall", false, "Remove the hook")

	parent.AddCommand(command)
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	dir, err := c.App.Git.HooksDir()
	if err != nil {
		return err
	}

	if c.Uninstall {
		if err := hooks.Uninstall(dir); err != nil {
			return err
		}
		ui.Success("Removed the commit-msg hook")
		return nil
	}

	if hooks.Installed(dir) {
		ui.Info("Hook already installed, rewriting it")
	}
	if err := hooks.Install(dir, c.Force); err != nil {
		return fmt.Errorf("failed to install hook: %w", err)
	}
	ui.Successf("Installed %s hook in %s", hooks.Name, dir)
	return nil
}
