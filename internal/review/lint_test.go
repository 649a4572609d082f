package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/output"
	"github.com/bjulian5/gg/internal/testutil"
)

func TestLint(t *testing.T) {
	ctx := context.Background()

	t.Run("NoCommands", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")

		res, err := h.engine.Lint(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, res.Entries)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "no lint commands")
	})

	t.Run("PassesEveryEntry", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login", "Add logout")
		h.configure(t, func(cfg *config.Config) { cfg.Defaults.Lint = []string{"test -f add-login.txt", "true"} })
		tip := testutil.Git(t, h.git, "rev-parse", "HEAD")

		res, err := h.engine.Lint(ctx, 0)
		require.NoError(t, err)
		require.Len(t, res.Entries, 2)
		for _, er := range res.Entries {
			assert.Equal(t, output.ActionUnchanged, er.Action)
		}
		assert.Empty(t, res.Blocked)
		assert.Equal(t, "alice/auth", testutil.Git(t, h.git, "branch", "--show-current"))
		assert.Equal(t, tip, testutil.Git(t, h.git, "rev-parse", "HEAD"))
	})

	t.Run("StopsAtFirstFailure", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login", "Add logout", "Add signup")
		h.configure(t, func(cfg *config.Config) {
			cfg.Defaults.Lint = []string{"if [ -f add-logout.txt ]; then echo 'logout found' >&2; exit 1; fi"}
		})
		tip := testutil.Git(t, h.git, "rev-parse", "HEAD")

		res, err := h.engine.Lint(ctx, 0)
		require.NoError(t, err)
		require.Len(t, res.Entries, 2)
		assert.Equal(t, output.ActionUnchanged, res.Entries[0].Action)
		assert.Equal(t, output.ActionError, res.Entries[1].Action)
		assert.Contains(t, res.Entries[1].Error, "logout found")
		assert.Contains(t, res.Blocked, "entry 2")
		assert.Equal(t, tip, testutil.Git(t, h.git, "rev-parse", "HEAD"))
		assert.Equal(t, "alice/auth", testutil.Git(t, h.git, "branch", "--show-current"))
	})

	t.Run("Until", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login", "Add logout", "Add signup")
		h.configure(t, func(cfg *config.Config) { cfg.Defaults.Lint = []string{"true"} })

		res, err := h.engine.Lint(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, res.Entries, 2)
	})

	t.Run("RestoresDetachedHead", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login", "Add logout")
		h.configure(t, func(cfg *config.Config) { cfg.Defaults.Lint = []string{"true"} })
		_, err := h.stacks.First(ctx)
		require.NoError(t, err)
		head := testutil.Git(t, h.git, "rev-parse", "HEAD")

		_, err = h.engine.Lint(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, head, testutil.Git(t, h.git, "rev-parse", "HEAD"))
		assert.Empty(t, testutil.Git(t, h.git, "branch", "--show-current"))
	})

	t.Run("DirtyTreeRefused", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")
		h.configure(t, func(cfg *config.Config) { cfg.Defaults.Lint = []string{"true"} })
		testutil.WriteFile(t, h.git, "add-login.txt", "changed\n")

		_, err := h.engine.Lint(ctx, 0)
		assert.ErrorIs(t, err, ggerrors.ErrDirtyWorkingTree)
	})
}
