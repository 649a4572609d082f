package review

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/stack"
	"github.com/bjulian5/gg/internal/testutil"
)

// pausedReorder leaves a reorder of alice/auth stopped on a conflict
func pausedReorder(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t)
	testutil.NewStackBranch(t, h.git, stack.StackBranch(testUser, "auth"))
	testutil.CommitFile(t, h.git, "shared.txt", "a\n", "Add shared")
	testutil.CommitFile(t, h.git, "shared.txt", "b\n", "Change to b")
	testutil.CommitFile(t, h.git, "shared.txt", "c\n", "Change to c")
	s := h.assignIDs(t)
	h.mapEntries(t, s, 10, 11, 12)

	_, err := h.stacks.Reorder(context.Background(), []int{1, 3, 2})
	require.True(t, errors.Is(err, ggerrors.ErrRebaseConflict), "expected a conflict, got %v", err)
	return h
}

func TestRemoteOperationsRefuseWhilePaused(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, e *Engine) error
	}{
		{
			name: "Sync",
			run: func(ctx context.Context, e *Engine) error {
				_, err := e.Sync(ctx, SyncOptions{Force: true})
				return err
			},
		},
		{
			name: "Land",
			run: func(ctx context.Context, e *Engine) error {
				_, err := e.Land(ctx, LandOptions{All: true})
				return err
			},
		},
		{
			name: "Reconcile",
			run: func(ctx context.Context, e *Engine) error {
				_, err := e.Reconcile(ctx, false)
				return err
			},
		},
		{
			name: "Clean",
			run: func(ctx context.Context, e *Engine) error {
				_, err := e.Clean(ctx, CleanOptions{Yes: true, Stack: "auth"})
				return err
			},
		},
		{
			name: "Lint",
			run: func(ctx context.Context, e *Engine) error {
				_, err := e.Lint(ctx, 0)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := pausedReorder(t)

			err := tt.run(context.Background(), h.engine)
			var inProgress *ggerrors.OperationInProgressError
			require.True(t, errors.As(err, &inProgress), "got %v", err)
			assert.Equal(t, "reorder", inProgress.Kind)
			assert.Empty(t, inProgress.Worktree)

			assert.Empty(t, h.provider.Calls)
			assert.True(t, h.git.BranchExists(stack.StackBranch(testUser, "auth")))
			assert.Empty(t, testutil.Git(t, h.git, "ls-remote", "--heads", "origin", "alice/*"))
		})
	}
}
