package review

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/testutil"
)

func TestClean(t *testing.T) {
	ctx := context.Background()

	// synced builds and pushes a one-entry stack mapped to request 10
	synced := func(t *testing.T) *harness {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")
		s := h.assignIDs(t)
		h.expectAuth()
		h.expectCreate(s.EntryBranch(s.Entries[0]), "main", 10)
		_, err := h.engine.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		return h
	}

	t.Run("RemovesMergedStack", func(t *testing.T) {
		h := synced(t)
		s := h.load(t)
		entryBranch := s.EntryBranch(s.Entries[0])
		require.NotEmpty(t, h.remoteHead(t, entryBranch))
		h.provider.On("View", anyCtx(), 10).Return(merged(10), nil)

		reports, err := h.engine.Clean(ctx, CleanOptions{Yes: true})
		require.NoError(t, err)
		require.Len(t, reports, 1)
		assert.True(t, reports[0].Merged)
		assert.True(t, reports[0].Cleaned)

		assert.Equal(t, "main", testutil.Git(t, h.git, "branch", "--show-current"))
		assert.False(t, h.git.BranchExists(s.Branch))
		assert.False(t, h.git.BranchExists(entryBranch))
		assert.Empty(t, h.remoteHead(t, entryBranch))
		_, ok := h.mapping(t, "auth", s.Entries[0].GGID)
		assert.False(t, ok)
	})

	t.Run("SkipsOpenStack", func(t *testing.T) {
		h := synced(t)
		h.provider.On("View", anyCtx(), 10).Return(request(10, "main"), nil)

		reports, err := h.engine.Clean(ctx, CleanOptions{Yes: true})
		require.NoError(t, err)
		assert.False(t, reports[0].Merged)
		assert.False(t, reports[0].Cleaned)
		assert.True(t, h.git.BranchExists("alice/auth"))
	})

	t.Run("KeepsEntriesAddedAfterSync", func(t *testing.T) {
		h := synced(t)
		testutil.CommitFile(t, h.git, "later.txt", "later\n", "Add later work")
		h.provider.On("View", anyCtx(), 10).Return(merged(10), nil)

		reports, err := h.engine.Clean(ctx, CleanOptions{Yes: true})
		require.NoError(t, err)
		assert.False(t, reports[0].Merged)
		assert.False(t, reports[0].Cleaned)
		assert.Equal(t, "1 of 2 entries were never synced", reports[0].Skipped)
		assert.True(t, h.git.BranchExists("alice/auth"))
	})

	t.Run("HeadlessWithoutYesKeepsStack", func(t *testing.T) {
		h := synced(t)
		h.provider.On("View", anyCtx(), 10).Return(merged(10), nil)
		h.confirm.On("Confirm", mock.Anything).Return(false, nil).Once()

		reports, err := h.engine.Clean(ctx, CleanOptions{})
		require.NoError(t, err)
		assert.True(t, reports[0].Merged)
		assert.False(t, reports[0].Cleaned)
		assert.Contains(t, reports[0].Skipped, "--yes")
		assert.True(t, h.git.BranchExists("alice/auth"))
		_, ok := h.mapping(t, "auth", h.load(t).Entries[0].GGID)
		assert.True(t, ok)
	})

	t.Run("NeverSyncedStackIsNotMerged", func(t *testing.T) {
		h := newHarness(t)
		testutil.NewStackBranch(t, h.git, "alice/empty")

		reports, err := h.engine.Clean(ctx, CleanOptions{Yes: true})
		require.NoError(t, err)
		assert.False(t, reports[0].Merged)
		assert.True(t, h.git.BranchExists("alice/empty"))
	})

	t.Run("AllStacks", func(t *testing.T) {
		h := synced(t)
		testutil.Git(t, h.git, "checkout", "--quiet", "main")
		testutil.NewStackBranch(t, h.git, "alice/other")
		testutil.CommitFile(t, h.git, "other.txt", "other\n", "Other work")
		h.provider.On("View", anyCtx(), 10).Return(merged(10), nil)

		reports, err := h.engine.Clean(ctx, CleanOptions{All: true, Yes: true})
		require.NoError(t, err)
		require.Len(t, reports, 2)
		assert.Equal(t, "auth", reports[0].Stack)
		assert.True(t, reports[0].Cleaned)
		assert.Equal(t, "other", reports[1].Stack)
		assert.False(t, reports[1].Cleaned)
		assert.Equal(t, "alice/other", testutil.Git(t, h.git, "branch", "--show-current"))
	})
}
