package review

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/output"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/testutil"
)

func (h *harness) expectAuth() {
	h.provider.On("CheckInstalled", anyCtx()).Return(nil)
	h.provider.On("CheckAuth", anyCtx()).Return(nil)
}

// expectCreate answers Create for source with a new request numbered number
func (h *harness) expectCreate(source, target string, number int) *mock.Call {
	return h.provider.On("Create", anyCtx(), mock.MatchedBy(func(req provider.CreateRequest) bool {
		return req.Source == source && req.Target == target
	})).Return(request(number, target), nil).Once()
}

func TestSyncCreatesRequests(t *testing.T) {
	h := newHarness(t)
	h.buildStack(t, "auth", "Add login", "Add logout")
	h.expectAuth()

	// GG-IDs are assigned by sync, so match on the target chain instead
	var branches []string
	h.provider.On("Create", anyCtx(), mock.MatchedBy(func(req provider.CreateRequest) bool {
		return req.Target == "main"
	})).Run(func(args mock.Arguments) {
		branches = append(branches, args.Get(1).(provider.CreateRequest).Source)
	}).Return(request(10, "main"), nil).Once()
	h.provider.On("Create", anyCtx(), mock.MatchedBy(func(req provider.CreateRequest) bool {
		return strings.HasPrefix(req.Target, "alice/auth--")
	})).Return(request(11, ""), nil).Once()

	res, err := h.engine.Sync(context.Background(), SyncOptions{})
	require.NoError(t, err)
	assert.Empty(t, res.Blocked)
	require.Len(t, res.Entries, 2)

	s := h.load(t)
	assert.Empty(t, s.MissingGGIDs())
	for i, er := range res.Entries {
		entry := s.Entries[i]
		assert.Equal(t, output.ActionCreated, er.Action)
		assert.True(t, er.Pushed)
		assert.Equal(t, entry.GGID, er.GGID)
		assert.Equal(t, entry.Hash, h.remoteHead(t, s.EntryBranch(entry)))
		assert.Equal(t, entry.Hash, testutil.Git(t, h.git, "rev-parse", s.EntryBranch(entry)))
	}
	assert.Equal(t, []string{s.EntryBranch(s.Entries[0])}, branches)
	assert.Equal(t, s.EntryBranch(s.Entries[0]), res.Entries[1].Target)

	n, ok := h.mapping(t, "auth", s.Entries[0].GGID)
	assert.True(t, ok)
	assert.Equal(t, 10, n)
	n, _ = h.mapping(t, "auth", s.Entries[1].GGID)
	assert.Equal(t, 11, n)

	created := h.provider.Calls[2].Arguments.Get(1).(provider.CreateRequest)
	assert.Equal(t, "Add login", created.Title)
	assert.Equal(t, "Part of stack `auth`", created.Body)
	assert.False(t, created.Draft)
}

func TestSyncExistingRequests(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *harness {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login", "Add logout")
		s := h.assignIDs(t)
		h.expectAuth()
		h.expectCreate(s.EntryBranch(s.Entries[0]), "main", 10)
		h.expectCreate(s.EntryBranch(s.Entries[1]), s.EntryBranch(s.Entries[0]), 11)
		_, err := h.engine.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		return h
	}

	t.Run("Unchanged", func(t *testing.T) {
		h := setup(t)
		s := h.load(t)
		h.provider.On("View", anyCtx(), 10).Return(request(10, "main"), nil)
		h.provider.On("View", anyCtx(), 11).Return(request(11, s.EntryBranch(s.Entries[0])), nil)

		res, err := h.engine.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		for _, er := range res.Entries {
			assert.Equal(t, output.ActionUnchanged, er.Action)
			assert.False(t, er.Pushed)
		}
		h.provider.AssertNotCalled(t, "UpdateTarget", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RetargetsAndUpdatesTitle", func(t *testing.T) {
		h := setup(t)
		s := h.load(t)
		stale := request(10, "develop")
		stale.Title = "Old title"
		h.provider.On("View", anyCtx(), 10).Return(stale, nil)
		h.provider.On("View", anyCtx(), 11).Return(request(11, s.EntryBranch(s.Entries[0])), nil)
		h.provider.On("UpdateTarget", anyCtx(), 10, "main").Return(nil).Once()
		h.provider.On("UpdateDetails", anyCtx(), 10, mock.MatchedBy(func(title *string) bool {
			return title != nil && *title == "Add login"
		}), (*string)(nil)).Return(nil).Once()

		res, err := h.engine.Sync(ctx, SyncOptions{UpdateTitle: true})
		require.NoError(t, err)
		assert.Equal(t, output.ActionUpdated, res.Entries[0].Action)
		assert.Equal(t, output.ActionUnchanged, res.Entries[1].Action)
		h.provider.AssertExpectations(t)
	})

	t.Run("ForcePushesRewrittenEntry", func(t *testing.T) {
		h := setup(t)
		before := h.load(t)
		testutil.WriteFile(t, h.git, "add-logout.txt", "Add logout, amended\n")
		testutil.Git(t, h.git, "commit", "--quiet", "--all", "--amend", "--no-edit")

		s := h.load(t)
		require.Equal(t, before.Entries[1].GGID, s.Entries[1].GGID)
		h.provider.On("View", anyCtx(), 10).Return(request(10, "main"), nil)
		h.provider.On("View", anyCtx(), 11).Return(request(11, s.EntryBranch(s.Entries[0])), nil)

		res, err := h.engine.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		assert.Equal(t, output.ActionUnchanged, res.Entries[0].Action)
		assert.Equal(t, output.ActionRewritten, res.Entries[1].Action)
		assert.True(t, res.Entries[1].Pushed)
		assert.Equal(t, s.Entries[1].Hash, h.remoteHead(t, s.EntryBranch(s.Entries[1])))
	})

	t.Run("StaleRemoteFailsClosed", func(t *testing.T) {
		h := setup(t)
		s := h.load(t)
		h.pushFromClone(t, s.EntryBranch(s.Entries[1]))
		remoteTip := h.remoteHead(t, s.EntryBranch(s.Entries[1]))

		testutil.WriteFile(t, h.git, "add-logout.txt", "Add logout, amended\n")
		testutil.Git(t, h.git, "commit", "--quiet", "--all", "--amend", "--no-edit")
		s = h.load(t)

		h.provider.On("View", anyCtx(), 10).Return(request(10, "main"), nil)
		h.confirm.On("Confirm", mock.MatchedBy(func(msg string) bool {
			return strings.Contains(msg, "changed on origin")
		})).Return(false, nil).Once()

		res, err := h.engine.Sync(ctx, SyncOptions{})
		require.NoError(t, err)
		assert.Equal(t, output.ActionError, res.Entries[1].Action)
		assert.Contains(t, res.Entries[1].Error, "changed since last fetch")
		assert.NotEmpty(t, res.Blocked)
		assert.Equal(t, remoteTip, h.remoteHead(t, s.EntryBranch(s.Entries[1])))
		h.confirm.AssertExpectations(t)
	})

	t.Run("StaleRemoteOverwrittenWithForce", func(t *testing.T) {
		h := setup(t)
		s := h.load(t)
		h.pushFromClone(t, s.EntryBranch(s.Entries[1]))

		testutil.WriteFile(t, h.git, "add-logout.txt", "Add logout, amended\n")
		testutil.Git(t, h.git, "commit", "--quiet", "--all", "--amend", "--no-edit")
		s = h.load(t)

		h.provider.On("View", anyCtx(), 10).Return(request(10, "main"), nil)
		h.provider.On("View", anyCtx(), 11).Return(request(11, s.EntryBranch(s.Entries[0])), nil)

		res, err := h.engine.Sync(ctx, SyncOptions{Force: true})
		require.NoError(t, err)
		assert.Equal(t, output.ActionRewritten, res.Entries[1].Action)
		assert.Equal(t, s.Entries[1].Hash, h.remoteHead(t, s.EntryBranch(s.Entries[1])))
		h.confirm.AssertNotCalled(t, "Confirm", mock.Anything)
	})
}

func TestSyncStopsAboveFailedEntry(t *testing.T) {
	h := newHarness(t)
	h.buildStack(t, "auth", "Add login", "Add logout", "Add signup")
	s := h.assignIDs(t)
	h.expectAuth()
	h.expectCreate(s.EntryBranch(s.Entries[0]), "main", 10)
	h.provider.On("Create", anyCtx(), mock.MatchedBy(func(req provider.CreateRequest) bool {
		return req.Source == s.EntryBranch(s.Entries[1])
	})).Return(nil, errors.New("validation failed")).Once()

	res, err := h.engine.Sync(context.Background(), SyncOptions{})
	require.NoError(t, err)
	require.Len(t, res.Entries, 3)
	assert.Equal(t, output.ActionCreated, res.Entries[0].Action)
	assert.Equal(t, output.ActionError, res.Entries[1].Action)
	assert.Contains(t, res.Entries[1].Error, "validation failed")
	assert.Equal(t, output.ActionBlocked, res.Entries[2].Action)
	assert.NotEmpty(t, res.Blocked)
	assert.True(t, res.Failed())

	_, ok := h.mapping(t, "auth", s.Entries[1].GGID)
	assert.False(t, ok)
	assert.Empty(t, h.remoteHead(t, s.EntryBranch(s.Entries[2])))
}

func TestSyncMissingGGIDs(t *testing.T) {
	t.Run("DeclinedWithoutAutoAdd", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")
		h.configure(t, func(cfg *config.Config) { cfg.Defaults.AutoAddGGIDs = false })
		h.expectAuth()
		h.confirm.On("Confirm", mock.Anything).Return(false, nil).Once()
		tip := testutil.Git(t, h.git, "rev-parse", "HEAD")

		_, err := h.engine.Sync(context.Background(), SyncOptions{})
		assert.ErrorIs(t, err, ggerrors.ErrConfirmationRequired)
		assert.Equal(t, tip, testutil.Git(t, h.git, "rev-parse", "HEAD"))
	})

	t.Run("ConfirmedWithoutAutoAdd", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")
		h.configure(t, func(cfg *config.Config) { cfg.Defaults.AutoAddGGIDs = false })
		h.expectAuth()
		h.confirm.On("Confirm", mock.Anything).Return(true, nil).Once()
		h.provider.On("Create", anyCtx(), mock.Anything).Return(request(10, "main"), nil).Once()

		res, err := h.engine.Sync(context.Background(), SyncOptions{})
		require.NoError(t, err)
		assert.Equal(t, output.ActionCreated, res.Entries[0].Action)
		assert.NotEmpty(t, res.Entries[0].GGID)
	})
}

func TestSyncProviderNotReady(t *testing.T) {
	h := newHarness(t)
	h.buildStack(t, "auth", "Add login")
	h.provider.On("CheckInstalled", anyCtx()).Return(errors.New("gh is not installed"))

	_, err := h.engine.Sync(context.Background(), SyncOptions{})
	assert.ErrorContains(t, err, "gh is not installed")
	h.provider.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// advanceRemoteBase lands a commit on origin/main that the stack lacks
func (h *harness) advanceRemoteBase(t *testing.T) {
	t.Helper()
	branch := testutil.Git(t, h.git, "branch", "--show-current")
	testutil.Git(t, h.git, "checkout", "--quiet", "main")
	testutil.CommitFile(t, h.git, "upstream.txt", "upstream\n", "Upstream change")
	testutil.Git(t, h.git, "push", "--quiet", "origin", "main")
	testutil.Git(t, h.git, "checkout", "--quiet", branch)
}

func TestSyncBehindBase(t *testing.T) {
	t.Run("Warns", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")
		h.advanceRemoteBase(t)
		h.expectAuth()
		h.provider.On("Create", anyCtx(), mock.Anything).Return(request(10, "main"), nil).Once()

		res, err := h.engine.Sync(context.Background(), SyncOptions{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.BehindBase)
		assert.False(t, res.RebasedBeforeSync)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "behind main")
	})

	t.Run("AutoRebase", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")
		h.advanceRemoteBase(t)
		h.configure(t, func(cfg *config.Config) { cfg.Defaults.SyncAutoRebase = true })
		h.expectAuth()
		h.provider.On("Create", anyCtx(), mock.Anything).Return(request(10, "main"), nil).Once()

		res, err := h.engine.Sync(context.Background(), SyncOptions{})
		require.NoError(t, err)
		assert.True(t, res.RebasedBeforeSync)
		assert.Equal(t, 0, res.BehindBase)
		assert.Equal(t, "upstream\n", testutil.ReadFile(t, h.git, "upstream.txt"))
	})

	t.Run("NoRebaseCheck", func(t *testing.T) {
		h := newHarness(t)
		h.buildStack(t, "auth", "Add login")
		h.advanceRemoteBase(t)
		h.expectAuth()
		h.provider.On("Create", anyCtx(), mock.Anything).Return(request(10, "main"), nil).Once()

		res, err := h.engine.Sync(context.Background(), SyncOptions{NoRebaseCheck: true})
		require.NoError(t, err)
		assert.Empty(t, res.Warnings)
	})
}

func TestSyncLintFailureBlocks(t *testing.T) {
	h := newHarness(t)
	h.buildStack(t, "auth", "Add login")
	h.configure(t, func(cfg *config.Config) { cfg.Defaults.Lint = []string{"false"} })
	h.expectAuth()

	res, err := h.engine.Sync(context.Background(), SyncOptions{Lint: true})
	require.NoError(t, err)
	assert.Contains(t, res.Blocked, "lint failed")
	h.provider.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}
