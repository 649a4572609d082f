package git_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/testutil"
)

func TestHistory(t *testing.T) {
	t.Run("OrdersOldestToNewest", func(t *testing.T) {
		client := testutil.NewTestGitClient(t)
		mainTip := testutil.Git(t, client, "rev-parse", "main")
		testutil.NewStackBranch(t, client, "alice/feature")
		a := testutil.CreateCommitWithTrailers(t, client, "A", "", nil)
		b := testutil.CreateCommitWithTrailers(t, client, "B", "", nil)
		c := testutil.CreateCommitWithTrailers(t, client, "C", "", nil)

		commits, mergeBase, err := client.History("main", "alice/feature")
		require.NoError(t, err)
		assert.Equal(t, mainTip, mergeBase)
		require.Len(t, commits, 3)
		assert.Equal(t, []string{a, b, c}, []string{commits[0].Hash, commits[1].Hash, commits[2].Hash})
		assert.Equal(t, "B", commits[1].Title)
		assert.Equal(t, []string{a}, commits[1].Parents)
	})

	t.Run("UsesMergeBaseWhenBaseMovedOn", func(t *testing.T) {
		client := testutil.NewTestGitClient(t)
		testutil.NewStackBranch(t, client, "alice/feature")
		a := testutil.CreateCommitWithTrailers(t, client, "A", "", nil)
		testutil.Git(t, client, "checkout", "--quiet", "main")
		testutil.CommitFile(t, client, "other.txt", "x\n", "Upstream change")

		commits, _, err := client.History("main", "alice/feature")
		require.NoError(t, err)
		require.Len(t, commits, 1)
		assert.Equal(t, a, commits[0].Hash)
	})

	t.Run("EmptyStack", func(t *testing.T) {
		client := testutil.NewTestGitClient(t)
		testutil.NewStackBranch(t, client, "alice/feature")

		commits, _, err := client.History("main", "alice/feature")
		require.NoError(t, err)
		assert.Empty(t, commits)
	})

	t.Run("RejectsMergeCommits", func(t *testing.T) {
		client := testutil.NewTestGitClient(t)
		testutil.NewStackBranch(t, client, "alice/feature")
		testutil.CreateCommitWithTrailers(t, client, "A", "", nil)
		testutil.Git(t, client, "checkout", "--quiet", "-b", "side", "main")
		testutil.CreateCommitWithTrailers(t, client, "Side", "", nil)
		testutil.Git(t, client, "checkout", "--quiet", "alice/feature")
		testutil.Git(t, client, "merge", "--quiet", "--no-ff", "-m", "Merge side", "side")

		_, _, err := client.History("main", "alice/feature")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ggerrors.ErrNonLinearHistory))
		assert.False(t, errors.Is(err, ggerrors.ErrRefNotFound))
	})

	t.Run("MissingRef", func(t *testing.T) {
		client := testutil.NewTestGitClient(t)

		_, _, err := client.History("main", "alice/does-not-exist")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ggerrors.ErrRefNotFound))
		assert.False(t, errors.Is(err, ggerrors.ErrNonLinearHistory))
	})
}

func TestRemoteBranches(t *testing.T) {
	client, _ := testutil.NewTestGitClientWithRemote(t)
	testutil.NewStackBranch(t, client, "alice/feature")
	hash := testutil.CreateCommitWithTrailers(t, client, "A", "", map[string]string{"GG-ID": "c-1111111"})
	testutil.Git(t, client, "push", "--quiet", "origin", "HEAD:refs/heads/alice/feature--c-1111111")
	testutil.Git(t, client, "fetch", "--quiet", "origin")

	tips, err := client.RemoteBranches("origin", "alice/feature--")
	require.NoError(t, err)
	require.Len(t, tips, 1)
	assert.Equal(t, "alice/feature--c-1111111", tips[0].Branch)
	assert.Equal(t, hash, tips[0].Commit.Hash)
	assert.Equal(t, "c-1111111", tips[0].Commit.Trailers["GG-ID"])
}
