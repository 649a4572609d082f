package stack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjulian5/gg/internal/testutil"
)

func TestEnsureGGIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("AssignsEveryMissingEntry", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		hashes := buildStack(t, gitClient, "feature", "First", "Second", "Third")
		before := loadStack(t, c)

		n, err := c.EnsureGGIDs(ctx, before, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		after := loadStack(t, c)
		assert.Empty(t, after.MissingGGIDs())
		assert.Equal(t, titles(before), titles(after))
		assert.True(t, after.OnBranch)

		seen := map[string]bool{}
		for i, e := range after.Entries {
			_, ok := NormalizeGGID(e.GGID)
			assert.True(t, ok)
			assert.False(t, seen[e.GGID])
			seen[e.GGID] = true

			oldTree := testutil.Git(t, gitClient, "rev-parse", hashes[i]+"^{tree}")
			newTree := testutil.Git(t, gitClient, "rev-parse", e.Hash+"^{tree}")
			assert.Equal(t, oldTree, newTree)
		}
		assert.Empty(t, testutil.Git(t, gitClient, "status", "--porcelain"))

		n, err = c.EnsureGGIDs(ctx, after, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, after.Tip, loadStack(t, c).Tip)
	})

	t.Run("KeepsEntriesBelowFirstMissing", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		testutil.NewStackBranch(t, gitClient, "alice/feature")
		first := testutil.CreateCommitWithTrailers(t, gitClient, "First", "", map[string]string{"GG-ID": "c-1111111"})
		testutil.CommitFile(t, gitClient, "second.txt", "second\n", "Second")

		n, err := c.EnsureGGIDs(ctx, loadStack(t, c), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		s := loadStack(t, c)
		assert.Equal(t, first, s.Entry(1).Hash)
		assert.Equal(t, "c-1111111", s.Entry(1).GGID)
		assert.NotEmpty(t, s.Entry(2).GGID)
	})

	t.Run("UsesRecoveredTokens", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		hashes := buildStack(t, gitClient, "feature", "First", "Second")

		_, err := c.EnsureGGIDs(ctx, loadStack(t, c), map[string]string{hashes[1]: "c-abcdef0"})
		require.NoError(t, err)
		assert.Equal(t, "c-abcdef0", loadStack(t, c).Entry(2).GGID)
	})

	t.Run("FollowsDetachedHead", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		hashes := buildStack(t, gitClient, "feature", "First", "Second", "Third")
		testutil.Git(t, gitClient, "checkout", "--quiet", "--detach", hashes[1])

		_, err := c.EnsureGGIDs(ctx, loadStack(t, c), nil)
		require.NoError(t, err)

		s := loadStack(t, c)
		assert.Equal(t, 2, s.Cursor)
		assert.NotEqual(t, hashes[1], s.Current().Hash)
		assert.NotEmpty(t, s.Current().GGID)
	})
}
