package stack

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/testutil"
)

func TestValidatePermutation(t *testing.T) {
	tests := []struct {
		name    string
		order   []int
		n       int
		wantErr bool
	}{
		{name: "identity", order: []int{1, 2, 3}, n: 3},
		{name: "reversed", order: []int{3, 2, 1}, n: 3},
		{name: "duplicate", order: []int{1, 1, 2}, n: 3, wantErr: true},
		{name: "too short", order: []int{2, 1}, n: 3, wantErr: true},
		{name: "out of range", order: []int{1, 2, 4}, n: 3, wantErr: true},
		{name: "zero", order: []int{0, 1, 2}, n: 3, wantErr: true},
		{name: "empty stack", order: nil, n: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePermutation(tt.order, tt.n)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ggerrors.ErrInvalidPermutation))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestReorder(t *testing.T) {
	ctx := context.Background()

	t.Run("MovesTopToBottom", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		buildStack(t, gitClient, "feature", "First", "Second", "Third")
		_, err := c.EnsureGGIDs(ctx, loadStack(t, c), nil)
		require.NoError(t, err)
		before := loadStack(t, c)

		res, err := c.Reorder(ctx, []int{3, 1, 2})
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Equal(t, before.Tip, res.OldTip)

		after := loadStack(t, c)
		assert.Equal(t, []string{"Third", "First", "Second"}, titles(after))
		assert.Equal(t, []string{before.Entry(3).GGID, before.Entry(1).GGID, before.Entry(2).GGID}, ggids(after))
		assert.Equal(t, res.NewTip, after.Tip)
		assert.True(t, after.OnBranch)

		st, err := c.Status()
		require.NoError(t, err)
		assert.False(t, st.Paused)
	})

	t.Run("InvalidPermutationChangesNothing", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		buildStack(t, gitClient, "feature", "First", "Second", "Third")
		before := loadStack(t, c)

		_, err := c.Reorder(ctx, []int{1, 1, 2})
		assert.True(t, errors.Is(err, ggerrors.ErrInvalidPermutation))
		assert.Equal(t, before.Tip, loadStack(t, c).Tip)
	})

	t.Run("IdentityIsNoop", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		buildStack(t, gitClient, "feature", "First", "Second")
		before := loadStack(t, c)

		res, err := c.Reorder(ctx, []int{1, 2})
		require.NoError(t, err)
		assert.Nil(t, res)
		assert.Equal(t, before.Tip, loadStack(t, c).Tip)
	})

	t.Run("DirtyTreeRefused", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		buildStack(t, gitClient, "feature", "First", "Second")
		testutil.WriteFile(t, gitClient, "first.txt", "changed\n")

		_, err := c.Reorder(ctx, []int{2, 1})
		assert.True(t, errors.Is(err, ggerrors.ErrDirtyWorkingTree))
	})

	t.Run("KeepsDetachedCursorOnEntry", func(t *testing.T) {
		c, gitClient := newTestStackClient(t)
		buildStack(t, gitClient, "feature", "First", "Second", "Third")
		_, err := c.EnsureGGIDs(ctx, loadStack(t, c), nil)
		require.NoError(t, err)
		_, err = c.Move(ctx, "1")
		require.NoError(t, err)
		cursorID := loadStack(t, c).Current().GGID

		_, err = c.Reorder(ctx, []int{2, 3, 1})
		require.NoError(t, err)

		s := loadStack(t, c)
		assert.False(t, s.OnBranch)
		assert.Equal(t, 3, s.Cursor)
		assert.Equal(t, cursorID, s.Current().GGID)
	})
}
