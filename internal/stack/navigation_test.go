package stack

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNavigation(t *testing.T) {
	ctx := context.Background()
	c, gitClient := newTestStackClient(t)
	buildStack(t, gitClient, "feature", "First", "Second", "Third")
	_, err := c.EnsureGGIDs(ctx, loadStack(t, c), nil)
	require.NoError(t, err)

	e, err := c.Move(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Second", e.Title)
	s := loadStack(t, c)
	assert.Equal(t, 2, s.Cursor)
	assert.False(t, s.OnBranch)

	e, err = c.Prev(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Position)

	_, err = c.Prev(ctx)
	assert.Error(t, err)

	e, err = c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, e.Position)

	e, err = c.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Position)
	assert.True(t, loadStack(t, c).OnBranch, "reaching the top re-attaches the branch")

	_, err = c.Next(ctx)
	assert.Error(t, err)

	third := loadStack(t, c).Entry(3)
	e, err = c.Move(ctx, third.GGID)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Position)

	e, err = c.Move(ctx, third.Hash)
	require.NoError(t, err)
	assert.Equal(t, 3, e.Position)

	_, err = c.First(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, loadStack(t, c).Cursor)

	_, err = c.Last(ctx)
	require.NoError(t, err)
	assert.True(t, loadStack(t, c).OnBranch)

	_, err = c.Move(ctx, "7")
	assert.Error(t, err)
}
