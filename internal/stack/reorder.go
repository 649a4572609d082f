package stack

import (
	"context"
	"fmt"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// ValidatePermutation checks that order lists every position 1..n exactly once
func ValidatePermutation(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("%w: expected %d positions, got %d", ggerrors.ErrInvalidPermutation, n, len(order))
	}
	seen := make([]bool, n+1)
	for _, pos := range order {
		if pos < 1 || pos > n {
			return fmt.Errorf("%w: position %d is out of range 1-%d", ggerrors.ErrInvalidPermutation, pos, n)
		}
		if seen[pos] {
			return fmt.Errorf("%w: position %d appears more than once", ggerrors.ErrInvalidPermutation, pos)
		}
		seen[pos] = true
	}
	return nil
}

// Reorder rewrites the stack so that new position i holds old entry
// order[i-1]. The identity permutation does nothing and returns nil.
func (c *Client) Reorder(ctx context.Context, order []int) (*ReplayResult, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}
	s, err := c.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	if err := ValidatePermutation(order, s.Len()); err != nil {
		return nil, err
	}

	// entries below the first moved position are left untouched
	first := -1
	for i, pos := range order {
		if pos != i+1 {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, nil
	}

	if err := c.requireCleanTree(); err != nil {
		return nil, err
	}

	steps := make([]ReplayStep, 0, len(order)-first)
	for _, pos := range order[first:] {
		e := s.Entry(pos)
		steps = append(steps, ReplayStep{Hash: e.Hash, Title: e.Title})
	}

	originalHead, cursorHash, cursorGGID, err := c.headState(s)
	if err != nil {
		return nil, err
	}
	return c.Replay(ctx, ReplayPlan{
		Kind:         "reorder",
		Branch:       s.Branch,
		OriginalTip:  s.Tip,
		OriginalHead: originalHead,
		Onto:         s.Entry(first + 1).Parent,
		Steps:        steps,
		CursorHash:   cursorHash,
		CursorGGID:   cursorGGID,
	})
}

// requireCleanTree fails when tracked files have uncommitted changes
func (c *Client) requireCleanTree() error {
	status, err := c.git.Status()
	if err != nil {
		return err
	}
	if len(status.Staged) > 0 || len(status.Unstaged) > 0 || len(status.Conflicts) > 0 {
		return fmt.Errorf("%w: commit, squash or stash your changes first", ggerrors.ErrDirtyWorkingTree)
	}
	return nil
}
