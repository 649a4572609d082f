package stack

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// Move detaches HEAD at an entry given as a position, a GG-ID or a commit
// hash prefix.
func (c *Client) Move(ctx context.Context, target string) (*Entry, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}
	s, err := c.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	e, err := s.Find(target)
	if err != nil {
		return nil, err
	}
	return e, c.moveTo(s, e)
}

// Find resolves a position, GG-ID or hash prefix to an entry
func (s *Stack) Find(target string) (*Entry, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: stack %s is empty", ggerrors.ErrNothingToDo, s.Name)
	}
	if pos, err := strconv.Atoi(target); err == nil {
		if e := s.Entry(pos); e != nil {
			return e, nil
		}
		return nil, fmt.Errorf("position %d is out of range (1-%d)", pos, s.Len())
	}
	if e := s.EntryByGGID(target); e != nil {
		return e, nil
	}
	if len(target) >= 4 {
		for _, e := range s.Entries {
			if strings.HasPrefix(e.Hash, strings.ToLower(target)) {
				return e, nil
			}
		}
	}
	return nil, fmt.Errorf("no entry matching %q in stack %s", target, s.Name)
}

// First moves to the bottom entry
func (c *Client) First(ctx context.Context) (*Entry, error) {
	return c.Move(ctx, "1")
}

// Last re-attaches HEAD to the stack branch
func (c *Client) Last(ctx context.Context) (*Entry, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}
	s, err := c.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	if err := c.git.Checkout(s.Branch); err != nil {
		return nil, err
	}
	c.forgetStack()
	return s.Entry(s.Len()), nil
}

// Prev moves one entry down
func (c *Client) Prev(ctx context.Context) (*Entry, error) {
	return c.step(ctx, -1)
}

// Next moves one entry up. Reaching the top re-attaches the branch.
func (c *Client) Next(ctx context.Context) (*Entry, error) {
	return c.step(ctx, 1)
}

func (c *Client) step(ctx context.Context, delta int) (*Entry, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}
	s, err := c.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: stack %s is empty", ggerrors.ErrNothingToDo, s.Name)
	}

	pos := s.Cursor + delta
	switch {
	case pos < 1:
		return nil, fmt.Errorf("already at the first entry")
	case pos > s.Len():
		return nil, fmt.Errorf("already at the top of the stack")
	case pos == s.Len():
		if err := c.git.Checkout(s.Branch); err != nil {
			return nil, err
		}
		c.forgetStack()
		return s.Entry(pos), nil
	}

	e := s.Entry(pos)
	return e, c.moveTo(s, e)
}

func (c *Client) moveTo(s *Stack, e *Entry) error {
	if err := c.git.CheckoutDetach(e.Hash); err != nil {
		return err
	}
	c.rememberStack(s.Branch)
	return nil
}
