package stack

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// RebaseResult is the outcome of Rebase
type RebaseResult struct {
	*ReplayResult
	Onto     string
	UpToDate bool
	Warnings []string
}

// Rebase replays the stack onto the latest base. Without a target the
// remote base is fetched first and used when it exists. With a target on a
// branch that is not a stack, the current branch's commits since its
// merge-base with target are replayed instead.
func (c *Client) Rebase(ctx context.Context, target string) (*RebaseResult, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}

	s, err := c.Load(ctx, "", "")
	if err != nil {
		if target != "" && errors.Is(err, ggerrors.ErrNotOnStack) {
			return c.rebaseBranch(ctx, target)
		}
		return nil, err
	}

	res := &RebaseResult{}
	onto := target
	if onto == "" {
		onto = s.Base
		if remote, err := c.git.RemoteName(); err == nil {
			if err := c.git.Fetch(remote, s.Base); err != nil {
				res.Warnings = append(res.Warnings, fmt.Sprintf("could not fetch %s from %s: %v", s.Base, remote, err))
				slog.Warn("fetch failed, rebasing onto local state", slog.String("error", err.Error()))
			}
			if c.git.RemoteBranchExists(remote, s.Base) {
				onto = remote + "/" + s.Base
			}
		}
	}
	res.Onto = onto

	ontoHash, err := c.git.ResolveRef(onto)
	if err != nil {
		return nil, err
	}
	if ontoHash == s.MergeBase || c.git.IsAncestor(ontoHash, s.MergeBase) {
		res.UpToDate = true
		return res, nil
	}
	if err := c.requireCleanTree(); err != nil {
		return nil, err
	}

	steps := make([]ReplayStep, 0, s.Len())
	for _, e := range s.Entries {
		steps = append(steps, ReplayStep{Hash: e.Hash, Title: e.Title})
	}
	originalHead, cursorHash, cursorGGID, err := c.headState(s)
	if err != nil {
		return nil, err
	}

	res.ReplayResult, err = c.Replay(ctx, ReplayPlan{
		Kind:          "rebase",
		Branch:        s.Branch,
		OriginalTip:   s.Tip,
		OriginalHead:  originalHead,
		Onto:          ontoHash,
		Steps:         steps,
		CursorHash:    cursorHash,
		CursorGGID:    cursorGGID,
		DropRedundant: true,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// rebaseBranch replays merge-base(target, HEAD)..HEAD of the current branch onto target
func (c *Client) rebaseBranch(ctx context.Context, target string) (*RebaseResult, error) {
	branch, err := c.git.CurrentBranch()
	if err != nil {
		return nil, err
	}
	if branch == "" {
		return nil, fmt.Errorf("%w: HEAD is detached", ggerrors.ErrNotOnStack)
	}

	ontoHash, err := c.git.ResolveRef(target)
	if err != nil {
		return nil, err
	}
	tip, err := c.git.ResolveRef(branch)
	if err != nil {
		return nil, err
	}
	commits, mergeBase, err := c.git.History(target, tip)
	if err != nil {
		return nil, err
	}

	res := &RebaseResult{Onto: target}
	if mergeBase == ontoHash {
		res.UpToDate = true
		return res, nil
	}
	if err := c.requireCleanTree(); err != nil {
		return nil, err
	}

	steps := make([]ReplayStep, 0, len(commits))
	for _, commit := range commits {
		steps = append(steps, ReplayStep{Hash: commit.Hash, Title: commit.Title})
	}
	res.ReplayResult, err = c.Replay(ctx, ReplayPlan{
		Kind:          "rebase",
		Branch:        branch,
		OriginalTip:   tip,
		OriginalHead:  branch,
		Onto:          ontoHash,
		Steps:         steps,
		DropRedundant: true,
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
