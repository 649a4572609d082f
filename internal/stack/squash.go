package stack

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// SquashOptions controls Squash
type SquashOptions struct {
	// All stages modifications of tracked files first
	All bool
	// UnstagedAction decides what happens to changes left unstaged; empty
	// uses the configured default
	UnstagedAction config.UnstagedAction
}

// Squash folds the staged changes into the entry HEAD is at and replays
// the entries above it onto the amended commit.
func (c *Client) Squash(ctx context.Context, opts SquashOptions) (*ReplayResult, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}
	s, err := c.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	cursor := s.Current()
	if cursor == nil {
		return nil, fmt.Errorf("%w: stack %s has no entries to squash into", ggerrors.ErrNothingToDo, s.Name)
	}

	if opts.All {
		if err := c.git.AddTracked(); err != nil {
			return nil, err
		}
	}

	action := opts.UnstagedAction
	if action == "" {
		cfg, err := c.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		action = cfg.Defaults.UnstagedAction
	}

	status, err := c.git.Status()
	if err != nil {
		return nil, err
	}
	if len(status.Conflicts) > 0 {
		return nil, fmt.Errorf("%w: unresolved conflicts in %v", ggerrors.ErrDirtyWorkingTree, status.Conflicts)
	}
	dirty := len(status.Unstaged) > 0 || len(status.Untracked) > 0
	if dirty {
		action, err = c.resolveUnstaged(action)
		if err != nil {
			return nil, err
		}
		if action == config.UnstagedAdd {
			if err := c.git.AddAll(); err != nil {
				return nil, err
			}
		}
	}

	if !c.git.HasStagedChanges() {
		return nil, fmt.Errorf("%w: nothing staged to squash", ggerrors.ErrDirtyWorkingTree)
	}

	originalHead, cursorHash, cursorGGID, err := c.headState(s)
	if err != nil {
		return nil, err
	}

	// the branch must not move before the replay finalizes
	if s.OnBranch {
		if err := c.git.CheckoutDetach(cursor.Hash); err != nil {
			return nil, err
		}
	}
	if err := c.git.AmendNoEdit(); err != nil {
		return nil, c.undoAmend(s, cursor.Hash, err)
	}
	amended, err := c.git.HeadCommit()
	if err != nil {
		return nil, c.undoAmend(s, cursor.Hash, err)
	}
	patch, err := c.git.DiffBinary(cursor.Hash, amended)
	if err != nil {
		return nil, c.undoAmend(s, cursor.Hash, err)
	}

	stashed := false
	if dirty && action == config.UnstagedStash {
		if err := c.git.Stash("gg squash"); err != nil {
			return nil, c.undoAmend(s, cursor.Hash, err)
		}
		stashed = true
	}

	steps := make([]ReplayStep, 0, s.Len()-cursor.Position)
	for _, e := range s.Entries[cursor.Position:] {
		steps = append(steps, ReplayStep{Hash: e.Hash, Title: e.Title})
	}

	slog.Debug("squash", slog.String("into", cursor.Hash), slog.Int("replaying", len(steps)))
	res, err := c.Replay(ctx, ReplayPlan{
		Kind:         "squash",
		Branch:       s.Branch,
		OriginalTip:  s.Tip,
		OriginalHead: originalHead,
		Onto:         amended,
		Steps:        steps,
		CursorHash:   cursorHash,
		CursorGGID:   cursorGGID,
		RestorePatch: patch,
		Stashed:      stashed,
		Rewritten:    map[string]string{cursor.Hash: amended},
	})
	if err != nil && res == nil {
		if op, loadErr := c.loadPending(); loadErr == nil && op == nil {
			if stashed {
				if popErr := c.git.StashPop(); popErr != nil {
					slog.Warn("failed to restore stashed changes, they remain in 'git stash list'", slog.String("error", popErr.Error()))
				}
			}
			return nil, c.undoAmend(s, cursor.Hash, err)
		}
	}
	return res, err
}

// undoAmend puts HEAD back on the entry that was being amended, with the
// squashed changes staged again, and returns cause. Used for failures
// before the replay records anything for 'gg abort'.
func (c *Client) undoAmend(s *Stack, cursorHash string, cause error) error {
	if err := c.git.ResetSoft(cursorHash); err != nil {
		slog.Warn("failed to restore HEAD after a failed squash", slog.String("commit", cursorHash), slog.String("error", err.Error()))
		return cause
	}
	if s.OnBranch {
		if err := c.git.Checkout(s.Branch); err != nil {
			slog.Warn("failed to re-attach HEAD after a failed squash", slog.String("branch", s.Branch), slog.String("error", err.Error()))
		}
	}
	return cause
}

// resolveUnstaged turns "ask" into a concrete action. Without an answer
// the squash is aborted.
func (c *Client) resolveUnstaged(action config.UnstagedAction) (config.UnstagedAction, error) {
	switch action {
	case config.UnstagedAsk, "":
		ok := false
		if c.confirm != nil {
			var err error
			ok, err = c.confirm.Confirm("There are unstaged changes. Stage them and include them in the squash?")
			if err != nil {
				return "", err
			}
		}
		if !ok {
			return "", fmt.Errorf("%w: stage or stash your unstaged changes, or set unstaged_action", ggerrors.ErrDirtyWorkingTree)
		}
		return config.UnstagedAdd, nil
	case config.UnstagedAbort:
		return "", fmt.Errorf("%w: there are unstaged changes", ggerrors.ErrDirtyWorkingTree)
	default:
		return action, nil
	}
}
