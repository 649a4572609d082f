package stack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// ReplayPlan describes a rewrite: the steps are cherry-picked in order onto
// Onto and the branch is moved to the result in one compare-and-swap.
type ReplayPlan struct {
	Kind string
	// Branch is the branch moved at the end, normally the stack branch
	Branch      string
	OriginalTip string
	// OriginalHead is the branch name when HEAD was attached, else a hash
	OriginalHead string
	Onto         string
	Steps        []ReplayStep

	// CursorHash is the original commit HEAD should end up on when it was detached
	CursorHash    string
	CursorGGID    string
	DropRedundant bool
	// RestorePatch is re-staged by Abort
	RestorePatch string
	// Stashed means changes were stashed before the replay and are popped after it
	Stashed bool
	// Rewritten seeds the original to replacement mapping for commits
	// rewritten before the replay started
	Rewritten map[string]string
}

// ReplayResult describes a finished replay
type ReplayResult struct {
	Kind      string
	Branch    string
	OldTip    string
	NewTip    string
	Rewritten map[string]string
	Dropped   int
}

// Replay runs a plan. If a step conflicts the repository is left paused and
// a *errors.RebaseConflictError is returned; Continue and Abort take it
// from there.
func (c *Client) Replay(ctx context.Context, plan ReplayPlan) (*ReplayResult, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}

	op := &PendingOperation{
		Version:       pendingVersion,
		Kind:          plan.Kind,
		StackBranch:   plan.Branch,
		OriginalTip:   plan.OriginalTip,
		OriginalHead:  plan.OriginalHead,
		Onto:          plan.Onto,
		Worktree:      c.git.GitRoot(),
		Steps:         plan.Steps,
		Done:          []string{},
		Rewritten:     make(map[string]string, len(plan.Rewritten)),
		CursorHash:    plan.CursorHash,
		CursorGGID:    plan.CursorGGID,
		DropRedundant: plan.DropRedundant,
		RestorePatch:  plan.RestorePatch,
		Stashed:       plan.Stashed,
		StartedAt:     time.Now().UTC(),
	}
	for old, rewritten := range plan.Rewritten {
		op.Rewritten[old] = rewritten
	}
	if err := c.savePending(op); err != nil {
		return nil, err
	}

	slog.Debug("replay started",
		slog.String("kind", op.Kind),
		slog.String("branch", op.StackBranch),
		slog.String("onto", op.Onto),
		slog.Int("steps", len(op.Steps)))

	if err := c.git.CheckoutDetach(op.Onto); err != nil {
		if clearErr := c.clearPending(); clearErr != nil {
			slog.Warn("failed to clear pending operation", slog.String("error", clearErr.Error()))
		}
		return nil, err
	}
	return c.runSteps(ctx, op)
}

func (c *Client) runSteps(ctx context.Context, op *PendingOperation) (*ReplayResult, error) {
	for len(op.Steps) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		step := op.Steps[0]
		head, err := c.git.HeadCommit()
		if err != nil {
			return nil, err
		}
		op.Current = &step
		op.StepBase = head
		op.Steps = op.Steps[1:]
		if err := c.savePending(op); err != nil {
			return nil, err
		}

		slog.Debug("replay step", slog.String("commit", step.Hash), slog.Bool("fold", step.Fold))
		if err := c.git.CherryPick(step.Hash); err != nil {
			if c.git.IsCherryPickInProgress() || c.git.HasConflicts() {
				return nil, &ggerrors.RebaseConflictError{
					Kind:      op.Kind,
					Commit:    step.Hash,
					Title:     step.Title,
					Remaining: len(op.Steps),
				}
			}
			return nil, fmt.Errorf("%s stopped at %s, run 'gg abort' to restore the stack: %w", op.Kind, shortHash(step.Hash), err)
		}
		if err := c.completeStep(op); err != nil {
			return nil, err
		}
	}
	return c.finalize(ctx, op)
}

// completeStep records the commit produced for op.Current, folding or
// dropping it as the plan requires.
func (c *Client) completeStep(op *PendingOperation) error {
	step := op.Current
	if step == nil {
		return nil
	}

	head, err := c.git.HeadCommit()
	if err != nil {
		return err
	}

	switch {
	case step.Fold && len(op.Done) > 0:
		folded, err := c.git.FoldHead()
		if err != nil {
			return err
		}
		op.Done[len(op.Done)-1] = folded
		op.Rewritten[step.Hash] = folded
		if op.LastPicked != "" {
			op.Rewritten[op.LastPicked] = folded
		}
	case op.DropRedundant && c.isRedundant(head):
		if err := c.git.ResetSoft(op.StepBase); err != nil {
			return err
		}
		op.Rewritten[step.Hash] = op.StepBase
		op.Dropped++
		slog.Debug("dropped redundant commit", slog.String("commit", step.Hash))
	default:
		op.Done = append(op.Done, head)
		op.Rewritten[step.Hash] = head
		op.LastPicked = step.Hash
	}

	op.Current = nil
	op.StepBase = ""
	return c.savePending(op)
}

// isRedundant reports whether a commit leaves its parent's tree unchanged
func (c *Client) isRedundant(hash string) bool {
	commit, err := c.git.GetCommit(hash)
	if err != nil || len(commit.Parents) != 1 {
		return false
	}
	parent, err := c.git.GetCommit(commit.Parents[0])
	if err != nil {
		return false
	}
	return commit.Tree == parent.Tree
}

// finalize moves the branch to the replayed tip, restores HEAD and clears
// the pending state. Running it again after a partial finalize only
// finishes the cleanup.
func (c *Client) finalize(ctx context.Context, op *PendingOperation) (*ReplayResult, error) {
	if op.NewTip == "" {
		head, err := c.git.HeadCommit()
		if err != nil {
			return nil, err
		}
		op.NewTip = head
		if err := c.savePending(op); err != nil {
			return nil, err
		}
	}

	current, err := c.git.ResolveRef(op.StackBranch)
	if err != nil {
		return nil, err
	}
	if current != op.NewTip {
		reason := fmt.Sprintf("gg %s", op.Kind)
		if err := c.git.UpdateRef(op.StackBranch, op.NewTip, op.OriginalTip, reason); err != nil {
			return nil, fmt.Errorf("branch %s moved during %s, run 'gg abort': %w", op.StackBranch, op.Kind, err)
		}
	}

	if err := c.placeHead(op); err != nil {
		return nil, err
	}

	if op.Stashed {
		if err := c.git.StashPop(); err != nil {
			slog.Warn("failed to restore stashed changes, they remain in 'git stash list'", slog.String("error", err.Error()))
		}
	}

	if err := c.clearPending(); err != nil {
		return nil, err
	}

	slog.Debug("replay finished",
		slog.String("kind", op.Kind),
		slog.String("old_tip", op.OriginalTip),
		slog.String("new_tip", op.NewTip))

	return &ReplayResult{
		Kind:      op.Kind,
		Branch:    op.StackBranch,
		OldTip:    op.OriginalTip,
		NewTip:    op.NewTip,
		Rewritten: op.Rewritten,
		Dropped:   op.Dropped,
	}, ctx.Err()
}

// placeHead re-attaches the branch, or detaches at the rewritten cursor
func (c *Client) placeHead(op *PendingOperation) error {
	if op.OriginalHead == op.StackBranch || op.CursorHash == "" {
		if err := c.git.Checkout(op.StackBranch); err != nil {
			return err
		}
		c.forgetStack()
		return nil
	}

	target := op.Rewritten[op.CursorHash]
	if target == "" {
		target = op.NewTip
	}
	if err := c.git.CheckoutDetach(target); err != nil {
		return err
	}
	c.rememberStack(op.StackBranch)
	return nil
}

// Continue resumes a paused replay once the conflicts are resolved and staged
func (c *Client) Continue(ctx context.Context) (*ReplayResult, error) {
	op, err := c.loadOwnPending()
	if err != nil {
		return nil, err
	}
	if op == nil {
		return nil, ggerrors.ErrNoOperationInProgress
	}
	if c.git.HasConflicts() {
		return nil, fmt.Errorf("%w: resolve the conflicts and stage them with 'git add' first", ggerrors.ErrDirtyWorkingTree)
	}

	if op.NewTip != "" {
		return c.finalize(ctx, op)
	}

	if op.Current != nil {
		if err := c.resumeCurrent(op); err != nil {
			return nil, err
		}
		if err := c.completeStep(op); err != nil {
			return nil, err
		}
	}
	return c.runSteps(ctx, op)
}

// resumeCurrent finishes the step that stopped on a conflict
func (c *Client) resumeCurrent(op *PendingOperation) error {
	if c.git.IsCherryPickInProgress() {
		return c.git.CherryPickContinue()
	}

	head, err := c.git.HeadCommit()
	if err != nil {
		return err
	}
	if head != op.StepBase {
		// already committed by hand
		return nil
	}
	return c.git.CommitReusing(op.Current.Hash)
}

// Abort cancels a paused replay and restores the branch, HEAD and any
// changes that were folded in before the replay began.
func (c *Client) Abort(ctx context.Context) error {
	op, err := c.loadOwnPending()
	if err != nil {
		return err
	}
	if op == nil {
		return ggerrors.ErrNoOperationInProgress
	}

	// only undo what this operation did to the branch
	current, err := c.git.ResolveRef(op.StackBranch)
	branchExists := err == nil
	if branchExists && current != op.OriginalTip && current != op.NewTip {
		return fmt.Errorf("%w: %s is at %s, expected %s; move it back with 'git branch -f %s %s' and run 'gg abort' again",
			ggerrors.ErrBranchMoved, op.StackBranch, shortHash(current), shortHash(op.OriginalTip), op.StackBranch, op.OriginalTip)
	}

	if c.git.IsCherryPickInProgress() {
		if err := c.git.CherryPickAbort(); err != nil {
			slog.Debug("cherry-pick abort failed", slog.String("error", err.Error()))
		}
	}
	if err := c.git.ResetHard("HEAD"); err != nil {
		return err
	}

	if branchExists && current != op.OriginalTip {
		if err := c.git.UpdateRef(op.StackBranch, op.OriginalTip, current, fmt.Sprintf("gg abort %s", op.Kind)); err != nil {
			return err
		}
	}

	if op.OriginalHead == op.StackBranch {
		if err := c.git.Checkout(op.StackBranch); err != nil {
			return err
		}
		c.forgetStack()
	} else {
		if err := c.git.CheckoutDetach(op.OriginalHead); err != nil {
			return err
		}
	}

	if op.RestorePatch != "" {
		if err := c.git.ApplyIndexAndTree(op.RestorePatch); err != nil {
			return fmt.Errorf("stack restored but the squashed changes could not be re-staged: %w", err)
		}
	}
	if op.Stashed {
		if err := c.git.StashPop(); err != nil {
			slog.Warn("failed to restore stashed changes, they remain in 'git stash list'", slog.String("error", err.Error()))
		}
	}

	slog.Debug("replay aborted", slog.String("kind", op.Kind), slog.String("branch", op.StackBranch))
	return c.clearPending()
}

// headState returns what HEAD should be restored to after a rewrite
func (c *Client) headState(s *Stack) (originalHead, cursorHash, cursorGGID string, err error) {
	if s.OnBranch {
		return s.Branch, "", "", nil
	}
	head, err := c.git.HeadCommit()
	if err != nil {
		return "", "", "", err
	}
	if e := s.Current(); e != nil {
		return head, e.Hash, e.GGID, nil
	}
	return head, "", "", nil
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}
