package stack

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

const pendingVersion = 1

// ReplayStep is one commit to cherry-pick. A Fold step is squashed into the
// commit produced by the step before it.
type ReplayStep struct {
	Hash  string `json:"hash"`
	Title string `json:"title,omitempty"`
	Fold  bool   `json:"fold,omitempty"`
}

// PendingOperation is the on-disk record of a replay in progress. While it
// exists the stack branch still points at OriginalTip. There is one record
// per repository, shared by all worktrees.
type PendingOperation struct {
	Version      int    `json:"version"`
	Kind         string `json:"kind"`
	StackBranch  string `json:"stack_branch"`
	OriginalTip  string `json:"original_tip"`
	OriginalHead string `json:"original_head"`
	Onto         string `json:"onto"`
	// Worktree is the working tree the replay runs in
	Worktree string `json:"worktree"`

	// Steps are the steps not yet started
	Steps []ReplayStep `json:"steps"`
	// Current is the step being picked; set while paused on a conflict
	Current *ReplayStep `json:"current,omitempty"`
	// StepBase is HEAD before Current was picked
	StepBase string `json:"step_base,omitempty"`
	// Done lists the commits created so far, oldest first
	Done []string `json:"done"`
	// Rewritten maps original commits to their replacements
	Rewritten map[string]string `json:"rewritten"`
	// LastPicked is the original commit behind the newest Done entry
	LastPicked string `json:"last_picked,omitempty"`

	CursorHash    string `json:"cursor_hash,omitempty"`
	CursorGGID    string `json:"cursor_ggid,omitempty"`
	DropRedundant bool   `json:"drop_redundant,omitempty"`
	RestorePatch  string `json:"restore_patch,omitempty"`
	Stashed       bool   `json:"stashed,omitempty"`

	Dropped int `json:"dropped,omitempty"`

	// NewTip is recorded before the branch moves so finalize can be repeated
	NewTip string `json:"new_tip,omitempty"`

	StartedAt time.Time `json:"started_at"`
}

// OperationStatus describes whether a replay is paused
type OperationStatus struct {
	Paused    bool
	Kind      string
	Target    string
	Current   string
	Remaining int
	// Worktree is where the replay runs; Here is false when that is
	// another worktree of the repository
	Worktree string
	Here     bool
}

func (c *Client) pendingPath() string {
	return filepath.Join(c.git.CommonDir(), "gg", "pending.json")
}

// ownedHere reports whether op runs in this client's worktree. Records
// written without a worktree are treated as local.
func (c *Client) ownedHere(op *PendingOperation) bool {
	return op.Worktree == "" || op.Worktree == c.git.GitRoot()
}

// loadOwnPending loads the pending operation and refuses to touch one that
// belongs to another worktree
func (c *Client) loadOwnPending() (*PendingOperation, error) {
	op, err := c.loadPending()
	if err != nil || op == nil {
		return op, err
	}
	if !c.ownedHere(op) {
		return nil, &ggerrors.OperationInProgressError{Kind: op.Kind, Worktree: op.Worktree}
	}
	return op, nil
}

func (c *Client) loadPending() (*PendingOperation, error) {
	data, err := os.ReadFile(c.pendingPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending operation: %w", err)
	}

	var op PendingOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return nil, fmt.Errorf("failed to parse pending operation %s: %w", c.pendingPath(), err)
	}
	if op.Rewritten == nil {
		op.Rewritten = make(map[string]string)
	}
	return &op, nil
}

func (c *Client) savePending(op *PendingOperation) error {
	path := c.pendingPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(op, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pending operation: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write pending operation: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write pending operation: %w", err)
	}
	return nil
}

func (c *Client) clearPending() error {
	if err := os.Remove(c.pendingPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove pending operation: %w", err)
	}
	return nil
}

// Status reports whether a replay is paused in any worktree
func (c *Client) Status() (OperationStatus, error) {
	op, err := c.loadPending()
	if err != nil {
		return OperationStatus{}, err
	}
	if op == nil {
		return OperationStatus{}, nil
	}
	st := OperationStatus{
		Paused:    true,
		Kind:      op.Kind,
		Target:    op.StackBranch,
		Remaining: len(op.Steps),
		Worktree:  op.Worktree,
		Here:      c.ownedHere(op),
	}
	if op.Current != nil {
		st.Current = op.Current.Hash
	}
	return st, nil
}

// ensureClean refuses to start a mutation while a replay, or a rebase or
// cherry-pick started outside gg, is in progress.
func (c *Client) ensureClean() error {
	op, err := c.loadPending()
	if err != nil {
		return err
	}
	if op != nil {
		if c.ownedHere(op) {
			return &ggerrors.OperationInProgressError{Kind: op.Kind}
		}
		return &ggerrors.OperationInProgressError{Kind: op.Kind, Worktree: op.Worktree}
	}
	if c.git.IsRebaseInProgress() {
		return &ggerrors.OperationInProgressError{Kind: "git rebase"}
	}
	if c.git.IsCherryPickInProgress() {
		return &ggerrors.OperationInProgressError{Kind: "git cherry-pick"}
	}
	return nil
}
