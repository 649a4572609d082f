// Package errors defines the sentinel errors and typed errors returned by the
// stack engine. Callers should use errors.Is and errors.As to classify them.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// User-state errors. These are reported immediately and never retried.
var (
	// ErrNotOnStack indicates that the current ref is not a stack branch
	ErrNotOnStack = errors.New("not on a stack")

	// ErrDirtyWorkingTree indicates that the working tree state does not allow the operation
	ErrDirtyWorkingTree = errors.New("working tree is dirty")

	// ErrNonLinearHistory indicates that the stack contains a merge commit
	ErrNonLinearHistory = errors.New("stack history is not linear")

	// ErrRefNotFound indicates that a ref could not be resolved
	ErrRefNotFound = errors.New("ref not found")

	// ErrInvalidStackName indicates a stack name that cannot be used in a branch name
	ErrInvalidStackName = errors.New("invalid stack name")

	// ErrInvalidUsername indicates a branch username that cannot be used in a branch name
	ErrInvalidUsername = errors.New("invalid branch username")

	// ErrNoBaseBranch indicates that no base branch could be determined
	ErrNoBaseBranch = errors.New("no base branch found")

	// ErrInvalidPermutation indicates a reorder request that is not a bijection
	ErrInvalidPermutation = errors.New("invalid reorder permutation")

	// ErrNothingToDo indicates an operation with no effect, e.g. absorb with nothing staged
	ErrNothingToDo = errors.New("nothing to do")
)

// Concurrency errors. These are reported with the identity of the blocking
// operation and never retried automatically.
var (
	ErrLockTimeout           = errors.New("timed out waiting for operation lock")
	ErrOperationInProgress   = errors.New("an operation is in progress")
	ErrNoOperationInProgress = errors.New("no operation in progress")

	// ErrBranchMoved indicates that a branch was moved by something other than the paused operation
	ErrBranchMoved = errors.New("branch moved outside the operation")
)

// Rewrite, remote and provider errors.
var (
	// ErrRebaseConflict indicates that a replay paused on a conflict
	ErrRebaseConflict = errors.New("replay stopped on a conflict")

	// ErrPushRejected indicates that the remote refused a push
	ErrPushRejected = errors.New("push rejected")

	// ErrStaleRemote indicates a force-with-lease rejection because the remote moved
	ErrStaleRemote = errors.New("remote branch changed since last fetch")

	// ErrConfirmationRequired indicates that a destructive step needs a prompt or an explicit flag
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrProviderNotConfigured indicates that no hosting provider could be resolved
	ErrProviderNotConfigured = errors.New("no provider configured")

	// ErrGGIDCollision indicates that a freshly generated GG-ID already exists
	ErrGGIDCollision = errors.New("generated GG-ID collides with an existing one")

	// ErrLandTimeout indicates that waiting for a review request to become ready timed out
	ErrLandTimeout = errors.New("timed out waiting for review request")
)

// LockTimeoutError reports the holder of the operation lock
type LockTimeoutError struct {
	Operation string
	PID       int
	Since     time.Time
}

func (e *LockTimeoutError) Error() string {
	if e.Operation == "" {
		return "timed out waiting for operation lock (holder unknown)"
	}
	msg := fmt.Sprintf("timed out waiting for operation lock held by %q (pid %d)", e.Operation, e.PID)
	if !e.Since.IsZero() {
		msg += fmt.Sprintf(" since %s", e.Since.Format(time.RFC3339))
	}
	return msg
}

// Is returns true if the target error is ErrLockTimeout
func (e *LockTimeoutError) Is(target error) bool {
	return target == ErrLockTimeout
}

// OperationInProgressError is returned when a mutating operation is attempted
// while a previous rewrite is paused.
type OperationInProgressError struct {
	Kind string
	// Worktree is set when the operation is paused in another worktree
	Worktree string
}

func (e *OperationInProgressError) Error() string {
	if e.Worktree != "" {
		return fmt.Sprintf("a %s is paused in worktree %s; run 'gg continue' or 'gg abort' there", e.Kind, e.Worktree)
	}
	return fmt.Sprintf("a %s is in progress; run 'gg continue' after resolving conflicts or 'gg abort' to cancel it", e.Kind)
}

// Is returns true if the target error is ErrOperationInProgress
func (e *OperationInProgressError) Is(target error) bool {
	return target == ErrOperationInProgress
}

// NonLinearHistoryError names the merge commit found in a stack
type NonLinearHistoryError struct {
	Commit string
}

func (e *NonLinearHistoryError) Error() string {
	return fmt.Sprintf("merge commit %s found in stack; stacks must have linear history", short(e.Commit))
}

// Is returns true if the target error is ErrNonLinearHistory
func (e *NonLinearHistoryError) Is(target error) bool {
	return target == ErrNonLinearHistory
}

// RefNotFoundError names a ref that could not be resolved
type RefNotFoundError struct {
	Ref string
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("ref %s not found", e.Ref)
}

// Is returns true if the target error is ErrRefNotFound
func (e *RefNotFoundError) Is(target error) bool {
	return target == ErrRefNotFound
}

// RebaseConflictError is returned when a replay stops on a conflict. The
// repository is left in the paused state.
type RebaseConflictError struct {
	Kind      string
	Commit    string
	Title     string
	Remaining int
}

func (e *RebaseConflictError) Error() string {
	return fmt.Sprintf("%s stopped on a conflict while applying %s %q (%d more to apply)\n"+
		"Resolve the conflicts, stage the result with 'git add', then run 'gg continue'.\n"+
		"To cancel and restore the stack, run 'gg abort'.",
		e.Kind, short(e.Commit), e.Title, e.Remaining)
}

// Is returns true if the target error is ErrRebaseConflict
func (e *RebaseConflictError) Is(target error) bool {
	return target == ErrRebaseConflict
}

// PushError separates output produced by remote hooks from git's own error lines
type PushError struct {
	Branch     string
	HookOutput string
	GitOutput  string
	Stale      bool
	Err        error
}

func (e *PushError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "failed to push %s", e.Branch)
	if e.Stale {
		sb.WriteString(": remote branch changed since last fetch; re-run with --force to overwrite it")
	}
	if e.HookOutput != "" {
		sb.WriteString("\nremote hook output:\n")
		sb.WriteString(e.HookOutput)
	}
	if e.GitOutput != "" {
		sb.WriteString("\n")
		sb.WriteString(e.GitOutput)
	}
	return sb.String()
}

// Is matches ErrPushRejected, and ErrStaleRemote for stale-info rejections
func (e *PushError) Is(target error) bool {
	if target == ErrStaleRemote {
		return e.Stale
	}
	return target == ErrPushRejected
}

func (e *PushError) Unwrap() error {
	return e.Err
}

// GitCommandError represents an error from a git command execution
type GitCommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *GitCommandError) Error() string {
	msg := fmt.Sprintf("git %s failed", strings.Join(e.Args, " "))
	if e.Stderr != "" {
		msg += ": " + strings.TrimSpace(e.Stderr)
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GitCommandError) Unwrap() error {
	return e.Err
}

func short(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
