// Package provider talks to the code-review hosting service. Every call is
// a blocking request made either through the service's CLI or its REST API.
package provider

import (
	"context"
	"os/exec"
	"strings"
)

// State is the lifecycle state of a review request
type State string

const (
	StateOpen   State = "open"
	StateDraft  State = "draft"
	StateMerged State = "merged"
	StateClosed State = "closed"
)

// CheckStatus is the combined CI status of a review request
type CheckStatus string

const (
	ChecksPending  CheckStatus = "pending"
	ChecksRunning  CheckStatus = "running"
	ChecksSuccess  CheckStatus = "success"
	ChecksFailed   CheckStatus = "failed"
	ChecksCanceled CheckStatus = "canceled"
	ChecksUnknown  CheckStatus = "unknown"
)

// MergeMethod selects how a review request is merged
type MergeMethod string

const (
	MergeSquash MergeMethod = "squash"
	MergeCommit MergeMethod = "merge"
)

// MergeOutcome reports whether a merge completed or was handed to a queue
type MergeOutcome string

const (
	Merged MergeOutcome = "merged"
	Queued MergeOutcome = "queued"
)

// ReviewRequest is a pull request or merge request
type ReviewRequest struct {
	Number    int
	Title     string
	URL       string
	Source    string
	Target    string
	State     State
	Draft     bool
	Approved  bool
	Mergeable bool
	Checks    CheckStatus
}

// CreateRequest holds the fields of a new review request
type CreateRequest struct {
	Source string
	Target string
	Title  string
	Body   string
	Draft  bool
}

// MergeOptions controls Merge
type MergeOptions struct {
	Method       MergeMethod
	DeleteBranch bool
}

// Provider is a code-review hosting service
type Provider interface {
	// Name is the service name, e.g. "GitHub"
	Name() string
	// Label is what the service calls a review request, e.g. "PR"
	Label() string
	// NumberPrefix precedes request numbers, e.g. "#"
	NumberPrefix() string

	CheckInstalled(ctx context.Context) error
	CheckAuth(ctx context.Context) error
	Whoami(ctx context.Context) (string, error)

	Create(ctx context.Context, req CreateRequest) (*ReviewRequest, error)
	View(ctx context.Context, number int) (*ReviewRequest, error)
	UpdateTarget(ctx context.Context, number int, target string) error
	// UpdateDetails changes the fields that are not nil
	UpdateDetails(ctx context.Context, number int, title, body *string) error
	Merge(ctx context.Context, number int, opts MergeOptions) (MergeOutcome, error)

	// ListForBranch returns the open requests whose source is branch, newest first
	ListForBranch(ctx context.Context, branch string) ([]int, error)
	ListOpenByAuthor(ctx context.Context, author string) ([]ReviewRequest, error)
}

// Ready reports whether a request can be merged given the approval and
// check requirements.
func (r *ReviewRequest) Ready(ignoreApproval, ignoreChecks bool) bool {
	if r.State != StateOpen || r.Draft {
		return false
	}
	if !ignoreApproval && !r.Approved {
		return false
	}
	if !ignoreChecks && r.Checks != ChecksSuccess {
		return false
	}
	return true
}

// execFunc runs a CLI and returns its stdout. A non-zero exit returns an
// error carrying stderr.
type execFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return output, &CLIError{Name: name, Args: args, Stderr: strings.TrimSpace(string(exitErr.Stderr)), Err: err}
		}
		return output, &CLIError{Name: name, Args: args, Err: err}
	}
	return output, nil
}

// CLIError is a failed gh or glab invocation
type CLIError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CLIError) Error() string {
	if e.Stderr != "" {
		return e.Name + " " + strings.Join(e.Args, " ") + ": " + e.Stderr
	}
	return e.Name + " " + strings.Join(e.Args, " ") + ": " + e.Err.Error()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// numberAfter extracts the request number following marker in output, e.g.
// "/pull/" in https://github.com/o/r/pull/12
func numberAfter(output, marker string) int {
	for _, word := range strings.Fields(output) {
		_, rest, ok := strings.Cut(word, marker)
		if !ok {
			continue
		}
		n := 0
		for _, ch := range rest {
			if ch < '0' || ch > '9' {
				break
			}
			n = n*10 + int(ch-'0')
		}
		if n > 0 {
			return n
		}
	}
	return 0
}
