// Package review keeps a stack's remote branches and review requests in
// step with its local history: sync pushes and opens requests, reconcile
// recovers mappings, land merges from the bottom, clean removes landed
// stacks and lint checks every entry.
package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/git"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/stack"
)

// DefaultPollInterval is how often land re-checks a request it waits on
const DefaultPollInterval = 10 * time.Second

// Engine runs the remote operations for one invocation
type Engine struct {
	git      *git.Client
	stacks   *stack.Client
	store    *config.Store
	provider provider.Provider
	confirm  stack.Confirmer

	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	pollInterval time.Duration
}

// NewEngine creates an engine on top of a stack client
func NewEngine(stacks *stack.Client, p provider.Provider, confirm stack.Confirmer) *Engine {
	return &Engine{
		git:          stacks.Git(),
		stacks:       stacks,
		store:        stacks.Store(),
		provider:     p,
		confirm:      confirm,
		now:          time.Now,
		sleep:        sleepContext,
		pollInterval: DefaultPollInterval,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ensureNotPaused fails while a replay is paused in any worktree
func (e *Engine) ensureNotPaused() error {
	status, err := e.stacks.Status()
	if err != nil {
		return err
	}
	if !status.Paused {
		return nil
	}
	inProgress := &ggerrors.OperationInProgressError{Kind: status.Kind}
	if !status.Here {
		inProgress.Worktree = status.Worktree
	}
	return inProgress
}

// ask confirms a step, treating a failed prompt as a no
func (e *Engine) ask(message string) bool {
	if e.confirm == nil {
		return false
	}
	ok, err := e.confirm.Confirm(message)
	if err != nil {
		slog.Debug("confirmation failed", slog.String("error", err.Error()))
		return false
	}
	return ok
}

func (e *Engine) label(number int) string {
	return e.provider.Label() + " " + e.provider.NumberPrefix() + itoa(number)
}
