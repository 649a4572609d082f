// Package app wires the clients a command needs for one invocation. Nothing
// here touches the repository until a command actually runs, so help and
// completion work outside a git checkout.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"

	"github.com/bjulian5/gg/internal/config"
	"github.com/bjulian5/gg/internal/git"
	"github.com/bjulian5/gg/internal/lock"
	"github.com/bjulian5/gg/internal/output"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/review"
	"github.com/bjulian5/gg/internal/stack"
	"github.com/bjulian5/gg/internal/ui"
)

// App holds the per-invocation clients
type App struct {
	Git     *git.Client
	Store   *config.Store
	Stacks  *stack.Client
	Confirm stack.Confirmer

	resolveOnce sync.Once
	provider    provider.Provider
	providerErr error
	resolve     func(ctx context.Context) (provider.Provider, error)
}

// Open discovers the repository from the working directory
func Open() (*App, error) {
	gitClient, err := git.NewClient()
	if err != nil {
		return nil, err
	}
	return New(gitClient, ui.NewPrompter()), nil
}

// New builds an App around an existing repository client
func New(gitClient *git.Client, confirm stack.Confirmer) *App {
	store := config.Open(gitClient.CommonDir())
	a := &App{
		Git:     gitClient,
		Store:   store,
		Confirm: confirm,
		Stacks:  stack.NewClient(gitClient, store, confirm),
	}
	a.resolve = a.resolveProvider
	a.Stacks.SetWhoami(func(ctx context.Context) (string, error) {
		p, err := a.Provider(ctx)
		if err != nil {
			return "", err
		}
		return p.Whoami(ctx)
	})
	return a
}

// WithProvider replaces provider resolution, for tests
func (a *App) WithProvider(p provider.Provider) *App {
	a.resolve = func(context.Context) (provider.Provider, error) { return p, nil }
	return a
}

// Provider resolves the hosting provider from config and the remote URL.
// The result is cached for the rest of the invocation.
func (a *App) Provider(ctx context.Context) (provider.Provider, error) {
	a.resolveOnce.Do(func() {
		a.provider, a.providerErr = a.resolve(ctx)
	})
	return a.provider, a.providerErr
}

func (a *App) resolveProvider(ctx context.Context) (provider.Provider, error) {
	cfg, err := a.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	remote, err := a.Git.RemoteName()
	if err != nil {
		return nil, err
	}
	url, err := a.Git.RemoteURL(remote)
	if err != nil {
		return nil, err
	}
	return provider.Resolve(ctx, cfg, url)
}

// Engine returns a review engine bound to the resolved provider
func (a *App) Engine(ctx context.Context) (*review.Engine, error) {
	p, err := a.Provider(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve provider: %w", err)
	}
	return review.NewEngine(a.Stacks, p, a.Confirm), nil
}

// LocalEngine returns a review engine for operations that never talk to
// the provider, such as lint
func (a *App) LocalEngine() *review.Engine {
	return review.NewEngine(a.Stacks, nil, a.Confirm)
}

// Guard runs fn while holding the repository operation lock
func (a *App) Guard(ctx context.Context, operation string, fn func() error) error {
	return lock.Guard(ctx, a.Git.CommonDir(), operation, fn)
}

// LogDir is where the rotating log file lives
func LogDir(commonDir string) string {
	return filepath.Join(commonDir, "gg", "logs")
}

// ErrReported marks a failure whose details were already printed as part of
// a result. The root command exits non-zero without printing it again.
var ErrReported = errors.New("operation did not complete")

// Report renders a result and returns ErrReported when it failed or was blocked
func Report(w io.Writer, res *output.Result, asJSON bool) error {
	if err := output.Render(w, res, asJSON); err != nil {
		return err
	}
	if res.Failed() || res.Blocked != "" {
		return ErrReported
	}
	return nil
}

// Ensure opens an App into *a unless one was already injected
func Ensure(a **App) error {
	if *a != nil {
		return nil
	}
	opened, err := Open()
	if err != nil {
		return err
	}
	*a = opened
	return nil
}
