package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/git"
	"github.com/bjulian5/gg/internal/output"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/stack"
)

// maxAssignPasses bounds the assign-then-reload loop
const maxAssignPasses = 2

// SyncOptions controls Sync
type SyncOptions struct {
	// Draft creates new review requests as drafts
	Draft bool
	// Force allows force pushes and overwriting branches changed on the remote
	Force       bool
	UpdateTitle bool
	UpdateBody  bool
	// Lint runs the configured lint commands before pushing
	Lint bool
	// NoRebaseCheck skips the behind-base check
	NoRebaseCheck bool
}

// Sync pushes one branch per entry and creates or updates its review request
func (e *Engine) Sync(ctx context.Context, opts SyncOptions) (*output.Result, error) {
	if err := e.ensureNotPaused(); err != nil {
		return nil, err
	}
	if err := e.provider.CheckInstalled(ctx); err != nil {
		return nil, err
	}
	if err := e.provider.CheckAuth(ctx); err != nil {
		return nil, err
	}

	cfg, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s, err := e.stacks.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}

	s, err = e.assignMissing(ctx, cfg, s)
	if err != nil {
		return nil, err
	}

	res := output.New("sync", s.Name, s.Base)
	res.BehindBase = s.BehindBase

	threshold := cfg.Defaults.SyncBehindThreshold
	if threshold < 1 {
		threshold = 1
	}
	if !opts.NoRebaseCheck && s.BehindBase >= threshold {
		if cfg.Defaults.SyncAutoRebase {
			rebased, err := e.stacks.Rebase(ctx, "")
			if err != nil {
				return nil, fmt.Errorf("failed to rebase before sync: %w", err)
			}
			for _, w := range rebased.Warnings {
				res.Warn("%s", w)
			}
			if s, err = e.stacks.Load(ctx, s.Branch, ""); err != nil {
				return nil, err
			}
			res.RebasedBeforeSync = true
			res.BehindBase = s.BehindBase
		} else {
			res.Warn("stack is %d commit(s) behind %s; run 'gg rebase' to update it", s.BehindBase, s.Base)
		}
	}

	if opts.Lint || cfg.Defaults.SyncAutoLint {
		linted, err := e.Lint(ctx, 0)
		if err != nil {
			return nil, err
		}
		if linted.Blocked != "" {
			res.Entries = linted.Entries
			res.Warnings = append(res.Warnings, linted.Warnings...)
			res.Blocked = "lint failed: " + linted.Blocked
			return res, nil
		}
	}

	remote, err := e.git.RemoteName()
	if err != nil {
		return nil, err
	}
	template, err := e.git.FindReviewTemplate()
	if err != nil {
		slog.Debug("could not read review template", slog.String("error", err.Error()))
	}

	failed := false
	for _, p := range Plan(s, opts.Draft) {
		er := res.Add(output.EntryResult{
			Position: p.Entry.Position,
			SHA:      p.Entry.Hash,
			GGID:     p.Entry.GGID,
			Title:    p.Entry.Title,
			Branch:   p.Branch,
			Target:   p.Target,
			Draft:    p.Draft,
			Number:   p.Entry.Number,
		})
		if failed {
			er.Action = output.ActionBlocked
			er.Error = "an entry below failed to sync"
			continue
		}

		if err := e.syncEntry(ctx, s, p, remote, template, opts, er); err != nil {
			slog.Debug("entry sync failed", slog.Int("position", p.Entry.Position), slog.String("error", err.Error()))
			er.Action = output.ActionError
			er.Error = err.Error()
			failed = true
		}
	}

	if failed {
		res.Blocked = "some entries failed to sync"
	}
	return res, nil
}

// assignMissing gives every entry a GG-ID, asking first unless
// auto_add_gg_ids is set, and returns the reloaded stack
func (e *Engine) assignMissing(ctx context.Context, cfg *config.Config, s *stack.Stack) (*stack.Stack, error) {
	for pass := 0; pass < maxAssignPasses; pass++ {
		missing := s.MissingGGIDs()
		if len(missing) == 0 {
			return s, nil
		}
		if !cfg.Defaults.AutoAddGGIDs {
			msg := fmt.Sprintf("%d commit(s) have no GG-ID. Add them now? This rewrites the stack.", len(missing))
			if !e.ask(msg) {
				return nil, fmt.Errorf("%w: %d commit(s) need a GG-ID; run 'gg reconcile' or enable auto_add_gg_ids",
					ggerrors.ErrConfirmationRequired, len(missing))
			}
		}
		if _, err := e.stacks.EnsureGGIDs(ctx, s, nil); err != nil {
			return nil, err
		}
		reloaded, err := e.stacks.Load(ctx, s.Branch, "")
		if err != nil {
			return nil, err
		}
		s = reloaded
	}
	if missing := s.MissingGGIDs(); len(missing) > 0 {
		return nil, fmt.Errorf("entry %d still has no GG-ID after assignment", missing[0].Position)
	}
	return s, nil
}

func (e *Engine) syncEntry(ctx context.Context, s *stack.Stack, p PlannedEntry, remote, template string, opts SyncOptions, er *output.EntryResult) error {
	pushed, rewritten, err := e.pushEntry(remote, p, opts.Force)
	if err != nil {
		return err
	}
	er.Pushed = pushed

	title := requestTitle(p.Entry)
	body := requestBody(s, p.Entry, template)

	if p.Entry.Number == 0 {
		rr, err := e.provider.Create(ctx, provider.CreateRequest{
			Source: p.Branch,
			Target: p.Target,
			Title:  title,
			Body:   body,
			Draft:  p.Draft,
		})
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", e.provider.Label(), err)
		}
		// persisted right away so a failure further up never orphans the request
		err = e.store.Update(ctx, func(cfg *config.Config) error {
			cfg.SetMapping(s.Name, p.Entry.GGID, rr.Number)
			return nil
		})
		if err != nil {
			return err
		}
		p.Entry.Number = rr.Number
		er.Number = rr.Number
		er.URL = rr.URL
		er.Action = output.ActionCreated
		return nil
	}

	rr, err := e.provider.View(ctx, p.Entry.Number)
	if err != nil {
		return fmt.Errorf("failed to view %s: %w", e.label(p.Entry.Number), err)
	}
	er.URL = rr.URL
	er.Draft = rr.Draft

	changed := false
	if rr.State == provider.StateMerged || rr.State == provider.StateClosed {
		er.Action = output.ActionSkipped
		er.Error = e.label(rr.Number) + " is " + string(rr.State)
		return nil
	}
	if rr.Target != p.Target {
		if err := e.provider.UpdateTarget(ctx, rr.Number, p.Target); err != nil {
			return fmt.Errorf("failed to retarget %s: %w", e.label(rr.Number), err)
		}
		changed = true
	}
	if opts.UpdateTitle || opts.UpdateBody {
		var newTitle, newBody *string
		if opts.UpdateTitle && rr.Title != title {
			newTitle = &title
		}
		if opts.UpdateBody {
			newBody = &body
		}
		if newTitle != nil || newBody != nil {
			if err := e.provider.UpdateDetails(ctx, rr.Number, newTitle, newBody); err != nil {
				return fmt.Errorf("failed to update %s: %w", e.label(rr.Number), err)
			}
			changed = true
		}
	}

	switch {
	case rewritten:
		er.Action = output.ActionRewritten
	case pushed || changed:
		er.Action = output.ActionUpdated
	default:
		er.Action = output.ActionUnchanged
	}
	return nil
}

// pushEntry points the entry branch at the entry and pushes it. A plain
// push is tried first; a non-fast-forward rejection is force-pushed with a
// lease when the remote branch holds an older version of the entry or
// force is set. It reports whether anything was pushed and whether the
// push replaced rewritten history.
func (e *Engine) pushEntry(remote string, p PlannedEntry, force bool) (pushed, rewritten bool, err error) {
	if err := e.git.CreateBranch(p.Branch, p.Entry.Hash); err != nil {
		return false, false, err
	}

	remoteRef := remote + "/" + p.Branch
	if e.git.RemoteBranchExists(remote, p.Branch) {
		if tip, err := e.git.ResolveRef(remoteRef); err == nil {
			if tip == p.Entry.Hash {
				return false, false, nil
			}
			rewritten = !e.git.IsAncestor(tip, p.Entry.Hash)
		}
	}

	err = e.git.Push(remote, p.Branch, git.PushOptions{})
	if err == nil {
		return true, false, nil
	}
	if !git.IsNonFastForward(err) || !(rewritten || force) {
		return false, false, err
	}

	slog.Debug("force pushing rewritten entry", slog.String("branch", p.Branch), slog.Bool("rewritten", rewritten))
	err = e.git.Push(remote, p.Branch, git.PushOptions{Force: true})
	if err == nil {
		return true, true, nil
	}
	if !errors.Is(err, ggerrors.ErrStaleRemote) {
		return false, false, err
	}

	if !force && !e.ask(fmt.Sprintf("%s changed on %s since the last fetch. Overwrite it?", p.Branch, remote)) {
		return false, false, err
	}
	if fetchErr := e.git.Fetch(remote, p.Branch); fetchErr != nil {
		return false, false, fetchErr
	}
	if err := e.git.Push(remote, p.Branch, git.PushOptions{Force: true}); err != nil {
		return false, false, err
	}
	return true, true, nil
}
