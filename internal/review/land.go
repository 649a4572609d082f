package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/output"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/stack"
)

// LandOptions controls Land
type LandOptions struct {
	// All lands every ready entry instead of only the lowest
	All    bool
	Method provider.MergeMethod
	// Wait polls requests that are not ready yet, and queued merges, until
	// they are ready or merged
	Wait           bool
	Timeout        time.Duration
	IgnoreApproval bool
	IgnoreChecks   bool
	// Clean removes the stack once every entry has landed
	Clean bool
}

// errBlocked stops the landing loop with a reason for the result
type errBlocked struct {
	reason string
}

func (e *errBlocked) Error() string {
	return e.reason
}

// Land merges review requests from the bottom of the stack. It stops at
// the first entry that cannot be merged and returns what it completed
// together with the reason. After each merge the next entry's request is
// retargeted to the base.
func (e *Engine) Land(ctx context.Context, opts LandOptions) (*output.Result, error) {
	if err := e.ensureNotPaused(); err != nil {
		return nil, err
	}
	cfg, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if opts.Method == "" {
		opts.Method = provider.MergeMethod(cfg.Defaults.LandMergeMethod)
	}
	if opts.Method != provider.MergeSquash && opts.Method != provider.MergeCommit {
		opts.Method = provider.MergeSquash
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(cfg.Defaults.LandWaitTimeoutMinutes) * time.Minute
	}

	s, err := e.stacks.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	res := output.New("land", s.Name, s.Base)
	res.BehindBase = s.BehindBase
	if s.Len() == 0 {
		res.Blocked = "stack has no entries"
		return res, nil
	}

	landedAll := true
	deadline := e.now().Add(opts.Timeout)
	for i, entry := range s.Entries {
		er := res.Add(output.EntryResult{
			Position: entry.Position,
			SHA:      entry.Hash,
			GGID:     entry.GGID,
			Title:    entry.Title,
			Branch:   s.EntryBranch(entry),
			Number:   entry.Number,
		})

		action, err := e.landEntry(ctx, entry, s.Base, i == 0, opts, deadline, er)
		if err != nil {
			var blocked *errBlocked
			if errors.As(err, &blocked) {
				er.Action = output.ActionBlocked
				er.Error = blocked.reason
				res.Blocked = fmt.Sprintf("entry %d: %s", entry.Position, blocked.reason)
				landedAll = false
				break
			}
			er.Action = output.ActionError
			er.Error = err.Error()
			res.Blocked = fmt.Sprintf("entry %d: %v", entry.Position, err)
			return res, err
		}
		er.Action = action

		if action == output.ActionQueued {
			landedAll = false
			if i < s.Len()-1 {
				res.Blocked = fmt.Sprintf("entry %d was added to the merge queue; land the rest once it merges", entry.Position)
			}
			break
		}
		if action == output.ActionSkipped {
			// the next entry is retargeted when it is viewed
			continue
		}

		if next := s.Entry(entry.Position + 1); next != nil && next.Number > 0 {
			if err := e.provider.UpdateTarget(ctx, next.Number, s.Base); err != nil {
				res.Blocked = fmt.Sprintf("entry %d: could not retarget %s to %s: %v", next.Position, e.label(next.Number), s.Base, err)
				landedAll = false
				break
			}
		}
		if !opts.All && i < s.Len()-1 {
			landedAll = false
			break
		}
	}

	if landedAll && (opts.Clean || cfg.Defaults.LandAutoClean) {
		if _, err := e.Clean(ctx, CleanOptions{Yes: true, Stack: s.Name}); err != nil {
			res.Warn("landed, but could not clean the stack: %v", err)
		}
	}
	return res, nil
}

// landEntry merges one entry, returning merged, queued or skipped. Every
// entry but the first must target base before it merges; one still
// targeting its predecessor's branch is retargeted first.
func (e *Engine) landEntry(ctx context.Context, entry *stack.Entry, base string, first bool, opts LandOptions, deadline time.Time, er *output.EntryResult) (output.Action, error) {
	if entry.Number == 0 {
		return "", &errBlocked{reason: "not synced; run 'gg sync' first"}
	}

	rr, err := e.provider.View(ctx, entry.Number)
	if err != nil {
		return "", fmt.Errorf("failed to view %s: %w", e.label(entry.Number), err)
	}
	er.URL = rr.URL
	er.Target = rr.Target
	er.Draft = rr.Draft

	if rr.State == provider.StateMerged {
		return output.ActionSkipped, nil
	}
	if !first && rr.Target != base {
		if err := e.provider.UpdateTarget(ctx, entry.Number, base); err != nil {
			return "", &errBlocked{reason: fmt.Sprintf("targets %s instead of %s and could not be retargeted: %v", rr.Target, base, err)}
		}
		rr.Target = base
		er.Target = base
	}
	if reason := notReady(rr, opts); reason != "" {
		if !opts.Wait || !recoverable(rr, opts) {
			return "", &errBlocked{reason: reason}
		}
		rr, err = e.waitFor(ctx, entry.Number, deadline, opts, func(rr *provider.ReviewRequest) bool {
			return rr.State == provider.StateMerged || notReady(rr, opts) == ""
		})
		if err != nil {
			return "", err
		}
		if rr.State == provider.StateMerged {
			return output.ActionSkipped, nil
		}
	}

	slog.Debug("merging", slog.Int("number", entry.Number), slog.String("method", string(opts.Method)))
	outcome, err := e.provider.Merge(ctx, entry.Number, provider.MergeOptions{Method: opts.Method})
	if err != nil {
		return "", fmt.Errorf("failed to merge %s: %w", e.label(entry.Number), err)
	}
	if outcome == provider.Queued {
		if !opts.Wait {
			return output.ActionQueued, nil
		}
		_, err := e.waitFor(ctx, entry.Number, deadline, opts, func(rr *provider.ReviewRequest) bool {
			return rr.State == provider.StateMerged
		})
		if err != nil {
			return "", err
		}
	}
	return output.ActionMerged, nil
}

// waitFor polls a review request until done returns true. It gives up when
// the request is closed or its checks fail, and fails with ErrLandTimeout
// at the deadline.
func (e *Engine) waitFor(ctx context.Context, number int, deadline time.Time, opts LandOptions, done func(*provider.ReviewRequest) bool) (*provider.ReviewRequest, error) {
	for {
		if !e.now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ggerrors.ErrLandTimeout, e.label(number))
		}
		if err := e.sleep(ctx, e.pollInterval); err != nil {
			return nil, err
		}
		rr, err := e.provider.View(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("failed to view %s: %w", e.label(number), err)
		}
		if done(rr) {
			return rr, nil
		}
		if !recoverable(rr, opts) {
			return nil, &errBlocked{reason: notReady(rr, opts)}
		}
		slog.Debug("waiting", slog.Int("number", number), slog.String("checks", string(rr.Checks)))
	}
}

// notReady explains why a request cannot be merged, or returns ""
func notReady(rr *provider.ReviewRequest, opts LandOptions) string {
	switch {
	case rr.State == provider.StateClosed:
		return "closed"
	case rr.Draft || rr.State == provider.StateDraft:
		return "draft"
	case !opts.IgnoreApproval && !rr.Approved:
		return "not approved"
	case !opts.IgnoreChecks && rr.Checks != provider.ChecksSuccess:
		return "checks " + string(rr.Checks)
	}
	return ""
}

// recoverable reports whether waiting could make the request ready
func recoverable(rr *provider.ReviewRequest, opts LandOptions) bool {
	switch {
	case rr.State == provider.StateClosed, rr.Draft, rr.State == provider.StateDraft:
		return false
	case opts.IgnoreChecks:
		return true
	case rr.Checks == provider.ChecksFailed, rr.Checks == provider.ChecksCanceled:
		return false
	}
	return true
}
