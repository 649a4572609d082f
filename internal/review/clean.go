package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bjulian5/gg/internal/config"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/stack"
)

// CleanOptions controls Clean
type CleanOptions struct {
	// All considers every stack of the user, not only the current one
	All bool
	// Yes skips the confirmation prompt
	Yes bool
	// Stack names the stack to consider when All is not set; empty means
	// the current stack
	Stack string
}

// CleanReport describes what Clean did with one stack
type CleanReport struct {
	Stack    string
	Merged   bool
	Cleaned  bool
	Skipped  string
	Warnings []string
}

// Clean deletes stacks whose work has landed: the stack branch, its entry
// branches locally and on the remote, its worktree and its config. A stack
// has landed when it was synced and either nothing is left above its base
// or every entry has a review request and every request recorded for it
// is merged.
func (e *Engine) Clean(ctx context.Context, opts CleanOptions) ([]CleanReport, error) {
	if err := e.ensureNotPaused(); err != nil {
		return nil, err
	}
	cfg, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	username, err := e.stacks.Username(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var names []string
	switch {
	case opts.All:
		if names, err = e.stacks.ListStacks(ctx); err != nil {
			return nil, err
		}
	case opts.Stack != "":
		names = []string{opts.Stack}
	default:
		branch, err := e.stacks.CurrentStackBranch(ctx)
		if err != nil {
			return nil, err
		}
		_, name, _ := stack.ParseStackBranch(branch)
		names = []string{name}
	}

	remote, _ := e.git.RemoteName()
	reports := make([]CleanReport, 0, len(names))
	for _, name := range names {
		report := CleanReport{Stack: name}
		s, err := e.stacks.Load(ctx, stack.StackBranch(username, name), "")
		if err != nil {
			report.Skipped = err.Error()
			reports = append(reports, report)
			continue
		}

		report.Merged, err = e.isMerged(ctx, cfg, s, remote)
		if err != nil {
			report.Skipped = err.Error()
			reports = append(reports, report)
			continue
		}
		if !report.Merged {
			report.Skipped = "not merged"
			if n := unsynced(s); n > 0 {
				report.Skipped = fmt.Sprintf("%d of %d entries were never synced", n, s.Len())
			}
			reports = append(reports, report)
			continue
		}
		if !opts.Yes && !e.ask(fmt.Sprintf("Stack %s has landed. Delete it?", name)) {
			report.Skipped = "not confirmed; pass --yes to clean without a prompt"
			reports = append(reports, report)
			continue
		}

		if err := e.removeStack(ctx, s, remote, &report); err != nil {
			return reports, err
		}
		report.Cleaned = true
		reports = append(reports, report)
	}
	return reports, nil
}

func (e *Engine) isMerged(ctx context.Context, cfg *config.Config, s *stack.Stack, remote string) (bool, error) {
	var mapped []int
	if sc := cfg.Stack(s.Name); sc != nil {
		for _, n := range sc.MRs {
			mapped = append(mapped, n)
		}
	}
	synced := len(mapped) > 0
	if !synced && remote != "" {
		tips, err := e.git.RemoteBranches(remote, s.Branch+"--")
		if err != nil {
			return false, err
		}
		synced = len(tips) > 0
	}
	if !synced {
		return false, nil
	}
	if s.Len() == 0 {
		return true, nil
	}
	if len(mapped) == 0 || unsynced(s) > 0 {
		return false, nil
	}

	for _, n := range mapped {
		rr, err := e.provider.View(ctx, n)
		if err != nil {
			return false, fmt.Errorf("failed to view %s: %w", e.label(n), err)
		}
		if rr.State != provider.StateMerged {
			return false, nil
		}
	}
	return true, nil
}

// unsynced counts entries with no review request
func unsynced(s *stack.Stack) int {
	n := 0
	for _, entry := range s.Entries {
		if entry.Number == 0 {
			n++
		}
	}
	return n
}

func (e *Engine) removeStack(ctx context.Context, s *stack.Stack, remote string, report *CleanReport) error {
	current, err := e.stacks.CurrentStackBranch(ctx)
	if err != nil && !errors.Is(err, ggerrors.ErrNotOnStack) {
		return err
	}
	if current == s.Branch {
		if err := e.leaveStack(s, remote); err != nil {
			return err
		}
	}

	if path, ok := e.git.WorktreeFor(s.Branch); ok && path != e.git.GitRoot() {
		if err := e.git.RemoveWorktree(path); err != nil {
			return err
		}
	}

	locals, err := e.git.ListBranches(s.Branch + "--")
	if err != nil {
		return err
	}
	for _, b := range locals {
		if err := e.git.DeleteBranch(b); err != nil {
			return err
		}
	}
	if err := e.git.DeleteBranch(s.Branch); err != nil {
		return err
	}

	if remote != "" {
		tips, err := e.git.RemoteBranches(remote, s.Branch+"--")
		if err != nil {
			report.Warnings = append(report.Warnings, err.Error())
		}
		for _, tip := range tips {
			if err := e.git.DeleteRemoteBranch(remote, tip.Branch); err != nil {
				slog.Debug("remote branch delete failed", slog.String("branch", tip.Branch), slog.String("error", err.Error()))
				report.Warnings = append(report.Warnings, err.Error())
			}
		}
	}

	return e.store.Update(ctx, func(cfg *config.Config) error {
		cfg.RemoveStack(s.Name)
		return nil
	})
}

// leaveStack checks out the base so the stack branch can be deleted
func (e *Engine) leaveStack(s *stack.Stack, remote string) error {
	dirty, err := e.git.HasUncommittedChanges()
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w: cannot leave %s to delete it", ggerrors.ErrDirtyWorkingTree, s.Branch)
	}
	if e.git.BranchExists(s.Base) {
		return e.git.Checkout(s.Base)
	}
	if remote != "" && e.git.RemoteBranchExists(remote, s.Base) {
		return e.git.CreateAndCheckoutBranchAt(s.Base, remote+"/"+s.Base)
	}
	return e.git.CheckoutDetach(s.MergeBase)
}
