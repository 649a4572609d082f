package review

import (
	"context"
	"log/slog"

	"github.com/bjulian5/gg/internal/config"
	"github.com/bjulian5/gg/internal/output"
	"github.com/bjulian5/gg/internal/stack"
)

// Reconcile repairs a stack that was pushed without gg or whose metadata
// was lost. Entries without a GG-ID take the token of a remote entry branch
// whose tip has the same title, the rest get fresh tokens, and entries
// without a mapping are matched to the open review request of their
// branch. Existing mappings are never changed. With dryRun nothing is
// written and the result describes what would happen.
func (e *Engine) Reconcile(ctx context.Context, dryRun bool) (*output.Result, error) {
	if err := e.ensureNotPaused(); err != nil {
		return nil, err
	}
	s, err := e.stacks.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	res := output.New("reconcile", s.Name, s.Base)
	res.BehindBase = s.BehindBase

	remote, err := e.git.RemoteName()
	if err != nil {
		return nil, err
	}
	prefix := stack.StackBranch(s.Username, s.Name) + "--"
	refspec := "+refs/heads/" + prefix + "*:refs/remotes/" + remote + "/" + prefix + "*"
	if err := e.git.Fetch(remote, refspec); err != nil {
		res.Warn("could not fetch entry branches from %s: %v", remote, err)
	}

	recovered, err := e.recoverGGIDs(s, remote, prefix)
	if err != nil {
		return nil, err
	}

	actions := make(map[int]output.Action)
	ids := make(map[int]string)
	if missing := s.MissingGGIDs(); len(missing) > 0 {
		if dryRun {
			for _, entry := range missing {
				actions[entry.Position] = output.ActionWouldAssignID
				ids[entry.Position] = recovered[entry.Hash]
			}
		} else {
			if _, err := e.stacks.EnsureGGIDs(ctx, s, recovered); err != nil {
				return nil, err
			}
			for _, entry := range missing {
				actions[entry.Position] = output.ActionAssignedID
			}
			if s, err = e.stacks.Load(ctx, s.Branch, ""); err != nil {
				return nil, err
			}
		}
	}

	for _, entry := range s.Entries {
		ggid := entry.GGID
		if ggid == "" {
			ggid = ids[entry.Position]
		}
		er := res.Add(output.EntryResult{
			Position: entry.Position,
			SHA:      entry.Hash,
			GGID:     ggid,
			Title:    entry.Title,
			Number:   entry.Number,
			Action:   output.ActionUnchanged,
		})
		if a, ok := actions[entry.Position]; ok {
			er.Action = a
		}
		if ggid == "" || entry.Number > 0 {
			continue
		}
		er.Branch = stack.EntryBranch(s.Username, s.Name, ggid)

		numbers, err := e.provider.ListForBranch(ctx, er.Branch)
		if err != nil {
			res.Warn("could not look up %s for %s: %v", e.provider.Label(), er.Branch, err)
			continue
		}
		if len(numbers) == 0 {
			continue
		}
		er.Number = numbers[0]
		if dryRun {
			er.Action = output.ActionWouldMap
			continue
		}

		mapped := false
		err = e.store.Update(ctx, func(cfg *config.Config) error {
			if _, ok := cfg.Mapping(s.Name, ggid); ok {
				return nil
			}
			cfg.SetMapping(s.Name, ggid, numbers[0])
			mapped = true
			return nil
		})
		if err != nil {
			return nil, err
		}
		if mapped {
			er.Action = output.ActionMapped
		}
	}
	return res, nil
}

// recoverGGIDs matches entries without a GG-ID to remote entry branches by
// commit title. Each token is used at most once and never when the stack
// already has it.
func (e *Engine) recoverGGIDs(s *stack.Stack, remote, prefix string) (map[string]string, error) {
	recovered := make(map[string]string)
	if len(s.MissingGGIDs()) == 0 {
		return recovered, nil
	}

	tips, err := e.git.RemoteBranches(remote, prefix)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool)
	for _, entry := range s.Entries {
		if entry.GGID != "" {
			used[entry.GGID] = true
		}
	}

	byTitle := make(map[string]string)
	for _, tip := range tips {
		_, name, ggid, ok := stack.ParseEntryBranch(tip.Branch)
		if !ok || name != s.Name {
			continue
		}
		id, ok := stack.NormalizeGGID(ggid)
		if !ok || used[id] {
			continue
		}
		if _, dup := byTitle[tip.Commit.Title]; !dup {
			byTitle[tip.Commit.Title] = id
		}
	}

	for _, entry := range s.MissingGGIDs() {
		id, ok := byTitle[entry.Title]
		if !ok || used[id] {
			continue
		}
		recovered[entry.Hash] = id
		used[id] = true
		slog.Debug("recovered GG-ID from remote branch",
			slog.Int("position", entry.Position),
			slog.String("gg_id", id))
	}
	return recovered, nil
}
