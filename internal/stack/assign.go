package stack

import (
	"context"
	"fmt"
	"log/slog"
)

// EnsureGGIDs gives every entry of the stack a GG-ID. Entries from the
// first one missing a GG-ID are recreated with commit-tree, keeping trees
// and authors, and the branch moves to the new tip in a single
// compare-and-swap. recovered supplies tokens by original commit hash;
// every other missing entry gets a fresh one. It returns how many entries
// were assigned.
func (c *Client) EnsureGGIDs(ctx context.Context, s *Stack, recovered map[string]string) (int, error) {
	if err := c.ensureClean(); err != nil {
		return 0, err
	}

	first := -1
	for i, e := range s.Entries {
		if e.GGID == "" {
			first = i
			break
		}
	}
	if first < 0 {
		return 0, nil
	}

	cfg, err := c.store.Load(ctx)
	if err != nil {
		return 0, err
	}
	existing := cfg.AllGGIDs()
	for _, e := range s.Entries {
		if e.GGID != "" {
			existing[e.GGID] = true
		}
	}

	parent := s.Entries[first].Parent
	if first == 0 {
		parent = s.MergeBase
	}

	assigned := 0
	rewritten := make(map[string]string)
	for _, e := range s.Entries[first:] {
		commit, err := c.git.GetCommit(e.Hash)
		if err != nil {
			return 0, err
		}

		message := commit.Message
		if e.GGID == "" {
			id := recovered[e.Hash]
			if id == "" {
				id, err = NewGGID(existing)
				if err != nil {
					return 0, err
				}
			}
			existing[id] = true
			message = SetGGID(message, id)
			assigned++
		}

		hash, err := c.git.CommitTree(commit.Tree, parent, message, &commit)
		if err != nil {
			return 0, err
		}
		rewritten[e.Hash] = hash
		parent = hash
	}

	if err := c.git.UpdateRef(s.Branch, parent, s.Tip, "gg assign GG-IDs"); err != nil {
		return 0, fmt.Errorf("failed to assign GG-IDs: %w", err)
	}

	if !s.OnBranch {
		if e := s.Current(); e != nil {
			if target, ok := rewritten[e.Hash]; ok {
				if err := c.git.CheckoutDetach(target); err != nil {
					return assigned, err
				}
				c.rememberStack(s.Branch)
			}
		}
	}

	slog.Debug("assigned GG-IDs", slog.String("branch", s.Branch), slog.Int("count", assigned))
	return assigned, nil
}
