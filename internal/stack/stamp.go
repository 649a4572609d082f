package stack

import (
	"context"
	"log/slog"
	"strings"
)

// autosquashPrefixes mark commits that will be folded into another entry
var autosquashPrefixes = []string{"fixup! ", "squash! ", "amend! "}

// StampMessage gives a commit message being written on a stack branch a
// fresh GG-ID. It reports false and leaves the message alone when HEAD is
// not on a stack branch, a replay is paused, auto_add_gg_ids is off, the
// message already has a GG-ID, or the commit is a fixup for another entry.
func (c *Client) StampMessage(ctx context.Context, message string) (string, bool, error) {
	branch, err := c.git.CurrentBranch()
	if err != nil || branch == "" {
		return message, false, nil
	}
	if _, _, ok := ParseStackBranch(branch); !ok {
		return message, false, nil
	}
	if op, err := c.loadPending(); err != nil || (op != nil && c.ownedHere(op)) {
		return message, false, err
	}

	cfg, err := c.store.Load(ctx)
	if err != nil {
		return message, false, err
	}
	if !cfg.Defaults.AutoAddGGIDs {
		return message, false, nil
	}

	stripped, err := c.git.StripComments(message)
	if err != nil {
		return message, false, err
	}
	if strings.TrimSpace(stripped) == "" || ExtractGGID(stripped) != "" {
		return message, false, nil
	}
	for _, prefix := range autosquashPrefixes {
		if strings.HasPrefix(stripped, prefix) {
			return message, false, nil
		}
	}

	existing := cfg.AllGGIDs()
	if s, err := c.Load(ctx, branch, ""); err == nil {
		for _, e := range s.Entries {
			if e.GGID != "" {
				existing[e.GGID] = true
			}
		}
	} else {
		slog.Debug("stamping without stack ids", slog.String("error", err.Error()))
	}

	id, err := NewGGID(existing)
	if err != nil {
		return message, false, err
	}
	slog.Debug("stamped commit message", slog.String("branch", branch), slog.String("gg_id", id))
	return SetGGID(stripped, id), true, nil
}
