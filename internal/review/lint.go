package review

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/output"
)

// Lint runs every configured lint command on each entry from the bottom,
// up to position until (0 for all), and stops at the first failure. HEAD is
// detached at each entry while its commands run and restored afterwards.
// History is never rewritten.
func (e *Engine) Lint(ctx context.Context, until int) (res *output.Result, err error) {
	cfg, err := e.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := e.ensureNotPaused(); err != nil {
		return nil, err
	}

	s, err := e.stacks.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	res = output.New("lint", s.Name, s.Base)
	res.BehindBase = s.BehindBase

	commands := cfg.Defaults.Lint
	if len(commands) == 0 {
		res.Warn("no lint commands configured; add them to defaults.lint in %s", e.store.Path())
		return res, nil
	}
	if until <= 0 || until > s.Len() {
		until = s.Len()
	}

	st, err := e.git.Status()
	if err != nil {
		return nil, err
	}
	if len(st.Staged) > 0 || len(st.Unstaged) > 0 || len(st.Conflicts) > 0 {
		return nil, fmt.Errorf("%w: commit or stash your changes before linting", ggerrors.ErrDirtyWorkingTree)
	}

	restore, err := e.headRestorer()
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := restore(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	for _, entry := range s.Entries[:until] {
		er := res.Add(output.EntryResult{
			Position: entry.Position,
			SHA:      entry.Hash,
			GGID:     entry.GGID,
			Title:    entry.Title,
			Number:   entry.Number,
			Action:   output.ActionUnchanged,
		})
		if err := e.git.CheckoutDetach(entry.Hash); err != nil {
			return res, err
		}
		for _, command := range commands {
			if out, err := e.runLint(ctx, command); err != nil {
				er.Action = output.ActionError
				er.Error = fmt.Sprintf("%s: %s", command, lastLine(out, err))
				res.Blocked = fmt.Sprintf("entry %d failed %q", entry.Position, command)
				return res, nil
			}
		}
	}
	return res, nil
}

func (e *Engine) runLint(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = e.git.GitRoot()
	out, err := cmd.CombinedOutput()
	slog.Debug("lint command", slog.String("command", command), slog.Bool("ok", err == nil))
	return string(out), err
}

// headRestorer remembers HEAD and returns a function putting it back
func (e *Engine) headRestorer() (func() error, error) {
	branch, err := e.git.CurrentBranch()
	if err != nil {
		return nil, err
	}
	if branch != "" {
		return func() error { return e.git.Checkout(branch) }, nil
	}
	head, err := e.git.HeadCommit()
	if err != nil {
		return nil, err
	}
	return func() error { return e.git.CheckoutDetach(head) }, nil
}

func lastLine(out string, err error) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if last := strings.TrimSpace(lines[len(lines)-1]); last != "" {
		return last
	}
	return err.Error()
}
