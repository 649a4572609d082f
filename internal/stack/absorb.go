package stack

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/git"
)

// DefaultAbsorbMaxStack is how many of the newest entries absorb considers
const DefaultAbsorbMaxStack = 10

// AbsorbOptions controls Absorb
type AbsorbOptions struct {
	// MaxStack limits the candidates to the newest N entries. 0 uses the
	// configured default and -1 removes the limit.
	MaxStack int
	// WholeFile assigns every hunk of a file to the newest entry that touched it
	WholeFile bool
	// OneFixupPerCommit creates one commit per target entry instead of per hunk
	OneFixupPerCommit bool
	// Squash creates "squash!" commits instead of "fixup!" commits
	Squash bool
	// AndRebase folds the fixups into their targets right away
	AndRebase bool
	DryRun    bool
}

// Assignment is the absorb decision for one staged hunk
type Assignment struct {
	File   string
	Hunk   git.Hunk
	Target *Entry
	Reason string
}

// Fixup is a commit created by absorb
type Fixup struct {
	Hash   string
	Title  string
	Target *Entry
	Hunks  int
}

// AbsorbResult is the outcome of Absorb
type AbsorbResult struct {
	Assignments []Assignment
	Fixups      []Fixup
	Warnings    []string
	Replay      *ReplayResult
}

// Absorbed counts the hunks that found a target
func (r *AbsorbResult) Absorbed() int {
	n := 0
	for _, a := range r.Assignments {
		if a.Target != nil {
			n++
		}
	}
	return n
}

// Absorb distributes staged hunks into fixup commits for the entries that
// last touched the affected lines. Hunks without a target stay staged.
func (c *Client) Absorb(ctx context.Context, opts AbsorbOptions) (*AbsorbResult, error) {
	if err := c.ensureClean(); err != nil {
		return nil, err
	}
	s, err := c.Load(ctx, "", "")
	if err != nil {
		return nil, err
	}
	if !s.AtTip() {
		return nil, fmt.Errorf("absorb needs HEAD at the top of the stack, run 'gg last' first")
	}
	if s.Len() == 0 {
		return nil, fmt.Errorf("%w: stack %s has no entries", ggerrors.ErrNothingToDo, s.Name)
	}

	files, err := c.git.StagedDiff()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: nothing staged to absorb", ggerrors.ErrNothingToDo)
	}

	maxStack := opts.MaxStack
	if maxStack == 0 {
		cfg, err := c.store.Load(ctx)
		if err != nil {
			return nil, err
		}
		maxStack = cfg.Defaults.AbsorbMaxStack
		if maxStack == 0 {
			maxStack = DefaultAbsorbMaxStack
		}
	}
	candidates := s.Entries
	if maxStack > 0 && len(candidates) > maxStack {
		candidates = candidates[len(candidates)-maxStack:]
	}

	res := &AbsorbResult{}
	a := &attributor{git: c.git, candidates: candidates}
	for _, f := range files {
		assignments, warning := a.assign(f, opts.WholeFile)
		res.Assignments = append(res.Assignments, assignments...)
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
		}
	}
	for _, as := range res.Assignments {
		if as.Target == nil && as.Reason != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s %s left staged: %s", as.File, as.Hunk.HeaderLine(), as.Reason))
		}
	}

	if opts.DryRun || res.Absorbed() == 0 {
		return res, nil
	}

	if err := c.commitFixups(s, files, res, opts); err != nil {
		return nil, err
	}

	if opts.AndRebase {
		replay, err := c.foldFixups(ctx, s, res)
		if err != nil {
			return res, err
		}
		res.Replay = replay
	}
	return res, nil
}

// attributor finds the entry each hunk belongs to
type attributor struct {
	git        *git.Client
	candidates []*Entry
	touched    map[string][]string
}

func (a *attributor) byHash(hash string) *Entry {
	for _, e := range a.candidates {
		if e.Hash == hash {
			return e
		}
	}
	return nil
}

func (a *attributor) assign(f git.FileDiff, wholeFile bool) ([]Assignment, string) {
	unmatched := func(reason string) []Assignment {
		out := make([]Assignment, 0, len(f.Hunks))
		for _, h := range f.Hunks {
			out = append(out, Assignment{File: f.Path, Hunk: h, Reason: reason})
		}
		return out
	}

	switch {
	case f.IsBinary:
		return unmatched(""), fmt.Sprintf("%s is binary and was left staged", f.Path)
	case f.IsNew:
		return unmatched(""), fmt.Sprintf("%s is a new file and was left staged", f.Path)
	}

	if wholeFile {
		target := a.lastToTouch(f.Path)
		if target == nil {
			return unmatched("no entry in range touched this file"), ""
		}
		out := make([]Assignment, 0, len(f.Hunks))
		for _, h := range f.Hunks {
			out = append(out, Assignment{File: f.Path, Hunk: h, Target: target})
		}
		return out, ""
	}

	lineCount := -1
	out := make([]Assignment, 0, len(f.Hunks))
	for _, h := range f.Hunks {
		start, end := h.OldStart, h.OldStart+h.OldCount-1
		if h.OldCount == 0 {
			// pure insertion after line OldStart: look at both neighbours
			if lineCount < 0 {
				lineCount = a.git.LineCount("HEAD", f.Path)
			}
			start, end = max(h.OldStart, 1), min(h.OldStart+1, lineCount)
		}

		hashes, err := a.git.BlameLines("HEAD", f.Path, start, end)
		if err != nil {
			slog.Debug("blame failed", slog.String("file", f.Path), slog.String("error", err.Error()))
		}

		var target *Entry
		for _, hash := range hashes {
			if e := a.byHash(hash); e != nil && (target == nil || e.Position > target.Position) {
				target = e
			}
		}
		if target == nil {
			out = append(out, Assignment{File: f.Path, Hunk: h, Reason: "lines were not last changed by an entry in range"})
			continue
		}
		out = append(out, Assignment{File: f.Path, Hunk: h, Target: target})
	}
	return out, ""
}

// lastToTouch returns the newest candidate whose commit changed path
func (a *attributor) lastToTouch(path string) *Entry {
	if a.touched == nil {
		a.touched = make(map[string][]string)
	}
	for i := len(a.candidates) - 1; i >= 0; i-- {
		e := a.candidates[i]
		files, ok := a.touched[e.Hash]
		if !ok {
			var err error
			files, err = a.git.FilesChanged(e.Hash)
			if err != nil {
				slog.Debug("failed to list files", slog.String("commit", e.Hash), slog.String("error", err.Error()))
			}
			a.touched[e.Hash] = files
		}
		if slices.Contains(files, path) {
			return e
		}
	}
	return nil
}

// fixupGroup is the set of hunks that go into one fixup commit
type fixupGroup struct {
	target *Entry
	hunks  []Assignment
}

func groupAssignments(assignments []Assignment, perCommit bool) []fixupGroup {
	var groups []fixupGroup
	index := make(map[int]int)
	for _, as := range assignments {
		if as.Target == nil {
			continue
		}
		if !perCommit {
			groups = append(groups, fixupGroup{target: as.Target, hunks: []Assignment{as}})
			continue
		}
		if i, ok := index[as.Target.Position]; ok {
			groups[i].hunks = append(groups[i].hunks, as)
			continue
		}
		index[as.Target.Position] = len(groups)
		groups = append(groups, fixupGroup{target: as.Target, hunks: []Assignment{as}})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].target.Position < groups[j].target.Position
	})
	return groups
}

// commitFixups writes one commit per group on top of HEAD. Each commit is
// built in a throwaway index from the previous commit's tree, so the real
// index keeps every staged change and ends up holding only the hunks that
// were not absorbed.
func (c *Client) commitFixups(s *Stack, files []git.FileDiff, res *AbsorbResult, opts AbsorbOptions) error {
	byPath := make(map[string]git.FileDiff, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	prefix := "fixup! "
	if opts.Squash {
		prefix = "squash! "
	}

	head := s.Tip
	tree, err := c.treeOf(head)
	if err != nil {
		return err
	}

	applied := make(map[string][]git.Hunk)
	for _, g := range groupAssignments(res.Assignments, opts.OneFixupPerCommit) {
		patch := buildPatch(byPath, g.hunks, applied)

		newTree, err := c.git.ApplyToTree(tree, patch)
		if err != nil {
			return err
		}
		title := prefix + g.target.Title
		hash, err := c.git.CommitTree(newTree, head, title+"\n", nil)
		if err != nil {
			return err
		}

		for _, as := range g.hunks {
			applied[as.File] = append(applied[as.File], as.Hunk)
		}
		res.Fixups = append(res.Fixups, Fixup{Hash: hash, Title: title, Target: g.target, Hunks: len(g.hunks)})
		head, tree = hash, newTree
		slog.Debug("absorb fixup", slog.String("commit", hash), slog.Int("target", g.target.Position), slog.Int("hunks", len(g.hunks)))
	}

	if opts.AndRebase {
		return nil
	}
	if s.OnBranch {
		return c.git.UpdateRef(s.Branch, head, s.Tip, "gg absorb")
	}
	return c.git.MoveHead(head, s.Tip, "gg absorb")
}

func (c *Client) treeOf(ref string) (string, error) {
	commit, err := c.git.GetCommit(ref)
	if err != nil {
		return "", err
	}
	return commit.Tree, nil
}

// buildPatch renders hunks as one patch against a tree that already has the
// hunks in applied. Old-side starts shift by the hunks applied earlier in
// the file; new-side starts also shift by the hunks earlier in this patch.
func buildPatch(byPath map[string]git.FileDiff, hunks []Assignment, applied map[string][]git.Hunk) string {
	var order []string
	perFile := make(map[string][]git.Hunk)
	for _, as := range hunks {
		if _, ok := perFile[as.File]; !ok {
			order = append(order, as.File)
		}
		perFile[as.File] = append(perFile[as.File], as.Hunk)
	}

	var patch string
	for _, path := range order {
		f := byPath[path]
		selected := perFile[path]
		sort.Slice(selected, func(i, j int) bool { return selected[i].OldStart < selected[j].OldStart })

		shifted := make([]git.Hunk, 0, len(selected))
		inPatch := 0
		for _, h := range selected {
			oldStart := h.OldStart + deltaBefore(applied[path], h.OldStart)
			adj := h.NewStart - h.OldStart - deltaBefore(f.Hunks, h.OldStart)

			out := h
			out.OldStart = oldStart
			out.NewStart = oldStart + inPatch + adj
			shifted = append(shifted, out)
			inPatch += h.Delta()
		}
		patch += f.Patch(shifted)
	}
	return patch
}

// deltaBefore sums the line count change of the hunks that start before line
func deltaBefore(hunks []git.Hunk, line int) int {
	d := 0
	for _, h := range hunks {
		if h.OldStart < line {
			d += h.Delta()
		}
	}
	return d
}

// foldFixups replays the stack from below the oldest target, folding each
// fixup into its target.
func (c *Client) foldFixups(ctx context.Context, s *Stack, res *AbsorbResult) (*ReplayResult, error) {
	last := res.Fixups[len(res.Fixups)-1].Hash

	originalHead, cursorHash, cursorGGID, err := c.headState(s)
	if err != nil {
		return nil, err
	}
	patch, err := c.git.DiffBinary(s.Tip, last)
	if err != nil {
		return nil, err
	}

	// HEAD goes to the fixups, detached, so the staged remainder can be
	// stashed against them and the branch stays put until the replay ends
	if s.OnBranch {
		if err := c.git.CheckoutDetach(s.Tip); err != nil {
			return nil, err
		}
	}
	if err := c.git.MoveHead(last, s.Tip, "gg absorb"); err != nil {
		return nil, err
	}
	stashed := false
	if dirty, err := c.git.HasUncommittedChanges(); err != nil {
		return nil, err
	} else if dirty {
		if err := c.git.Stash("gg absorb"); err != nil {
			return nil, err
		}
		stashed = true
	}

	oldest := res.Fixups[0].Target.Position
	for _, f := range res.Fixups {
		oldest = min(oldest, f.Target.Position)
	}

	var steps []ReplayStep
	for _, e := range s.Entries[oldest-1:] {
		steps = append(steps, ReplayStep{Hash: e.Hash, Title: e.Title})
		for _, f := range res.Fixups {
			if f.Target == e {
				steps = append(steps, ReplayStep{Hash: f.Hash, Title: f.Title, Fold: true})
			}
		}
	}

	onto := s.Entry(oldest).Parent
	return c.Replay(ctx, ReplayPlan{
		Kind:         "absorb",
		Branch:       s.Branch,
		OriginalTip:  s.Tip,
		OriginalHead: originalHead,
		Onto:         onto,
		Steps:        steps,
		CursorHash:   cursorHash,
		CursorGGID:   cursorGGID,
		RestorePatch: patch,
		Stashed:      stashed,
	})
}
