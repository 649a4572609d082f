package ls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/bjulian5/gg/internal/app"
	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/provider"
	"github.com/bjulian5/gg/internal/stack"
	"github.com/bjulian5/gg/internal/ui"
)

// Command lists stacks and their entries
type Command struct {
	// Flags
	All  bool
	JSON bool

	// Clients (can be mocked in tests)
	App *app.App
}

// Register registers the command with cobra
func (c *Command) Register(parent *cobra.Command) {
	command := &cobra.Command{
		Use:   "ls",
		Short: "Show the current stack",
		Long: `Show the entries of the current stack oldest first, with their review
request numbers and states. Outside a stack, or with --all, every stack of
the user is shown.

Example:
  gg ls          # current stack
  gg ls --all    # every stack
  gg ls --json   # machine readable`,
		Args: cobra.NoArgs,
		PreRunE: func(cobraCmd *cobra.Command, args []string) error {
			return app.Ensure(&c.App)
		},
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			c.JSON, _ = cobraCmd.Flags().GetBool("json")
			return c.Run(cobraCmd.Context())
		},
	}

	command.Flags().BoolVarP(&c.All, "all", "a", false, "Show every stack")

	parent.AddCommand(command)
}

type entryListing struct {
	Position int    `json:"position"`
	SHA      string `json:"sha"`
	GGID     string `json:"gg_id,omitempty"`
	Title    string `json:"title"`
	Number   int    `json:"number,omitempty"`
	State    string `json:"state,omitempty"`
}

type stackListing struct {
	Name       string         `json:"name"`
	Branch     string         `json:"branch"`
	Base       string         `json:"base"`
	Current    bool           `json:"current"`
	BehindBase int            `json:"behind_base"`
	Entries    []entryListing `json:"entries"`
}

// Run executes the command
func (c *Command) Run(ctx context.Context) error {
	current, err := c.App.Stacks.CurrentStackBranch(ctx)
	if err != nil && !errors.Is(err, ggerrors.ErrNotOnStack) {
		return err
	}

	branches := []string{current}
	if c.All || current == "" {
		branches, err = c.allBranches(ctx)
		if err != nil {
			return err
		}
	}

	if len(branches) == 0 {
		if c.JSON {
			return c.printJSON([]stackListing{})
		}
		ui.Info("No stacks yet. Create one with 'gg co <name>'.")
		return nil
	}

	var stacks []*stack.Stack
	for _, branch := range branches {
		s, err := c.App.Stacks.Load(ctx, branch, "")
		if err != nil {
			if len(branches) == 1 {
				return err
			}
			ui.Warningf("failed to load %s: %v", branch, err)
			continue
		}
		stacks = append(stacks, s)
	}

	states, prefix := c.reviewStates(ctx, stacks)

	if c.JSON {
		listings := make([]stackListing, 0, len(stacks))
		for _, s := range stacks {
			listings = append(listings, listing(s, s.Branch == current, states[s.Branch]))
		}
		return c.printJSON(listings)
	}

	for i, s := range stacks {
		if i > 0 {
			ui.Print("")
		}
		ui.Print(ui.RenderStackTree(s, ui.TreeOptions{
			Current:      s.Branch == current,
			NumberPrefix: prefix,
			States:       states[s.Branch],
		}))
	}
	return nil
}

func (c *Command) allBranches(ctx context.Context) ([]string, error) {
	names, err := c.App.Stacks.ListStacks(ctx)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, nil
	}
	cfg, err := c.App.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	username, err := c.App.Stacks.Username(ctx, cfg)
	if err != nil {
		return nil, err
	}
	branches := make([]string, 0, len(names))
	for _, name := range names {
		branches = append(branches, stack.StackBranch(username, name))
	}
	return branches, nil
}

// reviewStates looks up the state of every mapped entry, keyed by stack
// branch and position. The user's open requests come from one listing;
// only entries missing from it are viewed one by one. Provider failures
// leave the states empty.
func (c *Command) reviewStates(ctx context.Context, stacks []*stack.Stack) (map[string]map[int]string, string) {
	states := make(map[string]map[int]string)

	synced := false
	for _, s := range stacks {
		if s.SyncedCount() > 0 {
			synced = true
		}
	}
	if !synced {
		return states, "#"
	}

	p, err := c.App.Provider(ctx)
	if err != nil {
		slog.Debug("review states unavailable", slog.String("error", err.Error()))
		return states, "#"
	}

	open := c.openRequests(ctx, p)
	for _, s := range stacks {
		byPos := make(map[int]string)
		for _, e := range s.Entries {
			if !e.IsSynced() {
				continue
			}
			if rr, ok := open[e.Number]; ok {
				byPos[e.Position] = stateOf(rr)
				continue
			}
			rr, err := p.View(ctx, e.Number)
			if err != nil {
				slog.Debug("failed to view review request", slog.Int("number", e.Number), slog.String("error", err.Error()))
				continue
			}
			byPos[e.Position] = stateOf(rr)
		}
		states[s.Branch] = byPos
	}
	return states, p.NumberPrefix()
}

// openRequests returns the open requests authored by the signed-in user
func (c *Command) openRequests(ctx context.Context, p provider.Provider) map[int]*provider.ReviewRequest {
	author, err := p.Whoami(ctx)
	if err != nil {
		slog.Debug("failed to resolve the signed-in user", slog.String("error", err.Error()))
		return nil
	}
	requests, err := p.ListOpenByAuthor(ctx, author)
	if err != nil {
		slog.Debug("failed to list open review requests", slog.String("author", author), slog.String("error", err.Error()))
		return nil
	}
	open := make(map[int]*provider.ReviewRequest, len(requests))
	for i := range requests {
		open[requests[i].Number] = &requests[i]
	}
	return open
}

func stateOf(rr *provider.ReviewRequest) string {
	if rr.State == provider.StateOpen && rr.Draft {
		return "draft"
	}
	return string(rr.State)
}

func listing(s *stack.Stack, current bool, states map[int]string) stackListing {
	l := stackListing{
		Name:       s.Name,
		Branch:     s.Branch,
		Base:       s.Base,
		Current:    current,
		BehindBase: s.BehindBase,
		Entries:    make([]entryListing, 0, s.Len()),
	}
	for _, e := range s.Entries {
		l.Entries = append(l.Entries, entryListing{
			Position: e.Position,
			SHA:      e.Hash,
			GGID:     e.GGID,
			Title:    e.Title,
			Number:   e.Number,
			State:    states[e.Position],
		})
	}
	return l
}

func (c *Command) printJSON(listings []stackListing) error {
	enc := json.NewEncoder(ui.Stdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(listings); err != nil {
		return fmt.Errorf("failed to encode stacks: %w", err)
	}
	return nil
}
