// Package output defines the versioned result of the remote operations and
// renders it either as JSON for scripts or as a table for people.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/bjulian5/gg/internal/ui"
)

// Version is bumped whenever a field changes meaning or is removed
const Version = 1

// Action is what an operation did to one entry
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionUnchanged     Action = "unchanged"
	ActionMerged        Action = "merged"
	ActionQueued        Action = "queued"
	ActionSkipped       Action = "skipped"
	ActionBlocked       Action = "blocked"
	ActionError         Action = "error"
	ActionRewritten     Action = "rewritten"
	ActionWouldAssignID Action = "would-assign-id"
	ActionWouldMap      Action = "would-map"
	ActionMapped        Action = "mapped"
	ActionAssignedID    Action = "assigned-id"
)

// Result is the outcome of sync, reconcile, land or lint
type Result struct {
	Version           int           `json:"version"`
	Operation         string        `json:"operation"`
	Stack             string        `json:"stack"`
	Base              string        `json:"base"`
	BehindBase        int           `json:"behind_base"`
	RebasedBeforeSync bool          `json:"rebased_before_sync,omitempty"`
	Entries           []EntryResult `json:"entries"`
	Warnings          []string      `json:"warnings,omitempty"`
	// Blocked explains why the operation stopped early
	Blocked string `json:"blocked,omitempty"`
}

// EntryResult is the outcome for one entry
type EntryResult struct {
	Position int    `json:"position"`
	SHA      string `json:"sha"`
	GGID     string `json:"gg_id,omitempty"`
	Title    string `json:"title"`
	Branch   string `json:"branch,omitempty"`
	Target   string `json:"target,omitempty"`
	Action   Action `json:"action"`
	Number   int    `json:"number,omitempty"`
	URL      string `json:"url,omitempty"`
	Draft    bool   `json:"draft,omitempty"`
	Pushed   bool   `json:"pushed,omitempty"`
	Error    string `json:"error,omitempty"`
}

// New returns an empty result for an operation on a stack
func New(operation, stack, base string) *Result {
	return &Result{
		Version:   Version,
		Operation: operation,
		Stack:     stack,
		Base:      base,
		Entries:   []EntryResult{},
	}
}

// Add appends an entry result and returns a pointer to it for further edits
func (r *Result) Add(e EntryResult) *EntryResult {
	r.Entries = append(r.Entries, e)
	return &r.Entries[len(r.Entries)-1]
}

// Warn records a warning
func (r *Result) Warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Failed reports whether any entry ended in an error
func (r *Result) Failed() bool {
	for _, e := range r.Entries {
		if e.Action == ActionError {
			return true
		}
	}
	return false
}

// Render writes the result to w
func Render(w io.Writer, r *Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		return nil
	}
	return renderText(w, r)
}

func renderText(w io.Writer, r *Result) error {
	fmt.Fprintf(w, "%s %s %s\n", ui.HeaderStyle.Render(r.Operation), ui.Bold(r.Stack), ui.Dim("→ "+r.Base))

	if len(r.Entries) > 0 {
		t := ui.NewSimpleTable("#", "ENTRY", "TITLE", "TARGET", "REVIEW", "ACTION")
		for _, e := range r.Entries {
			review := ""
			if e.Number > 0 {
				review = strconv.Itoa(e.Number)
				if e.Draft {
					review += " (draft)"
				}
			}
			action := ui.StateStyle(string(e.Action)).Render(string(e.Action))
			if e.Error != "" {
				action += " " + ui.Dim(e.Error)
			}
			t.Row(
				strconv.Itoa(e.Position),
				shortSHA(e.SHA),
				ui.Truncate(e.Title, 50),
				e.Target,
				review,
				action,
			)
		}
		fmt.Fprintln(w, t.Render())
	}

	for _, warning := range r.Warnings {
		fmt.Fprintln(w, ui.WarningStyle.Render("⚠ "+warning))
	}
	if r.Blocked != "" {
		fmt.Fprintln(w, ui.ErrorStyle.Render("blocked: "+r.Blocked))
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
