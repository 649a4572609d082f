package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ktr0731/go-fuzzyfinder"

	"github.com/bjulian5/gg/internal/stack"
)

func init() {
	// Detect the terminal before the finder takes over the screen, otherwise
	// lipgloss' color queries leak escape sequences into the finder input
	_ = lipgloss.HasDarkBackground()
}

// ErrSelectionCanceled is returned when the user leaves the finder
var ErrSelectionCanceled = errors.New("selection canceled")

// SelectEntry lets the user pick an entry of the stack
func SelectEntry(s *stack.Stack, prompt string) (*stack.Entry, error) {
	if s.Len() == 0 {
		return nil, fmt.Errorf("stack %s has no entries", s.Name)
	}
	entries := newestFirst(s.Entries)
	idx, err := find(entries, prompt)
	if err != nil {
		return nil, err
	}
	return entries[idx], nil
}

// SelectOrder builds a reorder permutation by asking for the entry at each
// position, bottom first. The result lists original positions.
func SelectOrder(s *stack.Stack) ([]int, error) {
	remaining := append([]*stack.Entry(nil), s.Entries...)
	order := make([]int, 0, len(remaining))
	for len(remaining) > 1 {
		idx, err := find(remaining, fmt.Sprintf("position %d> ", len(order)+1))
		if err != nil {
			return nil, err
		}
		order = append(order, remaining[idx].Position)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	if len(remaining) == 1 {
		order = append(order, remaining[0].Position)
	}
	return order, nil
}

func find(entries []*stack.Entry, prompt string) (int, error) {
	os.Stdout.Sync()
	os.Stderr.Sync()

	idx, err := fuzzyfinder.Find(
		entries,
		func(i int) string {
			return finderLine(entries[i])
		},
		fuzzyfinder.WithPromptString(prompt),
		fuzzyfinder.WithPreviewWindow(func(i, w, h int) string {
			if i < 0 {
				return ""
			}
			return entryPreview(entries[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return 0, ErrSelectionCanceled
		}
		return 0, fmt.Errorf("failed to select entry: %w", err)
	}
	return idx, nil
}

func newestFirst(entries []*stack.Entry) []*stack.Entry {
	out := make([]*stack.Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

func finderLine(e *stack.Entry) string {
	id := e.GGID
	if id == "" {
		id = "-"
	}
	return fmt.Sprintf("%2d  %-9s  %s", e.Position, id, e.Title)
}

func entryPreview(e *stack.Entry) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Position: %d\n", e.Position)
	fmt.Fprintf(&sb, "Commit:   %s\n", e.Hash)
	if e.GGID != "" {
		fmt.Fprintf(&sb, "GG-ID:    %s\n", e.GGID)
	}
	if e.Number > 0 {
		fmt.Fprintf(&sb, "Review:   %d\n", e.Number)
	}
	sb.WriteString("\n")
	sb.WriteString(e.Title)
	if e.Description != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Description)
	}
	return sb.String()
}
