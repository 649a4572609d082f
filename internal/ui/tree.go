package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"github.com/bjulian5/gg/internal/stack"
)

var (
	treeRootStyle       = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)
	treeEnumeratorStyle = lipgloss.NewStyle().Foreground(ColorBorder)
)

// TreeOptions controls RenderStackTree
type TreeOptions struct {
	// Current marks the stack HEAD is on; the cursor entry gets an arrow
	Current bool
	// NumberPrefix precedes review request numbers, "#" or "!"
	NumberPrefix string
	// States holds review request states by position
	States map[int]string
	// HashLength is the number of commit hash characters shown
	HashLength int
}

// RenderStackTree renders a stack under its base, oldest entry first:
//
//	alice/auth
//	╰─ main
//	   ├─ 1 ● #123 Add JWT auth (a1b2c3d) c-1a2b3c4
//	   ╰─ 2 ○ Unit tests (c3d4e5f) c-5d6e7f8 ←
func RenderStackTree(s *stack.Stack, opts TreeOptions) string {
	root := s.Branch
	if opts.Current {
		root = CurrentMarkerStyle.Render("► ") + treeRootStyle.Render(root)
	} else {
		root = treeRootStyle.Render(root)
	}
	if s.Len() == 0 {
		return root + "\n" + Dim("   no entries yet")
	}

	base := s.Base
	if s.BehindBase > 0 {
		base += WarningStyle.Render(fmt.Sprintf(" (%d behind)", s.BehindBase))
	}
	baseNode := tree.Root(Dim(base))
	for _, e := range s.Entries {
		baseNode.Child(entryLabel(s, e, opts))
	}

	t := tree.Root(root).Child(baseNode)
	t.Enumerator(roundedEnumerator).
		EnumeratorStyle(treeEnumeratorStyle).
		Indenter(indenter)
	return t.String()
}

func entryLabel(s *stack.Stack, e *stack.Entry, opts TreeOptions) string {
	state := opts.States[e.Position]
	label := fmt.Sprintf("%d %s ", e.Position, StateIcon(state))
	if e.Number > 0 {
		label += Highlight(fmt.Sprintf("%s%d", opts.NumberPrefix, e.Number)) + " "
	}

	hashLen := opts.HashLength
	if hashLen <= 0 {
		hashLen = 7
	}
	hash := e.Hash
	if len(hash) > hashLen {
		hash = hash[:hashLen]
	}
	label += Truncate(e.Title, TerminalWidth()/2) + " " + Dim("("+hash+")")

	if e.GGID != "" {
		label += " " + Dim(e.GGID)
	} else {
		label += " " + WarningStyle.Render("no GG-ID")
	}
	if opts.Current && e.Position == s.Cursor && !s.OnBranch {
		label += " " + CurrentMarkerStyle.Render("←")
	}
	return label
}

func roundedEnumerator(children tree.Children, i int) string {
	if children.Length()-1 == i {
		return "╰─ "
	}
	return "├─ "
}

func indenter(children tree.Children, i int) string {
	if children.Length()-1 == i {
		return "   "
	}
	return "│  "
}
