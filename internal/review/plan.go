package review

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/bjulian5/gg/internal/stack"
)

// wipMarkers mark a commit title as work in progress. A bare "wip" must be
// followed by a non-letter so "Wipe cache" is not a draft.
var wipMarkers = []string{"[wip]", "draft:", "wip:"}

// PlannedEntry is what sync will do for one entry
type PlannedEntry struct {
	Entry  *stack.Entry
	Branch string
	Target string
	Draft  bool
}

// Plan computes the branch, target and draft flag of every entry. The
// first entry targets the base and every other entry targets the branch of
// the entry below it. Entries from the first work-in-progress title upward
// are drafts.
func Plan(s *stack.Stack, draft bool) []PlannedEntry {
	planned := make([]PlannedEntry, 0, s.Len())
	target := s.Base
	for _, e := range s.Entries {
		if IsWIP(e.Title) {
			draft = true
		}
		branch := s.EntryBranch(e)
		planned = append(planned, PlannedEntry{
			Entry:  e,
			Branch: branch,
			Target: target,
			Draft:  draft,
		})
		target = branch
	}
	return planned
}

// IsWIP reports whether a title starts with a work-in-progress marker
func IsWIP(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	for _, marker := range wipMarkers {
		if strings.HasPrefix(lower, marker) {
			return true
		}
	}
	rest, ok := strings.CutPrefix(lower, "wip")
	if !ok {
		return false
	}
	return rest == "" || !unicode.IsLetter([]rune(rest)[0])
}

// requestTitle is the commit title without a GG-ID
func requestTitle(e *stack.Entry) string {
	return strings.TrimSpace(stack.StripGGID(e.Title))
}

// requestBody renders the review request body from the template, or the
// commit body followed by a stack reference when there is no template
func requestBody(s *stack.Stack, e *stack.Entry, template string) string {
	sha := e.Hash
	if len(sha) > 7 {
		sha = sha[:7]
	}
	if template != "" {
		return strings.NewReplacer(
			"{{title}}", requestTitle(e),
			"{{description}}", e.Description,
			"{{stack_name}}", s.Name,
			"{{commit_sha}}", sha,
		).Replace(template)
	}

	footer := "Part of stack `" + s.Name + "`"
	if e.Description == "" {
		return footer
	}
	return strings.TrimRight(e.Description, "\n") + "\n\n" + footer
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
