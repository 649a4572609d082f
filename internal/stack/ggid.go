package stack

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	ggerrors "github.com/bjulian5/gg/internal/errors"
	"github.com/bjulian5/gg/internal/git"
)

// GGIDTrailer is the commit trailer carrying an entry's stable identity
const GGIDTrailer = "GG-ID"

var (
	ggidTrailerRegex = regexp.MustCompile(`(?i)^GG-ID:\s*(.+)$`)
	ggidRegex        = regexp.MustCompile(`^c-[0-9a-f]{7}$`)
)

// NormalizeGGID lowercases a token and reports whether it is well formed
func NormalizeGGID(raw string) (string, bool) {
	id := strings.ToLower(strings.TrimSpace(raw))
	if !ggidRegex.MatchString(id) {
		return "", false
	}
	return id, true
}

// ExtractGGID returns the GG-ID of a commit message, or "" if it has none or
// the value is malformed.
func ExtractGGID(message string) string {
	for _, line := range strings.Split(message, "\n") {
		m := ggidTrailerRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if id, ok := NormalizeGGID(m[1]); ok {
			return id
		}
		return ""
	}
	return ""
}

// SetGGID adds or replaces the GG-ID trailer, keeping the rest of the message
func SetGGID(message, ggid string) string {
	return git.SetTrailer(message, GGIDTrailer, ggid)
}

// StripGGID removes the GG-ID trailer, for titles and bodies shown to reviewers
func StripGGID(message string) string {
	return strings.TrimRight(git.RemoveTrailer(message, GGIDTrailer), "\n")
}

var newToken = func() string {
	return "c-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
}

// NewGGID generates a token. A collision with an existing token is reported
// rather than retried.
func NewGGID(existing map[string]bool) (string, error) {
	id := newToken()
	if existing[id] {
		return "", fmt.Errorf("%w: %s", ggerrors.ErrGGIDCollision, id)
	}
	return id, nil
}
