package stack

import (
	"fmt"
	"strings"
	"unicode"

	ggerrors "github.com/bjulian5/gg/internal/errors"
)

// entrySeparator joins the stack name and the GG-ID in entry branch names
const entrySeparator = "--"

const invalidRefChars = `~^:?*[\@`

// StackBranch formats the branch that holds a stack: <user>/<stack>
func StackBranch(username, stackName string) string {
	return username + "/" + stackName
}

// EntryBranch formats the branch pushed for one entry: <user>/<stack>--<ggid>
func EntryBranch(username, stackName, ggid string) string {
	return StackBranch(username, stackName) + entrySeparator + ggid
}

// ParseStackBranch splits a stack branch into username and stack name.
// Entry branches are not stack branches.
func ParseStackBranch(branch string) (username, stackName string, ok bool) {
	parts := strings.Split(branch, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	if strings.Contains(parts[1], entrySeparator) {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// ParseEntryBranch splits an entry branch into username, stack name and GG-ID
func ParseEntryBranch(branch string) (username, stackName, ggid string, ok bool) {
	parts := strings.Split(branch, "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", "", false
	}
	pieces := strings.Split(parts[1], entrySeparator)
	if len(pieces) != 2 || pieces[0] == "" || pieces[1] == "" {
		return "", "", "", false
	}
	return parts[0], pieces[0], pieces[1], true
}

// SanitizeStackName converts spaces to hyphens and rejects names that would
// break the branch format or are not valid in a git ref.
func SanitizeStackName(name string) (string, error) {
	sanitized := strings.ReplaceAll(name, " ", "-")

	if strings.Contains(sanitized, "/") {
		return "", fmt.Errorf("%w: %q cannot contain '/'", ggerrors.ErrInvalidStackName, name)
	}
	if strings.Contains(sanitized, entrySeparator) {
		return "", fmt.Errorf("%w: %q cannot contain '%s'", ggerrors.ErrInvalidStackName, name, entrySeparator)
	}
	if err := checkRefComponent(sanitized); err != nil {
		return "", fmt.Errorf("%w: %q %s", ggerrors.ErrInvalidStackName, name, err)
	}
	if strings.Trim(sanitized, "-") == "" {
		return "", fmt.Errorf("%w: name cannot be empty", ggerrors.ErrInvalidStackName)
	}
	return sanitized, nil
}

// ValidateUsername checks a branch username with the same ref rules as
// stack names. Whitespace is rejected rather than converted.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username cannot be empty", ggerrors.ErrInvalidUsername)
	}
	if strings.Contains(username, "/") {
		return fmt.Errorf("%w: %q cannot contain '/'", ggerrors.ErrInvalidUsername, username)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: %q cannot contain whitespace", ggerrors.ErrInvalidUsername, username)
	}
	if err := checkRefComponent(username); err != nil {
		return fmt.Errorf("%w: %q %s", ggerrors.ErrInvalidUsername, username, err)
	}
	return nil
}

func checkRefComponent(s string) error {
	if i := strings.IndexAny(s, invalidRefChars); i >= 0 {
		return fmt.Errorf("cannot contain '%c'", s[i])
	}
	if strings.IndexFunc(s, unicode.IsControl) >= 0 {
		return fmt.Errorf("cannot contain control characters")
	}
	if strings.Contains(s, "..") {
		return fmt.Errorf("cannot contain '..'")
	}
	if strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return fmt.Errorf("cannot start or end with '.'")
	}
	if strings.HasSuffix(s, ".lock") {
		return fmt.Errorf("cannot end with '.lock'")
	}
	return nil
}
