package git

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Commit represents a git commit
type Commit struct {
	Hash        string
	Parents     []string
	Tree        string
	AuthorName  string
	AuthorEmail string
	AuthorDate  string
	Message     string
	CommitMessage
}

// CommitMessage is a commit message split into its parts
type CommitMessage struct {
	Title    string
	Body     string
	Trailers map[string]string
}

var trailerLine = regexp.MustCompile(`^([A-Za-z0-9][A-Za-z0-9-]*):\s*(.*)$`)

// String renders the message with trailers in a stable order
func (m CommitMessage) String() string {
	var sb strings.Builder
	sb.WriteString(m.Title)
	if m.Body != "" {
		sb.WriteString("\n\n")
		sb.WriteString(m.Body)
	}
	if len(m.Trailers) > 0 {
		keys := make([]string, 0, len(m.Trailers))
		for k := range m.Trailers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "\n%s: %s", k, m.Trailers[k])
		}
	}
	return sb.String()
}

// ParseCommitMessage parses a commit message into title, body, and trailers.
// Trailers are the lines of the last paragraph when every line in it has the
// "Key: value" form.
func ParseCommitMessage(message string) CommitMessage {
	msg := CommitMessage{Trailers: make(map[string]string)}

	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	if len(lines) == 0 {
		return msg
	}
	msg.Title = strings.TrimSpace(lines[0])

	start, end := trailerBlock(lines)
	for i := start; i < end; i++ {
		if m := trailerLine.FindStringSubmatch(strings.TrimSpace(lines[i])); m != nil {
			msg.Trailers[m[1]] = strings.TrimSpace(m[2])
		}
	}

	msg.Body = strings.TrimSpace(strings.Join(lines[1:start], "\n"))
	return msg
}

// trailerBlock returns the [start, end) range of the trailer paragraph, or
// (len, len) when the message has none. The title is never a trailer.
func trailerBlock(lines []string) (int, int) {
	end := len(lines)
	for end > 1 && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}

	start := end
	for start > 1 {
		line := strings.TrimSpace(lines[start-1])
		if line == "" {
			break
		}
		if !trailerLine.MatchString(line) {
			return len(lines), len(lines)
		}
		start--
	}
	if start <= 1 || start == end {
		return len(lines), len(lines)
	}
	return start, end
}

// SetTrailer sets a trailer on a commit message. An existing trailer with the
// same key is replaced in place; otherwise it is appended to the trailer
// block, creating one if needed. Everything else is left as it was.
func SetTrailer(message string, key string, value string) string {
	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	start, end := trailerBlock(lines)
	entry := fmt.Sprintf("%s: %s", key, value)

	for i := start; i < end; i++ {
		m := trailerLine.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m != nil && strings.EqualFold(m[1], key) {
			lines[i] = entry
			return strings.Join(lines, "\n") + "\n"
		}
	}

	if start < end {
		out := append([]string{}, lines[:end]...)
		out = append(out, entry)
		return strings.Join(out, "\n") + "\n"
	}

	trimmed := strings.TrimRight(strings.Join(lines, "\n"), "\n \t")
	return trimmed + "\n\n" + entry + "\n"
}

// RemoveTrailer removes every trailer with the given key (case-insensitive)
func RemoveTrailer(message string, key string) string {
	lines := strings.Split(strings.TrimRight(message, "\n"), "\n")
	start, end := trailerBlock(lines)

	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if i >= start && i < end {
			m := trailerLine.FindStringSubmatch(strings.TrimSpace(line))
			if m != nil && strings.EqualFold(m[1], key) {
				continue
			}
		}
		out = append(out, line)
	}
	return strings.TrimRight(strings.Join(out, "\n"), "\n \t") + "\n"
}

// GetCommit returns a commit by hash or ref
func (c *Client) GetCommit(ref string) (Commit, error) {
	out, err := c.runRaw("log", "-1", "--format=%H%x00%P%x00%T%x00%an%x00%ae%x00%aI%x00%B", ref)
	if err != nil {
		return Commit{}, fmt.Errorf("failed to get commit %s: %w", ref, err)
	}

	parts := strings.SplitN(out, "\x00", 7)
	if len(parts) != 7 {
		return Commit{}, fmt.Errorf("unexpected log output for %s", ref)
	}

	message := strings.TrimRight(parts[6], "\n") + "\n"
	return Commit{
		Hash:          parts[0],
		Parents:       strings.Fields(parts[1]),
		Tree:          parts[2],
		AuthorName:    parts[3],
		AuthorEmail:   parts[4],
		AuthorDate:    parts[5],
		Message:       message,
		CommitMessage: ParseCommitMessage(message),
	}, nil
}

// CommitTree creates a commit object from a tree with the given parent and
// message, keeping the author of the source commit.
func (c *Client) CommitTree(tree, parent, message string, author *Commit) (string, error) {
	opts := runOptions{stdin: message}
	if author != nil {
		opts.env = []string{
			"GIT_AUTHOR_NAME=" + author.AuthorName,
			"GIT_AUTHOR_EMAIL=" + author.AuthorEmail,
			"GIT_AUTHOR_DATE=" + author.AuthorDate,
		}
	}

	out, err := c.runWith(opts, "commit-tree", tree, "-p", parent, "-F", "-")
	if err != nil {
		return "", fmt.Errorf("failed to commit tree: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Commit creates a commit from the index
func (c *Client) Commit(message string, allowEmpty bool) error {
	args := []string{"commit", "--no-verify", "-F", "-"}
	if allowEmpty {
		args = append(args, "--allow-empty")
	}
	if _, err := c.runWith(runOptions{stdin: message}, args...); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// AmendNoEdit folds the index into HEAD keeping its message
func (c *Client) AmendNoEdit() error {
	if _, err := c.run("commit", "--amend", "--no-edit", "--no-verify", "--allow-empty"); err != nil {
		return fmt.Errorf("failed to amend commit: %w", err)
	}
	return nil
}

// CommitReusing commits the index with the message and author of another commit
func (c *Client) CommitReusing(commitHash string) error {
	if _, err := c.run("commit", "--no-verify", "--allow-empty", "-C", commitHash); err != nil {
		return fmt.Errorf("failed to commit with message of %s: %w", commitHash, err)
	}
	return nil
}
