package git

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// FileDiff is the staged diff of one file
type FileDiff struct {
	Path      string
	IsNew     bool
	IsDeleted bool
	IsBinary  bool
	Header    []string
	Hunks     []Hunk
}

// Hunk is one zero-context hunk of a diff
type Hunk struct {
	File     string
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []string
}

var hunkHeaderRegex = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Delta is the change in line count the hunk introduces
func (h Hunk) Delta() int {
	return h.NewCount - h.OldCount
}

// HeaderLine renders the hunk header
func (h Hunk) HeaderLine() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// Patch renders a patch for this file containing only the given hunks
func (f FileDiff) Patch(hunks []Hunk) string {
	var sb strings.Builder
	for _, line := range f.Header {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	for _, h := range hunks {
		sb.WriteString(h.HeaderLine())
		sb.WriteString("\n")
		for _, line := range h.Lines {
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// StagedDiff returns the staged changes as zero-context hunks
func (c *Client) StagedDiff() ([]FileDiff, error) {
	out, err := c.runRaw("diff", "--cached", "-U0", "--no-color", "--no-ext-diff", "--no-renames")
	if err != nil {
		return nil, fmt.Errorf("failed to get staged diff: %w", err)
	}
	return ParseDiff(out), nil
}

// ParseDiff parses unified diff output into files and hunks
func ParseDiff(diff string) []FileDiff {
	var files []FileDiff
	var cur *FileDiff
	var hunk *Hunk

	flushHunk := func() {
		if cur != nil && hunk != nil {
			cur.Hunks = append(cur.Hunks, *hunk)
		}
		hunk = nil
	}
	flushFile := func() {
		flushHunk()
		if cur != nil {
			files = append(files, *cur)
		}
		cur = nil
	}

	for _, line := range strings.Split(diff, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "diff --git "):
			flushFile()
			cur = &FileDiff{Header: []string{line}}
			if idx := strings.LastIndex(line, " b/"); idx >= 0 {
				cur.Path = line[idx+3:]
			}
		case cur == nil:
			continue
		case hunk == nil && strings.HasPrefix(line, "new file mode"):
			cur.IsNew = true
			cur.Header = append(cur.Header, line)
		case hunk == nil && strings.HasPrefix(line, "deleted file mode"):
			cur.IsDeleted = true
			cur.Header = append(cur.Header, line)
		case hunk == nil && strings.HasPrefix(line, "Binary files "):
			cur.IsBinary = true
			cur.Header = append(cur.Header, line)
		case strings.HasPrefix(line, "@@ "):
			flushHunk()
			m := hunkHeaderRegex.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			hunk = &Hunk{
				File:     cur.Path,
				OldStart: atoiDefault(m[1], 0),
				OldCount: atoiDefault(m[2], 1),
				NewStart: atoiDefault(m[3], 0),
				NewCount: atoiDefault(m[4], 1),
			}
		case hunk != nil:
			if line == "" {
				continue
			}
			hunk.Lines = append(hunk.Lines, line)
		default:
			cur.Header = append(cur.Header, line)
		}
	}
	flushFile()
	return files
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ApplyToIndex applies a zero-context patch to the index only
func (c *Client) ApplyToIndex(patch string) error {
	if strings.TrimSpace(patch) == "" {
		return nil
	}
	if _, err := c.runWith(runOptions{stdin: patch}, "apply", "--cached", "--unidiff-zero", "--whitespace=nowarn", "-"); err != nil {
		return fmt.Errorf("failed to apply patch to index: %w", err)
	}
	return nil
}

// ApplyIndexAndTree applies a binary-safe patch to both index and working tree
func (c *Client) ApplyIndexAndTree(patch string) error {
	if strings.TrimSpace(patch) == "" {
		return nil
	}
	if _, err := c.runWith(runOptions{stdin: patch}, "apply", "--index", "--whitespace=nowarn", "-"); err != nil {
		return fmt.Errorf("failed to apply patch: %w", err)
	}
	return nil
}

// DiffBinary returns a full binary diff between two commits
func (c *Client) DiffBinary(from, to string) (string, error) {
	out, err := c.runRaw("diff", "--binary", "--no-color", "--no-ext-diff", from, to)
	if err != nil {
		return "", fmt.Errorf("failed to diff %s..%s: %w", from, to, err)
	}
	return out, nil
}

// FilesChanged returns the paths a commit touches relative to its first parent
func (c *Client) FilesChanged(commitHash string) ([]string, error) {
	out, err := c.run("diff-tree", "--no-commit-id", "--name-only", "-r", "--root", commitHash)
	if err != nil {
		return nil, fmt.Errorf("failed to list files of %s: %w", commitHash, err)
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// ApplyToTree applies a zero-context patch to a tree using a throwaway
// index and returns the resulting tree. The real index is not touched.
func (c *Client) ApplyToTree(tree, patch string) (string, error) {
	f, err := os.CreateTemp(c.gitDir, "gg-index-")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary index: %w", err)
	}
	indexPath := f.Name()
	f.Close()
	// read-tree refuses an empty index file, it has to create it
	os.Remove(indexPath)
	defer os.Remove(indexPath)

	env := []string{"GIT_INDEX_FILE=" + indexPath}
	if _, err := c.runWith(runOptions{env: env}, "read-tree", tree); err != nil {
		return "", fmt.Errorf("failed to read tree %s: %w", tree, err)
	}
	if _, err := c.runWith(runOptions{env: env, stdin: patch}, "apply", "--cached", "--unidiff-zero", "--whitespace=nowarn", "-"); err != nil {
		return "", fmt.Errorf("failed to apply patch to %s: %w", tree, err)
	}
	out, err := c.runWith(runOptions{env: env}, "write-tree")
	if err != nil {
		return "", fmt.Errorf("failed to write tree: %w", err)
	}
	return strings.TrimSpace(out), nil
}
