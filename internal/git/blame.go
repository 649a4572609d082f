package git

import (
	"fmt"
	"strings"
)

// BlameLines returns, for each line in [start, end] of path at rev, the hash
// of the commit that last touched it.
func (c *Client) BlameLines(rev, path string, start, end int) ([]string, error) {
	if start < 1 || end < start {
		return nil, nil
	}

	out, err := c.runRaw("blame", "--porcelain", "-L", fmt.Sprintf("%d,%d", start, end), rev, "--", path)
	if err != nil {
		return nil, fmt.Errorf("failed to blame %s: %w", path, err)
	}

	var hashes []string
	for _, line := range strings.Split(out, "\n") {
		// Header lines are "<40-hex> <orig> <final> [<count>]"; content lines start with a tab.
		if len(line) < 41 || line[40] != ' ' || !isHex(line[:40]) {
			continue
		}
		hashes = append(hashes, line[:40])
	}
	return hashes, nil
}

// LineCount returns the number of lines of path at rev, or 0 if it does not exist
func (c *Client) LineCount(rev, path string) int {
	out, err := c.runRaw("show", rev+":"+path)
	if err != nil || out == "" {
		return 0
	}
	n := strings.Count(out, "\n")
	if !strings.HasSuffix(out, "\n") {
		n++
	}
	return n
}

func isHex(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return false
		}
	}
	return true
}
