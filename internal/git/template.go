package git

import (
	"os"
	"path/filepath"
)

// reviewTemplateLocations lists repository review request templates in
// order of precedence, relative to the worktree root
var reviewTemplateLocations = []string{
	".github/PULL_REQUEST_TEMPLATE.md",
	".github/pull_request_template.md",
	".gitlab/merge_request_templates/Default.md",
	"docs/pull_request_template.md",
}

// FindReviewTemplate returns the review request body template, or "" when
// there is none. A gg-specific <common-dir>/gg/pr_template.md wins over the
// repository's own templates.
func (c *Client) FindReviewTemplate() (string, error) {
	paths := []string{filepath.Join(c.CommonDir(), "gg", "pr_template.md")}
	for _, location := range reviewTemplateLocations {
		paths = append(paths, filepath.Join(c.gitRoot, location))
	}

	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		return string(content), nil
	}
	return "", nil
}
