package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const ghViewFields = "number,title,url,state,isDraft,reviewDecision,mergeable,headRefName,baseRefName,statusCheckRollup"

// GitHubCLI provides GitHub operations via the gh CLI
type GitHubCLI struct {
	exec execFunc
}

// NewGitHubCLI creates a GitHub provider backed by gh
func NewGitHubCLI() *GitHubCLI {
	return &GitHubCLI{exec: execCommand}
}

func (c *GitHubCLI) Name() string         { return "GitHub" }
func (c *GitHubCLI) Label() string        { return "PR" }
func (c *GitHubCLI) NumberPrefix() string { return "#" }

// execGH executes a gh CLI command and returns the output
func (c *GitHubCLI) execGH(ctx context.Context, args ...string) ([]byte, error) {
	slog.Debug("gh", slog.String("args", strings.Join(args, " ")))
	return c.exec(ctx, "gh", args...)
}

func (c *GitHubCLI) CheckInstalled(ctx context.Context) error {
	if _, err := c.execGH(ctx, "--version"); err != nil {
		return fmt.Errorf("gh CLI not installed, see https://cli.github.com: %w", err)
	}
	return nil
}

func (c *GitHubCLI) CheckAuth(ctx context.Context) error {
	if _, err := c.execGH(ctx, "auth", "status"); err != nil {
		return fmt.Errorf("not authenticated with GitHub, run 'gh auth login': %w", err)
	}
	return nil
}

func (c *GitHubCLI) Whoami(ctx context.Context) (string, error) {
	out, err := c.execGH(ctx, "api", "user", "--jq", ".login")
	if err != nil {
		return "", fmt.Errorf("failed to get GitHub username: %w", err)
	}
	login := strings.TrimSpace(string(out))
	if login == "" {
		return "", fmt.Errorf("could not determine GitHub username")
	}
	return login, nil
}

// Create opens a PR. If one already exists for the head branch it is
// returned instead.
func (c *GitHubCLI) Create(ctx context.Context, req CreateRequest) (*ReviewRequest, error) {
	args := []string{
		"pr", "create",
		"--head", req.Source,
		"--base", req.Target,
		"--title", req.Title,
		"--body", req.Body,
	}
	if req.Draft {
		args = append(args, "--draft")
	}

	out, err := c.execGH(ctx, args...)
	if err != nil {
		if isAlreadyExistsError(err) {
			if numbers, findErr := c.ListForBranch(ctx, req.Source); findErr == nil && len(numbers) > 0 {
				return c.View(ctx, numbers[0])
			}
		}
		return nil, fmt.Errorf("failed to create PR: %w", err)
	}

	number := numberAfter(string(out), "/pull/")
	if number == 0 {
		return nil, fmt.Errorf("could not parse PR number from gh output: %s", strings.TrimSpace(string(out)))
	}
	return c.View(ctx, number)
}

// prJSON is the PR structure returned by gh --json
type prJSON struct {
	Number         int    `json:"number"`
	Title          string `json:"title"`
	URL            string `json:"url"`
	State          string `json:"state"`
	IsDraft        bool   `json:"isDraft"`
	ReviewDecision string `json:"reviewDecision"`
	Mergeable      string `json:"mergeable"`
	HeadRefName    string `json:"headRefName"`
	BaseRefName    string `json:"baseRefName"`

	StatusCheckRollup []checkJSON `json:"statusCheckRollup"`
}

// checkJSON covers both check runs (status + conclusion) and commit
// statuses (state)
type checkJSON struct {
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	State      string `json:"state"`
}

func (p *prJSON) toReviewRequest() *ReviewRequest {
	state := normalizeState(p.State, p.IsDraft)
	return &ReviewRequest{
		Number: p.Number,
		Title:  p.Title,
		URL:    p.URL,
		Source: p.HeadRefName,
		Target: p.BaseRefName,
		State:  state,
		Draft:  p.IsDraft,
		// an empty decision means no review is required
		Approved:  p.ReviewDecision == "APPROVED" || p.ReviewDecision == "",
		Mergeable: p.Mergeable == "MERGEABLE" && state == StateOpen,
		Checks:    rollupChecks(p.StatusCheckRollup),
	}
}

// normalizeState converts GitHub's OPEN, CLOSED, MERGED to our states,
// reporting open drafts as draft
func normalizeState(state string, isDraft bool) State {
	switch strings.ToUpper(state) {
	case "MERGED":
		return StateMerged
	case "CLOSED":
		return StateClosed
	}
	if isDraft {
		return StateDraft
	}
	return StateOpen
}

func rollupChecks(checks []checkJSON) CheckStatus {
	if len(checks) == 0 {
		return ChecksSuccess
	}
	pending, running := false, false
	for _, check := range checks {
		switch strings.ToUpper(check.Conclusion + check.State) {
		case "FAILURE", "ERROR", "TIMED_OUT", "ACTION_REQUIRED", "STARTUP_FAILURE":
			return ChecksFailed
		case "CANCELLED", "CANCELED":
			return ChecksCanceled
		case "PENDING", "EXPECTED":
			pending = true
		}
		switch strings.ToUpper(check.Status) {
		case "QUEUED", "WAITING", "PENDING", "REQUESTED":
			pending = true
		case "IN_PROGRESS":
			running = true
		}
	}
	switch {
	case running:
		return ChecksRunning
	case pending:
		return ChecksPending
	}
	return ChecksSuccess
}

func (c *GitHubCLI) View(ctx context.Context, number int) (*ReviewRequest, error) {
	out, err := c.execGH(ctx, "pr", "view", strconv.Itoa(number), "--json", ghViewFields)
	if err != nil {
		return nil, fmt.Errorf("failed to view PR #%d: %w", number, err)
	}
	var pr prJSON
	if err := json.Unmarshal(out, &pr); err != nil {
		return nil, fmt.Errorf("failed to parse PR JSON: %w", err)
	}
	return pr.toReviewRequest(), nil
}

func (c *GitHubCLI) UpdateTarget(ctx context.Context, number int, target string) error {
	if _, err := c.execGH(ctx, "pr", "edit", strconv.Itoa(number), "--base", target); err != nil {
		return fmt.Errorf("failed to update PR #%d base: %w", number, err)
	}
	return nil
}

func (c *GitHubCLI) UpdateDetails(ctx context.Context, number int, title, body *string) error {
	if title == nil && body == nil {
		return nil
	}
	args := []string{"pr", "edit", strconv.Itoa(number)}
	if title != nil {
		args = append(args, "--title", *title)
	}
	if body != nil {
		args = append(args, "--body", *body)
	}
	if _, err := c.execGH(ctx, args...); err != nil {
		return fmt.Errorf("failed to update PR #%d: %w", number, err)
	}
	return nil
}

// Merge merges a PR. Repositories with a merge queue get the PR enqueued.
func (c *GitHubCLI) Merge(ctx context.Context, number int, opts MergeOptions) (MergeOutcome, error) {
	args := []string{"pr", "merge", strconv.Itoa(number)}
	if opts.Method == MergeCommit {
		args = append(args, "--merge")
	} else {
		args = append(args, "--squash")
	}
	if opts.DeleteBranch {
		args = append(args, "--delete-branch")
	}

	out, err := c.execGH(ctx, args...)
	if err != nil {
		if !isMergeQueueError(err) {
			return "", fmt.Errorf("failed to merge PR #%d: %w", number, err)
		}
		if _, err := c.execGH(ctx, "pr", "merge", strconv.Itoa(number), "--auto"); err != nil {
			return "", fmt.Errorf("failed to add PR #%d to the merge queue: %w", number, err)
		}
		return Queued, nil
	}
	if strings.Contains(strings.ToLower(string(out)), "merge queue") {
		return Queued, nil
	}
	return Merged, nil
}

func (c *GitHubCLI) ListForBranch(ctx context.Context, branch string) ([]int, error) {
	out, err := c.execGH(ctx, "pr", "list", "--head", branch, "--state", "open", "--json", "number")
	if err != nil {
		return nil, fmt.Errorf("failed to list PRs for %s: %w", branch, err)
	}
	var prs []prJSON
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("failed to parse PR list: %w", err)
	}
	numbers := make([]int, 0, len(prs))
	for _, pr := range prs {
		numbers = append(numbers, pr.Number)
	}
	return numbers, nil
}

func (c *GitHubCLI) ListOpenByAuthor(ctx context.Context, author string) ([]ReviewRequest, error) {
	out, err := c.execGH(ctx, "pr", "list", "--author", author, "--state", "open", "--limit", "200",
		"--json", "number,title,url,state,isDraft,headRefName,baseRefName")
	if err != nil {
		return nil, fmt.Errorf("failed to list PRs by %s: %w", author, err)
	}
	var prs []prJSON
	if err := json.Unmarshal(out, &prs); err != nil {
		return nil, fmt.Errorf("failed to parse PR list: %w", err)
	}
	requests := make([]ReviewRequest, 0, len(prs))
	for _, pr := range prs {
		requests = append(requests, *pr.toReviewRequest())
	}
	return requests, nil
}

func cliStderr(err error) string {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.Stderr
	}
	return err.Error()
}

func isAlreadyExistsError(err error) bool {
	return strings.Contains(cliStderr(err), "already exists")
}

func isMergeQueueError(err error) bool {
	return strings.Contains(strings.ToLower(cliStderr(err)), "merge queue")
}
