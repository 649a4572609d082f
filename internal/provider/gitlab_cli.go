package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// GitLabCLI provides GitLab operations via the glab CLI
type GitLabCLI struct {
	exec execFunc
	// autoMerge sets merge-when-pipeline-succeeds, which also joins the
	// merge train when the project uses one
	autoMerge bool
}

// NewGitLabCLI creates a GitLab provider backed by glab
func NewGitLabCLI(autoMerge bool) *GitLabCLI {
	return &GitLabCLI{exec: execCommand, autoMerge: autoMerge}
}

func (c *GitLabCLI) Name() string         { return "GitLab" }
func (c *GitLabCLI) Label() string        { return "MR" }
func (c *GitLabCLI) NumberPrefix() string { return "!" }

func (c *GitLabCLI) execGlab(ctx context.Context, args ...string) ([]byte, error) {
	slog.Debug("glab", slog.String("args", strings.Join(args, " ")))
	return c.exec(ctx, "glab", args...)
}

func (c *GitLabCLI) CheckInstalled(ctx context.Context) error {
	if _, err := c.execGlab(ctx, "--version"); err != nil {
		return fmt.Errorf("glab CLI not installed, see https://gitlab.com/gitlab-org/cli: %w", err)
	}
	return nil
}

func (c *GitLabCLI) CheckAuth(ctx context.Context) error {
	if _, err := c.execGlab(ctx, "auth", "status"); err != nil {
		return fmt.Errorf("not authenticated with GitLab, run 'glab auth login': %w", err)
	}
	return nil
}

func (c *GitLabCLI) Whoami(ctx context.Context) (string, error) {
	out, err := c.execGlab(ctx, "api", "user")
	if err != nil {
		return "", fmt.Errorf("failed to get GitLab username: %w", err)
	}
	var user struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(out, &user); err != nil {
		return "", fmt.Errorf("failed to parse GitLab user: %w", err)
	}
	if user.Username == "" {
		return "", fmt.Errorf("could not determine GitLab username")
	}
	return user.Username, nil
}

func (c *GitLabCLI) Create(ctx context.Context, req CreateRequest) (*ReviewRequest, error) {
	args := []string{
		"mr", "create",
		"--source-branch", req.Source,
		"--target-branch", req.Target,
		"--title", req.Title,
		"--description", req.Body,
		"--yes",
	}
	if req.Draft {
		args = append(args, "--draft")
	}

	out, err := c.execGlab(ctx, args...)
	if err != nil {
		if isAlreadyExistsError(err) {
			if numbers, findErr := c.ListForBranch(ctx, req.Source); findErr == nil && len(numbers) > 0 {
				return c.View(ctx, numbers[0])
			}
		}
		return nil, fmt.Errorf("failed to create MR: %w", err)
	}

	number := numberAfter(string(out), "/merge_requests/")
	if number == 0 {
		number = numberAfter(string(out), "!")
	}
	if number == 0 {
		return nil, fmt.Errorf("could not parse MR number from glab output: %s", strings.TrimSpace(string(out)))
	}
	return c.View(ctx, number)
}

// mrJSON is the MR structure returned by glab --output json
type mrJSON struct {
	IID                 int    `json:"iid"`
	Title               string `json:"title"`
	State               string `json:"state"`
	WebURL              string `json:"web_url"`
	Draft               bool   `json:"draft"`
	WorkInProgress      bool   `json:"work_in_progress"`
	SourceBranch        string `json:"source_branch"`
	TargetBranch        string `json:"target_branch"`
	DetailedMergeStatus string `json:"detailed_merge_status"`
	HeadPipeline        *struct {
		Status string `json:"status"`
	} `json:"head_pipeline"`
}

func (m *mrJSON) toReviewRequest() *ReviewRequest {
	draft := m.Draft || m.WorkInProgress
	state := StateOpen
	switch m.State {
	case "merged":
		state = StateMerged
	case "closed", "locked":
		state = StateClosed
	default:
		if draft {
			state = StateDraft
		}
	}

	checks := ChecksSuccess
	if m.HeadPipeline != nil {
		checks = pipelineStatus(m.HeadPipeline.Status)
	}
	return &ReviewRequest{
		Number:    m.IID,
		Title:     m.Title,
		URL:       m.WebURL,
		Source:    m.SourceBranch,
		Target:    m.TargetBranch,
		State:     state,
		Draft:     draft,
		Mergeable: state == StateOpen && (m.DetailedMergeStatus == "" || m.DetailedMergeStatus == "mergeable"),
		Checks:    checks,
	}
}

func pipelineStatus(status string) CheckStatus {
	switch status {
	case "success", "skipped", "manual":
		return ChecksSuccess
	case "failed":
		return ChecksFailed
	case "canceled", "canceling":
		return ChecksCanceled
	case "running":
		return ChecksRunning
	case "created", "pending", "preparing", "waiting_for_resource", "scheduled":
		return ChecksPending
	}
	return ChecksUnknown
}

func (c *GitLabCLI) View(ctx context.Context, number int) (*ReviewRequest, error) {
	out, err := c.execGlab(ctx, "mr", "view", strconv.Itoa(number), "--output", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to view MR !%d: %w", number, err)
	}
	var mr mrJSON
	if err := json.Unmarshal(out, &mr); err != nil {
		return nil, fmt.Errorf("failed to parse MR JSON: %w", err)
	}
	req := mr.toReviewRequest()

	approved, err := c.approved(ctx, number)
	if err != nil {
		slog.Debug("failed to read MR approvals", slog.Int("mr", number), slog.String("error", err.Error()))
	}
	req.Approved = approved
	return req, nil
}

func (c *GitLabCLI) approved(ctx context.Context, number int) (bool, error) {
	out, err := c.execGlab(ctx, "api", fmt.Sprintf("projects/:id/merge_requests/%d/approvals", number))
	if err != nil {
		return false, err
	}
	var approvals struct {
		Approved bool `json:"approved"`
	}
	if err := json.Unmarshal(out, &approvals); err != nil {
		return false, err
	}
	return approvals.Approved, nil
}

func (c *GitLabCLI) UpdateTarget(ctx context.Context, number int, target string) error {
	if _, err := c.execGlab(ctx, "mr", "update", strconv.Itoa(number), "--target-branch", target); err != nil {
		return fmt.Errorf("failed to update MR !%d target: %w", number, err)
	}
	return nil
}

func (c *GitLabCLI) UpdateDetails(ctx context.Context, number int, title, body *string) error {
	if title == nil && body == nil {
		return nil
	}
	args := []string{"mr", "update", strconv.Itoa(number)}
	if title != nil {
		args = append(args, "--title", *title)
	}
	if body != nil {
		args = append(args, "--description", *body)
	}
	if _, err := c.execGlab(ctx, args...); err != nil {
		return fmt.Errorf("failed to update MR !%d: %w", number, err)
	}
	return nil
}

// Merge merges an MR, or with auto-merge hands it to GitLab to merge once
// its pipeline passes (joining the merge train if the project has one)
func (c *GitLabCLI) Merge(ctx context.Context, number int, opts MergeOptions) (MergeOutcome, error) {
	args := []string{"mr", "merge", strconv.Itoa(number), "--yes"}
	if opts.Method != MergeCommit {
		args = append(args, "--squash")
	}
	if opts.DeleteBranch {
		args = append(args, "--remove-source-branch")
	}
	if c.autoMerge {
		args = append(args, "--auto-merge")
	}

	out, err := c.execGlab(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("failed to merge MR !%d: %w", number, err)
	}
	text := strings.ToLower(string(out))
	if c.autoMerge || strings.Contains(text, "merge train") || strings.Contains(text, "when pipeline succeeds") {
		return Queued, nil
	}
	return Merged, nil
}

func (c *GitLabCLI) ListForBranch(ctx context.Context, branch string) ([]int, error) {
	out, err := c.execGlab(ctx, "mr", "list", "--source-branch", branch, "--output", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list MRs for %s: %w", branch, err)
	}
	var mrs []mrJSON
	if err := json.Unmarshal(out, &mrs); err != nil {
		return nil, fmt.Errorf("failed to parse MR list: %w", err)
	}
	numbers := make([]int, 0, len(mrs))
	for _, mr := range mrs {
		numbers = append(numbers, mr.IID)
	}
	return numbers, nil
}

func (c *GitLabCLI) ListOpenByAuthor(ctx context.Context, author string) ([]ReviewRequest, error) {
	out, err := c.execGlab(ctx, "mr", "list", "--author", author, "--per-page", "100", "--output", "json")
	if err != nil {
		return nil, fmt.Errorf("failed to list MRs by %s: %w", author, err)
	}
	var mrs []mrJSON
	if err := json.Unmarshal(out, &mrs); err != nil {
		return nil, fmt.Errorf("failed to parse MR list: %w", err)
	}
	requests := make([]ReviewRequest, 0, len(mrs))
	for _, mr := range mrs {
		requests = append(requests, *mr.toReviewRequest())
	}
	return requests, nil
}
