package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"
)

// GitHubAPI provides GitHub operations via the REST API, for machines
// without gh or when a token is supplied through the environment
type GitHubAPI struct {
	client     *github.Client
	owner      string
	repo       string
	graphqlURL string
}

// NewGitHubAPI creates a REST client for owner/repo on host, which may be
// github.com or a GitHub Enterprise hostname
func NewGitHubAPI(ctx context.Context, host, owner, repo, token string) (*GitHubAPI, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, ts))

	graphqlURL := "https://api.github.com/graphql"
	if host != "github.com" {
		baseURL, err := url.Parse(fmt.Sprintf("https://%s/api/v3/", host))
		if err != nil {
			return nil, fmt.Errorf("failed to parse base URL for %s: %w", host, err)
		}
		uploadURL, err := url.Parse(fmt.Sprintf("https://%s/api/uploads/", host))
		if err != nil {
			return nil, fmt.Errorf("failed to parse upload URL for %s: %w", host, err)
		}
		client.BaseURL = baseURL
		client.UploadURL = uploadURL
		graphqlURL = fmt.Sprintf("https://%s/api/graphql", host)
	}
	return newGitHubAPI(client, owner, repo, graphqlURL), nil
}

func newGitHubAPI(client *github.Client, owner, repo, graphqlURL string) *GitHubAPI {
	return &GitHubAPI{client: client, owner: owner, repo: repo, graphqlURL: graphqlURL}
}

func (c *GitHubAPI) Name() string         { return "GitHub" }
func (c *GitHubAPI) Label() string        { return "PR" }
func (c *GitHubAPI) NumberPrefix() string { return "#" }

// CheckInstalled always succeeds; the API needs no local tooling
func (c *GitHubAPI) CheckInstalled(ctx context.Context) error {
	return nil
}

func (c *GitHubAPI) CheckAuth(ctx context.Context) error {
	_, err := c.Whoami(ctx)
	return err
}

func (c *GitHubAPI) Whoami(ctx context.Context) (string, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to get GitHub user: %w", err)
	}
	if user.GetLogin() == "" {
		return "", fmt.Errorf("could not determine GitHub username")
	}
	return user.GetLogin(), nil
}

func (c *GitHubAPI) Create(ctx context.Context, req CreateRequest) (*ReviewRequest, error) {
	slog.Debug("github create pull request", slog.String("head", req.Source), slog.String("base", req.Target))
	pr, _, err := c.client.PullRequests.Create(ctx, c.owner, c.repo, &github.NewPullRequest{
		Title: github.String(req.Title),
		Head:  github.String(req.Source),
		Base:  github.String(req.Target),
		Body:  github.String(req.Body),
		Draft: github.Bool(req.Draft),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request: %w", err)
	}
	return c.View(ctx, pr.GetNumber())
}

func (c *GitHubAPI) View(ctx context.Context, number int) (*ReviewRequest, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request #%d: %w", number, err)
	}
	req := fromPullRequest(pr)

	approved, err := c.approved(ctx, number)
	if err != nil {
		slog.Debug("failed to list reviews", slog.Int("pr", number), slog.String("error", err.Error()))
	}
	req.Approved = approved
	req.Checks = c.checks(ctx, pr.GetHead().GetSHA())
	return req, nil
}

func fromPullRequest(pr *github.PullRequest) *ReviewRequest {
	state := StateOpen
	switch {
	case pr.GetMerged() || pr.MergedAt != nil:
		state = StateMerged
	case pr.GetState() == "closed":
		state = StateClosed
	case pr.GetDraft():
		state = StateDraft
	}
	return &ReviewRequest{
		Number:    pr.GetNumber(),
		Title:     pr.GetTitle(),
		URL:       pr.GetHTMLURL(),
		Source:    pr.GetHead().GetRef(),
		Target:    pr.GetBase().GetRef(),
		State:     state,
		Draft:     pr.GetDraft(),
		Mergeable: pr.GetMergeable() && state == StateOpen,
	}
}

// approved reports whether the latest review of at least one reviewer
// approves and no reviewer's latest review requests changes
func (c *GitHubAPI) approved(ctx context.Context, number int) (bool, error) {
	reviews, _, err := c.client.PullRequests.ListReviews(ctx, c.owner, c.repo, number, &github.ListOptions{PerPage: 100})
	if err != nil {
		return false, err
	}
	latest := make(map[string]string)
	for _, review := range reviews {
		switch state := review.GetState(); state {
		case "APPROVED", "CHANGES_REQUESTED", "DISMISSED":
			latest[review.GetUser().GetLogin()] = state
		}
	}
	approved := false
	for _, state := range latest {
		if state == "CHANGES_REQUESTED" {
			return false, nil
		}
		if state == "APPROVED" {
			approved = true
		}
	}
	return approved, nil
}

// checks combines check runs and commit statuses for a commit
func (c *GitHubAPI) checks(ctx context.Context, sha string) CheckStatus {
	if sha == "" {
		return ChecksUnknown
	}

	var rollup []checkJSON
	runs, _, err := c.client.Checks.ListCheckRunsForRef(ctx, c.owner, c.repo, sha, &github.ListCheckRunsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	})
	if err != nil {
		slog.Debug("failed to list check runs", slog.String("sha", sha), slog.String("error", err.Error()))
	} else {
		for _, run := range runs.CheckRuns {
			rollup = append(rollup, checkJSON{Status: run.GetStatus(), Conclusion: run.GetConclusion()})
		}
	}

	combined, _, err := c.client.Repositories.GetCombinedStatus(ctx, c.owner, c.repo, sha, nil)
	if err != nil {
		slog.Debug("failed to get combined status", slog.String("sha", sha), slog.String("error", err.Error()))
	} else if combined.GetTotalCount() > 0 {
		rollup = append(rollup, checkJSON{State: combined.GetState()})
	}
	return rollupChecks(rollup)
}

func (c *GitHubAPI) UpdateTarget(ctx context.Context, number int, target string) error {
	_, _, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, number, &github.PullRequest{
		Base: &github.PullRequestBranch{Ref: github.String(target)},
	})
	if err != nil {
		return fmt.Errorf("failed to update pull request #%d base: %w", number, err)
	}
	return nil
}

func (c *GitHubAPI) UpdateDetails(ctx context.Context, number int, title, body *string) error {
	if title == nil && body == nil {
		return nil
	}
	_, _, err := c.client.PullRequests.Edit(ctx, c.owner, c.repo, number, &github.PullRequest{
		Title: title,
		Body:  body,
	})
	if err != nil {
		return fmt.Errorf("failed to update pull request #%d: %w", number, err)
	}
	return nil
}

// Merge merges a pull request. When the base branch requires a merge queue
// the pull request is enqueued through the GraphQL API instead.
func (c *GitHubAPI) Merge(ctx context.Context, number int, opts MergeOptions) (MergeOutcome, error) {
	method := string(opts.Method)
	if method == "" {
		method = string(MergeSquash)
	}

	pr, _, err := c.client.PullRequests.Get(ctx, c.owner, c.repo, number)
	if err != nil {
		return "", fmt.Errorf("failed to get pull request #%d: %w", number, err)
	}
	if pr.GetMergeableState() == "queued" {
		return Queued, nil
	}

	_, _, err = c.client.PullRequests.Merge(ctx, c.owner, c.repo, number, "", &github.PullRequestOptions{
		MergeMethod: method,
	})
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && strings.Contains(strings.ToLower(ghErr.Message), "merge queue") {
			if err := c.enqueue(ctx, pr.GetNodeID()); err != nil {
				return "", fmt.Errorf("failed to add pull request #%d to the merge queue: %w", number, err)
			}
			return Queued, nil
		}
		return "", fmt.Errorf("failed to merge pull request #%d: %w", number, err)
	}

	if opts.DeleteBranch {
		if _, err := c.client.Git.DeleteRef(ctx, c.owner, c.repo, "heads/"+pr.GetHead().GetRef()); err != nil {
			slog.Warn("failed to delete merged branch", slog.String("branch", pr.GetHead().GetRef()), slog.String("error", err.Error()))
		}
	}
	return Merged, nil
}

const enqueueMutation = `mutation EnqueuePullRequest($pullRequestId: ID!) {
	enqueuePullRequest(input: {pullRequestId: $pullRequestId}) {
		mergeQueueEntry { position }
	}
}`

func (c *GitHubAPI) enqueue(ctx context.Context, nodeID string) error {
	if nodeID == "" {
		return fmt.Errorf("pull request has no node ID")
	}
	payload, err := json.Marshal(map[string]any{
		"query":     enqueueMutation,
		"variables": map[string]any{"pullRequestId": nodeID},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.graphqlURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Client().Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute GraphQL request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read GraphQL response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GraphQL request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse GraphQL response: %w", err)
	}
	if len(result.Errors) > 0 {
		messages := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			messages[i] = e.Message
		}
		return fmt.Errorf("enqueuePullRequest failed: %s", strings.Join(messages, "; "))
	}
	return nil
}

func (c *GitHubAPI) ListForBranch(ctx context.Context, branch string) ([]int, error) {
	prs, _, err := c.client.PullRequests.List(ctx, c.owner, c.repo, &github.PullRequestListOptions{
		Head:        fmt.Sprintf("%s:%s", c.owner, branch),
		State:       "open",
		Sort:        "created",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 30},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests for %s: %w", branch, err)
	}
	numbers := make([]int, 0, len(prs))
	for _, pr := range prs {
		numbers = append(numbers, pr.GetNumber())
	}
	return numbers, nil
}

func (c *GitHubAPI) ListOpenByAuthor(ctx context.Context, author string) ([]ReviewRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "open",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	var requests []ReviewRequest
	for {
		prs, resp, err := c.client.PullRequests.List(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list pull requests: %w", err)
		}
		for _, pr := range prs {
			if strings.EqualFold(pr.GetUser().GetLogin(), author) {
				requests = append(requests, *fromPullRequest(pr))
			}
		}
		if resp == nil || resp.NextPage == 0 {
			return requests, nil
		}
		opts.Page = resp.NextPage
	}
}
