// Package githubactions implements provider.Client on top of the GitHub REST API.
package githubactions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v39/github"
	"golang.org/x/oauth2"

	"cisync/src/provider"
)

// PerPage is GitHub's maximum page size.
const PerPage = 100

func init() {
	provider.RegisterProvider("github", func(token string) provider.Client {
		return NewClient(token)
	})
}

// Client is a GitHub Actions API client
type Client struct {
	gh         *github.Client
	httpClient *http.Client
	// wait blocks between pages; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient creates a GitHub Actions client authenticated with a personal access token.
func NewClient(token string) *Client {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(ctx, ts)
	tc.Timeout = 30 * time.Second

	return &Client{
		gh:         github.NewClient(tc),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		wait:       sleepContext,
	}
}

// NewClientWithBaseURL creates a client against a GitHub Enterprise or test server.
func NewClientWithBaseURL(token, baseURL string) (*Client, error) {
	c := NewClient(token)
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	c.gh.BaseURL = u
	return c, nil
}

// Name returns "github"
func (c *Client) Name() string {
	return "github"
}

// ListRuns pages through workflow runs, newest first, until the listing is
// exhausted, the limit is reached, or a page crosses opts.Since.
func (c *Client) ListRuns(ctx context.Context, owner, repo string, opts provider.ListRunsOptions) ([]provider.WorkflowRun, error) {
	listOpts := &github.ListWorkflowRunsOptions{
		Branch:      opts.Branch,
		ListOptions: github.ListOptions{PerPage: PerPage},
	}

	var runs []provider.WorkflowRun
	for page := 0; ; page++ {
		if page > 0 && opts.InterPageDelay > 0 {
			if err := c.wait(ctx, opts.InterPageDelay); err != nil {
				return nil, err
			}
		}

		result, resp, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, listOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflow runs for %s/%s: %w", owner, repo, translateError(err))
		}

		reachedSince := false
		for _, ghRun := range result.WorkflowRuns {
			run := convertRun(ghRun)
			if !opts.Since.IsZero() && run.CreatedAt.Before(opts.Since) {
				reachedSince = true
				continue
			}
			if opts.WorkflowName != "" && run.Name != opts.WorkflowName {
				continue
			}
			runs = append(runs, run)
			if opts.Limit > 0 && len(runs) >= opts.Limit {
				return runs, nil
			}
		}

		if resp.NextPage == 0 || reachedSince || len(result.WorkflowRuns) == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	return runs, nil
}

// ListTags returns up to limit tag names in the order GitHub lists them.
func (c *Client) ListTags(ctx context.Context, owner, repo string, limit int) ([]string, error) {
	perPage := PerPage
	if limit > 0 && limit < perPage {
		perPage = limit
	}
	opts := &github.ListOptions{PerPage: perPage}

	var names []string
	for {
		tags, resp, err := c.gh.Repositories.ListTags(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags for %s/%s: %w", owner, repo, translateError(err))
		}
		for _, tag := range tags {
			names = append(names, tag.GetName())
			if limit > 0 && len(names) >= limit {
				return names, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// GetLatestCommit returns the head of the default branch, or nil for an empty repository.
func (c *Client) GetLatestCommit(ctx context.Context, owner, repo string) (*provider.Commit, error) {
	commits, _, err := c.gh.Repositories.ListCommits(ctx, owner, repo, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		var errResp *github.ErrorResponse
		// GitHub answers 409 for a repository without commits.
		if errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusConflict {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest commit for %s/%s: %w", owner, repo, translateError(err))
	}
	if len(commits) == 0 {
		return nil, nil
	}

	head := commits[0]
	commit := &provider.Commit{
		SHA: head.GetSHA(),
		URL: head.GetHTMLURL(),
	}
	if head.Commit != nil {
		commit.Message = head.Commit.GetMessage()
		if author := head.Commit.GetAuthor(); author != nil {
			commit.Author = author.GetName()
			commit.Date = author.GetDate()
		}
	}
	return commit, nil
}

// ListArtifacts returns the non-expired artifacts of a run.
func (c *Client) ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]provider.Artifact, error) {
	opts := &github.ListOptions{PerPage: PerPage}

	var artifacts []provider.Artifact
	for {
		list, resp, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, owner, repo, runID, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list artifacts for run %d: %w", runID, translateError(err))
		}
		for _, a := range list.Artifacts {
			if a.GetExpired() {
				continue
			}
			artifacts = append(artifacts, provider.Artifact{
				ID:        a.GetID(),
				Name:      a.GetName(),
				SizeBytes: a.GetSizeInBytes(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return artifacts, nil
}

// DownloadArtifact resolves the artifact's archive location and fetches the zip.
// An expired or deleted artifact yields nil bytes and no error.
func (c *Client) DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error) {
	location, resp, err := c.gh.Actions.DownloadArtifact(ctx, owner, repo, artifactID, true)
	if resp != nil && isMissingStatus(resp.StatusCode) {
		return nil, nil
	}
	if err != nil {
		err = translateError(err)
		if provider.IsMissing(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve artifact %d: %w", artifactID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	blob, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download artifact %d: %w", artifactID, err)
	}
	defer blob.Body.Close()

	if isMissingStatus(blob.StatusCode) {
		return nil, nil
	}
	if blob.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(blob.Body, 1024))
		return nil, provider.NewAPIError(blob.StatusCode, string(body))
	}

	data, err := io.ReadAll(blob.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact content: %w", err)
	}
	return data, nil
}

// ListWorkflows returns the workflow definitions of a repository.
func (c *Client) ListWorkflows(ctx context.Context, owner, repo string) ([]provider.Workflow, error) {
	opts := &github.ListOptions{PerPage: PerPage}

	var workflows []provider.Workflow
	for {
		list, resp, err := c.gh.Actions.ListWorkflows(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list workflows for %s/%s: %w", owner, repo, translateError(err))
		}
		for _, w := range list.Workflows {
			workflows = append(workflows, provider.Workflow{
				ID:    w.GetID(),
				Name:  w.GetName(),
				Path:  w.GetPath(),
				State: w.GetState(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return workflows, nil
}

// ValidateToken fetches the authenticated user.
func (c *Client) ValidateToken(ctx context.Context) error {
	if _, _, err := c.gh.Users.Get(ctx, ""); err != nil {
		return translateError(err)
	}
	return nil
}

func convertRun(r *github.WorkflowRun) provider.WorkflowRun {
	run := provider.WorkflowRun{
		ID:         r.GetID(),
		Name:       r.GetName(),
		Status:     mapStatus(r.GetStatus(), r.GetConclusion()),
		HTMLURL:    r.GetHTMLURL(),
		CreatedAt:  r.GetCreatedAt().Time,
		UpdatedAt:  r.GetUpdatedAt().Time,
		HeadBranch: r.GetHeadBranch(),
		Event:      r.GetEvent(),
	}
	if run.Status.Completed() || run.Status == provider.StatusCancelled {
		if d := run.UpdatedAt.Sub(run.CreatedAt); d > 0 {
			run.Duration = d
		}
	}
	return run
}

// mapStatus folds GitHub's status/conclusion pair into a single RunStatus.
func mapStatus(status, conclusion string) provider.RunStatus {
	switch status {
	case "queued", "waiting", "requested", "pending":
		return provider.StatusQueued
	case "in_progress":
		return provider.StatusInProgress
	case "completed":
		switch conclusion {
		case "success", "neutral", "skipped":
			return provider.StatusSuccess
		case "cancelled", "stale":
			return provider.StatusCancelled
		default:
			return provider.StatusFailure
		}
	}
	return provider.StatusQueued
}

func translateError(err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &provider.APIError{StatusCode: http.StatusForbidden, Message: rateErr.Message, Err: provider.ErrRateLimited}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &provider.APIError{StatusCode: http.StatusForbidden, Message: abuseErr.Message, Err: provider.ErrRateLimited}
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return provider.NewAPIError(errResp.Response.StatusCode, errResp.Message)
	}
	return err
}

func isMissingStatus(code int) bool {
	return code == http.StatusNotFound || code == http.StatusGone
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
