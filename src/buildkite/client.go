// Package buildkite provides a client for interacting with the Buildkite API.
//
// Buildkite has no repository-level concepts, so the owner/repo pair of
// provider.Client maps to organization/pipeline and a run ID is a build number.
package buildkite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/zeebo/xxh3"

	"cisync/src/provider"
)

const (
	// APIBaseURL is the base URL for the Buildkite API.
	APIBaseURL = "https://api.buildkite.com/v2"

	perPage = 100
)

func init() {
	provider.RegisterProvider("buildkite", func(token string) provider.Client {
		return NewClient(token)
	})
}

// Client is a Buildkite API client.
type Client struct {
	apiToken   string
	baseURL    string
	httpClient *http.Client

	mu           sync.RWMutex
	artifactURLs map[int64]string // Maps artifact ID -> download URL
}

// Build represents a Buildkite build.
type Build struct {
	ID         string     `json:"id"`
	Number     int64      `json:"number"`
	State      string     `json:"state"`
	WebURL     string     `json:"web_url"`
	Branch     string     `json:"branch"`
	Commit     string     `json:"commit"`
	Message    string     `json:"message"`
	Source     string     `json:"source"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Creator    *struct {
		Name string `json:"name"`
	} `json:"creator"`
	Pipeline *Pipeline `json:"pipeline"`
}

// Pipeline represents a Buildkite pipeline.
type Pipeline struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Artifact represents a build artifact.
type Artifact struct {
	ID          string `json:"id"`
	JobID       string `json:"job_id"`
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	FileSize    int64  `json:"file_size"`
	State       string `json:"state"`
}

// NewClient creates a new Buildkite API client.
func NewClient(apiToken string) *Client {
	return NewClientWithBaseURL(apiToken, APIBaseURL)
}

// NewClientWithBaseURL creates a client against a non-default API endpoint.
func NewClientWithBaseURL(apiToken, baseURL string) *Client {
	return &Client{
		apiToken: apiToken,
		baseURL:  baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		artifactURLs: make(map[int64]string),
	}
}

// Name returns "buildkite"
func (c *Client) Name() string {
	return "buildkite"
}

// ListRuns fetches builds for a pipeline, newest first.
func (c *Client) ListRuns(ctx context.Context, org, pipeline string, opts provider.ListRunsOptions) ([]provider.WorkflowRun, error) {
	var runs []provider.WorkflowRun

	for page := 1; ; page++ {
		if page > 1 && opts.InterPageDelay > 0 {
			timer := time.NewTimer(opts.InterPageDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		query := url.Values{}
		query.Set("per_page", strconv.Itoa(perPage))
		query.Set("page", strconv.Itoa(page))
		if opts.Branch != "" {
			query.Set("branch", opts.Branch)
		}
		if !opts.Since.IsZero() {
			query.Set("created_from", opts.Since.UTC().Format(time.RFC3339))
		}

		var builds []Build
		endpoint := fmt.Sprintf("%s/organizations/%s/pipelines/%s/builds?%s", c.baseURL, org, pipeline, query.Encode())
		if err := c.getJSON(ctx, endpoint, &builds); err != nil {
			return nil, err
		}

		for _, b := range builds {
			run := convertBuild(b, pipeline)
			if opts.WorkflowName != "" && run.Name != opts.WorkflowName {
				continue
			}
			runs = append(runs, run)
			if opts.Limit > 0 && len(runs) >= opts.Limit {
				return runs, nil
			}
		}

		if len(builds) < perPage {
			break
		}
	}

	return runs, nil
}

// ListTags returns nothing: Buildkite pipelines carry no tag listing.
func (c *Client) ListTags(ctx context.Context, org, pipeline string, limit int) ([]string, error) {
	return []string{}, nil
}

// GetLatestCommit reports the commit of the most recent build.
func (c *Client) GetLatestCommit(ctx context.Context, org, pipeline string) (*provider.Commit, error) {
	var builds []Build
	endpoint := fmt.Sprintf("%s/organizations/%s/pipelines/%s/builds?per_page=1", c.baseURL, org, pipeline)
	if err := c.getJSON(ctx, endpoint, &builds); err != nil {
		return nil, err
	}
	if len(builds) == 0 || builds[0].Commit == "" {
		return nil, nil
	}

	b := builds[0]
	commit := &provider.Commit{
		SHA:     b.Commit,
		Message: b.Message,
		Date:    b.CreatedAt,
		URL:     b.WebURL,
	}
	if b.Creator != nil {
		commit.Author = b.Creator.Name
	}
	return commit, nil
}

// ListArtifacts fetches the artifacts of a build across all its jobs.
func (c *Client) ListArtifacts(ctx context.Context, org, pipeline string, buildNumber int64) ([]provider.Artifact, error) {
	var bkArtifacts []Artifact
	endpoint := fmt.Sprintf("%s/organizations/%s/pipelines/%s/builds/%d/artifacts?per_page=%d", c.baseURL, org, pipeline, buildNumber, perPage)
	if err := c.getJSON(ctx, endpoint, &bkArtifacts); err != nil {
		// 404 is OK - build might not have artifacts
		if provider.IsMissing(err) {
			return []provider.Artifact{}, nil
		}
		return nil, err
	}

	artifacts := make([]provider.Artifact, 0, len(bkArtifacts))
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, a := range bkArtifacts {
		if a.State != "" && a.State != "finished" {
			continue
		}
		id := artifactID(a.ID)
		c.artifactURLs[id] = a.DownloadURL
		artifacts = append(artifacts, provider.Artifact{
			ID:        id,
			Name:      a.Path,
			SizeBytes: a.FileSize,
		})
	}
	return artifacts, nil
}

// DownloadArtifact downloads an artifact previously returned by ListArtifacts.
func (c *Client) DownloadArtifact(ctx context.Context, org, pipeline string, id int64) ([]byte, error) {
	c.mu.RLock()
	downloadURL, ok := c.artifactURLs[id]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no download URL found for artifact %d (ListArtifacts must be called first)", id)
	}

	resp, err := c.do(ctx, downloadURL, "*/*")
	if err != nil {
		if provider.IsMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact content: %w", err)
	}
	return data, nil
}

// ListWorkflows reports the pipeline itself as the only workflow.
func (c *Client) ListWorkflows(ctx context.Context, org, pipeline string) ([]provider.Workflow, error) {
	var p Pipeline
	endpoint := fmt.Sprintf("%s/organizations/%s/pipelines/%s", c.baseURL, org, pipeline)
	if err := c.getJSON(ctx, endpoint, &p); err != nil {
		return nil, err
	}
	return []provider.Workflow{{
		ID:    artifactID(p.ID),
		Name:  p.Name,
		Path:  p.Slug,
		State: "active",
	}}, nil
}

// ValidateToken checks the token against the access-token endpoint.
func (c *Client) ValidateToken(ctx context.Context) error {
	var token struct {
		UUID string `json:"uuid"`
	}
	return c.getJSON(ctx, c.baseURL+"/access-token", &token)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := c.do(ctx, endpoint, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// do executes an authenticated GET and converts non-200 responses into provider errors.
func (c *Client) do(ctx context.Context, endpoint, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiToken))
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, provider.NewAPIError(resp.StatusCode, string(body))
	}
	return resp, nil
}

func convertBuild(b Build, pipeline string) provider.WorkflowRun {
	name := pipeline
	if b.Pipeline != nil && b.Pipeline.Name != "" {
		name = b.Pipeline.Name
	}

	run := provider.WorkflowRun{
		ID:         b.Number,
		Name:       name,
		Status:     mapState(b.State),
		HTMLURL:    b.WebURL,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.CreatedAt,
		HeadBranch: b.Branch,
		Event:      b.Source,
	}
	if b.FinishedAt != nil {
		run.UpdatedAt = *b.FinishedAt
		if d := b.FinishedAt.Sub(b.CreatedAt); d > 0 {
			run.Duration = d
		}
	}
	return run
}

// mapState maps a Buildkite build state to a RunStatus.
func mapState(state string) provider.RunStatus {
	switch state {
	case "scheduled", "creating", "waiting":
		return provider.StatusQueued
	case "running", "blocked", "canceling", "failing":
		return provider.StatusInProgress
	case "passed":
		return provider.StatusSuccess
	case "failed":
		return provider.StatusFailure
	case "canceled", "skipped", "not_run":
		return provider.StatusCancelled
	}
	return provider.StatusQueued
}

// artifactID derives a stable numeric ID from a Buildkite UUID.
func artifactID(uuid string) int64 {
	return int64(xxh3.HashString(uuid) & math.MaxInt64)
}
