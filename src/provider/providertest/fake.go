// Package providertest provides an in-memory provider.Client for tests.
package providertest

import (
	"context"
	"sync"

	"cisync/src/provider"
)

// Fake is a scriptable provider.Client. Zero value is an empty provider.
// Fields may be changed between calls; call counters are safe for concurrent use.
type Fake struct {
	Runs      []provider.WorkflowRun
	Tags      []string
	Commit    *provider.Commit
	Artifacts map[int64][]provider.Artifact
	Downloads map[int64][]byte

	ListRunsErr  error
	ListTagsErr  error
	CommitErr    error
	DownloadErrs map[int64]error
	TokenErr     error

	mu            sync.Mutex
	calls         map[string]int
	listRunsCalls []provider.ListRunsOptions
}

func (f *Fake) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

// Calls returns how many times the named method was invoked.
func (f *Fake) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// ListRunsCalls returns the options of every ListRuns call, in order.
func (f *Fake) ListRunsCalls() []provider.ListRunsOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]provider.ListRunsOptions(nil), f.listRunsCalls...)
}

func (f *Fake) Name() string { return "fake" }

// ListRuns honours Since, Branch, WorkflowName and Limit the way a real provider would.
func (f *Fake) ListRuns(ctx context.Context, owner, repo string, opts provider.ListRunsOptions) ([]provider.WorkflowRun, error) {
	f.record("ListRuns")
	f.mu.Lock()
	f.listRunsCalls = append(f.listRunsCalls, opts)
	f.mu.Unlock()

	if f.ListRunsErr != nil {
		return nil, f.ListRunsErr
	}

	var out []provider.WorkflowRun
	for _, run := range f.Runs {
		if !opts.Since.IsZero() && run.CreatedAt.Before(opts.Since) {
			continue
		}
		if opts.Branch != "" && run.HeadBranch != opts.Branch {
			continue
		}
		if opts.WorkflowName != "" && run.Name != opts.WorkflowName {
			continue
		}
		out = append(out, run)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (f *Fake) ListTags(ctx context.Context, owner, repo string, limit int) ([]string, error) {
	f.record("ListTags")
	if f.ListTagsErr != nil {
		return nil, f.ListTagsErr
	}
	if limit > 0 && limit < len(f.Tags) {
		return append([]string(nil), f.Tags[:limit]...), nil
	}
	return append([]string(nil), f.Tags...), nil
}

func (f *Fake) GetLatestCommit(ctx context.Context, owner, repo string) (*provider.Commit, error) {
	f.record("GetLatestCommit")
	if f.CommitErr != nil {
		return nil, f.CommitErr
	}
	return f.Commit, nil
}

func (f *Fake) ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]provider.Artifact, error) {
	f.record("ListArtifacts")
	return f.Artifacts[runID], nil
}

func (f *Fake) DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error) {
	f.record("DownloadArtifact")
	if err := f.DownloadErrs[artifactID]; err != nil {
		return nil, err
	}
	return f.Downloads[artifactID], nil
}

func (f *Fake) ListWorkflows(ctx context.Context, owner, repo string) ([]provider.Workflow, error) {
	f.record("ListWorkflows")
	return nil, nil
}

func (f *Fake) ValidateToken(ctx context.Context) error {
	f.record("ValidateToken")
	return f.TokenErr
}

var _ provider.Client = (*Fake)(nil)
