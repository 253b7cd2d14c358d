package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

var (
	ErrInvalidRepository = errors.New("invalid repository reference")
	ErrProviderUnknown   = errors.New("unknown CI provider")
)

// Client is the raw provider contract consumed by the sync engine.
type Client interface {
	// Name returns the provider name (e.g., "github", "buildkite")
	Name() string

	// ListRuns returns runs for a repository. Ordering is not guaranteed.
	ListRuns(ctx context.Context, owner, repo string, opts ListRunsOptions) ([]WorkflowRun, error)

	// ListTags returns up to limit tag names, newest first.
	ListTags(ctx context.Context, owner, repo string, limit int) ([]string, error)

	// GetLatestCommit returns the most recent commit, or nil if the repository has none.
	GetLatestCommit(ctx context.Context, owner, repo string) (*Commit, error)

	// ListArtifacts returns the artifacts uploaded by a run.
	ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]Artifact, error)

	// DownloadArtifact returns the raw artifact archive, or nil if it expired or was deleted.
	DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error)

	// ListWorkflows returns the workflow definitions of a repository.
	ListWorkflows(ctx context.Context, owner, repo string) ([]Workflow, error)

	// ValidateToken checks that the configured credential is accepted.
	ValidateToken(ctx context.Context) error
}

// Factory creates a provider client from an API token.
type Factory func(token string) Client

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// RegisterProvider makes a provider available by name. Providers call it from init.
func RegisterProvider(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = factory
}

// New returns a client for the named provider.
func New(name, token string) (Client, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderUnknown, name)
	}
	return factory(token), nil
}

// Registered returns the names of all registered providers, sorted.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	githubRepoURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+?)(?:\.git)?/?$`)
	slugPattern          = regexp.MustCompile(`^([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)$`)
)

// ParseRepository extracts owner and repo from "owner/repo" or a GitHub repository URL.
func ParseRepository(ref string) (owner, repo string, err error) {
	ref = strings.TrimSpace(ref)

	if matches := githubRepoURLPattern.FindStringSubmatch(ref); matches != nil {
		return matches[1], matches[2], nil
	}

	if matches := slugPattern.FindStringSubmatch(ref); matches != nil {
		return matches[1], matches[2], nil
	}

	return "", "", fmt.Errorf("%w: %s", ErrInvalidRepository, ref)
}
