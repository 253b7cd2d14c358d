// Package cachedclient wraps a provider.Client with cache-aside reads.
package cachedclient

import (
	"context"
	"time"

	"cisync/src/cache"
	"cisync/src/logger"
	"cisync/src/metrics"
	"cisync/src/provider"
)

// TagListLimit is the size of the shared tag listing that FetchLatestTag reuses.
const TagListLimit = 100

// Client serves run and tag listings from the TTL cache when fresh enough.
// Every other operation goes straight to the wrapped client.
type Client struct {
	raw    provider.Client
	cache  *cache.TTLCache
	keys   cache.KeyBuilder
	now    func() time.Time
	logger logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithClock overrides the time source used to judge freshness.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New wraps raw with the given cache.
func New(raw provider.Client, ttlCache *cache.TTLCache, opts ...Option) *Client {
	c := &Client{
		raw:    raw,
		cache:  ttlCache,
		now:    time.Now,
		logger: logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the wrapped provider's name.
func (c *Client) Name() string {
	return c.raw.Name()
}

// lookup returns the cached entry for key when it is fresh, recording the outcome.
func lookup[T any](c *Client, ns *cache.Namespace[T], key string, expiration time.Duration) (*cache.Entry[T], bool) {
	entry := ns.Get(key)
	switch {
	case entry == nil:
		metrics.CacheLookups.WithLabelValues(ns.Name(), "miss").Inc()
		return nil, false
	case !entry.Fresh(c.now(), expiration):
		metrics.CacheLookups.WithLabelValues(ns.Name(), "stale").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues(ns.Name(), "hit").Inc()
	return entry, true
}

// ListRuns returns workflow runs, cached for expiration.
func (c *Client) ListRuns(ctx context.Context, owner, repo string, opts provider.ListRunsOptions, expiration time.Duration) ([]provider.WorkflowRun, error) {
	key := c.keys.RunsKey(owner, repo, opts)
	if entry, ok := lookup(c, c.cache.Runs, key, expiration); ok {
		c.logger.Debug("[CachedClient] cache hit %s", key)
		return entry.Data, nil
	}

	runs, err := c.raw.ListRuns(ctx, owner, repo, opts)
	if err != nil {
		return nil, err
	}
	c.cache.Runs.Set(key, runs)
	return runs, nil
}

// ListTags returns up to limit tags, newest first, cached for expiration.
func (c *Client) ListTags(ctx context.Context, owner, repo string, limit int, expiration time.Duration) ([]string, error) {
	key := c.keys.TagsKey(owner, repo, limit)
	if entry, ok := lookup(c, c.cache.Tags, key, expiration); ok {
		c.logger.Debug("[CachedClient] cache hit %s", key)
		return entry.Data, nil
	}

	tags, err := c.raw.ListTags(ctx, owner, repo, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Tags.Set(key, tags)
	return tags, nil
}

// FetchLatestTag returns the newest tag name, or "" when the repository has none.
// A fresh shared tag listing is reused before the dedicated single-tag entry is consulted.
func (c *Client) FetchLatestTag(ctx context.Context, owner, repo string, expiration time.Duration) (string, error) {
	if entry, ok := lookup(c, c.cache.Tags, c.keys.TagsKey(owner, repo, TagListLimit), expiration); ok {
		if len(entry.Data) == 0 {
			return "", nil
		}
		return entry.Data[0], nil
	}

	key := c.keys.LatestTagKey(owner, repo)
	if entry, ok := lookup(c, c.cache.LatestTag, key, expiration); ok {
		return entry.Data, nil
	}

	tags, err := c.raw.ListTags(ctx, owner, repo, 1)
	if err != nil {
		return "", err
	}
	latest := ""
	if len(tags) > 0 {
		latest = tags[0]
	}
	c.cache.LatestTag.Set(key, latest)
	return latest, nil
}

// RefreshRuns drops the cached listing and fetches it again.
func (c *Client) RefreshRuns(ctx context.Context, owner, repo string, opts provider.ListRunsOptions) ([]provider.WorkflowRun, error) {
	c.cache.Runs.Delete(c.keys.RunsKey(owner, repo, opts))
	runs, err := c.raw.ListRuns(ctx, owner, repo, opts)
	if err != nil {
		return nil, err
	}
	c.cache.Runs.Set(c.keys.RunsKey(owner, repo, opts), runs)
	return runs, nil
}

// RefreshTags drops the cached tag listing and fetches it again.
func (c *Client) RefreshTags(ctx context.Context, owner, repo string, limit int) ([]string, error) {
	key := c.keys.TagsKey(owner, repo, limit)
	c.cache.Tags.Delete(key)
	tags, err := c.raw.ListTags(ctx, owner, repo, limit)
	if err != nil {
		return nil, err
	}
	c.cache.Tags.Set(key, tags)
	return tags, nil
}

// RefreshLatestTag drops both cached tag sources and fetches the newest tag again.
func (c *Client) RefreshLatestTag(ctx context.Context, owner, repo string) (string, error) {
	c.cache.Tags.Delete(c.keys.TagsKey(owner, repo, TagListLimit))
	c.cache.LatestTag.Delete(c.keys.LatestTagKey(owner, repo))
	// Zero expiration forces the network path.
	return c.FetchLatestTag(ctx, owner, repo, 0)
}

// InvalidateRepository drops every cached entry of one repository.
func (c *Client) InvalidateRepository(owner, repo string) int {
	removed := c.cache.InvalidateByPrefix(c.keys.RepositoryPrefix(owner, repo))
	c.logger.Debug("[CachedClient] invalidated %d entries for %s/%s", removed, owner, repo)
	return removed
}

// GetLatestCommit is never cached: it is the cheap freshness probe.
func (c *Client) GetLatestCommit(ctx context.Context, owner, repo string) (*provider.Commit, error) {
	return c.raw.GetLatestCommit(ctx, owner, repo)
}

func (c *Client) ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]provider.Artifact, error) {
	return c.raw.ListArtifacts(ctx, owner, repo, runID)
}

func (c *Client) DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error) {
	return c.raw.DownloadArtifact(ctx, owner, repo, artifactID)
}

func (c *Client) ListWorkflows(ctx context.Context, owner, repo string) ([]provider.Workflow, error) {
	return c.raw.ListWorkflows(ctx, owner, repo)
}

func (c *Client) ValidateToken(ctx context.Context) error {
	return c.raw.ValidateToken(ctx)
}
