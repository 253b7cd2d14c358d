// Package pipeline assembles the sync pipeline shared by the CLI, the scheduler and
// the MCP server: one cached client, syncer and change detector per provider.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"cisync/src/broker"
	_ "cisync/src/buildkite" // registers the "buildkite" provider
	"cisync/src/cache"
	"cisync/src/cachedclient"
	"cisync/src/contracts"
	"cisync/src/detect"
	"cisync/src/githubactions"
	"cisync/src/logger"
	"cisync/src/provider"
	"cisync/src/store"
	"cisync/src/syncer"
)

// Options configures a Pipeline.
type Options struct {
	// Tokens maps provider name to API token.
	Tokens        map[string]string
	GitHubBaseURL string
	CacheCapacity int
	Sync          syncer.Options
	Publisher     broker.Broker
	Logger        logger.Logger
	Progress      func(syncer.Progress)

	// Clients replaces the registered raw client of a provider.
	Clients map[string]provider.Client
}

type lane struct {
	client   *cachedclient.Client
	syncer   *syncer.Syncer
	detector *detect.Detector
}

// Pipeline routes each build to the lane of its provider, creating lanes on first use.
type Pipeline struct {
	store store.Store
	opts  Options

	mu    sync.Mutex
	lanes map[string]*lane
}

// New creates a Pipeline persisting to st.
func New(st store.Store, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = logger.NewSilentLogger()
	}
	return &Pipeline{
		store: st,
		opts:  opts,
		lanes: make(map[string]*lane),
	}
}

// Store returns the store the pipeline persists to.
func (p *Pipeline) Store() store.Store {
	return p.store
}

func (p *Pipeline) rawClient(name string) (provider.Client, error) {
	if c, ok := p.opts.Clients[name]; ok {
		return c, nil
	}
	token := p.opts.Tokens[name]
	if name == "github" && p.opts.GitHubBaseURL != "" {
		return githubactions.NewClientWithBaseURL(token, p.opts.GitHubBaseURL)
	}
	return provider.New(name, token)
}

func (p *Pipeline) lane(name string) (*lane, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.lanes[name]; ok {
		return l, nil
	}

	raw, err := p.rawClient(name)
	if err != nil {
		return nil, err
	}

	client := cachedclient.New(raw,
		cache.New(cache.WithCapacity(p.opts.CacheCapacity)),
		cachedclient.WithLogger(p.opts.Logger),
	)

	syncOpts := []syncer.Option{
		syncer.WithLogger(p.opts.Logger),
		syncer.WithOptions(p.opts.Sync),
	}
	if p.opts.Publisher != nil {
		syncOpts = append(syncOpts, syncer.WithPublisher(p.opts.Publisher))
	}
	if p.opts.Progress != nil {
		syncOpts = append(syncOpts, syncer.WithProgress(p.opts.Progress))
	}
	s := syncer.New(client, p.store, syncOpts...)

	l := &lane{
		client:   client,
		syncer:   s,
		detector: detect.NewDetector(client, s, p.store, p.opts.Logger),
	}
	p.lanes[name] = l
	return l, nil
}

// Client returns the cached client of the named provider.
func (p *Pipeline) Client(providerName string) (*cachedclient.Client, error) {
	l, err := p.lane(providerName)
	if err != nil {
		return nil, err
	}
	return l.client, nil
}

// Sync runs a sync for build.
func (p *Pipeline) Sync(ctx context.Context, build *contracts.Build) (*contracts.SyncResult, error) {
	l, err := p.lane(build.Provider)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", build.ID, err)
	}
	return l.syncer.Sync(ctx, build)
}

// CheckAndSync syncs build if its repository has moved. Never fails.
func (p *Pipeline) CheckAndSync(ctx context.Context, build *contracts.Build) bool {
	l, err := p.lane(build.Provider)
	if err != nil {
		p.opts.Logger.Error("[Pipeline] Build %s: %v", build.ID, err)
		return false
	}
	return l.detector.CheckAndSync(ctx, build)
}

// Invalidate drops every cached response for build's repository.
func (p *Pipeline) Invalidate(build *contracts.Build) (int, error) {
	l, err := p.lane(build.Provider)
	if err != nil {
		return 0, err
	}
	return l.client.InvalidateRepository(build.Owner, build.Repo), nil
}
