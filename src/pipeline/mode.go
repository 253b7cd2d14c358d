package pipeline

import (
	"context"
	"fmt"

	"cisync/src/broker"
	"cisync/src/config"
	"cisync/src/logger"
	"cisync/src/store"
	"cisync/src/syncer"
)

// Mode describes where state and events live.
type Mode int

const (
	// LocalMode keeps runs in memory and delivers events in-process.
	LocalMode Mode = iota
	// DistributedMode persists to Postgres and publishes to Redpanda.
	DistributedMode
	// MixedMode uses exactly one of Postgres and Redpanda.
	MixedMode
)

func (m Mode) String() string {
	switch m {
	case LocalMode:
		return "local"
	case DistributedMode:
		return "distributed"
	default:
		return "mixed"
	}
}

// DetectMode reports which backends cfg selects.
func DetectMode(cfg *config.Config) Mode {
	hasDB := cfg.Database.DSN != ""
	hasBrokers := len(cfg.Redpanda.Brokers) > 0
	switch {
	case hasDB && hasBrokers:
		return DistributedMode
	case !hasDB && !hasBrokers:
		return LocalMode
	default:
		return MixedMode
	}
}

// OpenStore returns a Postgres store when a DSN is configured, else an in-memory one.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.DSN == "" {
		return store.NewMemoryStore(), nil
	}

	pg, err := store.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create Postgres store: %w", err)
	}
	if err := pg.InitSchema(ctx); err != nil {
		pg.Close()
		return nil, err
	}
	return pg, nil
}

// OpenBroker returns a Redpanda broker when brokers are configured, else an in-memory one.
func OpenBroker(cfg *config.Config, log logger.Logger) (broker.Broker, error) {
	if len(cfg.Redpanda.Brokers) == 0 {
		return broker.NewInMemoryBroker(), nil
	}

	rp, err := broker.NewRedpandaBroker(cfg.Redpanda.Brokers, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redpanda broker: %w", err)
	}
	return rp, nil
}

// FromConfig builds pipeline options from cfg.
func FromConfig(cfg *config.Config) Options {
	return Options{
		Tokens: map[string]string{
			"github":    cfg.GitHub.Token,
			"buildkite": cfg.Buildkite.Token,
		},
		GitHubBaseURL: cfg.GitHub.BaseURL,
		CacheCapacity: cfg.Cache.Capacity,
		Sync: syncer.Options{
			InterPageDelay: cfg.Sync.InterPageDelay,
			Lookback:       cfg.Sync.Lookback,
			SteadyLimit:    cfg.Sync.SteadyLimit,
			HydrationLimit: cfg.Sync.HydrationLimit,
		},
	}
}

// LoadBuilds upserts the builds declared in cfg into st.
// An already stored build keeps its last analyzed commit.
func LoadBuilds(ctx context.Context, cfg *config.Config, st store.Store) error {
	for _, bc := range cfg.Builds {
		build, err := bc.Build()
		if err != nil {
			return err
		}
		if existing, err := st.GetBuild(ctx, build.ID, build.TenantID); err == nil {
			build.LastAnalyzedCommitSHA = existing.LastAnalyzedCommitSHA
		}
		if err := st.SaveBuild(ctx, build); err != nil {
			return fmt.Errorf("failed to save build %s: %w", build.ID, err)
		}
	}
	return nil
}
