package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"cisync/src/broker"
	"cisync/src/config"
	"cisync/src/contracts"
	"cisync/src/logger"
	"cisync/src/pipeline"
	"cisync/src/store"
	"cisync/src/syncer"
)

// app holds the infrastructure shared by the subcommands.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	mode     pipeline.Mode
	store    store.Store
	broker   broker.Broker
	pipeline *pipeline.Pipeline
	progress *progressRelay
}

// progressRelay lets a command attach a progress consumer after the pipeline is built.
type progressRelay struct {
	mu sync.Mutex
	fn func(syncer.Progress)
}

func (r *progressRelay) set(fn func(syncer.Progress)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fn = fn
}

func (r *progressRelay) report(p syncer.Progress) {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn(p)
	}
}

// openApp loads the config, opens the store and broker and registers the
// configured builds. quiet keeps log output off the terminal (for the TUI and MCP stdio).
func openApp(ctx context.Context, quiet bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	logOpts := logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}
	if quiet {
		logOpts.Output = io.Discard
	}
	log, err := logger.New(logOpts)
	if err != nil {
		return nil, err
	}

	st, err := pipeline.OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	brk, err := pipeline.OpenBroker(cfg, log)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := pipeline.LoadBuilds(ctx, cfg, st); err != nil {
		brk.Close()
		st.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		log:      log,
		mode:     pipeline.DetectMode(cfg),
		store:    st,
		broker:   brk,
		progress: &progressRelay{},
	}

	opts := pipeline.FromConfig(cfg)
	opts.Publisher = brk
	opts.Logger = log
	opts.Progress = a.progress.report
	a.pipeline = pipeline.New(st, opts)

	log.Debug("[CLI] Running in %s mode", a.mode)
	return a, nil
}

func (a *app) Close() {
	if err := a.broker.Close(); err != nil {
		a.log.Warn("[CLI] Failed to close broker: %v", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("[CLI] Failed to close store: %v", err)
	}
}

// resolveBuild finds a build by ID, scoped to --tenant when given.
func (a *app) resolveBuild(ctx context.Context, buildID string) (*contracts.Build, error) {
	return resolveBuild(ctx, a.store, buildID, tenantID)
}

func resolveBuild(ctx context.Context, st store.Store, buildID, tenant string) (*contracts.Build, error) {
	if tenant != "" {
		build, err := st.GetBuild(ctx, buildID, tenant)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("build %s not found for tenant %s", buildID, tenant)
		}
		return build, err
	}

	builds, err := st.ListBuilds(ctx)
	if err != nil {
		return nil, err
	}
	var matches []contracts.Build
	for _, b := range builds {
		if b.ID == buildID {
			matches = append(matches, b)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("build %s not found (is it declared in the config?)", buildID)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("build %s exists in %d tenants, pass --tenant", buildID, len(matches))
	}
}
