// Package syncer brings a Build's persisted run history up to date with its CI provider.
//
// A build starts in backfill mode, where every run since BackfillSince is fetched.
// After the first successful sync it moves to incremental mode, where only runs
// created since the newest persisted run are fetched, up to Options.SteadyLimit.
// New runs are deduplicated against the store, persisted in bulk, and the newest
// of them are hydrated with parsed test reports.
package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"cisync/src/broker"
	"cisync/src/cachedclient"
	"cisync/src/contracts"
	"cisync/src/logger"
	"cisync/src/metrics"
	"cisync/src/provider"
	"cisync/src/selector"
	"cisync/src/store"
)

// BackfillSince is the start of the fetch window for a build's first sync.
var BackfillSince = time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

const (
	DefaultLookback       = 7 * 24 * time.Hour
	DefaultSteadyLimit    = 100
	DefaultHydrationLimit = 50
	DefaultInterPageDelay = 500 * time.Millisecond
)

// Mode is the fetch strategy of a sync call.
type Mode string

const (
	ModeBackfill    Mode = "backfill"
	ModeIncremental Mode = "incremental"
)

// Options tunes the fetch window and hydration bound.
type Options struct {
	// InterPageDelay is waited before every page after the first.
	InterPageDelay time.Duration
	// Lookback is the incremental window when no run has been persisted yet.
	Lookback time.Duration
	// SteadyLimit caps the runs fetched by an incremental sync.
	SteadyLimit int
	// HydrationLimit caps the runs hydrated with test reports per call.
	HydrationLimit int
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		InterPageDelay: DefaultInterPageDelay,
		Lookback:       DefaultLookback,
		SteadyLimit:    DefaultSteadyLimit,
		HydrationLimit: DefaultHydrationLimit,
	}
}

// Syncer drives sync calls. Each call is sequential; distinct builds may sync concurrently.
type Syncer struct {
	client    *cachedclient.Client
	store     store.Store
	logger    logger.Logger
	publisher broker.Broker
	progress  func(Progress)
	now       func() time.Time
	newID     func() string
	opts      Options
}

// Option configures a Syncer.
type Option func(*Syncer)

func WithLogger(l logger.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithPublisher publishes a SyncEvent after every call.
func WithPublisher(b broker.Broker) Option {
	return func(s *Syncer) { s.publisher = b }
}

// WithProgress reports stage transitions to fn.
func WithProgress(fn func(Progress)) Option {
	return func(s *Syncer) { s.progress = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithOptions overrides the defaults; zero fields keep their default.
func WithOptions(o Options) Option {
	return func(s *Syncer) {
		if o.InterPageDelay > 0 {
			s.opts.InterPageDelay = o.InterPageDelay
		}
		if o.Lookback > 0 {
			s.opts.Lookback = o.Lookback
		}
		if o.SteadyLimit > 0 {
			s.opts.SteadyLimit = o.SteadyLimit
		}
		if o.HydrationLimit > 0 {
			s.opts.HydrationLimit = o.HydrationLimit
		}
	}
}

// New creates a Syncer reading through client and persisting to st.
func New(client *cachedclient.Client, st store.Store, opts ...Option) *Syncer {
	s := &Syncer{
		client: client,
		store:  st,
		logger: logger.NewSilentLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
		opts:   DefaultOptions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync fetches, persists and hydrates new runs for build.
// On failure the error is recorded in the build's SyncStatus and returned.
func (s *Syncer) Sync(ctx context.Context, build *contracts.Build) (*contracts.SyncResult, error) {
	start := s.now()

	status, err := s.loadStatus(ctx, build)
	if err != nil {
		s.fail(ctx, build, nil, ModeBackfill, start, err)
		return nil, err
	}

	mode := ModeIncremental
	if !status.InitialBackfillCompleted {
		mode = ModeBackfill
	}
	s.logger.Info("[SyncOrchestrator] Syncing %s (%s) in %s mode", build.ID, build.Slug(), mode)

	outcome, err := s.run(ctx, build, status, mode)
	if err != nil {
		s.fail(ctx, build, status, mode, start, err)
		return nil, err
	}

	// The success state is built on a copy so a failed save records the
	// error against the status as it was loaded.
	next := *status
	syncedAt := s.now()
	next.LastSyncedAt = &syncedAt
	next.TotalRunsSynced += outcome.inserted
	next.LastSyncError = nil
	next.InitialBackfillCompleted = true
	if newest := outcome.newest; newest != nil {
		if next.LastSyncedRunCreatedAt == nil || newest.CreatedAt.After(*next.LastSyncedRunCreatedAt) {
			created := newest.CreatedAt
			runID := newest.ProviderRunID
			next.LastSyncedRunCreatedAt = &created
			next.LastSyncedRunID = &runID
		}
	}

	if err := s.store.UpsertSyncStatus(ctx, &next); err != nil {
		err = fmt.Errorf("failed to save sync status: %w", err)
		s.fail(ctx, build, status, mode, start, err)
		return nil, err
	}

	result := &contracts.SyncResult{
		NewRunsSynced:     outcome.inserted,
		TestResultsParsed: outcome.parsed,
		LastSyncedAt:      syncedAt,
	}

	metrics.Syncs.WithLabelValues(string(mode), "success").Inc()
	metrics.SyncDuration.WithLabelValues(string(mode)).Observe(s.now().Sub(start).Seconds())
	metrics.RunsPersisted.WithLabelValues(build.ID).Add(float64(outcome.inserted))

	s.report(Progress{
		Stage:   StageDone,
		Current: outcome.inserted,
		Total:   outcome.inserted,
		Message: fmt.Sprintf("%d new runs, %d test reports", result.NewRunsSynced, result.TestResultsParsed),
	})
	s.logger.Info("[SyncOrchestrator] Synced %s: %d new runs, %d test reports", build.ID, result.NewRunsSynced, result.TestResultsParsed)
	s.publish(ctx, build, mode, result, nil)

	return result, nil
}

// loadStatus returns the build's SyncStatus, creating it on the first attempt.
func (s *Syncer) loadStatus(ctx context.Context, build *contracts.Build) (*contracts.SyncStatus, error) {
	status, err := s.store.FindSyncStatus(ctx, build.ID, build.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sync status: %w", err)
	}
	if status != nil {
		return status, nil
	}

	status = &contracts.SyncStatus{BuildID: build.ID, TenantID: build.TenantID}
	if err := s.store.UpsertSyncStatus(ctx, status); err != nil {
		return nil, fmt.Errorf("failed to create sync status: %w", err)
	}
	return status, nil
}

type runOutcome struct {
	inserted int
	parsed   int
	newest   *contracts.RunRecord
}

func (s *Syncer) run(ctx context.Context, build *contracts.Build, status *contracts.SyncStatus, mode Mode) (*runOutcome, error) {
	expiration := build.CacheExpiration()

	s.report(Progress{Stage: StageFetching})
	listOpts := s.listOptions(status, mode)
	runs, err := s.client.ListRuns(ctx, build.Owner, build.Repo, listOpts, expiration)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for %s: %w", build.Slug(), err)
	}
	s.logger.Debug("[SyncOrchestrator] Fetched %d runs since %s", len(runs), listOpts.Since.Format(time.RFC3339))

	var tags []string
	if selector.NeedsTags(build.Selectors) {
		tags, err = s.client.ListTags(ctx, build.Owner, build.Repo, cachedclient.TagListLimit, expiration)
		if err != nil {
			return nil, fmt.Errorf("failed to list tags for %s: %w", build.Slug(), err)
		}
	}

	s.report(Progress{Stage: StageFiltering, Total: len(runs)})
	matched := selector.Filter(runs, build.Selectors, tags)
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	records, err := s.newRecords(ctx, build, matched)
	if err != nil {
		return nil, err
	}

	s.report(Progress{Stage: StagePersisting, Total: len(records)})
	inserted, err := s.store.BulkCreateRuns(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("failed to persist runs: %w", err)
	}

	outcome := &runOutcome{inserted: inserted}
	if len(records) > 0 {
		outcome.newest = &records[0]
	}

	outcome.parsed, err = s.hydrate(ctx, build, records)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (s *Syncer) listOptions(status *contracts.SyncStatus, mode Mode) provider.ListRunsOptions {
	opts := provider.ListRunsOptions{InterPageDelay: s.opts.InterPageDelay}
	if mode == ModeBackfill {
		opts.Since = BackfillSince
		return opts
	}

	opts.Limit = s.opts.SteadyLimit
	if status.LastSyncedRunCreatedAt != nil {
		opts.Since = *status.LastSyncedRunCreatedAt
	} else {
		// Minute resolution keeps the cache key stable between nearby syncs.
		opts.Since = s.now().Add(-s.opts.Lookback).Truncate(time.Minute)
	}
	return opts
}

// newRecords drops runs already persisted (or repeated in the listing) and
// converts the rest, keeping newest-first order.
func (s *Syncer) newRecords(ctx context.Context, build *contracts.Build, runs []provider.WorkflowRun) ([]contracts.RunRecord, error) {
	seen := make(map[int64]struct{}, len(runs))
	var records []contracts.RunRecord

	for _, run := range runs {
		if _, dup := seen[run.ID]; dup {
			continue
		}
		seen[run.ID] = struct{}{}

		existing, err := s.store.FindByProviderRunID(ctx, build.ID, run.ID, build.TenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to look up run %d: %w", run.ID, err)
		}
		if existing != nil {
			continue
		}

		records = append(records, contracts.RunRecord{
			ID:            s.newID(),
			BuildID:       build.ID,
			TenantID:      build.TenantID,
			ProviderRunID: run.ID,
			Name:          run.Name,
			Status:        string(run.Status),
			HTMLURL:       run.HTMLURL,
			HeadBranch:    run.HeadBranch,
			Event:         run.Event,
			CreatedAt:     run.CreatedAt,
			UpdatedAt:     run.UpdatedAt,
			Duration:      run.Duration,
		})
	}
	return records, nil
}

// fail records err on the build's SyncStatus, when one was loaded.
// Errors while recording are logged only.
func (s *Syncer) fail(ctx context.Context, build *contracts.Build, status *contracts.SyncStatus, mode Mode, start time.Time, err error) {
	msg := err.Error()
	if status != nil {
		status.LastSyncError = &msg
		if upsertErr := s.store.UpsertSyncStatus(ctx, status); upsertErr != nil {
			s.logger.Error("[SyncOrchestrator] Failed to record sync error for %s: %v", build.ID, upsertErr)
		}
	}

	metrics.Syncs.WithLabelValues(string(mode), "failure").Inc()
	metrics.SyncDuration.WithLabelValues(string(mode)).Observe(s.now().Sub(start).Seconds())

	s.report(Progress{Stage: StageFailed, Message: msg})
	s.logger.Error("[SyncOrchestrator] Sync failed for %s: %v", build.ID, err)
	s.publish(ctx, build, mode, nil, err)
}

func (s *Syncer) publish(ctx context.Context, build *contracts.Build, mode Mode, result *contracts.SyncResult, syncErr error) {
	if s.publisher == nil {
		return
	}

	event := contracts.SyncEvent{
		BuildID:    build.ID,
		TenantID:   build.TenantID,
		Repository: build.Slug(),
		Mode:       string(mode),
		Timestamp:  s.now().UTC().Format(time.RFC3339),
	}
	if result != nil {
		event.NewRunsSynced = result.NewRunsSynced
		event.TestResultsParsed = result.TestResultsParsed
	}
	if syncErr != nil {
		event.Error = syncErr.Error()
	}

	if err := broker.PublishSyncEvent(ctx, s.publisher, event); err != nil {
		s.logger.Warn("[SyncOrchestrator] Failed to publish sync event for %s: %v", build.ID, err)
	}
}
