// Package detect decides whether a build needs a sync by comparing the
// repository's head commit with the last one analyzed.
package detect

import (
	"context"

	"cisync/src/contracts"
	"cisync/src/logger"
	"cisync/src/metrics"
	"cisync/src/provider"
	"cisync/src/store"
)

// Syncer is the sync call the detector gates.
type Syncer interface {
	Sync(ctx context.Context, build *contracts.Build) (*contracts.SyncResult, error)
}

// CommitSource returns the newest commit of a repository, or nil if it has none.
type CommitSource interface {
	GetLatestCommit(ctx context.Context, owner, repo string) (*provider.Commit, error)
}

// invalidator is implemented by commit sources that also cache listings,
// such as cachedclient.Client.
type invalidator interface {
	InvalidateRepository(owner, repo string) int
}

// Detector runs a sync only when the head commit moved.
// It never returns an error, so callers may invoke it on every read path.
type Detector struct {
	commits CommitSource
	syncer  Syncer
	store   store.Store
	logger  logger.Logger
}

// NewDetector creates a Detector. st records the analyzed commit after a
// successful sync and may be nil.
func NewDetector(commits CommitSource, syncer Syncer, st store.Store, log logger.Logger) *Detector {
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Detector{
		commits: commits,
		syncer:  syncer,
		store:   st,
		logger:  log,
	}
}

// CheckAndSync syncs build if its repository has a commit it has not analyzed.
// Returns true only when a sync ran and succeeded.
func (d *Detector) CheckAndSync(ctx context.Context, build *contracts.Build) bool {
	commit, err := d.commits.GetLatestCommit(ctx, build.Owner, build.Repo)
	if err != nil {
		d.logger.Warn("[ChangeDetector] Failed to fetch latest commit for %s: %v", build.Slug(), err)
		metrics.ChangeChecks.WithLabelValues("lookup_failed").Inc()
		return false
	}
	if commit == nil {
		d.logger.Debug("[ChangeDetector] %s has no commits", build.Slug())
		metrics.ChangeChecks.WithLabelValues("no_commit").Inc()
		return false
	}
	if build.LastAnalyzedCommitSHA != nil && *build.LastAnalyzedCommitSHA == commit.SHA {
		d.logger.Debug("[ChangeDetector] %s is current at %s", build.ID, shortSHA(commit.SHA))
		metrics.ChangeChecks.WithLabelValues("unchanged").Inc()
		return false
	}

	d.logger.Info("[ChangeDetector] %s moved to %s, syncing", build.ID, shortSHA(commit.SHA))
	// A new head means cached listings predate it.
	if inv, ok := d.commits.(invalidator); ok {
		removed := inv.InvalidateRepository(build.Owner, build.Repo)
		d.logger.Debug("[ChangeDetector] dropped %d cached entries for %s", removed, build.Slug())
	}
	if _, err := d.syncer.Sync(ctx, build); err != nil {
		d.logger.Error("[ChangeDetector] Sync failed for %s: %v", build.ID, err)
		metrics.ChangeChecks.WithLabelValues("sync_failed").Inc()
		return false
	}
	metrics.ChangeChecks.WithLabelValues("synced").Inc()

	sha := commit.SHA
	build.LastAnalyzedCommitSHA = &sha
	if d.store != nil {
		if err := d.store.UpdateLastAnalyzedCommit(ctx, build.ID, build.TenantID, sha); err != nil {
			d.logger.Warn("[ChangeDetector] Failed to record analyzed commit for %s: %v", build.ID, err)
		}
	}
	return true
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
