// Package scheduler periodically runs the change detector over every stored build.
package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"cisync/src/contracts"
	"cisync/src/logger"
)

const (
	DefaultSpec        = "@every 5m"
	DefaultConcurrency = 4
)

// Checker syncs a build when it has changed, reporting whether a sync ran.
type Checker interface {
	CheckAndSync(ctx context.Context, build *contracts.Build) bool
}

// BuildLister lists every tracked build.
type BuildLister interface {
	ListBuilds(ctx context.Context) ([]contracts.Build, error)
}

// Summary counts the outcome of one pass.
type Summary struct {
	Checked int
	Synced  int
}

// Scheduler runs a pass over all builds on a cron schedule.
// Builds are checked concurrently; a pass still running when the next one is due is skipped.
type Scheduler struct {
	builds      BuildLister
	checker     Checker
	concurrency int
	logger      logger.Logger
	cron        *cron.Cron
}

// New creates a Scheduler. concurrency <= 0 uses DefaultConcurrency.
func New(builds BuildLister, checker Checker, concurrency int, log logger.Logger) *Scheduler {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}
	return &Scheduler{
		builds:      builds,
		checker:     checker,
		concurrency: concurrency,
		logger:      log,
	}
}

// RunOnce checks every build, at most concurrency at a time.
func (s *Scheduler) RunOnce(ctx context.Context) (Summary, error) {
	builds, err := s.builds.ListBuilds(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list builds: %w", err)
	}

	var synced atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range builds {
		build := &builds[i]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if s.checker.CheckAndSync(ctx, build) {
				synced.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Summary{Checked: len(builds), Synced: int(synced.Load())}, err
	}

	summary := Summary{Checked: len(builds), Synced: int(synced.Load())}
	s.logger.Info("[Scheduler] Checked %d builds, synced %d", summary.Checked, summary.Synced)
	return summary, nil
}

type passJob struct {
	ctx       context.Context
	scheduler *Scheduler
}

func (j *passJob) Run() {
	if _, err := j.scheduler.RunOnce(j.ctx); err != nil {
		j.scheduler.logger.Error("[Scheduler] Pass failed: %v", err)
	}
}

// Start schedules passes with a cron spec (e.g. "@every 5m" or "*/10 * * * *").
// Passes run with ctx until Stop is called.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}

	cronLogger := cron.PrintfLogger(printfLogger{s.logger})
	c := cron.New(cron.WithLogger(cronLogger))

	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger)).Then(&passJob{ctx: ctx, scheduler: s})
	if _, err := c.AddJob(spec, job); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("[Scheduler] Started with schedule %s", spec)
	return nil
}

// Stop stops scheduling and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// printfLogger routes cron's internal messages to debug output.
type printfLogger struct {
	l logger.Logger
}

func (p printfLogger) Printf(format string, args ...interface{}) {
	p.l.Debug("[Scheduler] "+format, args...)
}
