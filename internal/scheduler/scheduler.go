// Package scheduler runs the weekly irregularity job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one run of a scheduled task.
type Job func(ctx context.Context) error

// Scheduler wraps a cron instance that never runs two copies of the job at
// once.
type Scheduler struct {
	cron    *cron.Cron
	entry   cron.EntryID
	job     Job
	log     *zap.Logger
	timeout time.Duration

	mu      sync.Mutex
	running bool
	base    context.Context // cancelled when Run's context is
}

// New parses spec (standard five-field cron) and registers job.  Each run
// gets its own context bounded by timeout.
func New(spec string, loc *time.Location, timeout time.Duration, job Job, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	s := &Scheduler{job: job, log: log, timeout: timeout}
	clog := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	id, err := s.cron.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entry = id
	return s, nil
}

// Run starts the schedule and blocks until ctx is cancelled.  With
// runNow the job also runs once immediately.  Runs see ctx's cancellation,
// and on return no run is in flight.
func (s *Scheduler) Run(ctx context.Context, runNow bool) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.log.Info("scheduler started", zap.Time("next_run", s.Next()))
	var startup sync.WaitGroup
	if runNow {
		startup.Add(1)
		go func() {
			defer startup.Done()
			s.cron.Entry(s.entry).WrappedJob.Run()
		}()
	}
	<-ctx.Done()
	<-s.cron.Stop().Done()
	startup.Wait()
	s.log.Info("scheduler stopped")
	return nil
}

// Next is the next scheduled run time.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) runOnce() {
	s.mu.Lock()
	s.running = true
	base := s.base
	s.mu.Unlock()
	if base == nil {
		base = context.Background()
	}
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Error("scheduled job failed", zap.Error(err), zap.Duration("took", time.Since(start)))
		return
	}
	s.log.Info("scheduled job finished", zap.Duration("took", time.Since(start)))
}
