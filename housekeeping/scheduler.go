/*
Package housekeeping runs periodic maintenance against the engine.

PURPOSE:
  Rejected subscriptions and company investments are kept for a grace period
  (REJECTED_TTL) so reviewers can still look at them, then deleted. Approved,
  settled and pending records are never touched.

DESIGN:
  - robfig/cron drives the schedule (standard 5-field spec, default daily)
  - Each run purges records whose updated_at is older than now - TTL
  - Runs never overlap (cron.SkipIfStillRunning)
  - Failures are logged; the next run simply retries

USAGE:
  scheduler, err := housekeeping.New(eng, housekeeping.Config{Spec: "0 0 * * *", TTL: 24 * time.Hour}, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - engine/housekeeping.go: PurgeRejected
*/
package housekeeping

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/warp/payout-engine/engine"
)

// Purger is the engine operation the scheduler drives.
type Purger interface {
	PurgeRejected(ctx context.Context, before time.Time) (engine.PurgeResult, error)
}

type Config struct {
	Spec    string        // cron expression, e.g. "0 0 * * *"
	TTL     time.Duration // age after which rejected records are deleted
	Timeout time.Duration // per-run deadline
}

// Scheduler deletes stale rejected records on a cron schedule.
type Scheduler struct {
	purger Purger
	cfg    Config
	logger logrus.FieldLogger
	now    func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID

	mu      sync.Mutex
	running bool
	lastRun time.Time
	last    engine.PurgeResult
}

// New validates the cron spec and builds a stopped scheduler.
func New(purger Purger, cfg Config, logger logrus.FieldLogger) (*Scheduler, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.Spec == "" {
		cfg.Spec = "0 0 * * *"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}

	s := &Scheduler{
		purger: purger,
		cfg:    cfg,
		logger: logger.WithField("component", "housekeeping"),
		now:    time.Now,
	}
	cronLog := cron.PrintfLogger(s.logger)
	s.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	id, err := s.cron.AddFunc(cfg.Spec, func() { s.RunNow(context.Background()) })
	if err != nil {
		return nil, fmt.Errorf("invalid housekeeping schedule %q: %w", cfg.Spec, err)
	}
	s.entryID = id
	return s, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.WithFields(logrus.Fields{"spec": s.cfg.Spec, "ttl": s.cfg.TTL.String()}).Info("housekeeping scheduler started")
}

// Stop stops the scheduler and waits for a running purge to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("housekeeping scheduler stopped")
}

// RunNow purges immediately (admin trigger, tests).
func (s *Scheduler) RunNow(ctx context.Context) (engine.PurgeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	now := s.now().UTC()
	cutoff := now.Add(-s.cfg.TTL)
	res, err := s.purger.PurgeRejected(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).WithField("cutoff", cutoff.Format(time.RFC3339)).Error("purge of rejected records failed")
		return engine.PurgeResult{}, err
	}

	s.mu.Lock()
	s.lastRun = now
	s.last = res
	s.mu.Unlock()
	return res, nil
}

// LastRun reports when the last successful purge ran and what it removed.
func (s *Scheduler) LastRun() (time.Time, engine.PurgeResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.last
}

// NextRunTime returns when the next scheduled purge will occur.
func (s *Scheduler) NextRunTime() time.Time {
	return s.cron.Entry(s.entryID).Next
}
