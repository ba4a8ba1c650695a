// Package scheduler runs periodic maintenance such as the alias expiry sweep.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/khrees2412/autoapply/internal/logger"
	"github.com/khrees2412/autoapply/internal/metrics"
)

const DefaultSweepSchedule = "@hourly"

// Sweeper expires stale forwarding aliases.
type Sweeper interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// Scheduler owns a cron instance running the sweep.
type Scheduler struct {
	cron    *cron.Cron
	parser  cron.Parser
	sweeper Sweeper
	metrics *metrics.Metrics
	log     logger.Logger
	timeout time.Duration
	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	entryID cron.EntryID
}

// cronLogger routes cron's own messages into the service logger.
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug("cron: "+msg, logger.Any("details", keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error("cron: "+msg, logger.Error(err), logger.Any("details", keysAndValues))
}

// New returns a stopped scheduler.
func New(sweeper Sweeper, m *metrics.Metrics, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cronLogger{log}),
			cron.WithChain(cron.Recover(cronLogger{log}), cron.SkipIfStillRunning(cronLogger{log})),
		),
		parser:  parser,
		sweeper: sweeper,
		metrics: m,
		log:     log,
		timeout: time.Minute,
	}
}

// Start registers the sweep on schedule and starts the cron loop.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	sched, err := s.parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("parse sweep schedule %q: %w", schedule, err)
	}
	id, err := s.cron.AddFunc(schedule, func() { s.Sweep(context.Background()) })
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.entryID = id
	s.cron.Start()

	s.log.Info("Alias sweep scheduled",
		logger.String("schedule", schedule),
		logger.String("next_run", sched.Next(time.Now()).Format(time.RFC3339)))
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next returns the next scheduled sweep, or the zero time when not started.
func (s *Scheduler) Next() time.Time {
	if s.entryID == 0 {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// Sweep runs one expiry pass.
func (s *Scheduler) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.sweeper.ExpireStale(ctx)

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.log.Error("Alias sweep failed", logger.Error(err))
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.AliasesExpired.Add(float64(n))
	}
	s.log.Debug("Alias sweep finished", logger.Int64("expired", n))
	return n, nil
}

// LastRun reports when the sweep last ran and its error.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun, s.lastErr
}
