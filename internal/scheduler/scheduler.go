// Package scheduler triggers ingest runs on a cron schedule.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bryan-buckman/techpulse/internal/ingest"
)

// LockKey is the shared key ticks contend on.
const LockKey = "techpulse:ingest:lock"

// DefaultLockTTL bounds how long a crashed replica can hold the lock.
const DefaultLockTTL = 10 * time.Minute

// Runner executes one ingest cycle.
type Runner interface {
	Run(ctx context.Context, opts ingest.RunOptions) (*ingest.Summary, error)
}

// Options configures a Scheduler.
type Options struct {
	Locker  Locker // nil runs every tick unguarded
	LockTTL time.Duration
	Logger  *slog.Logger
}

// Scheduler runs due sources on every cron tick. Ticks never overlap within
// a process; with a Locker they also never overlap across processes.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	locker  Locker
	lockTTL time.Duration
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler for spec, a standard five-field cron expression.
func New(spec string, runner Runner, opts Options) (*Scheduler, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = DefaultLockTTL
	}
	clog := cronLogger{opts.Logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    c,
		runner:  runner,
		locker:  opts.Locker,
		lockTTL: opts.LockTTL,
		logger:  opts.Logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	if _, err := c.AddFunc(spec, s.tick); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

// Start begins scheduling in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop cancels an in-flight run and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// RunOnce executes a single tick immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (*ingest.Summary, error) {
	return s.run(ctx)
}

func (s *Scheduler) tick() {
	s.wg.Add(1)
	defer s.wg.Done()
	if _, err := s.run(s.ctx); err != nil {
		s.logger.Error("scheduled run failed", "error", err)
	}
}

func (s *Scheduler) run(ctx context.Context) (*ingest.Summary, error) {
	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, LockKey, s.lockTTL)
		if err != nil {
			s.logger.Warn("lock unavailable, skipping tick", "error", err)
			return nil, nil
		}
		if !ok {
			s.logger.Info("another replica holds the lock, skipping tick")
			return nil, nil
		}
		defer release()
	}
	return s.runner.Run(ctx, ingest.RunOptions{OnlyDue: true})
}

// cronLogger routes cron's own logging through slog.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
