package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"FxPredict/internal/domain/models"
	"FxPredict/pkg/cache"
	applogger "FxPredict/pkg/logger"

	"github.com/robfig/cron/v3"
)

const lockKey = "lock:snapshot"

// SnapshotRunner produces and delivers one snapshot.
type SnapshotRunner interface {
	Run(ctx context.Context) (models.PredictionSnapshot, error)
}

// Scheduler runs the snapshot job on a cron spec with a seconds field.
// Overlapping runs are skipped, whether fired by cron or RunNow; with a lock
// cache only one instance runs per tick.
type Scheduler struct {
	cron    *cron.Cron
	running atomic.Bool
	runner  SnapshotRunner
	lock    cache.Service
	log     *applogger.Logger
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewScheduler creates a scheduler; lock may be nil.
func NewScheduler(runner SnapshotRunner, lock cache.Service, log *applogger.Logger, timeout time.Duration) *Scheduler {
	if log == nil {
		log = applogger.Nop()
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:  runner,
		lock:    lock,
		log:     log,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Register schedules the snapshot job.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.snapshotTask); err != nil {
		return fmt.Errorf("register snapshot task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", applogger.Int("jobs", len(s.cron.Entries())))
}

// Stop stops scheduling and waits for a running job to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer s.cancel()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// RunNow executes the snapshot job immediately (run_on_start).
func (s *Scheduler) RunNow() {
	s.snapshotTask()
}

func (s *Scheduler) snapshotTask() {
	if !s.running.CompareAndSwap(false, true) {
		s.log.Debug("snapshot skipped, previous run still in progress")
		return
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if s.lock != nil {
		ok, err := s.lock.TryLock(ctx, lockKey, s.timeout)
		if err != nil {
			s.log.Warn("snapshot lock unavailable, running anyway", applogger.Error(err))
		} else if !ok {
			s.log.Debug("snapshot skipped, another instance holds the lock")
			return
		} else {
			defer func() { _ = s.lock.Unlock(context.Background(), lockKey) }()
		}
	}

	snap, err := s.runner.Run(ctx)
	if err != nil {
		s.log.Error("snapshot task failed", applogger.Error(err))
		return
	}
	s.log.Debug("snapshot task done",
		applogger.Int("predictions", len(snap.Predictions)),
		applogger.String("generated_at", snap.GeneratedAt.Format(time.RFC3339)),
	)
}

// cronLogger adapts applogger to cron.Logger.
type cronLogger struct{ log *applogger.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error("cron: "+msg, append(kvFields(keysAndValues), applogger.Error(err))...)
}

func kvFields(kv []interface{}) []applogger.Field {
	out := make([]applogger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, applogger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
