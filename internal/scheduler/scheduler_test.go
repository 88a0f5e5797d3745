package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"FxPredict/internal/domain/models"
	"FxPredict/pkg/cache"
)

type countingRunner struct {
	calls int32
	err   error
}

func (r *countingRunner) Run(context.Context) (models.PredictionSnapshot, error) {
	atomic.AddInt32(&r.calls, 1)
	return models.PredictionSnapshot{BaseCurrency: "USD"}, r.err
}

func TestRunNowInvokesRunner(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, nil, nil, time.Second)
	s.RunNow()
	r.err = errors.New("boom")
	s.RunNow()
	if got := atomic.LoadInt32(&r.calls); got != 2 {
		t.Fatalf("calls=%d", got)
	}
}

type blockingRunner struct {
	calls   int32
	release chan struct{}
}

func (r *blockingRunner) Run(ctx context.Context) (models.PredictionSnapshot, error) {
	atomic.AddInt32(&r.calls, 1)
	select {
	case <-r.release:
	case <-ctx.Done():
	}
	return models.PredictionSnapshot{BaseCurrency: "USD"}, nil
}

func TestRunNowSkipsWhileCronRunIsInFlight(t *testing.T) {
	r := &blockingRunner{release: make(chan struct{})}
	s := NewScheduler(r, nil, nil, 5*time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.snapshotTask()
	}()
	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&r.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	s.RunNow()
	if got := atomic.LoadInt32(&r.calls); got != 1 {
		t.Fatalf("overlapping run executed, calls=%d", got)
	}

	close(r.release)
	<-done
	s.RunNow()
	if got := atomic.LoadInt32(&r.calls); got != 2 {
		t.Fatalf("calls after release=%d", got)
	}
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := NewScheduler(&countingRunner{}, nil, nil, time.Second)
	if err := s.Register("every now and then"); err == nil {
		t.Fatal("expected parse error")
	}
	if err := s.Register("0 */15 * * * *"); err != nil {
		t.Fatalf("valid spec: %v", err)
	}
}

func TestLockHeldElsewhereSkipsRun(t *testing.T) {
	mem := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mem.Close()
	ok, _ := mem.TryLock(context.Background(), lockKey, time.Minute)
	if !ok {
		t.Fatal("setup lock failed")
	}

	r := &countingRunner{}
	s := NewScheduler(r, mem, nil, time.Second)
	s.RunNow()
	if got := atomic.LoadInt32(&r.calls); got != 0 {
		t.Fatalf("calls=%d", got)
	}

	_ = mem.Unlock(context.Background(), lockKey)
	s.RunNow()
	if got := atomic.LoadInt32(&r.calls); got != 1 {
		t.Fatalf("calls=%d", got)
	}
	if exists, _ := mem.Exists(context.Background(), lockKey); exists {
		t.Fatal("lock should be released after run")
	}
}

func TestCronFiresJob(t *testing.T) {
	r := &countingRunner{}
	s := NewScheduler(r, nil, nil, time.Second)
	if err := s.Register("* * * * * *"); err != nil {
		t.Fatal(err)
	}
	s.Start()
	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&r.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&r.calls) == 0 {
		t.Fatal("cron never fired")
	}
}
