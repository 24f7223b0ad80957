package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestBase_AddWorkerRunsAndStops(t *testing.T) {
	b := NewBase("d1", "test-adapter", nil)

	var ran int32
	done := make(chan struct{})
	b.AddWorker(func(ctx context.Context) {
		atomic.AddInt32(&ran, 1)
		select {
		case <-ctx.Done():
		case <-b.StopChan():
		}
		close(done)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not observe stop signal")
	}

	if atomic.LoadInt32(&ran) != 1 {
		t.Errorf("worker ran %d times, want 1", ran)
	}
}

func TestBase_StopIsIdempotent(t *testing.T) {
	b := NewBase("d1", "test-adapter", nil)
	if err := b.Stop(); err != nil {
		t.Fatalf("first Stop() error = %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}

func TestBase_AddTickerWorker(t *testing.T) {
	b := NewBase("d1", "test-scheduler", nil)

	var ticks int32
	b.AddTickerWorker(10*time.Millisecond, func(ctx context.Context) error {
		atomic.AddInt32(&ticks, 1)
		return nil
	}, WithTickerWorkerName("group-read"))

	ctx := context.Background()
	if err := b.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer b.Stop()

	time.Sleep(55 * time.Millisecond)
	b.Stop()

	if atomic.LoadInt32(&ticks) < 2 {
		t.Errorf("ticks = %d, want at least 2", ticks)
	}
}

func TestBase_AddTickerWorkerImmediate(t *testing.T) {
	b := NewBase("d1", "test-scheduler", nil)

	var ticks int32
	b.AddTickerWorker(time.Hour, func(ctx context.Context) error {
		atomic.AddInt32(&ticks, 1)
		return nil
	}, WithTickerWorkerImmediate())

	ctx := context.Background()
	b.Start(ctx)
	defer b.Stop()

	time.Sleep(20 * time.Millisecond)

	if atomic.LoadInt32(&ticks) != 1 {
		t.Errorf("ticks = %d, want 1 (immediate run only)", ticks)
	}
}

func TestBase_HealthStatus(t *testing.T) {
	b := NewBase("d1", "test-adapter", nil)

	if got := b.HealthStatus(); got != "healthy" {
		t.Errorf("initial HealthStatus() = %q, want healthy", got)
	}

	b.SetHealthy(false)
	if got := b.HealthStatus(); got != "unhealthy" {
		t.Errorf("HealthStatus() after SetHealthy(false) = %q, want unhealthy", got)
	}

	details := b.HealthDetails()
	if details["healthy"] != false {
		t.Errorf("HealthDetails()[healthy] = %v, want false", details["healthy"])
	}
}

func TestBase_WorkerCount(t *testing.T) {
	b := NewBase("d1", "test-adapter", nil)
	b.AddWorker(func(ctx context.Context) {})
	b.AddTickerWorker(time.Second, func(ctx context.Context) error { return nil })

	if got := b.WorkerCount(); got != 2 {
		t.Errorf("WorkerCount() = %d, want 2", got)
	}
}
