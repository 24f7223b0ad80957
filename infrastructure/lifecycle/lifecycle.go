// Package lifecycle provides the shared start/stop/worker scaffolding used by
// long-running gateway components: the adapter runtime's message pump and
// the driver subsystem's group scheduler. Both need the same shape: a set of
// background goroutines that must all observe a single stop signal exactly
// once, plus a cheap health snapshot for the manager's health surface.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/neuron-gateway/gateway/infrastructure/logging"
)

// HealthChecker is implemented by anything that can report its own health
// for the manager's aggregated health surface.
type HealthChecker interface {
	HealthStatus() string
	HealthDetails() map[string]any
}

// Base wraps the common worker/ticker/stop-channel plumbing shared by the
// adapter runtime and the group scheduler. Embed it and add domain-specific
// fields and methods on top.
type Base struct {
	id     string
	name   string
	logger *logging.Logger

	stopCh   chan struct{}
	stopOnce sync.Once

	workers []func(context.Context)

	healthMu        sync.RWMutex
	healthy         bool
	lastHealthCheck time.Time
	startTime       time.Time
}

// NewBase constructs a Base identified by id/name, logging through logger
// (or a fresh logger derived from name if logger is nil).
func NewBase(id, name string, logger *logging.Logger) *Base {
	if logger == nil {
		serviceName := name
		if serviceName == "" {
			serviceName = "component"
		}
		logger = logging.NewFromEnv(serviceName)
	}
	return &Base{
		id:      id,
		name:    name,
		logger:  logger,
		stopCh:  make(chan struct{}),
		healthy: true,
	}
}

// ID returns the component's identifier.
func (b *Base) ID() string { return b.id }

// Name returns the component's display name.
func (b *Base) Name() string { return b.name }

// Logger returns the component's structured logger.
func (b *Base) Logger() *logging.Logger { return b.logger }

// AddWorker registers a background worker started by Start. Workers must
// respect context cancellation and the stop channel.
func (b *Base) AddWorker(fn func(context.Context)) *Base {
	b.workers = append(b.workers, fn)
	return b
}

type tickerWorkerConfig struct {
	name           string
	runImmediately bool
}

// TickerWorkerOption configures AddTickerWorker behavior.
type TickerWorkerOption func(*tickerWorkerConfig)

// WithTickerWorkerName sets a friendly name used in error logs.
func WithTickerWorkerName(name string) TickerWorkerOption {
	return func(cfg *tickerWorkerConfig) { cfg.name = name }
}

// WithTickerWorkerImmediate runs the worker once immediately on Start,
// before waiting for the first tick.
func WithTickerWorkerImmediate() TickerWorkerOption {
	return func(cfg *tickerWorkerConfig) { cfg.runImmediately = true }
}

// AddTickerWorker registers a periodic background worker that calls fn at
// every interval tick until Stop is called or ctx is cancelled. A single bad
// tick logs a warning and the loop continues; it never takes the component
// down.
func (b *Base) AddTickerWorker(interval time.Duration, fn func(context.Context) error, opts ...TickerWorkerOption) *Base {
	cfg := tickerWorkerConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	worker := func(ctx context.Context) {
		logErr := func(err error) {
			if err == nil {
				return
			}
			entry := b.logger.WithContext(ctx).WithError(err)
			if cfg.name != "" {
				entry = entry.WithField("worker", cfg.name)
			}
			entry.Warn("ticker worker error")
		}

		if cfg.runImmediately {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			default:
			}
			if err := fn(ctx); err != nil {
				logErr(err)
			}
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-b.stopCh:
				return
			case <-ticker.C:
				if err := fn(ctx); err != nil {
					logErr(err)
				}
			}
		}
	}
	b.workers = append(b.workers, worker)
	return b
}

// StopChan exposes the stop channel for workers that need more control than
// AddWorker/AddTickerWorker provide (e.g. a message pump reading from a
// channel in a select alongside this one).
func (b *Base) StopChan() <-chan struct{} {
	return b.stopCh
}

// Start launches all registered workers. It is not idempotent; call it once.
func (b *Base) Start(ctx context.Context) error {
	b.healthMu.Lock()
	if b.startTime.IsZero() {
		b.startTime = time.Now()
	}
	b.healthMu.Unlock()

	for _, w := range b.workers {
		worker := w
		go worker(ctx)
	}
	return nil
}

// Stop closes the stop channel exactly once, signaling every worker to
// return.
func (b *Base) Stop() error {
	b.stopOnce.Do(func() {
		close(b.stopCh)
	})
	return nil
}

// WorkerCount returns the number of registered background workers.
func (b *Base) WorkerCount() int {
	return len(b.workers)
}

// SetHealthy records the component's current health, typically updated by
// the embedding type after a read/write cycle succeeds or fails.
func (b *Base) SetHealthy(healthy bool) {
	b.healthMu.Lock()
	b.healthy = healthy
	b.lastHealthCheck = time.Now()
	b.healthMu.Unlock()
}

// HealthStatus returns "healthy" or "unhealthy" based on the last recorded
// state.
func (b *Base) HealthStatus() string {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()
	if b.healthy {
		return "healthy"
	}
	return "unhealthy"
}

// HealthDetails returns a map describing the most recent health state and
// process uptime since Start.
func (b *Base) HealthDetails() map[string]any {
	b.healthMu.RLock()
	defer b.healthMu.RUnlock()

	details := map[string]any{
		"healthy": b.healthy,
	}
	if !b.lastHealthCheck.IsZero() {
		details["last_check"] = b.lastHealthCheck.Format(time.RFC3339)
	} else {
		details["last_check"] = ""
	}

	uptime := time.Duration(0)
	if !b.startTime.IsZero() {
		uptime = time.Since(b.startTime)
	}
	details["uptime"] = uptime.String()

	return details
}

var _ HealthChecker = (*Base)(nil)
