package sync

import (
	"context"
	gosync "sync"
	"time"

	"go.uber.org/zap"
)

// Engine runs the periodic missed-message sync. Each tick calls the tick
// function, which is expected to hand the work to the session's event flow
// rather than do it inline.
type Engine struct {
	interval time.Duration
	tick     func()
	logger   *zap.Logger

	mu     gosync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a stopped engine.
func NewEngine(interval time.Duration, tick func(), logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		interval: interval,
		tick:     tick,
		logger:   logger,
	}
}

// Start begins ticking. Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	if e.interval <= 0 {
		e.logger.Info("periodic sync disabled")
		return
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	go e.loop(ctx, e.done)
	e.logger.Info("periodic sync started", zap.Duration("interval", e.interval))
}

// Stop stops ticking and waits for the loop to exit. Safe to call on a
// stopped engine.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.logger.Info("periodic sync stopped")
}

// Running reports whether the engine is ticking.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.tick()
		case <-ctx.Done():
			return
		}
	}
}
