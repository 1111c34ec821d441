package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/stillpoint/drip/internal/pkg/distlock"
	"github.com/stillpoint/drip/internal/pkg/logger"
)

// Engine runs the processor on a fixed interval. Deployments that prefer
// an external scheduler hit POST /process instead and leave the engine
// disabled; both paths share the same run lock so they can coexist.
type Engine struct {
	processor *Processor
	newLock   func() distlock.DistLock
	interval  time.Duration
	lockTTL   time.Duration

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.RWMutex
	running   bool
	healthy   bool
	lastRunAt time.Time
}

// NewEngine creates the ticker wrapper around a processor. newLock is
// called once per tick so each run gets a fresh lock identity.
func NewEngine(processor *Processor, newLock func() distlock.DistLock, interval time.Duration) *Engine {
	return &Engine{
		processor: processor,
		newLock:   newLock,
		interval:  interval,
		healthy:   true,
	}
}

// Start launches the engine loop in a goroutine.
func (e *Engine) Start() {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.mu.Unlock()

	logger.Info("engine: starting", "interval", e.interval)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.ctx.Done():
				logger.Info("engine: stopped")
				return
			case <-ticker.C:
				e.tick()
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight run to finish, with a
// timeout so shutdown never hangs on a stuck provider call.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn("engine: shutdown timeout, abandoning in-flight run")
	}
}

// IsHealthy reports whether the last tick completed without a batch-level
// failure. Used by the health endpoint.
func (e *Engine) IsHealthy() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.healthy
}

// LastRunAt returns when the last tick started.
func (e *Engine) LastRunAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRunAt
}

// RunOnce executes a single locked processor run. Returns a nil summary
// with a nil error when another instance holds the run lock.
func (e *Engine) RunOnce(ctx context.Context) (*BatchSummary, error) {
	lock := e.newLock()
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !acquired {
		logger.Debug("engine: run lock held elsewhere, skipping")
		return nil, nil
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			logger.Warn("engine: lock release failed", "error", err)
		}
	}()

	return e.processor.ProcessDue(ctx)
}

func (e *Engine) tick() {
	e.mu.Lock()
	e.lastRunAt = time.Now()
	e.mu.Unlock()

	_, err := e.RunOnce(e.ctx)

	e.mu.Lock()
	e.healthy = err == nil
	e.mu.Unlock()

	if err != nil {
		logger.Error("engine: run failed", "error", err)
	}
}
