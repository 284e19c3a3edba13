package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/snipmux/snipmux/internal/status"
)

// Coordinator owns background cycle scheduling: the initial startup cycle,
// the periodic timer, and queued triggers from the watcher, the API, and
// configuration reloads. Cycles run strictly one at a time.
type Coordinator interface {
	// Start runs the scheduling loop. Blocks until the context is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator
	Stop() error

	// Trigger queues a cycle without blocking. At most one trigger is
	// held while a cycle runs; a full queue drops the request and
	// reports false.
	Trigger(opts CycleOptions) bool
}

// IntervalFunc returns the current periodic sync interval, zero when the
// timer is disabled. Re-read after every cycle so reloads take effect.
type IntervalFunc func() time.Duration

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	engine   Engine
	interval IntervalFunc
	triggers chan CycleOptions

	// Lifecycle management
	cancelFunc context.CancelFunc
	done       chan struct{}
}

var _ Coordinator = (*defaultCoordinator)(nil)

// NewCoordinator creates a coordinator driving the given engine.
func NewCoordinator(engine Engine, interval IntervalFunc) Coordinator {
	return &defaultCoordinator{
		engine:   engine,
		interval: interval,
		triggers: make(chan CycleOptions, 1),
		done:     make(chan struct{}),
	}
}

// Trigger implements Coordinator.
func (c *defaultCoordinator) Trigger(opts CycleOptions) bool {
	select {
	case c.triggers <- opts:
		return true
	default:
		return false
	}
}

// Start implements Coordinator.
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		slog.Info("Sync coordinator shutting down")
	}()

	slog.Info("Starting sync coordinator", "interval", c.interval().String())

	// The startup cycle publishes a first table before anything is served.
	c.run(coordCtx, OptionsFor(status.TriggerStartup))

	for {
		// Re-arm the timer each round so interval changes apply.
		var tickC <-chan time.Time
		var timer *time.Timer
		if d := c.interval(); d > 0 {
			timer = time.NewTimer(d)
			tickC = timer.C
		}

		select {
		case <-coordCtx.Done():
			stopTimer(timer)
			return nil
		case opts := <-c.triggers:
			stopTimer(timer)
			c.run(coordCtx, opts)
		case <-tickC:
			c.run(coordCtx, OptionsFor(status.TriggerTimer))
		}
	}
}

// Stop implements Coordinator.
func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		c.cancelFunc()
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) run(ctx context.Context, opts CycleOptions) {
	if ctx.Err() != nil {
		return
	}
	if _, err := c.engine.RunCycle(ctx, opts); err != nil {
		slog.ErrorContext(ctx, "Sync cycle failed",
			"trigger", string(opts.Trigger),
			"error", err)
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}
