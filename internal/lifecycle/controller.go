// Package lifecycle decides when diff cycles run. A Controller drives one
// engine: immediately on start, on a fixed interval while running, and again
// immediately when the host app returns to the foreground. Backgrounding
// suspends the cycle timer; any fetch already in flight at suspend time is
// allowed to finish but its result is discarded.
package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tablr/orderwatch/internal/engine"
)

// Event is a host application lifecycle transition delivered by an injected
// event source, keeping the controller testable without a real host.
type Event int

const (
	// EventForeground resumes cycling and triggers an immediate cycle (plus a
	// heartbeat for variants that carry one).
	EventForeground Event = iota
	// EventBackground suspends the cycle timer.
	EventBackground
)

// Heartbeater sends the fire-and-forget liveness ping of the courier variant.
type Heartbeater interface {
	Heartbeat(ctx context.Context) error
}

// Controller owns the cycle cadence for one engine instance. Start and Stop
// are idempotent; at most one cycle timer exists per controller.
type Controller struct {
	eng    *engine.Engine
	hb     Heartbeater
	events <-chan Event
	logger *slog.Logger

	// trigger requests an immediate out-of-band cycle (screen visit).
	trigger chan struct{}

	// inFlight prevents a timer tick from starting an overlapping fetch while
	// a previous cycle is still unresolved.
	inFlight atomic.Bool

	mu          sync.Mutex
	outerCancel context.CancelFunc
	cycleCancel context.CancelFunc
}

// New creates a Controller for the engine. hb may be nil for variants without
// a heartbeat; events may be nil when no host lifecycle source exists.
func New(eng *engine.Engine, hb Heartbeater, events <-chan Event, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		eng:     eng,
		hb:      hb,
		events:  events,
		logger:  logger.With(slog.String("component", "lifecycle"), slog.String("role", string(eng.Rules().Role))),
		trigger: make(chan struct{}, 1),
	}
}

// Start restores persisted state and begins cycling. Calling Start on a
// running controller is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	if c.outerCancel != nil {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.outerCancel = cancel
	c.mu.Unlock()

	c.eng.Restore(runCtx)
	c.resume(runCtx)
	go c.eventLoop(runCtx)

	c.logger.Info("controller started",
		slog.Duration("poll_interval", c.eng.Rules().PollInterval),
		slog.Duration("heartbeat_interval", c.eng.Rules().HeartbeatInterval),
	)
}

// Stop cancels the cycle timer and the event loop. A fetch already in flight
// finishes but its result is discarded, so no state is resurrected after
// logout. Calling Stop on a stopped controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.outerCancel
	c.outerCancel = nil
	c.cycleCancel = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	c.logger.Info("controller stopped")
}

// TriggerNow requests an immediate cycle without waiting for the next tick.
// The admin variant ties its cadence to screen visits through this.
func (c *Controller) TriggerNow() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// eventLoop reacts to host lifecycle transitions until the controller stops.
func (c *Controller) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			switch ev {
			case EventBackground:
				c.logger.Debug("suspending on background")
				c.suspend()
			case EventForeground:
				c.logger.Debug("resuming on foreground")
				c.heartbeat(ctx)
				c.resume(ctx)
				c.TriggerNow()
			}
		}
	}
}

// resume starts the cycle loop if it is not already running.
func (c *Controller) resume(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycleCancel != nil || ctx.Err() != nil {
		return
	}
	cctx, cancel := context.WithCancel(ctx)
	c.cycleCancel = cancel
	go c.cycleLoop(cctx)
}

// suspend cancels the cycle loop. In-flight work observes the cancelled
// context after its fetch returns and discards the result.
func (c *Controller) suspend() {
	c.mu.Lock()
	cancel := c.cycleCancel
	c.cycleCancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// cycleLoop runs one immediate cycle, then ticks until cancelled.
func (c *Controller) cycleLoop(ctx context.Context) {
	c.runCycle(ctx)

	rules := c.eng.Rules()
	ticker := time.NewTicker(rules.PollInterval)
	defer ticker.Stop()

	var heartbeats <-chan time.Time
	if c.hb != nil && rules.HeartbeatInterval > 0 {
		hbTicker := time.NewTicker(rules.HeartbeatInterval)
		defer hbTicker.Stop()
		heartbeats = hbTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runCycle(ctx)
		case <-c.trigger:
			c.runCycle(ctx)
		case <-heartbeats:
			c.heartbeat(ctx)
		}
	}
}

// runCycle executes one engine cycle behind the in-flight latch. A tick that
// fires while a previous fetch is unresolved is dropped rather than queued.
func (c *Controller) runCycle(ctx context.Context) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.Debug("cycle already in flight, skipping tick")
		return
	}
	defer c.inFlight.Store(false)

	if err := c.eng.RunCycle(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			c.logger.Debug("cycle discarded after stop")
			return
		}
		// Fetch failures never surface to the user; the next cycle retries.
		c.logger.Warn("cycle failed", slog.String("error", err.Error()))
	}
}

// heartbeat is fire-and-forget; failures never affect the diff cycle.
func (c *Controller) heartbeat(ctx context.Context) {
	if c.hb == nil {
		return
	}
	if err := c.hb.Heartbeat(ctx); err != nil {
		c.logger.Debug("heartbeat failed", slog.String("error", err.Error()))
	}
}
