// Package engine runs the decision cycle. Each monitored route gets a
// session goroutine that owns its state exclusively; disruption events
// for one route serialize through the session mailbox while routes
// proceed concurrently.
package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrelworks/sentinel/internal/adapters/actions"
	"github.com/kestrelworks/sentinel/internal/adapters/audit"
	"github.com/kestrelworks/sentinel/internal/domain/contextstore"
	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/internal/domain/reasoning"
	"github.com/kestrelworks/sentinel/internal/engine/safety"
	"github.com/kestrelworks/sentinel/pkg/logger"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Default engine configuration constants.
const (
	defaultMailboxSize   = 64
	defaultCooldown      = 15 * time.Minute
	defaultContextWindow = 24 * time.Hour
	defaultActionTimeout = 5 * time.Second
	defaultActionRetries = 2
	defaultAuditRetries  = 3
	defaultAuditBackoff  = 100 * time.Millisecond
)

// ShipmentSource resolves shipment ids to their current state for the
// reasoning input.
type ShipmentSource interface {
	ShipmentsByID(ids []string) []model.Shipment
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithCooldown sets the per-session suppression window recorded on
// entering ACT.
func WithCooldown(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cooldown = d
		}
	}
}

// WithMailboxSize bounds each session's event mailbox.
func WithMailboxSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.mailboxSize = n
		}
	}
}

// WithContextWindow sets the retrieval window passed to the context
// store.
func WithContextWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.contextWindow = d
		}
	}
}

// WithActionTimeout bounds a single executor call.
func WithActionTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.actionTimeout = d
		}
	}
}

// WithActionRetries sets how many times a failed executor call is
// retried before the action is marked permanently failed.
func WithActionRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.actionRetries = n
		}
	}
}

// WithAuditRetries sets retry count and initial backoff for audit
// appends. Exhausting the retries halts new action execution.
func WithAuditRetries(n int, backoff time.Duration) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.auditRetries = n
		}
		if backoff > 0 {
			e.auditBackoff = backoff
		}
	}
}

// WithTelemetry sets the transition sink. The sink runs on the session
// goroutine and must not block.
func WithTelemetry(sink TransitionSink) Option {
	return func(e *Engine) {
		if sink != nil {
			e.telemetry = sink
		}
	}
}

// WithClock overrides the engine clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine owns the decision sessions. Construct with New, feed it with
// Submit, tear it down with Stop.
type Engine struct {
	contexts  *contextstore.Store
	strategy  reasoning.Strategy
	gate      *safety.Gate
	executor  actions.Executor
	trail     audit.Log
	shipments ShipmentSource

	cooldown      time.Duration
	mailboxSize   int
	contextWindow time.Duration
	actionTimeout time.Duration
	actionRetries int
	auditRetries  int
	auditBackoff  time.Duration
	telemetry     TransitionSink
	now           func() time.Time
	log           logger.Logger

	halted atomic.Bool

	mu       sync.Mutex
	sessions map[string]*session
	wg       sync.WaitGroup
	stopped  bool

	stats stats
}

// New creates an Engine over its collaborators.
func New(
	contexts *contextstore.Store,
	strategy reasoning.Strategy,
	gate *safety.Gate,
	executor actions.Executor,
	trail audit.Log,
	shipments ShipmentSource,
	opts ...Option,
) *Engine {
	e := &Engine{
		contexts:      contexts,
		strategy:      strategy,
		gate:          gate,
		executor:      executor,
		trail:         trail,
		shipments:     shipments,
		cooldown:      defaultCooldown,
		mailboxSize:   defaultMailboxSize,
		contextWindow: defaultContextWindow,
		actionTimeout: defaultActionTimeout,
		actionRetries: defaultActionRetries,
		auditRetries:  defaultAuditRetries,
		auditBackoff:  defaultAuditBackoff,
		telemetry:     func(Transition) {},
		now:           time.Now,
		log:           logger.Named("engine"),
		sessions:      make(map[string]*session),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit routes a disruption event to its session, creating the session
// on first use. Returns false if the session mailbox is full or the
// engine is stopped; the event is dropped, not queued elsewhere.
func (e *Engine) Submit(ctx context.Context, ev model.DisruptionEvent) bool {
	metrics.RecordDisruptionDetected()
	if lag := e.now().Sub(ev.Event.Timestamp); lag > 0 {
		metrics.RecordDetectionLag(lag.Seconds())
		e.stats.observeDetection(lag)
	}

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return false
	}
	sess, ok := e.sessions[ev.RouteID]
	if !ok {
		sess = e.newSession(ev.RouteID)
		e.sessions[ev.RouteID] = sess
		metrics.UpdateSessionsActive(len(e.sessions))
	}
	e.mu.Unlock()

	switch err := sess.deliver(ev); {
	case err == nil:
		return true
	case errors.Is(err, ErrSessionClosed):
		// lost the race with a concurrent teardown; the event is dropped
		e.log.Debug(ctx, "session closed during submit, dropping event",
			logger.String("route_id", ev.RouteID),
			logger.String("event_id", ev.Event.ID))
		return false
	default:
		e.log.Warn(ctx, "session mailbox full, dropping event",
			logger.String("route_id", ev.RouteID),
			logger.String("event_id", ev.Event.ID))
		return false
	}
}

// CloseSession tears down the session for a deactivated route. Already
// appended audit records are untouched. Idempotent.
func (e *Engine) CloseSession(routeID string) {
	e.mu.Lock()
	sess, ok := e.sessions[routeID]
	if ok {
		delete(e.sessions, routeID)
		metrics.UpdateSessionsActive(len(e.sessions))
	}
	e.mu.Unlock()

	if ok {
		sess.close()
	}
}

// Halted reports whether action execution is halted after an audit
// durability failure. Decisions still flow; nothing executes.
func (e *Engine) Halted() bool {
	return e.halted.Load()
}

// Stop closes every session and waits for in-flight cycles to finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	sessions := make([]*session, 0, len(e.sessions))
	for id, s := range e.sessions {
		sessions = append(sessions, s)
		delete(e.sessions, id)
	}
	metrics.UpdateSessionsActive(0)
	e.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	e.wg.Wait()
}

// Stats returns a snapshot of the engine's value counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

func (e *Engine) halt(ctx context.Context, cause error) {
	if e.halted.CompareAndSwap(false, true) {
		e.log.Error(ctx, "audit trail unwritable, halting new action execution",
			logger.Error(cause))
	}
}
