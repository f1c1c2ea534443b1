// Package safety is the final gate between a decision and the outside
// world. Every action passes through Authorize exactly once; the gate
// is deliberately dumb, it knows nothing about verdicts or risk, only
// confidence and rate.
package safety

import (
	"sync"
	"time"

	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Default gate configuration constants.
const (
	defaultMinConfidence = 0.70
	defaultMaxActions    = 2
	defaultWindow        = time.Hour
)

// Result is the gate's ruling on a proposed action.
type Result string

const (
	Permitted            Result = "permitted"
	BlockedLowConfidence Result = "blocked_low_confidence"
	BlockedRateLimited   Result = "blocked_rate_limited"
)

// Blocked reports whether the result denies the action.
func (r Result) Blocked() bool { return r != Permitted }

// Option applies a configuration option to the Gate.
type Option func(*Gate)

// WithMinConfidence sets the confidence threshold below which every
// action is blocked.
func WithMinConfidence(min float64) Option {
	return func(g *Gate) {
		if min > 0 && min <= 1 {
			g.minConfidence = min
		}
	}
}

// WithRateLimit sets how many actions a single scope may execute per
// sliding window.
func WithRateLimit(maxActions int, window time.Duration) Option {
	return func(g *Gate) {
		if maxActions > 0 {
			g.maxActions = maxActions
		}
		if window > 0 {
			g.window = window
		}
	}
}

// WithClock overrides the gate clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// Gate enforces the confidence floor and a per-scope sliding window
// rate limit. Safe for concurrent use.
type Gate struct {
	minConfidence float64
	maxActions    int
	window        time.Duration
	now           func() time.Time

	mu      sync.Mutex
	granted map[string][]time.Time // scope -> grant timestamps within window
}

// New creates a Gate with configuration options.
func New(opts ...Option) *Gate {
	g := &Gate{
		minConfidence: defaultMinConfidence,
		maxActions:    defaultMaxActions,
		window:        defaultWindow,
		now:           time.Now,
		granted:       make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Authorize rules on one proposed action for the given scope. The
// confidence check runs before the rate check so that a low confidence
// block never consumes rate budget. A permitted ruling consumes one
// slot in the scope's window immediately.
func (g *Gate) Authorize(scope string, confidence float64) Result {
	if confidence < g.minConfidence {
		metrics.RecordActionBlocked(string(BlockedLowConfidence))
		return BlockedLowConfidence
	}

	now := g.now()
	cutoff := now.Add(-g.window)

	g.mu.Lock()
	defer g.mu.Unlock()

	grants := g.granted[scope]
	live := grants[:0]
	for _, t := range grants {
		if t.After(cutoff) {
			live = append(live, t)
		}
	}

	if len(live) >= g.maxActions {
		g.granted[scope] = live
		metrics.RecordActionBlocked(string(BlockedRateLimited))
		return BlockedRateLimited
	}

	g.granted[scope] = append(live, now)
	return Permitted
}

// Remaining reports how many actions the scope may still execute in
// the current window.
func (g *Gate) Remaining(scope string) int {
	cutoff := g.now().Add(-g.window)

	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for _, t := range g.granted[scope] {
		if t.After(cutoff) {
			n++
		}
	}
	if n >= g.maxActions {
		return 0
	}
	return g.maxActions - n
}
