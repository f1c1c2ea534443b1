// Package contextstore holds the continuously updated index of recent
// and historical events used to ground analysis.
//
// The store is a "living index": Index and Query interleave freely
// against one shared structure, inserts are visible the moment the call
// returns, and staleness is modeled by a recency weight plus a
// retention horizon instead of rebuilds. Expired entries are pruned
// lazily on insert, never on the query path.
package contextstore

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultRetention  = 7 * 24 * time.Hour
	defaultMaxResults = 10
	pruneEvery        = 256 // inserts between lazy sweeps
)

// Scored pairs an event with its combined relevance score.
type Scored struct {
	Event model.Event
	Score float64
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithRetention sets the horizon beyond which entries are logically
// expired.
func WithRetention(retention time.Duration) Option {
	return func(s *Store) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithMaxResults caps the number of results a query returns.
func WithMaxResults(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithClock overrides the store clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

type indexed struct {
	event   model.Event
	routeID string
	terms   map[string]float64 // term frequency vector, L2-normalized
}

// Store is the in-memory living index. Safe for concurrent use; an
// insert is atomic from any query's perspective.
type Store struct {
	retention  time.Duration
	maxResults int
	now        func() time.Time

	mu      sync.RWMutex
	entries []indexed
	inserts int
}

// New creates a Store with configuration options.
func New(opts ...Option) *Store {
	s := &Store{
		retention:  defaultRetention,
		maxResults: defaultMaxResults,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Index inserts the event, scoped to routeID ("" means global). The
// event is queryable when the call returns.
func (s *Store) Index(ctx context.Context, event model.Event, routeID string) {
	_ = ctx
	entry := indexed{
		event:   event,
		routeID: routeID,
		terms:   vectorize(event),
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.inserts++
	if s.inserts%pruneEvery == 0 {
		s.pruneLocked(s.now())
	}
	size := len(s.entries)
	s.mu.Unlock()

	metrics.UpdateContextStoreSize(size)
}

// Query returns up to the configured maximum of events relevant to
// anchor, most relevant first. Relevance is cosine similarity times an
// exponential recency decay whose half-life is a quarter of window.
// Entries outside the retention horizon, and entries scoped to a
// different route when routeID is set, are excluded. Queries always
// recompute from the live structure; results are a private copy.
func (s *Store) Query(ctx context.Context, anchor model.Event, routeID string, window time.Duration) []Scored {
	_ = ctx
	if window <= 0 {
		window = s.retention
	}
	now := s.now()
	horizon := now.Add(-s.retention)
	halfLife := window / 4
	anchorVec := vectorize(anchor)

	s.mu.RLock()
	scored := make([]Scored, 0, len(s.entries))
	for _, e := range s.entries {
		if e.event.ID == anchor.ID {
			continue
		}
		if e.event.Timestamp.Before(horizon) {
			continue
		}
		if routeID != "" && e.routeID != "" && e.routeID != routeID {
			continue
		}
		sim := cosine(anchorVec, e.terms)
		if sim <= 0 {
			continue
		}
		age := now.Sub(e.event.Timestamp)
		decay := math.Exp2(-float64(age) / float64(halfLife))
		scored = append(scored, Scored{Event: e.event, Score: sim * decay})
	}
	s.mu.RUnlock()

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > s.maxResults {
		scored = scored[:s.maxResults]
	}
	return scored
}

// Size returns the number of physically held entries, including any
// not yet pruned.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Prune drops entries beyond the retention horizon immediately.
func (s *Store) Prune() {
	s.mu.Lock()
	s.pruneLocked(s.now())
	size := len(s.entries)
	s.mu.Unlock()
	metrics.UpdateContextStoreSize(size)
}

func (s *Store) pruneLocked(now time.Time) {
	horizon := now.Add(-s.retention)
	kept := s.entries[:0]
	for _, e := range s.entries {
		if !e.event.Timestamp.Before(horizon) {
			kept = append(kept, e)
		}
	}
	// zero the tail so dropped events do not pin memory
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = indexed{}
	}
	s.entries = kept
}

// vectorize builds an L2-normalized term frequency vector over the
// event's text and category. A lightweight stand-in for an embedding:
// good enough for similarity ranking, dependency-free, and fully
// deterministic.
func vectorize(event model.Event) map[string]float64 {
	terms := make(map[string]float64)
	add := func(tok string) {
		if len(tok) < 3 {
			return // drop stop-ish tokens
		}
		terms[tok]++
	}
	for _, tok := range strings.FieldsFunc(strings.ToLower(event.Text), isSeparator) {
		add(tok)
	}
	if event.Category != "" {
		terms[string(event.Category)] += 2 // category is a strong signal
	}

	var norm float64
	for _, v := range terms {
		norm += v * v
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for k, v := range terms {
			terms[k] = v / norm
		}
	}
	return terms
}

func cosine(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var dot float64
	for k, v := range a {
		dot += v * b[k]
	}
	return dot
}

func isSeparator(r rune) bool {
	return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
}
