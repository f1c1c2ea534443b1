// Package normalize canonicalizes heterogeneous raw records into the
// uniform Event shape, deduplicates them, and enforces the lateness
// watermark.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Default normalizer configuration constants.
const (
	defaultWatermarkGrace = 10 * time.Minute
	defaultDedupWindow    = time.Hour
	defaultDedupSize      = 50_000
	defaultHashBucket     = 5 * time.Minute
	maxFutureSkew         = 5 * time.Minute
)

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithWatermarkGrace sets how far behind the watermark an event may lag
// before it is rejected as stale.
func WithWatermarkGrace(grace time.Duration) Option {
	return func(n *Normalizer) {
		if grace > 0 {
			n.grace = grace
		}
	}
}

// WithDedupWindow sets the window inside which identical content is
// dropped as a duplicate.
func WithDedupWindow(window time.Duration) Option {
	return func(n *Normalizer) {
		if window > 0 {
			n.dedupWindow = window
		}
	}
}

// WithDedupSize bounds the dedup cache.
func WithDedupSize(size int) Option {
	return func(n *Normalizer) {
		if size > 0 {
			n.dedupSize = size
		}
	}
}

// WithHashBucket sets the coarse timestamp bucket folded into the
// dedup hash. Two otherwise identical records in the same bucket share
// an id.
func WithHashBucket(bucket time.Duration) Option {
	return func(n *Normalizer) {
		if bucket > 0 {
			n.hashBucket = bucket
		}
	}
}

// WithClock overrides the processing clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Stats counts rejections without erroring the pipeline.
type Stats struct {
	Accepted   int64
	Malformed  int64
	Stale      int64
	Duplicates int64
}

// Normalizer turns RawRecords into canonical Events. Safe for
// concurrent use.
type Normalizer struct {
	grace       time.Duration
	dedupWindow time.Duration
	dedupSize   int
	hashBucket  time.Duration
	now         func() time.Time

	seen *dedup

	mu        sync.Mutex
	watermark time.Time // monotonically advancing high-water event time
	stats     Stats
}

// New creates a Normalizer with configuration options.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		grace:       defaultWatermarkGrace,
		dedupWindow: defaultDedupWindow,
		dedupSize:   defaultDedupSize,
		hashBucket:  defaultHashBucket,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.seen = newDedup(n.dedupSize, n.dedupWindow)
	return n
}

// Normalize validates and canonicalizes raw. On rejection the returned
// error wraps one of ErrMalformedInput, ErrStaleBeyondWatermark, or
// ErrDuplicateID; the zero Event is returned alongside.
func (n *Normalizer) Normalize(ctx context.Context, raw model.RawRecord) (model.Event, error) {
	_ = ctx // validation is CPU-only; ctx kept for interface symmetry

	now := n.now()

	if strings.TrimSpace(raw.SourceID) == "" {
		return n.reject(&n.stats.Malformed, "malformed", fmt.Errorf("missing source id: %w", ErrMalformedInput))
	}
	if strings.TrimSpace(raw.Text) == "" && strings.TrimSpace(raw.Category) == "" {
		return n.reject(&n.stats.Malformed, "malformed", fmt.Errorf("record carries neither text nor category: %w", ErrMalformedInput))
	}
	if raw.Timestamp.IsZero() {
		return n.reject(&n.stats.Malformed, "malformed", fmt.Errorf("missing timestamp: %w", ErrMalformedInput))
	}
	if raw.Timestamp.After(now.Add(maxFutureSkew)) {
		return n.reject(&n.stats.Malformed, "malformed", fmt.Errorf("timestamp %s is in the future: %w", raw.Timestamp, ErrMalformedInput))
	}

	// Watermark check: the cutoff tracks the highest event time seen so
	// far (never regressing), bounded below by the processing clock so a
	// quiet stream still expires stale input.
	n.mu.Lock()
	cutoff := n.watermark
	if byClock := now; byClock.After(cutoff) {
		cutoff = byClock
	}
	stale := raw.Timestamp.Before(cutoff.Add(-n.grace))
	if !stale && raw.Timestamp.After(n.watermark) {
		n.watermark = raw.Timestamp
	}
	n.mu.Unlock()

	if stale {
		return n.reject(&n.stats.Stale, "stale", fmt.Errorf("event time %s lags watermark: %w", raw.Timestamp, ErrStaleBeyondWatermark))
	}

	id := n.contentHash(raw)
	if n.seen.seenAndRecord(id, now) {
		n.mu.Lock()
		n.stats.Duplicates++
		n.mu.Unlock()
		metrics.RecordEventDuplicate()
		return model.Event{}, fmt.Errorf("event %s: %w", id, ErrDuplicateID)
	}

	n.mu.Lock()
	n.stats.Accepted++
	n.mu.Unlock()
	metrics.RecordEventIngested()

	return model.Event{
		ID:         id,
		SourceKind: raw.SourceKind,
		Location:   raw.Location,
		Text:       strings.TrimSpace(raw.Text),
		Category:   CanonicalCategory(raw.Category, raw.Text),
		Timestamp:  raw.Timestamp,
		Severity:   clampSeverity(raw.Severity),
	}, nil
}

// Watermark returns the current high-water event time.
func (n *Normalizer) Watermark() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.watermark
}

// Stats returns a copy of the rejection counters.
func (n *Normalizer) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

func (n *Normalizer) reject(counter *int64, reason string, err error) (model.Event, error) {
	n.mu.Lock()
	*counter++
	n.mu.Unlock()
	metrics.RecordEventRejected(reason)
	return model.Event{}, err
}

// contentHash builds the stable dedup key: source id + content + a
// coarse timestamp bucket, so near-simultaneous re-reports collapse.
func (n *Normalizer) contentHash(raw model.RawRecord) string {
	bucket := raw.Timestamp.Truncate(n.hashBucket).Unix()
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%d", raw.SourceID, raw.Text, raw.Category, bucket)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func clampSeverity(sev int) int {
	if sev < 1 {
		return 1
	}
	if sev > 10 {
		return 10
	}
	return sev
}

// categoryKeywords maps free-form category/text tokens onto canonical
// categories, mirroring the keyword screen the news adapter applies.
var categoryKeywords = []struct {
	keyword  string
	category model.Category
}{
	{"blockage", model.CategoryBlockage},
	{"blocked", model.CategoryBlockage},
	{"canal", model.CategoryBlockage},
	{"strike", model.CategoryStrike},
	{"storm", model.CategoryWeather},
	{"cyclone", model.CategoryWeather},
	{"hurricane", model.CategoryWeather},
	{"flood", model.CategoryWeather},
	{"fog", model.CategoryWeather},
	{"weather", model.CategoryWeather},
	{"congestion", model.CategoryCongestion},
	{"traffic", model.CategoryCongestion},
	{"port", model.CategoryCongestion},
	{"tariff", model.CategoryTariff},
	{"embargo", model.CategoryTariff},
	{"tension", model.CategoryTension},
	{"conflict", model.CategoryTension},
}

// CanonicalCategory maps a source-specific category string (falling
// back to the event text) onto the fixed category set.
func CanonicalCategory(category, text string) model.Category {
	probe := strings.ToLower(category)
	for _, kw := range categoryKeywords {
		if strings.Contains(probe, kw.keyword) {
			return kw.category
		}
	}
	probe = strings.ToLower(text)
	for _, kw := range categoryKeywords {
		if strings.Contains(probe, kw.keyword) {
			return kw.category
		}
	}
	return model.CategoryOther
}
