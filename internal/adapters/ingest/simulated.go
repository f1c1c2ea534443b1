package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/logger"
)

// Locate resolves a named place to a coordinate. Wired to the routing
// gazetteer; records with unknown places go out without a location.
type Locate func(name string) (model.Point, bool)

// FeedKind selects which simulated stream a feed produces.
type FeedKind string

const (
	FeedNews     FeedKind = "news"
	FeedWeather  FeedKind = "weather"
	FeedShipment FeedKind = "shipment"
)

var newsTopics = []struct {
	topic    string
	category string
}{
	{"Port Strike", "strike"},
	{"Geopolitical Tension", "tension"},
	{"Trade Tariff", "tariff"},
	{"Canal Blockage", "blockage"},
}

var newsPlaces = []string{"Rotterdam", "Suez Canal", "Singapore", "Hamburg", "Panama Canal"}

var weatherConditions = []string{"Cyclone", "Heavy Fog", "Flood", "Hurricane"}

var weatherRegions = []string{"North Atlantic", "Indian Ocean", "South China Sea", "Pacific"}

var shipmentPlaces = []string{"Suez Canal", "Singapore", "Hamburg", "Rotterdam"}

// SimulatedOption applies a configuration option to the SimulatedFeed.
type SimulatedOption func(*SimulatedFeed)

// WithInterval fixes the gap between emitted records.
func WithInterval(d time.Duration) SimulatedOption {
	return func(s *SimulatedFeed) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRand seeds the feed deterministically, for tests.
func WithRand(r *rand.Rand) SimulatedOption {
	return func(s *SimulatedFeed) {
		if r != nil {
			s.rng = r
		}
	}
}

// SimulatedFeed generates plausible records for one stream kind on a
// fixed cadence. Used in dev mode where no Kafka topic exists.
type SimulatedFeed struct {
	kind     FeedKind
	locate   Locate
	interval time.Duration
	rng      *rand.Rand
	log      logger.Logger
}

// NewSimulatedFeed creates a generator for kind. locate may be nil.
func NewSimulatedFeed(kind FeedKind, locate Locate, opts ...SimulatedOption) *SimulatedFeed {
	s := &SimulatedFeed{
		kind:     kind,
		locate:   locate,
		interval: 3 * time.Second,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      logger.Named("ingest-sim"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Source.
func (s *SimulatedFeed) Name() string { return "simulated-" + string(s.kind) }

// Run implements Source.
func (s *SimulatedFeed) Run(ctx context.Context, sink Sink) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rec := s.generate()
			if !sink(ctx, rec) {
				s.log.Debug(ctx, "intake queue rejected simulated record",
					logger.String("source_id", rec.SourceID))
			}
		}
	}
}

// Generate returns one record without waiting for the cadence. Used by
// the test-events command and by tests.
func (s *SimulatedFeed) Generate() model.RawRecord {
	return s.generate()
}

func (s *SimulatedFeed) generate() model.RawRecord {
	now := time.Now()
	switch s.kind {
	case FeedWeather:
		condition := weatherConditions[s.rng.Intn(len(weatherConditions))]
		region := weatherRegions[s.rng.Intn(len(weatherRegions))]
		return model.RawRecord{
			SourceID:   fmt.Sprintf("weather_%d", now.UnixMilli()),
			SourceKind: model.SourceWeather,
			Timestamp:  now,
			Location:   s.place(region),
			Text:       fmt.Sprintf("%s warning issued for the %s", condition, region),
			Category:   "weather",
			Severity:   1 + s.rng.Intn(10),
		}
	case FeedShipment:
		place := shipmentPlaces[s.rng.Intn(len(shipmentPlaces))]
		return model.RawRecord{
			SourceID:   fmt.Sprintf("SHP_%d", 1000+s.rng.Intn(9000)),
			SourceKind: model.SourceTelemetry,
			Timestamp:  now,
			Location:   s.place(place),
			Text:       fmt.Sprintf("shipment in transit near %s, congestion reported", place),
			Category:   "congestion",
			Severity:   1 + s.rng.Intn(5),
		}
	default: // news
		entry := newsTopics[s.rng.Intn(len(newsTopics))]
		place := newsPlaces[s.rng.Intn(len(newsPlaces))]
		return model.RawRecord{
			SourceID:   fmt.Sprintf("news_%d", now.UnixMilli()),
			SourceKind: model.SourceNews,
			Timestamp:  now,
			Location:   s.place(place),
			Text:       fmt.Sprintf("Reports of %s affecting operations in %s.", entry.topic, place),
			Category:   entry.category,
			Severity:   1 + s.rng.Intn(10),
		}
	}
}

func (s *SimulatedFeed) place(name string) *model.Point {
	if s.locate == nil {
		return nil
	}
	pt, ok := s.locate(name)
	if !ok {
		return nil
	}
	return &pt
}
