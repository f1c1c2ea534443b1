// Package model contains domain models passed between pipeline stages.
package model

import "time"

// SourceKind identifies the class of feed a record came from.
type SourceKind string

// Known source kinds. Adapters may introduce new ones; the pipeline
// treats the kind as opaque apart from metrics labels.
const (
	SourceNews      SourceKind = "news"
	SourceWeather   SourceKind = "weather"
	SourceTelemetry SourceKind = "telemetry"
)

// Category classifies a disruption event for severity mapping.
type Category string

const (
	CategoryBlockage   Category = "blockage"
	CategoryStrike     Category = "strike"
	CategoryWeather    Category = "weather"
	CategoryCongestion Category = "congestion"
	CategoryTariff     Category = "tariff"
	CategoryTension    Category = "tension"
	CategoryOther      Category = "other"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RawRecord is what source adapters hand to the normalizer. Fields are
// best-effort; the normalizer decides what is usable.
type RawRecord struct {
	SourceID   string     `json:"source_id"`
	SourceKind SourceKind `json:"source_kind"`
	Timestamp  time.Time  `json:"timestamp"`
	Location   *Point     `json:"location,omitempty"`
	Text       string     `json:"text"`
	Category   string     `json:"category"`
	Severity   int        `json:"severity"` // raw 1-10 as reported by the source
}

// Event is the canonical, immutable form of an ingested record.
// ID is a content hash assigned by the normalizer and doubles as the
// deduplication key.
type Event struct {
	ID         string     `json:"id"`
	SourceKind SourceKind `json:"source_kind"`
	Location   *Point     `json:"location,omitempty"`
	Text       string     `json:"text"`
	Category   Category   `json:"category"`
	Timestamp  time.Time  `json:"timestamp"`
	Severity   int        `json:"severity"`
}

// HasLocation reports whether the event carries a usable coordinate.
func (e Event) HasLocation() bool {
	return e.Location != nil
}

// Route is a monitored corridor: an ordered polyline plus a buffer
// radius in kilometers. Owned by the corridor index for its lifetime.
type Route struct {
	ID             string  `json:"id"`
	Waypoints      []Point `json:"waypoints"`
	CorridorRadius float64 `json:"corridor_radius_km"`
}

// Shipment is cargo moving along a route. Mutated as position updates
// arrive; retired when delivered or cancelled.
type Shipment struct {
	ID         string  `json:"id"`
	RouteID    string  `json:"route_id"`
	Value      float64 `json:"value"`      // cargo value, currency units
	Perishable bool    `json:"perishable"` // time-critical cargo weighs heavier
	ETADays    int     `json:"eta_days"`   // remaining transit estimate
	Progress   float64 `json:"progress"`   // 0..1 along the route
}

// DisruptionEvent is an Event that intersected a route corridor.
// Consumed exactly once by a decision session; never mutated.
type DisruptionEvent struct {
	Event       Event    `json:"event"`
	RouteID     string   `json:"route_id"`
	ShipmentIDs []string `json:"shipment_ids"`
	RiskScore   float64  `json:"risk_score"`
}
