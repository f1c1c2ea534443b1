// Package risk computes the 0-100 risk score for a disruption event
// against an affected shipment.
//
// The mapping is deliberately explicit since the qualitative inputs
// (category names, cargo attributes) need a documented, monotonic
// translation onto fixed numeric scales:
//
//	severity(event)  in [1,10]: the larger of the category base and the
//	                 source-reported raw severity, clamped to [1,10].
//	impact(shipment) in (0,1]:  0.5 * value/valueCap
//	                          + 0.35 if the cargo is perishable
//	                          + 0.15 if the remaining ETA is at most
//	                            etaUrgentDays,
//	                 clamped to [minImpact, 1].
//	score            = severity * 10 * impact, clamped to [0,100].
//
// Raising severity or any impact input never lowers the score.
// The scorer is pure: no clock, no randomness, no side effects.
package risk

import (
	"math"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Default scoring configuration constants.
const (
	defaultValueCap      = 1_000_000 // cargo value that saturates the value term
	defaultEtaUrgentDays = 3
	minSeverity          = 1
	maxSeverity          = 10
	minImpact            = 0.05 // even negligible cargo keeps a nonzero floor
	maxScoreValue        = 100
)

// categoryBase maps event categories to their floor severity.
var categoryBase = map[model.Category]int{
	model.CategoryBlockage:   8,
	model.CategoryStrike:     7,
	model.CategoryWeather:    6,
	model.CategoryCongestion: 5,
	model.CategoryTension:    5,
	model.CategoryTariff:     4,
	model.CategoryOther:      3,
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithValueCap sets the cargo value at which the value term saturates.
func WithValueCap(cap float64) Option {
	return func(s *Scorer) {
		if cap > 0 {
			s.valueCap = cap
		}
	}
}

// WithEtaUrgentDays sets the remaining-ETA threshold that triggers the
// time-sensitivity bonus.
func WithEtaUrgentDays(days int) Option {
	return func(s *Scorer) {
		if days > 0 {
			s.etaUrgentDays = days
		}
	}
}

// Scorer computes risk scores. Construct with NewScorer.
type Scorer struct {
	valueCap      float64
	etaUrgentDays int
}

// NewScorer creates a scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		valueCap:      defaultValueCap,
		etaUrgentDays: defaultEtaUrgentDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score returns the risk of event for shipment in [0,100].
func (s *Scorer) Score(event model.Event, shipment model.Shipment) float64 {
	sev := s.Severity(event)
	imp := s.Impact(shipment)
	return math.Min(maxScoreValue, float64(sev)*10*imp)
}

// Severity maps the event onto the fixed 1-10 scale.
func (s *Scorer) Severity(event model.Event) int {
	base, ok := categoryBase[event.Category]
	if !ok {
		base = categoryBase[model.CategoryOther]
	}
	sev := base
	if event.Severity > sev {
		sev = event.Severity
	}
	if sev < minSeverity {
		sev = minSeverity
	}
	if sev > maxSeverity {
		sev = maxSeverity
	}
	return sev
}

// Impact maps the shipment onto the (0,1] weight scale.
func (s *Scorer) Impact(shipment model.Shipment) float64 {
	value := math.Max(0, shipment.Value)
	imp := 0.5 * math.Min(1, value/s.valueCap)
	if shipment.Perishable {
		imp += 0.35
	}
	if shipment.ETADays > 0 && shipment.ETADays <= s.etaUrgentDays {
		imp += 0.15
	}
	return math.Max(minImpact, math.Min(1, imp))
}
