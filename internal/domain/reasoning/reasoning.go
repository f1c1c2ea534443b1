// Package reasoning defines the pluggable analysis strategy invoked by
// the decision engine, with an LLM-backed implementation and a
// deterministic rule-based fallback behind the same contract.
package reasoning

import (
	"context"
	"errors"

	"github.com/kestrelworks/sentinel/internal/domain/contextstore"
	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Sentinel kinds for reasoning errors.
var (
	ErrUnavailable = errors.New("reasoning backend unavailable")
)

// Verdict is the action tier an assessment recommends.
type Verdict string

const (
	VerdictCritical Verdict = "CRITICAL" // reroute territory
	VerdictWarning  Verdict = "WARNING"  // notify territory
	VerdictAdvisory Verdict = "ADVISORY" // monitor only
)

// Input bundles everything a strategy may consider.
type Input struct {
	Disruption model.DisruptionEvent
	Shipments  []model.Shipment
	Context    []contextstore.Scored
}

// Assessment is the strategy's output: a verdict tier, a short free
// text explanation, and a confidence in [0,1].
type Assessment struct {
	Verdict    Verdict
	Summary    string
	Confidence float64
}

// Strategy analyzes a disruption with retrieved context. Implementations
// must be safe for concurrent use; selection between them happens at
// construction time, never by runtime type inspection.
type Strategy interface {
	Analyze(ctx context.Context, in Input) (Assessment, error)

	// Name identifies the strategy in logs and audit traces.
	Name() string
}
