package reasoning

import (
	"context"
	"fmt"
)

// Risk bands separating the verdict tiers. Matches the dispatcher
// policy: >=80 reroute, >=50 notify, else monitor.
const (
	criticalBand = 80.0
	warningBand  = 50.0
)

// RuleBased is the deterministic strategy: verdict from risk bands,
// confidence from score extremity and corroborating context. It needs
// no credentials and never fails, which makes it both the default in
// dev configurations and the fallback when an LLM backend errors.
type RuleBased struct{}

// NewRuleBased creates the deterministic strategy.
func NewRuleBased() *RuleBased {
	return &RuleBased{}
}

// Name implements Strategy.
func (r *RuleBased) Name() string { return "rules" }

// Analyze implements Strategy. It is pure given its input.
func (r *RuleBased) Analyze(ctx context.Context, in Input) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, fmt.Errorf("analyze cancelled: %w", err)
	}

	score := in.Disruption.RiskScore

	var verdict Verdict
	switch {
	case score >= criticalBand:
		verdict = VerdictCritical
	case score >= warningBand:
		verdict = VerdictWarning
	default:
		verdict = VerdictAdvisory
	}

	return Assessment{
		Verdict:    verdict,
		Summary:    r.summary(in, verdict),
		Confidence: r.confidence(in),
	}, nil
}

// confidence starts from how decisive the score is relative to the
// band edges and grows with corroborating context, capped at 0.99.
// A mid-band score with no history lands below the 0.70 gate, so the
// safety layer holds uncorroborated marginal calls.
func (r *RuleBased) confidence(in Input) float64 {
	score := in.Disruption.RiskScore

	// distance from the nearest band edge, normalized to [0,1]
	nearest := warningBand
	if diff := abs(score - criticalBand); diff < abs(score-warningBand) {
		nearest = criticalBand
	}
	decisiveness := abs(score-nearest) / 50.0
	if decisiveness > 1 {
		decisiveness = 1
	}

	conf := 0.55 + 0.30*decisiveness
	for i, c := range in.Context {
		if i == 3 {
			break
		}
		conf += 0.05 * c.Score
	}
	if conf > 0.99 {
		conf = 0.99
	}
	return conf
}

func (r *RuleBased) summary(in Input, verdict Verdict) string {
	e := in.Disruption.Event
	where := "along the monitored corridor"
	if e.HasLocation() {
		where = fmt.Sprintf("at %.2f,%.2f", e.Location.Lat, e.Location.Lng)
	}
	base := fmt.Sprintf("%s: %s disruption %s (risk %.0f) affects route %s",
		verdict, e.Category, where, in.Disruption.RiskScore, in.Disruption.RouteID)
	if n := len(in.Context); n > 0 {
		base += fmt.Sprintf("; %d similar prior events on record", n)
	}
	return base
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
