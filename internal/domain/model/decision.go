package model

import "time"

// ActionKind enumerates the mitigations the engine can take.
type ActionKind string

const (
	ActionReroute ActionKind = "reroute"
	ActionNotify  ActionKind = "notify"
	ActionAlert   ActionKind = "alert"
	ActionNone    ActionKind = ""
)

// Action is a candidate or executed mitigation for a shipment.
type Action struct {
	Kind       ActionKind `json:"kind"`
	ShipmentID string     `json:"shipment_id"`
	RouteID    string     `json:"route_id"`
	Detail     string     `json:"detail"`
}

// IsZero reports whether the action is the "no action" sentinel.
func (a Action) IsZero() bool {
	return a.Kind == ActionNone
}

// Decision is the immutable product of one pass through the decision
// cycle for one disruption event.
type Decision struct {
	ID                string    `json:"id"`
	DisruptionEventID string    `json:"disruption_event_id"`
	Assessment        string    `json:"assessment"`
	Confidence        float64   `json:"confidence"`
	ChosenAction      *Action   `json:"chosen_action,omitempty"` // nil means "no action"
	DecidedAt         time.Time `json:"decided_at"`
}

// Outcome records what happened to a decision's action.
type Outcome string

const (
	OutcomeExecuted   Outcome = "executed"
	OutcomeFailed     Outcome = "failed"
	OutcomeBlocked    Outcome = "blocked"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeNoAction   Outcome = "no_action"
)

// AuditRecord is the append-only trail entry for one decision cycle.
// Records are never mutated, reordered, or deleted.
type AuditRecord struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	RouteID        string    `json:"route_id"`
	InputHash      string    `json:"input_hash"`
	ReasoningTrace []string  `json:"reasoning_trace"`
	Decision       Decision  `json:"decision"`
	Outcome        Outcome   `json:"outcome"`
	OutcomeDetail  string    `json:"outcome_detail,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}
