package engine

import "time"

// State is one node of the decision cycle.
type State string

// Decision cycle states. A session rests in OBSERVE and walks the
// cycle once per disruption event.
const (
	StateObserve  State = "OBSERVE"
	StateRetrieve State = "RETRIEVE"
	StateAnalyze  State = "ANALYZE"
	StateDecide   State = "DECIDE"
	StateAct      State = "ACT"
	StateLog      State = "LOG"
)

// transitions is the legal edge set of the cycle. OBSERVE has two
// successors: RETRIEVE for a fresh event and LOG for a suppressed one
// (cooldown short-circuit, the trail still gets a record).
var transitions = map[State][]State{
	StateObserve:  {StateRetrieve, StateLog},
	StateRetrieve: {StateAnalyze},
	StateAnalyze:  {StateDecide},
	StateDecide:   {StateAct},
	StateAct:      {StateLog},
	StateLog:      {StateObserve},
}

// canTransition reports whether from -> to is a legal edge.
func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition is one observed state change of a session, published to
// the telemetry sink.
type Transition struct {
	SessionID  string    `json:"session_id"`
	RouteID    string    `json:"route_id"`
	EventID    string    `json:"event_id"`
	From       State     `json:"from"`
	To         State     `json:"to"`
	Confidence float64   `json:"confidence,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	At         time.Time `json:"at"`
}

// TransitionSink receives state transitions. Implementations must not
// block; the engine calls the sink synchronously on its hot path.
type TransitionSink func(Transition)
