package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/internal/domain/reasoning"
	"github.com/kestrelworks/sentinel/pkg/logger"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// session owns the decision state for one route. State past the mailbox
// is touched only by the session goroutine; mu exists solely to keep
// deliver and close from racing on the mailbox.
type session struct {
	id      string
	routeID string
	mailbox chan model.DisruptionEvent

	engine        *Engine
	state         State
	cooldownUntil time.Time
	log           logger.Logger

	mu     sync.RWMutex
	closed bool
}

func (e *Engine) newSession(routeID string) *session {
	s := &session{
		id:      uuid.NewString(),
		routeID: routeID,
		mailbox: make(chan model.DisruptionEvent, e.mailboxSize),
		engine:  e,
		state:   StateObserve,
		log:     logger.Named("session").Named(routeID),
	}
	e.wg.Add(1)
	go s.run()
	return s
}

// deliver offers ev to the mailbox without blocking. The read lock
// holds the mailbox open across the send so a concurrent close cannot
// turn it into a send on a closed channel.
func (s *session) deliver(ev model.DisruptionEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSessionClosed
	}
	select {
	case s.mailbox <- ev:
		return nil
	default:
		return ErrMailboxFull
	}
}

// close is idempotent and safe against in-flight deliver calls.
func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.mailbox)
}

func (s *session) run() {
	defer s.engine.wg.Done()
	for ev := range s.mailbox {
		s.cycle(context.Background(), ev)
	}
}

// transition advances the session state, enforcing the edge set. An
// illegal edge is a programming error; it is logged loudly and the
// session resets to OBSERVE rather than wedging.
func (s *session) transition(to State, ev model.DisruptionEvent, confidence float64, detail string) {
	if !canTransition(s.state, to) {
		s.log.Error(context.Background(), "illegal state transition",
			logger.String("from", string(s.state)),
			logger.String("to", string(to)),
			logger.Error(ErrIllegalTransition))
		s.state = StateObserve
		return
	}
	from := s.state
	s.state = to
	s.engine.telemetry(Transition{
		SessionID:  s.id,
		RouteID:    s.routeID,
		EventID:    ev.Event.ID,
		From:       from,
		To:         to,
		Confidence: confidence,
		Detail:     detail,
		At:         s.engine.now(),
	})
}

// cycle walks one disruption event through the state machine. It never
// returns an error; every outcome lands in the trail.
func (s *session) cycle(ctx context.Context, ev model.DisruptionEvent) {
	e := s.engine
	now := e.now()
	trace := make([]string, 0, 8)

	// cooldown short-circuit: OBSERVE -> LOG, outcome Suppressed
	if now.Before(s.cooldownUntil) {
		trace = append(trace, fmt.Sprintf("suppressed: cooldown until %s", s.cooldownUntil.Format(time.RFC3339)))
		metrics.RecordSuppression()
		s.transition(StateLog, ev, 0, "suppressed")
		s.appendRecord(ctx, ev, model.Decision{
			ID:                uuid.NewString(),
			DisruptionEventID: ev.Event.ID,
			Assessment:        "suppressed during cooldown",
			DecidedAt:         now,
		}, model.OutcomeSuppressed, "cooldown active", trace)
		s.transition(StateObserve, ev, 0, "")
		return
	}

	// RETRIEVE
	s.transition(StateRetrieve, ev, 0, "")
	prior := e.contexts.Query(ctx, ev.Event, s.routeID, e.contextWindow)
	trace = append(trace, fmt.Sprintf("retrieved %d prior events", len(prior)))

	// ANALYZE
	s.transition(StateAnalyze, ev, 0, "")
	shipments := e.shipments.ShipmentsByID(ev.ShipmentIDs)
	start := e.now()
	assessment, err := e.strategy.Analyze(ctx, reasoning.Input{
		Disruption: ev,
		Shipments:  shipments,
		Context:    prior,
	})
	metrics.RecordReasoningLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		// analysis failure never aborts the session, it decides nothing
		s.log.Error(ctx, "analysis failed", logger.Error(err), logger.String("event_id", ev.Event.ID))
		trace = append(trace, "analysis failed: "+err.Error())
		assessment = reasoning.Assessment{
			Verdict:    reasoning.VerdictAdvisory,
			Summary:    "analysis unavailable",
			Confidence: 0,
		}
	} else {
		trace = append(trace, fmt.Sprintf("%s verdict at confidence %.2f by %s",
			assessment.Verdict, assessment.Confidence, e.strategy.Name()))
	}

	// DECIDE
	s.transition(StateDecide, ev, assessment.Confidence, "")
	action := s.decide(ev, assessment, shipments)
	decision := model.Decision{
		ID:                uuid.NewString(),
		DisruptionEventID: ev.Event.ID,
		Assessment:        assessment.Summary,
		Confidence:        assessment.Confidence,
		DecidedAt:         e.now(),
	}
	if !action.IsZero() {
		decision.ChosenAction = &action
		trace = append(trace, fmt.Sprintf("decided %s for shipment %s", action.Kind, action.ShipmentID))
	} else {
		trace = append(trace, "decided no action")
	}

	// ACT: the cooldown starts here regardless of the outcome
	s.transition(StateAct, ev, assessment.Confidence, string(action.Kind))
	s.cooldownUntil = e.now().Add(e.cooldown)

	outcome, detail := s.act(ctx, ev, decision, action, &trace)

	// LOG
	s.transition(StateLog, ev, assessment.Confidence, string(outcome))
	s.appendRecord(ctx, ev, decision, outcome, detail, trace)
	s.transition(StateObserve, ev, 0, "")
}

// decide maps the assessment verdict to a candidate action. Tiers:
// critical reroutes, warning notifies, anything else only monitors.
// A critical verdict with no shipment to reroute falls back to a
// route-wide alert broadcast.
func (s *session) decide(ev model.DisruptionEvent, a reasoning.Assessment, shipments []model.Shipment) model.Action {
	var kind model.ActionKind
	switch a.Verdict {
	case reasoning.VerdictCritical:
		kind = model.ActionReroute
	case reasoning.VerdictWarning:
		kind = model.ActionNotify
	default:
		return model.Action{}
	}

	shipmentID := ""
	if len(shipments) > 0 {
		shipmentID = shipments[0].ID
	} else if len(ev.ShipmentIDs) > 0 {
		shipmentID = ev.ShipmentIDs[0]
	}
	if shipmentID == "" && kind == model.ActionReroute {
		kind = model.ActionAlert
	}

	return model.Action{
		Kind:       kind,
		ShipmentID: shipmentID,
		RouteID:    s.routeID,
		Detail:     a.Summary,
	}
}

// act authorizes and executes the action, producing the final outcome.
func (s *session) act(ctx context.Context, ev model.DisruptionEvent, decision model.Decision, action model.Action, trace *[]string) (model.Outcome, string) {
	e := s.engine

	if action.IsZero() {
		*trace = append(*trace, "nothing to execute")
		return model.OutcomeNoAction, ""
	}

	if e.halted.Load() {
		*trace = append(*trace, "blocked: "+ErrHalted.Error())
		return model.OutcomeBlocked, ErrHalted.Error()
	}

	scope := action.ShipmentID
	if scope == "" {
		scope = action.RouteID
	}
	if result := e.gate.Authorize(scope, decision.Confidence); result.Blocked() {
		*trace = append(*trace, "blocked: "+string(result))
		return model.OutcomeBlocked, string(result)
	}
	*trace = append(*trace, "authorized")

	var lastErr error
	for attempt := 0; attempt <= e.actionRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, e.actionTimeout)
		lastErr = e.executor.Execute(callCtx, action)
		cancel()
		if lastErr == nil {
			*trace = append(*trace, fmt.Sprintf("executed on attempt %d", attempt+1))
			s.recordValue(ev, action)
			return model.OutcomeExecuted, ""
		}
		if errors.Is(lastErr, context.Canceled) {
			break
		}
	}
	*trace = append(*trace, "execution failed: "+lastErr.Error())
	return model.OutcomeFailed, lastErr.Error()
}

// recordValue tracks the operational value counters for an executed
// action: time to act and the delay the mitigation is estimated to
// avoid.
func (s *session) recordValue(ev model.DisruptionEvent, action model.Action) {
	e := s.engine
	if lag := e.now().Sub(ev.Event.Timestamp); lag > 0 {
		metrics.RecordActionLag(lag.Seconds())
		e.stats.observeAction(lag)
	}

	var saved float64
	switch action.Kind {
	case model.ActionReroute:
		saved = 0.5 * float64(ev.Event.Severity)
	case model.ActionNotify:
		saved = 0.1 * float64(ev.Event.Severity)
	}
	if saved > 0 {
		metrics.RecordEstimatedDaysSaved(saved)
		e.stats.addDaysSaved(saved)
	}
}

// appendRecord writes the trail entry, retrying with backoff. If the
// trail stays unwritable the engine halts new action execution.
func (s *session) appendRecord(ctx context.Context, ev model.DisruptionEvent, decision model.Decision, outcome model.Outcome, detail string, trace []string) {
	e := s.engine
	record := model.AuditRecord{
		ID:             uuid.NewString(),
		EventID:        ev.Event.ID,
		RouteID:        s.routeID,
		InputHash:      ev.Event.ID,
		ReasoningTrace: trace,
		Decision:       decision,
		Outcome:        outcome,
		OutcomeDetail:  detail,
		Timestamp:      e.now(),
	}

	var err error
	backoff := e.auditBackoff
	for attempt := 0; attempt <= e.auditRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		if err = e.trail.Append(ctx, record); err == nil {
			metrics.RecordDecision(string(outcome))
			e.stats.observeOutcome(outcome)
			return
		}
	}
	e.halt(ctx, err)
}
