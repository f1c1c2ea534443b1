package engine_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kestrelworks/sentinel/internal/adapters/audit"
	"github.com/kestrelworks/sentinel/internal/domain/contextstore"
	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/internal/domain/reasoning"
	"github.com/kestrelworks/sentinel/internal/engine"
	"github.com/kestrelworks/sentinel/internal/engine/safety"
	"github.com/kestrelworks/sentinel/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fixedStrategy struct {
	assessment reasoning.Assessment
}

func (f *fixedStrategy) Analyze(ctx context.Context, in reasoning.Input) (reasoning.Assessment, error) {
	return f.assessment, nil
}

func (f *fixedStrategy) Name() string { return "fixed" }

type stubShipments struct {
	byID map[string]model.Shipment
}

func (s *stubShipments) ShipmentsByID(ids []string) []model.Shipment {
	out := make([]model.Shipment, 0, len(ids))
	for _, id := range ids {
		if sh, ok := s.byID[id]; ok {
			out = append(out, sh)
		}
	}
	return out
}

type countingExecutor struct {
	mu       sync.Mutex
	executed []model.Action
	fail     bool
}

func (c *countingExecutor) Execute(ctx context.Context, action model.Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("downstream unavailable")
	}
	c.executed = append(c.executed, action)
	return nil
}

func (c *countingExecutor) Name() string { return "counting" }

func (c *countingExecutor) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.executed)
}

type brokenLog struct {
	audit.MemoryLog
}

func (b *brokenLog) Append(ctx context.Context, record model.AuditRecord) error {
	return audit.ErrAppendFailed
}

func disruption(eventID string, severity int) model.DisruptionEvent {
	return model.DisruptionEvent{
		Event: model.Event{
			ID:         eventID,
			SourceKind: model.SourceNews,
			Text:       "canal blockage halts transits",
			Category:   model.CategoryBlockage,
			Timestamp:  time.Now().Add(-time.Minute),
			Severity:   severity,
		},
		RouteID:     "route-1",
		ShipmentIDs: []string{"ship-1"},
		RiskScore:   90,
	}
}

func newFixture(strategy reasoning.Strategy, exec *countingExecutor, trail audit.Log, opts ...engine.Option) *engine.Engine {
	shipments := &stubShipments{byID: map[string]model.Shipment{
		"ship-1": {ID: "ship-1", RouteID: "route-1", Value: 800_000, Perishable: true, ETADays: 2},
	}}
	base := []engine.Option{
		engine.WithActionTimeout(time.Second),
		engine.WithAuditRetries(1, time.Millisecond),
	}
	return engine.New(
		contextstore.New(),
		strategy,
		safety.New(),
		exec,
		trail,
		shipments,
		append(base, opts...)...,
	)
}

func TestDecisionCycle(t *testing.T) {
	Convey("Given an engine with a confident critical strategy", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL: canal blocked",
			Confidence: 0.90,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		Convey("One event yields one executed reroute and one audit record", func() {
			e := newFixture(strategy, exec, trail)
			So(e.Submit(ctx, disruption("evt-1", 8)), ShouldBeTrue)
			e.Stop()

			So(exec.count(), ShouldEqual, 1)
			So(exec.executed[0].Kind, ShouldEqual, model.ActionReroute)
			So(exec.executed[0].ShipmentID, ShouldEqual, "ship-1")

			records, err := trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Outcome, ShouldEqual, model.OutcomeExecuted)
			So(records[0].Decision.ChosenAction.Kind, ShouldEqual, model.ActionReroute)
			So(records[0].ReasoningTrace, ShouldNotBeEmpty)
		})

		Convey("A warning verdict notifies instead of rerouting", func() {
			strategy.assessment.Verdict = reasoning.VerdictWarning
			e := newFixture(strategy, exec, trail)
			So(e.Submit(ctx, disruption("evt-1", 6)), ShouldBeTrue)
			e.Stop()

			So(exec.count(), ShouldEqual, 1)
			So(exec.executed[0].Kind, ShouldEqual, model.ActionNotify)
		})

		Convey("A critical verdict with no shipment to reroute broadcasts an alert", func() {
			ev := disruption("evt-1", 8)
			ev.ShipmentIDs = nil
			e := newFixture(strategy, exec, trail)
			So(e.Submit(ctx, ev), ShouldBeTrue)
			e.Stop()

			So(exec.count(), ShouldEqual, 1)
			So(exec.executed[0].Kind, ShouldEqual, model.ActionAlert)
			So(exec.executed[0].ShipmentID, ShouldBeEmpty)
			So(exec.executed[0].RouteID, ShouldEqual, "route-1")
		})

		Convey("An advisory verdict decides no action but still logs", func() {
			strategy.assessment.Verdict = reasoning.VerdictAdvisory
			e := newFixture(strategy, exec, trail)
			So(e.Submit(ctx, disruption("evt-1", 3)), ShouldBeTrue)
			e.Stop()

			So(exec.count(), ShouldEqual, 0)
			records, err := trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Outcome, ShouldEqual, model.OutcomeNoAction)
			So(records[0].Decision.ChosenAction, ShouldBeNil)
		})

		Convey("Execution failure exhausts retries and records a failed outcome", func() {
			exec.fail = true
			e := newFixture(strategy, exec, trail, engine.WithActionRetries(1))
			So(e.Submit(ctx, disruption("evt-1", 8)), ShouldBeTrue)
			e.Stop()

			records, err := trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Outcome, ShouldEqual, model.OutcomeFailed)
			So(records[0].OutcomeDetail, ShouldContainSubstring, "downstream unavailable")
		})
	})
}

func TestLowConfidenceBlock(t *testing.T) {
	Convey("Given a strategy that reports confidence 0.55", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL: uncertain blockage",
			Confidence: 0.55,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		Convey("The action is blocked and the trail still records it", func() {
			e := newFixture(strategy, exec, trail)
			So(e.Submit(ctx, disruption("evt-1", 8)), ShouldBeTrue)
			e.Stop()

			So(exec.count(), ShouldEqual, 0)
			records, err := trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Outcome, ShouldEqual, model.OutcomeBlocked)
			So(records[0].OutcomeDetail, ShouldEqual, string(safety.BlockedLowConfidence))
		})
	})
}

func TestRateLimiting(t *testing.T) {
	Convey("Given five confident events and a limit of two actions per hour", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL: repeated blockage",
			Confidence: 0.90,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		// nanosecond cooldown so every event is analyzed, exercising
		// the gate rather than the suppression path
		e := newFixture(strategy, exec, trail, engine.WithCooldown(time.Nanosecond))

		Convey("Two execute, three are rate limited, five are recorded", func() {
			for i := 0; i < 5; i++ {
				ev := disruption("evt-1", 8)
				ev.Event.ID = ev.Event.ID + string(rune('a'+i))
				So(e.Submit(ctx, ev), ShouldBeTrue)
			}
			e.Stop()

			So(exec.count(), ShouldEqual, 2)
			records, err := trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 5)

			blocked := 0
			for _, rec := range records {
				if rec.Outcome == model.OutcomeBlocked {
					blocked++
					So(rec.OutcomeDetail, ShouldEqual, string(safety.BlockedRateLimited))
				}
			}
			So(blocked, ShouldEqual, 3)
		})
	})
}

func TestCooldownSuppression(t *testing.T) {
	Convey("Given two events for the same route within the cooldown", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL: blockage",
			Confidence: 0.90,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		e := newFixture(strategy, exec, trail, engine.WithCooldown(time.Hour))

		Convey("At most one action executes and both are on the trail", func() {
			So(e.Submit(ctx, disruption("evt-1", 8)), ShouldBeTrue)
			So(e.Submit(ctx, disruption("evt-2", 8)), ShouldBeTrue)
			e.Stop()

			So(exec.count(), ShouldEqual, 1)
			records, err := trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 2)
			So(records[0].Outcome, ShouldEqual, model.OutcomeExecuted)
			So(records[1].Outcome, ShouldEqual, model.OutcomeSuppressed)
		})
	})
}

func TestSessionIsolation(t *testing.T) {
	Convey("Given events for two different routes in cooldown-sized succession", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL: blockage",
			Confidence: 0.90,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		e := newFixture(strategy, exec, trail, engine.WithCooldown(time.Hour))

		Convey("Each route's session acts independently", func() {
			ev1 := disruption("evt-1", 8)
			ev2 := disruption("evt-2", 8)
			ev2.RouteID = "route-2"
			So(e.Submit(ctx, ev1), ShouldBeTrue)
			So(e.Submit(ctx, ev2), ShouldBeTrue)
			e.Stop()

			So(exec.count(), ShouldEqual, 2)
		})
	})
}

func TestAuditFailureHaltsActions(t *testing.T) {
	Convey("Given a trail that rejects every append", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL: blockage",
			Confidence: 0.90,
		}}
		exec := &countingExecutor{}
		ctx := context.Background()

		e := newFixture(strategy, exec, &brokenLog{}, engine.WithCooldown(time.Nanosecond))

		Convey("The engine halts new action execution after retries are exhausted", func() {
			So(e.Submit(ctx, disruption("evt-1", 8)), ShouldBeTrue)
			So(e.Submit(ctx, disruption("evt-2", 8)), ShouldBeTrue)
			e.Stop()

			So(e.Halted(), ShouldBeTrue)
			// the first event executed before the halt; the second must not have
			So(exec.count(), ShouldEqual, 1)
		})
	})
}

func TestSessionTeardown(t *testing.T) {
	Convey("Given an engine with an active session", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictAdvisory,
			Summary:    "ADVISORY",
			Confidence: 0.80,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		e := newFixture(strategy, exec, trail)
		So(e.Submit(ctx, disruption("evt-1", 3)), ShouldBeTrue)

		Convey("Closing the session keeps already appended records", func() {
			// allow the cycle to drain before teardown
			So(waitFor(func() bool {
				records, _ := trail.Records(ctx)
				return len(records) == 1
			}), ShouldBeTrue)

			e.CloseSession("route-1")
			records, err := trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)

			// a fresh session forms on the next event
			So(e.Submit(ctx, disruption("evt-2", 3)), ShouldBeTrue)
			e.Stop()
			records, err = trail.Records(ctx)
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 2)
		})
	})
}

func TestTeardownUnderLoad(t *testing.T) {
	Convey("Given submitters racing against repeated session teardown", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictAdvisory,
			Summary:    "ADVISORY",
			Confidence: 0.80,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		e := newFixture(strategy, exec, trail)

		Convey("No submit panics and the engine keeps accepting events", func() {
			stop := make(chan struct{})
			var wg sync.WaitGroup
			for w := 0; w < 8; w++ {
				wg.Add(1)
				go func(w int) {
					defer wg.Done()
					for i := 0; ; i++ {
						select {
						case <-stop:
							return
						default:
						}
						// a false return here is a full or closing
						// mailbox, never a crash
						e.Submit(ctx, disruption(fmt.Sprintf("evt-%d-%d", w, i), 3))
					}
				}(w)
			}

			for i := 0; i < 500; i++ {
				e.CloseSession("route-1")
			}
			close(stop)
			wg.Wait()

			// a fresh session still forms after the churn
			So(e.Submit(ctx, disruption("evt-final", 3)), ShouldBeTrue)
			e.Stop()
		})
	})
}

func TestTelemetryTransitions(t *testing.T) {
	Convey("Given a telemetry sink capturing transitions", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL",
			Confidence: 0.90,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		var mu sync.Mutex
		var seen []engine.State
		sink := func(tr engine.Transition) {
			mu.Lock()
			seen = append(seen, tr.To)
			mu.Unlock()
		}

		e := newFixture(strategy, exec, trail, engine.WithTelemetry(sink))

		Convey("A full cycle walks the states in order", func() {
			So(e.Submit(ctx, disruption("evt-1", 8)), ShouldBeTrue)
			e.Stop()

			mu.Lock()
			defer mu.Unlock()
			So(seen, ShouldResemble, []engine.State{
				engine.StateRetrieve,
				engine.StateAnalyze,
				engine.StateDecide,
				engine.StateAct,
				engine.StateLog,
				engine.StateObserve,
			})
		})
	})
}

func TestStats(t *testing.T) {
	Convey("Given a cycle that executes a reroute", t, func() {
		strategy := &fixedStrategy{assessment: reasoning.Assessment{
			Verdict:    reasoning.VerdictCritical,
			Summary:    "CRITICAL",
			Confidence: 0.90,
		}}
		exec := &countingExecutor{}
		trail := audit.NewMemoryLog()
		ctx := context.Background()

		e := newFixture(strategy, exec, trail)
		So(e.Submit(ctx, disruption("evt-1", 8)), ShouldBeTrue)
		e.Stop()

		Convey("The value counters reflect the executed action", func() {
			stats := e.Stats()
			So(stats.Decisions, ShouldEqual, 1)
			So(stats.Executed, ShouldEqual, 1)
			So(stats.EstimatedDaysSaved, ShouldBeGreaterThan, 0)
			So(stats.MeanDetectionLag, ShouldBeGreaterThan, 0)
			So(stats.MeanActionLag, ShouldBeGreaterThan, 0)
		})
	})
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
