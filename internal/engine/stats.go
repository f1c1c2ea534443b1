package engine

import (
	"sync"
	"time"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Stats is a point-in-time snapshot of the engine's value counters,
// served by the stats endpoint.
type Stats struct {
	Decisions          int64         `json:"decisions"`
	Executed           int64         `json:"executed"`
	Blocked            int64         `json:"blocked"`
	Suppressed         int64         `json:"suppressed"`
	Failed             int64         `json:"failed"`
	NoAction           int64         `json:"no_action"`
	MeanDetectionLag   time.Duration `json:"mean_detection_lag_ns"`
	MeanActionLag      time.Duration `json:"mean_action_lag_ns"`
	EstimatedDaysSaved float64       `json:"estimated_days_saved"`
}

// stats accumulates the counters behind Stats. Sessions write from
// their own goroutines; a mutex keeps the sums coherent.
type stats struct {
	mu sync.Mutex

	decisions  int64
	executed   int64
	blocked    int64
	suppressed int64
	failed     int64
	noAction   int64

	detectionSum   time.Duration
	detectionCount int64
	actionSum      time.Duration
	actionCount    int64
	daysSaved      float64
}

func (s *stats) observeDetection(lag time.Duration) {
	s.mu.Lock()
	s.detectionSum += lag
	s.detectionCount++
	s.mu.Unlock()
}

func (s *stats) observeAction(lag time.Duration) {
	s.mu.Lock()
	s.actionSum += lag
	s.actionCount++
	s.mu.Unlock()
}

func (s *stats) addDaysSaved(days float64) {
	s.mu.Lock()
	s.daysSaved += days
	s.mu.Unlock()
}

func (s *stats) observeOutcome(outcome model.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions++
	switch outcome {
	case model.OutcomeExecuted:
		s.executed++
	case model.OutcomeBlocked:
		s.blocked++
	case model.OutcomeSuppressed:
		s.suppressed++
	case model.OutcomeFailed:
		s.failed++
	case model.OutcomeNoAction:
		s.noAction++
	}
}

func (s *stats) snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := Stats{
		Decisions:          s.decisions,
		Executed:           s.executed,
		Blocked:            s.blocked,
		Suppressed:         s.suppressed,
		Failed:             s.failed,
		NoAction:           s.noAction,
		EstimatedDaysSaved: s.daysSaved,
	}
	if s.detectionCount > 0 {
		out.MeanDetectionLag = s.detectionSum / time.Duration(s.detectionCount)
	}
	if s.actionCount > 0 {
		out.MeanActionLag = s.actionSum / time.Duration(s.actionCount)
	}
	return out
}
