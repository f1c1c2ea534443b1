package reasoning

import (
	"context"
	"errors"
	"fmt"

	"github.com/kestrelworks/sentinel/pkg/logger"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

// Fallback chains a primary strategy with a deterministic backup. When
// the primary returns an error wrapping ErrUnavailable, the backup
// answers instead and the degradation is counted and logged; other
// primary errors propagate unchanged. A session never aborts because a
// reasoning backend is down, it degrades.
type Fallback struct {
	primary Strategy
	backup  Strategy
	log     logger.Logger
}

// WithFallback wraps primary so that backup answers whenever primary is
// unavailable. If primary is nil the backup is used directly.
func WithFallback(primary, backup Strategy) Strategy {
	if primary == nil {
		return backup
	}
	return &Fallback{
		primary: primary,
		backup:  backup,
		log:     logger.Named("reasoning"),
	}
}

// Name implements Strategy.
func (f *Fallback) Name() string {
	return fmt.Sprintf("%s+%s", f.primary.Name(), f.backup.Name())
}

// Analyze implements Strategy.
func (f *Fallback) Analyze(ctx context.Context, in Input) (Assessment, error) {
	assessment, err := f.primary.Analyze(ctx, in)
	if err == nil {
		return assessment, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return Assessment{}, fmt.Errorf("%s strategy: %w", f.primary.Name(), err)
	}

	metrics.RecordReasoningFallback()
	f.log.Warn(ctx, "primary strategy unavailable, degrading to backup",
		logger.String("primary", f.primary.Name()),
		logger.String("backup", f.backup.Name()),
		logger.Error(err))

	assessment, err = f.backup.Analyze(ctx, in)
	if err != nil {
		return Assessment{}, fmt.Errorf("%s strategy after fallback: %w", f.backup.Name(), err)
	}
	return assessment, nil
}
