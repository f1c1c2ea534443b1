package actions

import (
	"context"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/logger"
)

// LogOnly satisfies Executor without performing real I/O. Default in
// dev and test configurations.
type LogOnly struct {
	log logger.Logger
}

// NewLogOnly creates the logging-only executor.
func NewLogOnly() *LogOnly {
	return &LogOnly{log: logger.Named("actions")}
}

// Name implements Executor.
func (l *LogOnly) Name() string { return "log-only" }

// Execute implements Executor. It always succeeds.
func (l *LogOnly) Execute(ctx context.Context, action model.Action) error {
	l.log.Info(ctx, "action executed (dry run)",
		logger.String("kind", string(action.Kind)),
		logger.String("shipment_id", action.ShipmentID),
		logger.String("route_id", action.RouteID),
		logger.String("detail", action.Detail))
	return nil
}
