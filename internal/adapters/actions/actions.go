// Package actions executes decided mitigations against the outside
// world. The engine hands every permitted action to an Executor; which
// implementation it gets is a configuration concern.
package actions

import (
	"context"
	"errors"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Sentinel kinds for execution errors.
var (
	ErrActionFailed = errors.New("action execution failed")
)

// Executor performs one action. Implementations must respect ctx
// cancellation; the engine bounds every call with a timeout.
type Executor interface {
	Execute(ctx context.Context, action model.Action) error

	// Name identifies the executor in logs.
	Name() string
}
