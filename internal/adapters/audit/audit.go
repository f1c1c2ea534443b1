// Package audit provides append-only persistence for decision trail
// records. Backends never update or delete; a record that went in comes
// back out byte-for-byte in insertion order.
package audit

import (
	"context"
	"errors"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Sentinel kinds for audit errors.
var (
	ErrAppendFailed = errors.New("audit append failed")
	ErrClosed       = errors.New("audit log closed")
)

// Log is the append-only trail contract. Append must be durable before
// it returns; the engine treats a returned error as grounds to halt new
// actions.
type Log interface {
	Append(ctx context.Context, record model.AuditRecord) error

	// Records returns every stored record in append order.
	Records(ctx context.Context) ([]model.AuditRecord, error)

	Close() error
}
