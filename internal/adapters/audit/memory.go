package audit

import (
	"context"
	"sync"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// MemoryLog keeps the trail in process memory. Used in tests and in
// dev configurations where durability is not required.
type MemoryLog struct {
	mu      sync.RWMutex
	records []model.AuditRecord
	closed  bool

	// FailNext forces the next Append to fail, for exercising the
	// engine's halt path in tests.
	FailNext bool
}

// NewMemoryLog creates an empty in-memory trail.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

// Append implements Log.
func (m *MemoryLog) Append(ctx context.Context, record model.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.FailNext {
		m.FailNext = false
		return ErrAppendFailed
	}
	m.records = append(m.records, record)
	return nil
}

// Records implements Log.
func (m *MemoryLog) Records(ctx context.Context) ([]model.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.AuditRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Close implements Log.
func (m *MemoryLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
