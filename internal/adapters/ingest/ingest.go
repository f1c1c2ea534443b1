// Package ingest contains the event sources feeding the intake queue:
// a Kafka consumer for production feeds and simulated generators for
// dev mode. Sources produce raw records; the normalizer downstream
// decides what is usable.
package ingest

import (
	"context"

	"github.com/kestrelworks/sentinel/internal/domain/model"
)

// Sink accepts one raw record, typically the intake queue's Enqueue.
// A false return means the record was dropped; sources may use it as a
// backpressure signal but must not retry indefinitely.
type Sink func(ctx context.Context, rec model.RawRecord) bool

// Source produces raw records until its context is cancelled.
type Source interface {
	Run(ctx context.Context, sink Sink) error

	// Name identifies the source in logs.
	Name() string
}
