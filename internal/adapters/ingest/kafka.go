package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/logger"
)

// KafkaSource consumes raw records from a Kafka topic as part of a
// consumer group. Message values are JSON-encoded raw records; an
// unparseable value is logged and skipped, never fatal.
type KafkaSource struct {
	reader *kafka.Reader
	log    logger.Logger
}

// NewKafkaSource creates a consumer-group reader over brokers.
func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
			MaxWait:        time.Second,
		}),
		log: logger.Named("ingest-kafka"),
	}
}

// Name implements Source.
func (k *KafkaSource) Name() string { return "kafka" }

// Run implements Source. It blocks until ctx is cancelled or the
// reader fails terminally.
func (k *KafkaSource) Run(ctx context.Context, sink Sink) error {
	for {
		msg, err := k.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("read kafka message: %w", err)
		}

		var rec model.RawRecord
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			k.log.Warn(ctx, "skipping unparseable kafka message",
				logger.String("topic", msg.Topic),
				logger.Int("partition", msg.Partition),
				logger.Error(err))
			continue
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = msg.Time
		}

		if !sink(ctx, rec) {
			k.log.Warn(ctx, "intake queue rejected record",
				logger.String("source_id", rec.SourceID))
		}
	}
}

// Close releases the reader's group membership.
func (k *KafkaSource) Close() error {
	return k.reader.Close()
}
