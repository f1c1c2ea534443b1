package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_records (
    seq             BIGSERIAL PRIMARY KEY,
    id              TEXT NOT NULL UNIQUE,
    event_id        TEXT NOT NULL,
    route_id        TEXT NOT NULL,
    input_hash      TEXT NOT NULL,
    reasoning_trace JSONB NOT NULL,
    decision        JSONB NOT NULL,
    outcome         TEXT NOT NULL,
    outcome_detail  TEXT NOT NULL DEFAULT '',
    ts              TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_records_event_idx ON audit_records (event_id);
CREATE INDEX IF NOT EXISTS audit_records_route_idx ON audit_records (route_id);
`

// PostgresLog persists the trail in an append-only table. The table
// grants no UPDATE or DELETE path through this adapter; ordering comes
// from the serial sequence, not timestamps.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// OpenPostgresLog connects to databaseURL, verifies the connection and
// ensures the trail table exists.
func OpenPostgresLog(ctx context.Context, databaseURL string) (*PostgresLog, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse audit database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	if _, err := pool.Exec(ctx, auditSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure audit schema: %w", err)
	}

	return &PostgresLog{pool: pool}, nil
}

// Append implements Log.
func (p *PostgresLog) Append(ctx context.Context, record model.AuditRecord) error {
	start := time.Now()

	trace, err := json.Marshal(record.ReasoningTrace)
	if err != nil {
		return fmt.Errorf("%w: marshal trace: %w", ErrAppendFailed, err)
	}
	decision, err := json.Marshal(record.Decision)
	if err != nil {
		return fmt.Errorf("%w: marshal decision: %w", ErrAppendFailed, err)
	}

	_, err = p.pool.Exec(ctx, `
        INSERT INTO audit_records
            (id, event_id, route_id, input_hash, reasoning_trace, decision, outcome, outcome_detail, ts)
        VALUES
            ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7, $8, $9)
    `, record.ID, record.EventID, record.RouteID, record.InputHash,
		string(trace), string(decision), string(record.Outcome), record.OutcomeDetail, record.Timestamp)
	if err != nil {
		metrics.RecordAuditAppendError()
		return fmt.Errorf("%w: insert record: %w", ErrAppendFailed, err)
	}

	metrics.RecordAuditAppendLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// Records implements Log.
func (p *PostgresLog) Records(ctx context.Context) ([]model.AuditRecord, error) {
	rows, err := p.pool.Query(ctx, `
        SELECT id, event_id, route_id, input_hash, reasoning_trace, decision, outcome, outcome_detail, ts
        FROM audit_records
        ORDER BY seq
    `)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		var traceRaw, decisionRaw []byte
		var outcome string
		if err := rows.Scan(
			&rec.ID,
			&rec.EventID,
			&rec.RouteID,
			&rec.InputHash,
			&traceRaw,
			&decisionRaw,
			&outcome,
			&rec.OutcomeDetail,
			&rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		if err := json.Unmarshal(traceRaw, &rec.ReasoningTrace); err != nil {
			return nil, fmt.Errorf("decode trace for %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal(decisionRaw, &rec.Decision); err != nil {
			return nil, fmt.Errorf("decode decision for %s: %w", rec.ID, err)
		}
		rec.Outcome = model.Outcome(outcome)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return records, nil
}

// Close implements Log.
func (p *PostgresLog) Close() error {
	p.pool.Close()
	return nil
}
