package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kestrelworks/sentinel/internal/domain/model"
	"github.com/kestrelworks/sentinel/pkg/metrics"
)

const fileMode = 0o600

// FileLog persists the trail as one JSON object per line, synced to
// disk on every append. Appends are serialized; a record is durable
// when Append returns.
type FileLog struct {
	mu   sync.Mutex
	path string
	file *os.File
	w    *bufio.Writer
}

// NewFileLog opens (or creates) the trail file at path in append-only
// mode.
func NewFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, fileMode)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &FileLog{
		path: path,
		file: f,
		w:    bufio.NewWriter(f),
	}, nil
}

// Append implements Log. The line is flushed and fsynced before the
// call returns so a crash cannot lose an acknowledged record.
func (f *FileLog) Append(ctx context.Context, record model.AuditRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("%w: marshal record: %w", ErrAppendFailed, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return ErrClosed
	}

	if _, err := f.w.Write(line); err != nil {
		metrics.RecordAuditAppendError()
		return fmt.Errorf("%w: write record: %w", ErrAppendFailed, err)
	}
	if err := f.w.WriteByte('\n'); err != nil {
		metrics.RecordAuditAppendError()
		return fmt.Errorf("%w: write record: %w", ErrAppendFailed, err)
	}
	if err := f.w.Flush(); err != nil {
		metrics.RecordAuditAppendError()
		return fmt.Errorf("%w: flush record: %w", ErrAppendFailed, err)
	}
	if err := f.file.Sync(); err != nil {
		metrics.RecordAuditAppendError()
		return fmt.Errorf("%w: sync record: %w", ErrAppendFailed, err)
	}

	metrics.RecordAuditAppendLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

// Records implements Log. It reads the file from the start; lines that
// fail to parse are skipped rather than failing the whole read, the
// trail may end with a torn line after a crash.
func (f *FileLog) Records(ctx context.Context) ([]model.AuditRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	r, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open audit file for read: %w", err)
	}
	defer r.Close()

	var records []model.AuditRecord
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var rec model.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit file: %w", err)
	}
	return records, nil
}

// Close implements Log.
func (f *FileLog) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	if err := f.w.Flush(); err != nil {
		return fmt.Errorf("flush audit file: %w", err)
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return fmt.Errorf("close audit file: %w", err)
	}
	return nil
}
