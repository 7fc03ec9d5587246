// Package runlog persists batch run activity as an append-only NDJSON
// audit trail, one event per line. The log survives partial runs, so an
// interrupted batch still leaves a record of every row it finished.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/opsaudit/callqc/internal/orchestration"
)

// Entry is a single timestamped line in a run log.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	RunID     string         `json:"run_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Logger writes run events.
type Logger interface {
	Log(entry Entry) error
	Close() error
}

// JSONLogger writes entries as newline-delimited JSON.
type JSONLogger struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
	path string
}

// NewJSONLogger creates a logger appending NDJSON to the given path.
// Parent directories are created automatically.
func NewJSONLogger(path string) (*JSONLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening run log: %w", err)
	}

	return &JSONLogger{
		file: f,
		enc:  json.NewEncoder(f),
		path: path,
	}, nil
}

// Log writes a single entry as one JSON line.
func (l *JSONLogger) Log(entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enc.Encode(entry)
}

// Close flushes and closes the underlying file.
func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the file path of the run log.
func (l *JSONLogger) Path() string { return l.path }

// NopLogger discards all entries. The default when logging is disabled.
type NopLogger struct{}

func (NopLogger) Log(Entry) error { return nil }
func (NopLogger) Close() error    { return nil }

// DefaultLogPath returns a timestamped run log path inside dir.
func DefaultLogPath(dir string) string {
	ts := time.Now().UTC().Format("20060102T150405Z")
	return filepath.Join(dir, fmt.Sprintf("%s-run.jsonl", ts))
}

// Listener adapts a Logger into a batch progress listener. Logging
// failures are swallowed: the audit trail never interrupts a run.
func Listener(logger Logger) orchestration.ProgressListener {
	return func(event orchestration.ProgressEvent) {
		entry := Entry{
			Timestamp: time.Now().UTC(),
			Type:      string(event.EventType),
			RunID:     event.RunID,
			Data:      map[string]any{},
		}

		switch event.EventType {
		case orchestration.EventBatchStart, orchestration.EventBatchComplete:
			entry.Data["total_rows"] = event.TotalRows
		case orchestration.EventRowStart:
			entry.Data["call_id"] = event.CallID
			entry.Data["row_num"] = event.RowNum
			entry.Data["total_rows"] = event.TotalRows
		case orchestration.EventRowComplete:
			entry.Data["call_id"] = event.CallID
			entry.Data["row_num"] = event.RowNum
			if event.ErrorMsg != "" {
				entry.Data["error"] = event.ErrorMsg
			} else {
				entry.Data["verdict"] = string(event.Verdict)
			}
		}

		_ = logger.Log(entry)
	}
}
