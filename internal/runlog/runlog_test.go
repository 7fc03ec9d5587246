package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opsaudit/callqc/internal/orchestration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.jsonl")

	logger, err := NewJSONLogger(path)
	require.NoError(t, err)

	require.NoError(t, logger.Log(Entry{Type: "batch_start", RunID: "r-1"}))
	require.NoError(t, logger.Log(Entry{Type: "batch_complete", RunID: "r-1"}))
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var first Entry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "batch_start", first.Type)
	assert.Equal(t, "r-1", first.RunID)
}

func TestJSONLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")

	for range 2 {
		logger, err := NewJSONLogger(path)
		require.NoError(t, err)
		require.NoError(t, logger.Log(Entry{Type: "batch_start"}))
		require.NoError(t, logger.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)
}

type captureLogger struct {
	entries []Entry
}

func (c *captureLogger) Log(entry Entry) error {
	c.entries = append(c.entries, entry)
	return nil
}

func (c *captureLogger) Close() error { return nil }

func TestListener(t *testing.T) {
	capture := &captureLogger{}
	listener := Listener(capture)

	listener(orchestration.ProgressEvent{
		EventType: orchestration.EventBatchStart,
		RunID:     "r-1",
		TotalRows: 3,
	})
	listener(orchestration.ProgressEvent{
		EventType: orchestration.EventRowComplete,
		RunID:     "r-1",
		CallID:    "c-1",
		RowNum:    1,
		Verdict:   "PASS",
	})
	listener(orchestration.ProgressEvent{
		EventType: orchestration.EventRowComplete,
		RunID:     "r-1",
		CallID:    "c-2",
		RowNum:    2,
		ErrorMsg:  "backend unavailable",
	})

	require.Len(t, capture.entries, 3)
	assert.Equal(t, "batch_start", capture.entries[0].Type)
	assert.Equal(t, 3, capture.entries[0].Data["total_rows"])

	assert.Equal(t, "PASS", capture.entries[1].Data["verdict"])
	assert.NotContains(t, capture.entries[1].Data, "error")

	assert.Equal(t, "backend unavailable", capture.entries[2].Data["error"])
	assert.NotContains(t, capture.entries[2].Data, "verdict")
}

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath("logs")
	assert.True(t, strings.HasPrefix(path, "logs"+string(filepath.Separator)))
	assert.True(t, strings.HasSuffix(path, "-run.jsonl"))
}
