// Package artifact saves per-call evaluation results as JSON files for
// later review, one file per call.
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/opsaudit/callqc/internal/models"
)

// sanitize replaces characters that are unsafe in filenames.
var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

func sanitizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "unnamed"
	}
	return s
}

// Filename returns the artifact filename for a call.
func Filename(callID string, ts time.Time) string {
	return fmt.Sprintf("%s-%s.json", sanitizeName(callID), ts.Format("20060102-150405"))
}

// Record is the persisted shape of one evaluated call: the result plus
// enough context to read it standalone.
type Record struct {
	CallID      string                   `json:"call_id"`
	RunID       string                   `json:"run_id,omitempty"`
	EvaluatedAt time.Time                `json:"evaluated_at"`
	Result      *models.EvaluationResult `json:"result"`
}

// Write serializes a record and writes it to dir, creating the
// directory if needed. Returns the written path.
func Write(dir string, rec *Record) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	path := filepath.Join(dir, Filename(rec.CallID, rec.EvaluatedAt))

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	return path, nil
}

// Read loads a previously written record.
func Read(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse artifact %s: %w", path, err)
	}
	return &rec, nil
}
