// Package dataset handles the batch CSV surface: reading call rows in
// and writing per-row evaluation results back out.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Well-known input columns for batch evaluation.
const (
	ColCallID     = "call_id"
	ColTranscript = "transcript"
)

// Row represents a single CSV row as a column name to value mapping.
type Row map[string]string

// CallID returns the row's call identifier, falling back to the given
// value when the column is absent or empty.
func (r Row) CallID(fallback string) string {
	if v := r[ColCallID]; v != "" {
		return v
	}
	return fallback
}

// Transcript returns the row's transcript text ("" when absent).
func (r Row) Transcript() string {
	return r[ColTranscript]
}

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first row is treated as headers.
func LoadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	return ReadRows(f)
}

// ReadRows parses CSV content from a reader, mapping each record to its
// header columns. Records are streamed rather than slurped, so a large
// batch file never has to fit in memory twice. The header row fixes the
// field count; the reader rejects ragged records itself.
func ReadRows(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)

	headers, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv: input is empty (no header row)")
	}
	if err != nil {
		return nil, fmt.Errorf("csv: reading header: %w", err)
	}

	var rows []Row
	for {
		record, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("csv: %w", err)
		}

		row := make(Row, len(headers))
		for i, h := range headers {
			row[h] = record[i]
		}
		rows = append(rows, row)
	}
}

// ResultRow is one line of the batch output CSV. Error is empty for
// successful rows; failed rows keep their position with the error
// message in place of scores.
type ResultRow struct {
	CallID        string
	OverallScore  float64
	Verdict       string
	Summary       string
	PerMetricJSON string
	Error         string
}

// WriteResults emits the batch output CSV, preserving row order.
func WriteResults(w io.Writer, rows []ResultRow) error {
	cw := csv.NewWriter(w)

	header := []string{ColCallID, "overall_score", "verdict", "summary", "per_metric_json", "error"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, row := range rows {
		score := ""
		if row.Error == "" {
			score = strconv.FormatFloat(row.OverallScore, 'f', -1, 64)
		}
		record := []string{row.CallID, score, row.Verdict, row.Summary, row.PerMetricJSON, row.Error}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("csv: write row for %s: %w", row.CallID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
