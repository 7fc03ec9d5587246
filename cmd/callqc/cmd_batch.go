package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/opsaudit/callqc/internal/artifact"
	"github.com/opsaudit/callqc/internal/dataset"
	"github.com/opsaudit/callqc/internal/grading"
	"github.com/opsaudit/callqc/internal/orchestration"
	"github.com/opsaudit/callqc/internal/runlog"
	"github.com/spf13/cobra"
)

var (
	batchModel       string
	batchWorkers     int
	batchStructured  bool
	batchCrossCheck  bool
	batchBaseURL     string
	batchTimeoutSec  int
	batchOutputPath  string
	batchLogPath     string
	batchArtifactDir string
)

func newBatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <rubric.yaml> <calls.csv>",
		Short: "Evaluate a CSV of call transcripts",
		Long: `Evaluate every row of a CSV file against a rubric.

The CSV needs a 'transcript' column; a 'call_id' column is used for row
identity when present. Rows are evaluated by a bounded pool of workers;
a row that fails keeps its place in the output with an error marker and
does not stop the rest of the batch.`,
		Args: cobra.ExactArgs(2),
		RunE: batchCommandE,
	}

	cmd.Flags().StringVarP(&batchModel, "model", "m", "gpt-4o-mini", "Grading model")
	cmd.Flags().IntVarP(&batchWorkers, "workers", "w", orchestration.DefaultWorkers, "Number of concurrent evaluation workers")
	cmd.Flags().BoolVar(&batchStructured, "structured", true, "Prefer the schema-enforced structured output path")
	cmd.Flags().BoolVar(&batchCrossCheck, "cross-check", false, "Warn about metric ids missing from or absent in the rubric")
	cmd.Flags().StringVar(&batchBaseURL, "base-url", grading.DefaultBaseURL, "OpenAI-compatible API base URL")
	cmd.Flags().IntVar(&batchTimeoutSec, "timeout", 120, "Per-tier backend timeout in seconds")
	cmd.Flags().StringVarP(&batchOutputPath, "output", "o", "", "Write the results CSV to a file instead of stdout")
	cmd.Flags().StringVar(&batchLogPath, "log", "", "Append an NDJSON run log to this file")
	cmd.Flags().StringVar(&batchArtifactDir, "artifacts", "", "Save a JSON artifact per evaluated call into this directory")

	return cmd
}

func batchCommandE(cmd *cobra.Command, args []string) error {
	rubricText, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading rubric: %w", err)
	}

	rows, err := dataset.LoadCSV(args[1])
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return fmt.Errorf("no rows found in %s", args[1])
	}

	backend := grading.NewOpenAIClient(os.Getenv("OPENAI_API_KEY"), grading.OpenAIClientOptions{
		BaseURL: batchBaseURL,
		Timeout: time.Duration(batchTimeoutSec) * time.Second,
	})

	var evalOpts []orchestration.EvaluatorOption
	if batchCrossCheck {
		evalOpts = append(evalOpts, orchestration.WithCrossCheck())
	}

	evaluator := orchestration.NewEvaluator(backend, grading.Options{
		Model:            batchModel,
		Temperature:      0.0,
		PreferStructured: batchStructured,
	}, evalOpts...)

	runner := orchestration.NewBatchRunner(evaluator, batchWorkers)
	runner.OnProgress(printBatchProgress)

	if batchLogPath != "" {
		logger, err := runlog.NewJSONLogger(batchLogPath)
		if err != nil {
			return err
		}
		defer logger.Close() //nolint:errcheck
		runner.OnProgress(runlog.Listener(logger))
	}

	results, err := runner.Run(cmd.Context(), rubricText, rows)
	if err != nil {
		return err
	}

	if batchArtifactDir != "" {
		if err := saveBatchArtifacts(results); err != nil {
			return err
		}
	}

	if err := writeBatchResults(results); err != nil {
		return err
	}

	failed := 0
	for _, res := range results {
		if res.ErrorMsg != "" {
			failed++
		}
	}
	if failed > 0 {
		return &RowFailureError{
			Message: fmt.Sprintf("%d of %d rows failed to evaluate", failed, len(results)),
		}
	}
	return nil
}

func printBatchProgress(event orchestration.ProgressEvent) {
	switch event.EventType {
	case orchestration.EventBatchStart:
		fmt.Fprintf(os.Stderr, "Evaluating %d calls...\n", event.TotalRows)
	case orchestration.EventRowComplete:
		if event.ErrorMsg != "" {
			fmt.Fprintf(os.Stderr, "  [%d/%d] %s: ERROR: %s\n", event.RowNum, event.TotalRows, event.CallID, event.ErrorMsg)
			return
		}
		fmt.Fprintf(os.Stderr, "  [%d/%d] %s: %s\n", event.RowNum, event.TotalRows, event.CallID, event.Verdict)
	case orchestration.EventBatchComplete:
		fmt.Fprintln(os.Stderr, "Batch complete")
	}
}

func saveBatchArtifacts(results []orchestration.RowResult) error {
	now := time.Now().UTC()
	for _, res := range results {
		if res.Result == nil {
			continue
		}
		if _, err := artifact.Write(batchArtifactDir, &artifact.Record{
			CallID:      res.CallID,
			EvaluatedAt: now,
			Result:      res.Result,
		}); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "Artifacts written to %s\n", batchArtifactDir)
	return nil
}

func writeBatchResults(results []orchestration.RowResult) error {
	out := make([]dataset.ResultRow, 0, len(results))
	for _, res := range results {
		row := dataset.ResultRow{CallID: res.CallID, Error: res.ErrorMsg}
		if res.Result != nil {
			perMetricJSON, err := json.Marshal(res.Result.PerMetric)
			if err != nil {
				return fmt.Errorf("serializing per-metric detail for %s: %w", res.CallID, err)
			}
			row.OverallScore = res.Result.OverallScore
			row.Verdict = string(res.Result.Verdict)
			row.Summary = res.Result.Summary
			row.PerMetricJSON = string(perMetricJSON)
		}
		out = append(out, row)
	}

	if batchOutputPath != "" {
		f, err := os.Create(batchOutputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		if err := dataset.WriteResults(f, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Results written to %s\n", batchOutputPath)
		return nil
	}

	return dataset.WriteResults(os.Stdout, out)
}
