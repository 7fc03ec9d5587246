package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/opsaudit/callqc/internal/dataset"
	"github.com/opsaudit/callqc/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds batch concurrency when the caller doesn't.
const DefaultWorkers = 4

// EventType identifies a batch progress event.
type EventType string

const (
	EventBatchStart    EventType = "batch_start"
	EventBatchComplete EventType = "batch_complete"
	EventRowStart      EventType = "row_start"
	EventRowComplete   EventType = "row_complete"
)

// ProgressEvent is a progress update emitted during a batch run.
type ProgressEvent struct {
	EventType EventType
	RunID     string
	CallID    string
	RowNum    int
	TotalRows int
	Verdict   models.Verdict
	ErrorMsg  string
}

// ProgressListener receives progress updates.
type ProgressListener func(event ProgressEvent)

// RowResult is the outcome of evaluating one batch row. A failed row
// carries its error message and a nil Result; it never aborts the rest
// of the batch.
type RowResult struct {
	CallID   string
	Result   *models.EvaluationResult
	ErrorMsg string
}

// BatchRunner fans batch rows out to a bounded pool of evaluation
// workers and collects results in original row order. Rows are fully
// independent, so parallel evaluation doesn't change semantics.
type BatchRunner struct {
	evaluator *Evaluator
	workers   int

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// NewBatchRunner creates a runner with the given worker bound; values
// below 1 fall back to [DefaultWorkers].
func NewBatchRunner(evaluator *Evaluator, workers int) *BatchRunner {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &BatchRunner{evaluator: evaluator, workers: workers}
}

// OnProgress registers a progress listener.
func (b *BatchRunner) OnProgress(listener ProgressListener) {
	b.progressMu.Lock()
	defer b.progressMu.Unlock()
	b.listeners = append(b.listeners, listener)
}

func (b *BatchRunner) notifyProgress(event ProgressEvent) {
	b.progressMu.Lock()
	listeners := make([]ProgressListener, len(b.listeners))
	copy(listeners, b.listeners)
	b.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Run evaluates every row against the rubric. The rubric is loaded once
// up front; a malformed rubric fails the whole batch before any worker
// starts. Per-row failures are captured in the row's result and do not
// stop the remaining rows.
func (b *BatchRunner) Run(ctx context.Context, rubricText []byte, rows []dataset.Row) ([]RowResult, error) {
	rubric, err := models.LoadRubric(rubricText)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	b.notifyProgress(ProgressEvent{
		EventType: EventBatchStart,
		RunID:     runID,
		TotalRows: len(rows),
	})

	results := make([]RowResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i, row := range rows {
		g.Go(func() error {
			callID := row.CallID(fmt.Sprintf("row_%d", i))

			b.notifyProgress(ProgressEvent{
				EventType: EventRowStart,
				RunID:     runID,
				CallID:    callID,
				RowNum:    i + 1,
				TotalRows: len(rows),
			})

			res, err := b.evaluator.EvaluateWithRubric(gctx, row.Transcript(), rubric)

			rowResult := RowResult{CallID: callID, Result: res}
			if err != nil {
				rowResult.Result = nil
				rowResult.ErrorMsg = err.Error()
			}
			results[i] = rowResult

			event := ProgressEvent{
				EventType: EventRowComplete,
				RunID:     runID,
				CallID:    callID,
				RowNum:    i + 1,
				TotalRows: len(rows),
				ErrorMsg:  rowResult.ErrorMsg,
			}
			if res != nil {
				event.Verdict = res.Verdict
			}
			b.notifyProgress(event)

			// Row errors are carried per-row, never through the group.
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	b.notifyProgress(ProgressEvent{
		EventType: EventBatchComplete,
		RunID:     runID,
		TotalRows: len(rows),
	})

	return results, nil
}
