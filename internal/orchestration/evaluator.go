// Package orchestration drives evaluations: a single synchronous
// pipeline per call, and a bounded worker pool for batch input. All
// evaluation state is request-scoped; the evaluator itself is immutable
// and safe for concurrent use.
package orchestration

import (
	"context"
	"log/slog"

	"github.com/opsaudit/callqc/internal/grading"
	"github.com/opsaudit/callqc/internal/models"
	"github.com/opsaudit/callqc/internal/normalize"
	"github.com/opsaudit/callqc/internal/schema"
)

// Evaluator runs one rubric-driven evaluation end to end: load rubric,
// compile prompts, invoke the grading backend, normalize the result.
type Evaluator struct {
	backend grading.Backend
	opts    grading.Options

	// CrossCheck reports missing/extra metric ids (relative to the
	// rubric) as result warnings.
	crossCheck bool
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithCrossCheck enables rubric/result metric id cross-validation.
func WithCrossCheck() EvaluatorOption {
	return func(e *Evaluator) { e.crossCheck = true }
}

func NewEvaluator(backend grading.Backend, opts grading.Options, evalOpts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{backend: backend, opts: opts}
	for _, o := range evalOpts {
		o(e)
	}
	return e
}

// Evaluate grades a transcript against rubric YAML text. It is
// synchronous and blocking: prompt compilation, the grading call, and
// normalization run in sequence. Errors are typed (*RubricParseError,
// *grading.UnavailableError, *normalize.ResultParseError) and are never
// substituted with a defaulted result.
func (e *Evaluator) Evaluate(ctx context.Context, transcript string, rubricText []byte) (*models.EvaluationResult, error) {
	rubric, err := models.LoadRubric(rubricText)
	if err != nil {
		return nil, err
	}
	return e.EvaluateWithRubric(ctx, transcript, rubric)
}

// EvaluateWithRubric grades a transcript against an already-loaded
// rubric, avoiding a re-parse per row in batch mode.
func (e *Evaluator) EvaluateWithRubric(ctx context.Context, transcript string, rubric *models.Rubric) (*models.EvaluationResult, error) {
	invoker := grading.NewInvoker(e.backend, e.opts)

	raw, err := invoker.Invoke(ctx, transcript, rubric)
	if err != nil {
		return nil, err
	}

	parsed, err := normalize.Parse(raw)
	if err != nil {
		return nil, err
	}

	// Shape violations are advisory; the normalizer repairs them.
	for _, failure := range schema.Check(parsed) {
		slog.Debug("model output deviates from target schema", "failure", failure)
	}

	normOpts := []normalize.Option{normalize.WithRubric(rubric)}
	if e.crossCheck {
		normOpts = append(normOpts, normalize.WithCrossCheck())
	}

	return normalize.Normalize(parsed, rubric.VerdictThresholds, normOpts...)
}
