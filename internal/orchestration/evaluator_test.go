package orchestration

import (
	"context"
	"errors"
	"testing"

	"github.com/opsaudit/callqc/internal/grading"
	"github.com/opsaudit/callqc/internal/models"
	"github.com/opsaudit/callqc/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRubricYAML = `
title: Delivery support calls
metrics:
  - id: greeting
    name: Greeting quality
    weight: 0.5
  - id: tone
    name: Tone and empathy
    weight: 0.5
verdict_thresholds:
  pass: 80
  needs_review: 60
`

// scriptedBackend returns canned text for both tiers, or an error from
// everything when err is set.
type scriptedBackend struct {
	text string
	err  error
}

func (s *scriptedBackend) CompleteStructured(context.Context, grading.Request) (string, error) {
	return s.text, s.err
}

func (s *scriptedBackend) CompleteJSON(context.Context, grading.Request) (string, error) {
	return s.text, s.err
}

func TestEvaluate(t *testing.T) {
	backend := &scriptedBackend{
		text: `{"verdict": "PASS", "summary": "solid call", "per_metric": [
			{"id": "greeting", "score": 100},
			{"id": "tone", "score": 60}
		]}`,
	}
	eval := NewEvaluator(backend, grading.Options{Model: "gpt-4o-mini", PreferStructured: true})

	res, err := eval.Evaluate(context.Background(), "agent: hello", []byte(testRubricYAML))
	require.NoError(t, err)

	// Weights come from the rubric; the overall score is recomputed.
	assert.Equal(t, 80.0, res.OverallScore)
	assert.Equal(t, models.VerdictPass, res.Verdict)
	assert.Equal(t, models.VerdictPass, res.ComputedVerdict)
	assert.Equal(t, "solid call", res.Summary)
}

func TestEvaluateMalformedRubric(t *testing.T) {
	eval := NewEvaluator(&scriptedBackend{text: `{}`}, grading.Options{})

	_, err := eval.Evaluate(context.Background(), "agent: hello", []byte("metrics: [whoops"))
	require.Error(t, err)

	var parseErr *models.RubricParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestEvaluateBackendUnavailable(t *testing.T) {
	eval := NewEvaluator(&scriptedBackend{err: errors.New("connection refused")}, grading.Options{PreferStructured: true})

	_, err := eval.Evaluate(context.Background(), "agent: hello", []byte(testRubricYAML))
	require.Error(t, err)

	var unavailable *grading.UnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestEvaluateUnusableModelOutput(t *testing.T) {
	eval := NewEvaluator(&scriptedBackend{text: "I refuse to answer in JSON."}, grading.Options{})

	_, err := eval.Evaluate(context.Background(), "agent: hello", []byte(testRubricYAML))
	require.Error(t, err)

	var parseErr *normalize.ResultParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestEvaluateCrossCheck(t *testing.T) {
	backend := &scriptedBackend{
		text: `{"per_metric": [{"id": "greeting", "score": 90}]}`,
	}
	eval := NewEvaluator(backend, grading.Options{}, WithCrossCheck())

	res, err := eval.Evaluate(context.Background(), "agent: hello", []byte(testRubricYAML))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `"tone" was not scored`)
}
