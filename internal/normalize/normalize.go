// Package normalize turns raw model output text into a validated
// EvaluationResult. It repairs malformed JSON by brace extraction,
// recomputes the overall score and verdict deterministically, and fills
// defaults, so callers never see a partially-shaped result.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	"github.com/go-viper/mapstructure/v2"
	"github.com/opsaudit/callqc/internal/models"
)

// objectPattern locates the first top-level brace-delimited object in
// the output, greedily and across newlines.
var objectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ResultParseError indicates model output containing no extractable JSON
// object. It is distinct from backend unavailability: the backend did
// respond, but the text was unusable. The caller should re-attempt the
// evaluation rather than receive a defaulted result.
type ResultParseError struct {
	Raw string
	Err error
}

func (e *ResultParseError) Error() string {
	if e.Err == nil {
		return "no JSON object found in model output"
	}
	return "parsing model output: " + e.Err.Error()
}

func (e *ResultParseError) Unwrap() error { return e.Err }

// Parse decodes model output text into a generic object. It first
// attempts a strict parse of the whole text, then falls back to
// extracting the first brace-delimited substring (the terminal tier of
// the fallback protocol). Both failing produces a *ResultParseError.
func Parse(text string) (map[string]any, error) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, nil
	}

	extracted := objectPattern.FindString(text)
	if extracted == "" {
		return nil, &ResultParseError{Raw: text}
	}
	if err := json.Unmarshal([]byte(extracted), &parsed); err != nil {
		return nil, &ResultParseError{Raw: text, Err: err}
	}
	return parsed, nil
}

// Option configures normalization.
type Option func(*normalizer)

type normalizer struct {
	rubric     *models.Rubric
	crossCheck bool
}

// WithRubric supplies the source rubric so per-metric entries missing a
// weight can inherit the rubric weight for aggregation.
func WithRubric(r *models.Rubric) Option {
	return func(n *normalizer) { n.rubric = r }
}

// WithCrossCheck reports missing or extra metric ids (relative to the
// rubric) as warnings. Requires [WithRubric]; never blocks the result.
func WithCrossCheck() Option {
	return func(n *normalizer) { n.crossCheck = true }
}

// Normalize applies the deterministic post-processing pass to a parsed
// object and returns the final result.
//
// Whenever per_metric is non-empty the overall score is the weighted
// mean of per-metric scores, regardless of any model-supplied value:
// the model's per-metric scores are trusted as raw inputs, its
// aggregation arithmetic is not. A model-supplied verdict is kept
// verbatim; otherwise the verdict is computed from the thresholds.
// Normalizing an already-normalized result is a no-op.
func Normalize(parsed map[string]any, thresholds models.VerdictThresholds, opts ...Option) (*models.EvaluationResult, error) {
	var n normalizer
	for _, o := range opts {
		o(&n)
	}

	var res models.EvaluationResult
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &res,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("building result decoder: %w", err)
	}
	if err := dec.Decode(parsed); err != nil {
		return nil, &ResultParseError{Err: err}
	}

	n.backfillWeights(parsed, &res)

	_, hasOverall := parsed["overall_score"]
	if len(res.PerMetric) > 0 {
		res.OverallScore = weightedMean(res.PerMetric)
	} else if !hasOverall {
		res.OverallScore = 0
	}

	computed := models.VerdictForScore(res.OverallScore, thresholds)
	if res.Verdict == "" {
		res.Verdict = computed
	}
	res.ComputedVerdict = computed

	res.Warnings = nil
	if res.Verdict != computed {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("model verdict %q disagrees with computed verdict %q for score %v", res.Verdict, computed, res.OverallScore))
	}
	if n.crossCheck && n.rubric != nil {
		res.Warnings = append(res.Warnings, crossCheck(&res, n.rubric)...)
	}

	if res.RedFlags == nil {
		res.RedFlags = []string{}
	}
	if res.PerMetric == nil {
		res.PerMetric = []models.PerMetricResult{}
	}
	for i := range res.PerMetric {
		if res.PerMetric[i].Evidence == nil {
			res.PerMetric[i].Evidence = []models.Evidence{}
		}
	}

	return &res, nil
}

// backfillWeights fills per-metric weights from the rubric when the
// model omitted them. An explicit weight, including zero, is honored;
// presence is decided from the raw parsed entry, since a decoded zero is
// indistinguishable from an absent field.
func (n *normalizer) backfillWeights(parsed map[string]any, res *models.EvaluationResult) {
	if n.rubric == nil {
		return
	}

	rawEntries, _ := parsed["per_metric"].([]any)
	for i := range res.PerMetric {
		if i < len(rawEntries) {
			if entry, ok := rawEntries[i].(map[string]any); ok {
				if _, supplied := entry["weight"]; supplied {
					continue
				}
			}
		}
		if m := n.rubric.MetricByID(res.PerMetric[i].ID); m != nil {
			res.PerMetric[i].Weight = m.EffectiveWeight()
		}
	}
}

// weightedMean returns round2(Σ score·weight / Σ weight), with a divisor
// of 1.0 when the total weight is zero.
func weightedMean(perMetric []models.PerMetricResult) float64 {
	totalWeight := 0.0
	sum := 0.0
	for _, m := range perMetric {
		totalWeight += m.Weight
		sum += m.Score * m.Weight
	}
	if totalWeight == 0 {
		totalWeight = 1.0
	}
	return round2(sum / totalWeight)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// crossCheck reports metric ids missing from the result or absent from
// the rubric. Warnings only; the result is returned either way.
func crossCheck(res *models.EvaluationResult, rubric *models.Rubric) []string {
	var warnings []string

	scored := make(map[string]bool, len(res.PerMetric))
	for _, pm := range res.PerMetric {
		scored[pm.ID] = true
	}

	for _, m := range rubric.Metrics {
		if m.ID != "" && !scored[m.ID] {
			warnings = append(warnings, fmt.Sprintf("rubric metric %q was not scored", m.ID))
		}
	}
	for _, pm := range res.PerMetric {
		if rubric.MetricByID(pm.ID) == nil {
			warnings = append(warnings, fmt.Sprintf("scored metric %q is not in the rubric", pm.ID))
		}
	}

	return warnings
}
