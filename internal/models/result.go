package models

// Verdict is the categorical outcome of one evaluation.
type Verdict string

const (
	VerdictPass        Verdict = "PASS"
	VerdictNeedsReview Verdict = "NEEDS_REVIEW"
	VerdictFail        Verdict = "FAIL"
)

// VerdictForScore maps an overall score to a verdict using the rubric
// thresholds.
func VerdictForScore(score float64, t VerdictThresholds) Verdict {
	if score >= t.EffectivePass() {
		return VerdictPass
	}
	if score >= t.EffectiveNeedsReview() {
		return VerdictNeedsReview
	}
	return VerdictFail
}

// EvaluationResult is the engine's output, always normalized to this
// shape before being returned to the caller.
//
// OverallScore is recomputed server-side from PerMetric whenever
// PerMetric is non-empty; the model's own arithmetic is never trusted.
// Verdict keeps a model-supplied label verbatim, so it can disagree with
// ComputedVerdict; disagreement is recorded in Warnings rather than
// reconciled.
type EvaluationResult struct {
	OverallScore float64           `json:"overall_score" mapstructure:"overall_score"`
	Verdict      Verdict           `json:"verdict" mapstructure:"verdict"`
	Summary      string            `json:"summary" mapstructure:"summary"`
	RedFlags     []string          `json:"red_flags" mapstructure:"red_flags"`
	PerMetric    []PerMetricResult `json:"per_metric" mapstructure:"per_metric"`

	// ComputedVerdict is the threshold-consistent verdict, exposed
	// alongside Verdict so callers can detect disagreement.
	ComputedVerdict Verdict  `json:"computed_verdict,omitempty" mapstructure:"computed_verdict"`
	Warnings        []string `json:"warnings,omitempty" mapstructure:"warnings"`
}

// PerMetricResult is the grading detail for one rubric metric.
type PerMetricResult struct {
	ID        string     `json:"id" mapstructure:"id"`
	Name      string     `json:"name" mapstructure:"name"`
	Weight    float64    `json:"weight" mapstructure:"weight"`
	Score     float64    `json:"score" mapstructure:"score"`
	Rationale string     `json:"rationale" mapstructure:"rationale"`
	Evidence  []Evidence `json:"evidence" mapstructure:"evidence"`
}

// Evidence is a cited transcript excerpt supporting a per-metric score.
type Evidence struct {
	Quote     string `json:"quote" mapstructure:"quote"`
	StartTime string `json:"start_time,omitempty" mapstructure:"start_time"`
	EndTime   string `json:"end_time,omitempty" mapstructure:"end_time"`
}
