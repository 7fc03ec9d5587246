package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default values applied when a rubric omits them. These are the single
// source of truth; no other code should duplicate them.
const (
	DefaultMetricWeight = 0.1
	DefaultMinQuotes    = 1

	DefaultPassThreshold        = 80.0
	DefaultNeedsReviewThreshold = 60.0
)

// Rubric is one QC evaluation profile: global policy rules, weighted
// metrics, and score-to-verdict thresholds. A rubric is loaded fresh for
// every request and immutable after load.
type Rubric struct {
	GlobalRules       []string          `yaml:"global_rules"`
	Metrics           []Metric          `yaml:"metrics"`
	VerdictThresholds VerdictThresholds `yaml:"verdict_thresholds"`
}

// Metric is a single scored dimension within a rubric. Weights are
// relative; they are normalized at scoring time and don't need to sum to
// anything in particular.
type Metric struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Weight      *float64 `yaml:"weight,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Rubric      any      `yaml:"rubric,omitempty"`
	MinQuotes   *int     `yaml:"min_quotes,omitempty"`
	MustFlag    []string `yaml:"must_flag,omitempty"`
}

// EffectiveWeight returns the metric weight, or [DefaultMetricWeight]
// when the rubric omitted it. An explicit weight of zero is honored.
func (m Metric) EffectiveWeight() float64 {
	if m.Weight == nil {
		return DefaultMetricWeight
	}
	return *m.Weight
}

// EffectiveMinQuotes returns the minimum evidence citations expected, or
// [DefaultMinQuotes] when omitted.
func (m Metric) EffectiveMinQuotes() int {
	if m.MinQuotes == nil {
		return DefaultMinQuotes
	}
	return *m.MinQuotes
}

// VerdictThresholds maps an overall score to a verdict. Either key may be
// omitted; the defaults are pass=80, needs_review=60.
type VerdictThresholds struct {
	Pass        *float64 `yaml:"pass,omitempty" json:"pass,omitempty"`
	NeedsReview *float64 `yaml:"needs_review,omitempty" json:"needs_review,omitempty"`
}

func (t VerdictThresholds) EffectivePass() float64 {
	if t.Pass == nil {
		return DefaultPassThreshold
	}
	return *t.Pass
}

func (t VerdictThresholds) EffectiveNeedsReview() float64 {
	if t.NeedsReview == nil {
		return DefaultNeedsReviewThreshold
	}
	return *t.NeedsReview
}

// RubricParseError indicates rubric text that is not well-formed YAML.
// Evaluation does not proceed past it.
type RubricParseError struct {
	Err error
}

func (e *RubricParseError) Error() string {
	return "parsing rubric: " + e.Err.Error()
}

func (e *RubricParseError) Unwrap() error { return e.Err }

// LoadRubric parses rubric YAML text. Malformed YAML produces a
// *RubricParseError; missing fields are tolerated and defaulted
// downstream. Inverted verdict thresholds are rejected here rather than
// producing silently wrong verdicts later.
func LoadRubric(data []byte) (*Rubric, error) {
	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, &RubricParseError{Err: err}
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// LoadRubricFile loads a rubric from a YAML file on disk.
func LoadRubricFile(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadRubric(data)
}

// Validate checks threshold ordering. Rubric semantics beyond this
// (missing names, weights, descriptions) are intentionally tolerated.
func (r *Rubric) Validate() error {
	if r.VerdictThresholds.EffectivePass() < r.VerdictThresholds.EffectiveNeedsReview() {
		return fmt.Errorf("verdict_thresholds: pass (%v) must be >= needs_review (%v)",
			r.VerdictThresholds.EffectivePass(), r.VerdictThresholds.EffectiveNeedsReview())
	}
	return nil
}

// Lint reports non-fatal rubric problems: duplicate metric ids, missing
// ids, and negative weights. These are warnings for tooling, not load
// errors.
func (r *Rubric) Lint() []string {
	var warnings []string

	seen := make(map[string]bool, len(r.Metrics))
	for i, m := range r.Metrics {
		if m.ID == "" {
			warnings = append(warnings, fmt.Sprintf("metric %d has no id", i))
			continue
		}
		if seen[m.ID] {
			warnings = append(warnings, fmt.Sprintf("duplicate metric id %q", m.ID))
		}
		seen[m.ID] = true

		if m.Weight != nil && *m.Weight < 0 {
			warnings = append(warnings, fmt.Sprintf("metric %q has negative weight %v", m.ID, *m.Weight))
		}
	}

	if len(r.Metrics) == 0 {
		warnings = append(warnings, "rubric has no metrics")
	}

	return warnings
}

// MetricByID returns the rubric metric with the given id, or nil.
func (r *Rubric) MetricByID(id string) *Metric {
	for i := range r.Metrics {
		if r.Metrics[i].ID == id {
			return &r.Metrics[i]
		}
	}
	return nil
}
