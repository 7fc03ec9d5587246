// Package prompt compiles a rubric and transcript into the system and
// user instructions sent to the grading model. Both builders are pure
// and safe for concurrent use.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/opsaudit/callqc/internal/models"
)

const persona = "You are a strict Call Quality Analyst for a food-delivery marketplace.\n" +
	"Follow the rubric faithfully. Never invent quotes or timestamps."

// BuildSystemPrompt renders the analyst persona plus the rubric's global
// rules as a bulleted list, and instructs the model to emit only
// schema-conformant JSON.
func BuildSystemPrompt(r *models.Rubric) string {
	var sb strings.Builder
	sb.WriteString(persona)
	sb.WriteString("\nGlobal rules:\n")
	for _, rule := range r.GlobalRules {
		sb.WriteString("- ")
		sb.WriteString(rule)
		sb.WriteString("\n")
	}
	sb.WriteString("Output ONLY valid JSON matching the schema I will provide.")
	return sb.String()
}

// metricView is the reduced, defaulted view of a metric the model sees.
type metricView struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Weight      float64  `json:"weight"`
	Description string   `json:"description"`
	Rubric      any      `json:"rubric"`
	MinQuotes   int      `json:"min_quotes"`
	MustFlag    []string `json:"must_flag"`
}

type userPayload struct {
	VerdictThresholds thresholdsView `json:"verdict_thresholds"`
	Metrics           []metricView   `json:"metrics"`
	Transcript        string         `json:"transcript"`
}

type thresholdsView struct {
	Pass        float64 `json:"pass"`
	NeedsReview float64 `json:"needs_review"`
}

// BuildUserPrompt serializes the verdict thresholds, the reduced metric
// views, and the transcript as a single JSON blob. Metric order is
// preserved.
func BuildUserPrompt(transcript string, r *models.Rubric) (string, error) {
	payload := userPayload{
		VerdictThresholds: thresholdsView{
			Pass:        r.VerdictThresholds.EffectivePass(),
			NeedsReview: r.VerdictThresholds.EffectiveNeedsReview(),
		},
		Metrics:    make([]metricView, 0, len(r.Metrics)),
		Transcript: transcript,
	}

	for _, m := range r.Metrics {
		mv := metricView{
			ID:          m.ID,
			Name:        m.Name,
			Weight:      m.EffectiveWeight(),
			Description: m.Description,
			Rubric:      m.Rubric,
			MinQuotes:   m.EffectiveMinQuotes(),
			MustFlag:    m.MustFlag,
		}
		if mv.Rubric == nil {
			mv.Rubric = map[string]any{}
		}
		if mv.MustFlag == nil {
			mv.MustFlag = []string{}
		}
		payload.Metrics = append(payload.Metrics, mv)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("serializing grading payload: %w", err)
	}
	return string(data), nil
}
