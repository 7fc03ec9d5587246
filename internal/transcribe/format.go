package transcribe

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/opsaudit/callqc/internal/grading"
)

// Segment is one annotated span of a bilingual transcript.
type Segment struct {
	Segment       string `json:"segment"`
	Text          string `json:"text"`
	Pronunciation string `json:"pronunciation"`
	Tone          string `json:"tone"`
	Pace          string `json:"pace"`
}

const formatSchemaName = "TranscriptQC"

const formatSystemPrompt = `You are a transcription formatter and call quality analyst.

Rules:
- Keep Hindi words in Devanagari.
- Keep English words in Roman script.
- Do NOT write English words in Devanagari phonetics.
- Do NOT translate; preserve the original language.
- Annotate each segment with pronunciation (correct / incorrect), tone (polite, harsh, neutral, enthusiastic), and pace (slow, fast, normal).

Output must be JSON with top-level object { "segments": [...] }`

func formatSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"segments": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"segment":       map[string]any{"type": "string"},
						"text":          map[string]any{"type": "string"},
						"pronunciation": map[string]any{"type": "string"},
						"tone":          map[string]any{"type": "string"},
						"pace":          map[string]any{"type": "string"},
					},
					"required": []any{"segment", "text", "pronunciation", "tone", "pace"},
				},
			},
		},
		"required": []any{"segments"},
	}
}

// Format enriches a raw transcript with bilingual formatting and
// per-segment annotations via a structured model call. It degrades to a
// single unannotated segment when the model output can't be parsed;
// formatting is an optional enrichment, never a blocker.
func Format(ctx context.Context, backend grading.Backend, model, rawText string) ([]Segment, error) {
	content, err := backend.CompleteStructured(ctx, grading.Request{
		Model:       model,
		System:      formatSystemPrompt,
		User:        rawText,
		Temperature: 0,
		SchemaName:  formatSchemaName,
		Schema:      formatSchema(),
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Segments []Segment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil || len(parsed.Segments) == 0 {
		return []Segment{{
			Segment:       "0",
			Text:          rawText,
			Pronunciation: "N/A",
			Tone:          "N/A",
			Pace:          "N/A",
		}}, nil
	}

	return parsed.Segments, nil
}

// JoinSegments flattens annotated segments back into the plain
// transcript text the evaluation core consumes.
func JoinSegments(segments []Segment) string {
	texts := make([]string, 0, len(segments))
	for _, s := range segments {
		texts = append(texts, s.Text)
	}
	return strings.Join(texts, " ")
}
