package grading

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/opsaudit/callqc/internal/models"
	"github.com/opsaudit/callqc/internal/prompt"
	"github.com/opsaudit/callqc/internal/schema"
)

// Options configures one grading invocation.
type Options struct {
	Model       string
	Temperature float64

	// PreferStructured includes the schema-enforced tier. When false
	// the invoker starts at JSON-mode chat.
	PreferStructured bool
}

// Invoker calls the grading backend through an ordered list of fallback
// tiers and returns the raw output text. Malformed output is not an
// invocation failure; textual repair is the normalizer's job.
type Invoker struct {
	backend Backend
	opts    Options
}

func NewInvoker(backend Backend, opts Options) *Invoker {
	return &Invoker{backend: backend, opts: opts}
}

// tier is one strategy in the fallback protocol, attempted in order
// until one produces text.
type tier struct {
	name    string
	attempt func(ctx context.Context) (string, error)
}

// AttemptError records the failure of a single tier.
type AttemptError struct {
	Tier string
	Err  error
}

// UnavailableError reports that every backend tier failed to produce any
// response (connectivity, auth, rate-limit exhaustion). The caller may
// retry the whole evaluation.
type UnavailableError struct {
	Attempts []AttemptError
}

func (e *UnavailableError) Error() string {
	var sb strings.Builder
	sb.WriteString("grading backend unavailable")
	for _, a := range e.Attempts {
		sb.WriteString(fmt.Sprintf("; %s: %v", a.Tier, a.Err))
	}
	return sb.String()
}

func (e *UnavailableError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}
	return errs
}

// Invoke compiles the rubric and transcript into prompts and walks the
// tier list, returning the first tier's output text. Each tier swallows
// the prior tier's error; only when every tier fails does Invoke return
// a *UnavailableError carrying all of them.
func (inv *Invoker) Invoke(ctx context.Context, transcript string, rubric *models.Rubric) (string, error) {
	systemPrompt := prompt.BuildSystemPrompt(rubric)
	userPayload, err := prompt.BuildUserPrompt(transcript, rubric)
	if err != nil {
		return "", err
	}

	var attempts []AttemptError
	for _, t := range inv.tiers(systemPrompt, userPayload) {
		text, err := t.attempt(ctx)
		if err == nil {
			slog.Debug("grading tier succeeded", "tier", t.name)
			return text, nil
		}
		slog.Debug("grading tier failed, falling through", "tier", t.name, "error", err)
		attempts = append(attempts, AttemptError{Tier: t.name, Err: err})

		if ctx.Err() != nil {
			break
		}
	}

	return "", &UnavailableError{Attempts: attempts}
}

func (inv *Invoker) tiers(systemPrompt, userPayload string) []tier {
	var tiers []tier

	if inv.opts.PreferStructured {
		tiers = append(tiers, tier{
			name: "structured_output",
			attempt: func(ctx context.Context) (string, error) {
				return inv.backend.CompleteStructured(ctx, Request{
					Model:  inv.opts.Model,
					System: systemPrompt,
					User: fmt.Sprintf("Using this JSON payload (rubric and transcript):\n```json\n%s\n```\nReturn a JSON that matches this schema name %s.",
						userPayload, schema.Name),
					Temperature: inv.opts.Temperature,
					SchemaName:  schema.Name,
					Schema:      schema.Target(),
				})
			},
		})
	}

	tiers = append(tiers, tier{
		name: "json_mode_chat",
		attempt: func(ctx context.Context) (string, error) {
			return inv.backend.CompleteJSON(ctx, Request{
				Model:  inv.opts.Model,
				System: systemPrompt,
				User: fmt.Sprintf("Rubric+Transcript JSON:\n%s\nReturn ONLY JSON matching the schema: %s",
					userPayload, schema.TargetJSON()),
				Temperature: inv.opts.Temperature,
			})
		},
	})

	return tiers
}
