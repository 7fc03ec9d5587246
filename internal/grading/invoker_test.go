package grading

import (
	"context"
	"errors"
	"testing"

	"github.com/opsaudit/callqc/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records per-method calls and returns scripted outcomes.
type fakeBackend struct {
	structuredText string
	structuredErr  error
	jsonText       string
	jsonErr        error

	structuredCalls []Request
	jsonCalls       []Request
}

func (f *fakeBackend) CompleteStructured(_ context.Context, req Request) (string, error) {
	f.structuredCalls = append(f.structuredCalls, req)
	return f.structuredText, f.structuredErr
}

func (f *fakeBackend) CompleteJSON(_ context.Context, req Request) (string, error) {
	f.jsonCalls = append(f.jsonCalls, req)
	return f.jsonText, f.jsonErr
}

func testRubric() *models.Rubric {
	return &models.Rubric{
		Metrics: []models.Metric{
			{ID: "greeting", Name: "Greeting"},
		},
	}
}

func TestInvokeStructuredSuccess(t *testing.T) {
	backend := &fakeBackend{structuredText: `{"overall_score": 90}`}
	inv := NewInvoker(backend, Options{Model: "gpt-4o-mini", PreferStructured: true})

	text, err := inv.Invoke(context.Background(), "agent: hello", testRubric())
	require.NoError(t, err)
	assert.Equal(t, `{"overall_score": 90}`, text)

	require.Len(t, backend.structuredCalls, 1)
	assert.Empty(t, backend.jsonCalls, "success must not fall through")

	req := backend.structuredCalls[0]
	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, "qc_result", req.SchemaName)
	assert.NotNil(t, req.Schema)
	assert.Contains(t, req.User, "agent: hello")
}

func TestInvokeFallsBackToJSONMode(t *testing.T) {
	backend := &fakeBackend{
		structuredErr: errors.New("responses API not supported"),
		jsonText:      `{"overall_score": 70}`,
	}
	inv := NewInvoker(backend, Options{Model: "gpt-4o-mini", PreferStructured: true})

	text, err := inv.Invoke(context.Background(), "agent: hello", testRubric())
	require.NoError(t, err)
	assert.Equal(t, `{"overall_score": 70}`, text)

	assert.Len(t, backend.structuredCalls, 1)
	assert.Len(t, backend.jsonCalls, 1)
}

func TestInvokeAllTiersFail(t *testing.T) {
	backend := &fakeBackend{
		structuredErr: errors.New("503 from responses"),
		jsonErr:       errors.New("503 from chat"),
	}
	inv := NewInvoker(backend, Options{PreferStructured: true})

	_, err := inv.Invoke(context.Background(), "agent: hello", testRubric())
	require.Error(t, err)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	require.Len(t, unavailable.Attempts, 2)
	assert.Equal(t, "structured_output", unavailable.Attempts[0].Tier)
	assert.Equal(t, "json_mode_chat", unavailable.Attempts[1].Tier)
	assert.ErrorIs(t, err, backend.structuredErr)
	assert.ErrorIs(t, err, backend.jsonErr)
}

func TestInvokeSkipsStructuredWhenNotPreferred(t *testing.T) {
	backend := &fakeBackend{jsonText: `{}`}
	inv := NewInvoker(backend, Options{PreferStructured: false})

	_, err := inv.Invoke(context.Background(), "agent: hello", testRubric())
	require.NoError(t, err)

	assert.Empty(t, backend.structuredCalls)
	assert.Len(t, backend.jsonCalls, 1)
}

func TestInvokeStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	backend := &fakeBackend{
		structuredErr: context.Canceled,
		jsonText:      `{}`,
	}
	inv := NewInvoker(backend, Options{PreferStructured: true})

	cancel()
	_, err := inv.Invoke(ctx, "agent: hello", testRubric())
	require.Error(t, err)

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Empty(t, backend.jsonCalls, "canceled context must not reach further tiers")
}
