package grading

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteStructured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/responses", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		format, ok := req["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_schema", format["type"])

		_, _ = w.Write([]byte(`{"output_text": "{\"overall_score\": 88}"}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", OpenAIClientOptions{BaseURL: srv.URL})
	text, err := client.CompleteStructured(context.Background(), Request{
		Model:      "gpt-4o-mini",
		System:     "system",
		User:       "user",
		SchemaName: "qc_result",
		Schema:     map[string]any{"type": "object"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"overall_score": 88}`, text)
}

func TestCompleteStructuredConcatenatesOutputBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"output": [
				{"content": [{"type": "output_text", "text": "{\"overall"}]},
				{"content": [{"type": "reasoning", "text": "ignored"}, {"type": "output_text", "text": "_score\": 88}"}]}
			]
		}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("", OpenAIClientOptions{BaseURL: srv.URL})
	text, err := client.CompleteStructured(context.Background(), Request{Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, `{"overall_score": 88}`, text)
}

func TestCompleteJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		format, ok := req["response_format"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "json_object", format["type"])

		msgs, ok := req["messages"].([]any)
		require.True(t, ok)
		require.Len(t, msgs, 2)

		_, _ = w.Write([]byte(`{"choices": [{"message": {"content": "{\"verdict\": \"PASS\"}"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", OpenAIClientOptions{BaseURL: srv.URL})
	text, err := client.CompleteJSON(context.Background(), Request{
		Model:  "gpt-4o-mini",
		System: "system",
		User:   "user",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"verdict": "PASS"}`, text)
}

func TestPostErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited"}}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("test-key", OpenAIClientOptions{BaseURL: srv.URL})
	_, err := client.CompleteJSON(context.Background(), Request{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleteJSONNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	client := NewOpenAIClient("", OpenAIClientOptions{BaseURL: srv.URL})
	_, err := client.CompleteJSON(context.Background(), Request{Model: "gpt-4o-mini"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")
}
