// Package transcribe produces transcript text from call audio through
// an OpenAI-compatible speech-to-text endpoint. The evaluation core
// consumes its output as plain text; transcription itself is a
// collaborator, not part of scoring.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL targets the OpenAI API; any compatible
	// deployment can be substituted.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single transcription attempt. Audio
	// uploads are slow, so this is generous.
	DefaultTimeout = 5 * time.Minute
)

// DefaultModels are tried in order: the newer transcription model
// first, whisper as the fallback.
var DefaultModels = []string{"gpt-4o-transcribe", "whisper-1"}

// Client transcribes audio via an OpenAI-compatible
// /audio/transcriptions endpoint, with a documented two-model fallback.
type Client struct {
	baseURL    string
	apiKey     string
	models     []string
	httpClient *http.Client
}

// ClientOptions configures a [Client]. Zero values fall back to the
// package defaults.
type ClientOptions struct {
	BaseURL string
	Models  []string
	Timeout time.Duration
}

func NewClient(apiKey string, opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	transcribeModels := opts.Models
	if len(transcribeModels) == 0 {
		transcribeModels = DefaultModels
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		models:     transcribeModels,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Transcribe sends audio bytes to the backend and returns transcript
// text. Each configured model is attempted in order; only when every
// model fails does Transcribe return an error joining all of them.
func (c *Client) Transcribe(ctx context.Context, filename string, audio []byte) (string, error) {
	var errs []error
	for _, model := range c.models {
		text, err := c.transcribeWith(ctx, model, filename, audio)
		if err == nil {
			return text, nil
		}
		slog.Debug("transcription model failed, falling through", "model", model, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", model, err))

		if ctx.Err() != nil {
			break
		}
	}
	return "", fmt.Errorf("transcription failed for all models: %w", errors.Join(errs...))
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *Client) transcribeWith(ctx context.Context, model, filename string, audio []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio bytes: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("finalizing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling transcription endpoint: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcription returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("decoding transcription: %w", err)
	}
	if tr.Text == "" {
		return "", fmt.Errorf("empty transcript from %s", model)
	}
	return tr.Text, nil
}
