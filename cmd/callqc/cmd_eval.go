package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opsaudit/callqc/internal/grading"
	"github.com/opsaudit/callqc/internal/orchestration"
	"github.com/opsaudit/callqc/internal/transcribe"
	"github.com/spf13/cobra"
)

var (
	evalTranscriptPath string
	evalAudioPath      string
	evalBilingual      bool
	evalModel          string
	evalTemperature    float64
	evalStructured     bool
	evalCrossCheck     bool
	evalBaseURL        string
	evalTimeoutSec     int
	evalOutputPath     string
)

func newEvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <rubric.yaml>",
		Short: "Evaluate a single call against a rubric",
		Long: `Evaluate a single call transcript against a YAML rubric.

The transcript is read from --transcript, or produced by transcribing
--audio first. The result is printed as JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: evalCommandE,
	}

	cmd.Flags().StringVarP(&evalTranscriptPath, "transcript", "t", "", "Path to a transcript text file")
	cmd.Flags().StringVar(&evalAudioPath, "audio", "", "Path to an audio file to transcribe first")
	cmd.Flags().BoolVar(&evalBilingual, "bilingual", false, "Reformat the transcribed audio with bilingual segment annotations before grading")
	cmd.Flags().StringVarP(&evalModel, "model", "m", "gpt-4o-mini", "Grading model")
	cmd.Flags().Float64Var(&evalTemperature, "temperature", 0.0, "Sampling temperature for the grading call")
	cmd.Flags().BoolVar(&evalStructured, "structured", true, "Prefer the schema-enforced structured output path")
	cmd.Flags().BoolVar(&evalCrossCheck, "cross-check", false, "Warn about metric ids missing from or absent in the rubric")
	cmd.Flags().StringVar(&evalBaseURL, "base-url", grading.DefaultBaseURL, "OpenAI-compatible API base URL")
	cmd.Flags().IntVar(&evalTimeoutSec, "timeout", 120, "Per-tier backend timeout in seconds")
	cmd.Flags().StringVarP(&evalOutputPath, "output", "o", "", "Write the result JSON to a file instead of stdout")

	return cmd
}

func evalCommandE(cmd *cobra.Command, args []string) error {
	rubricText, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading rubric: %w", err)
	}

	if evalTranscriptPath == "" && evalAudioPath == "" {
		return fmt.Errorf("either --transcript or --audio is required")
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	timeout := time.Duration(evalTimeoutSec) * time.Second

	backend := grading.NewOpenAIClient(apiKey, grading.OpenAIClientOptions{
		BaseURL: evalBaseURL,
		Timeout: timeout,
	})

	transcript, err := resolveTranscript(cmd, backend, apiKey, timeout)
	if err != nil {
		return err
	}

	var evalOpts []orchestration.EvaluatorOption
	if evalCrossCheck {
		evalOpts = append(evalOpts, orchestration.WithCrossCheck())
	}

	evaluator := orchestration.NewEvaluator(backend, grading.Options{
		Model:            evalModel,
		Temperature:      evalTemperature,
		PreferStructured: evalStructured,
	}, evalOpts...)

	result, err := evaluator.Evaluate(cmd.Context(), transcript, rubricText)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing result: %w", err)
	}

	if evalOutputPath != "" {
		if err := os.WriteFile(evalOutputPath, data, 0o644); err != nil {
			return fmt.Errorf("writing result: %w", err)
		}
		fmt.Printf("Result written to %s\n", evalOutputPath)
		return nil
	}

	fmt.Println(string(data))
	return nil
}

func resolveTranscript(cmd *cobra.Command, backend grading.Backend, apiKey string, timeout time.Duration) (string, error) {
	if evalTranscriptPath != "" {
		data, err := os.ReadFile(evalTranscriptPath)
		if err != nil {
			return "", fmt.Errorf("reading transcript: %w", err)
		}
		return string(data), nil
	}

	audio, err := os.ReadFile(evalAudioPath)
	if err != nil {
		return "", fmt.Errorf("reading audio: %w", err)
	}

	client := transcribe.NewClient(apiKey, transcribe.ClientOptions{
		BaseURL: evalBaseURL,
		Timeout: timeout,
	})

	fmt.Fprintln(os.Stderr, "Transcribing audio...")
	transcript, err := client.Transcribe(cmd.Context(), filepath.Base(evalAudioPath), audio)
	if err != nil {
		return "", err
	}

	if evalBilingual {
		fmt.Fprintln(os.Stderr, "Formatting transcript...")
		segments, err := transcribe.Format(cmd.Context(), backend, evalModel, transcript)
		if err != nil {
			return "", err
		}
		transcript = transcribe.JoinSegments(segments)
	}

	return transcript, nil
}
