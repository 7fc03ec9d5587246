package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callqc",
		Short: "callqc - rubric-driven call quality evaluation",
		Long: `callqc evaluates call transcripts against configurable YAML rubrics,
using a language model as the grading engine.

It produces a weighted quality score, a PASS/NEEDS_REVIEW/FAIL verdict,
a rationale, and flagged issues for each call.`,
		Version:      version,
		SilenceUsage: true,
	}

	debugLogging := cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if *debugLogging {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	}

	cmd.AddCommand(newEvalCommand())
	cmd.AddCommand(newBatchCommand())
	cmd.AddCommand(newCheckCommand())

	return cmd
}

func execute() error {
	rootCmd := newRootCommand()
	return rootCmd.Execute()
}
