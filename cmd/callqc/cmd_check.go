package main

import (
	"fmt"

	"github.com/opsaudit/callqc/internal/models"
	"github.com/spf13/cobra"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check <rubric.yaml>...",
		Short: "Validate rubric files",
		Long: `Validate one or more rubric YAML files.

Parse errors and inverted verdict thresholds are reported as errors;
duplicate or missing metric ids and negative weights as warnings.`,
		Args: cobra.MinimumNArgs(1),
		RunE: checkCommandE,
	}
}

func checkCommandE(cmd *cobra.Command, args []string) error {
	failures := 0

	for _, path := range args {
		rubric, err := models.LoadRubricFile(path)
		if err != nil {
			cmd.Printf("✗ %s: %v\n", path, err)
			failures++
			continue
		}

		warnings := rubric.Lint()
		if len(warnings) == 0 {
			cmd.Printf("✓ %s: %d metrics, thresholds pass=%v needs_review=%v\n",
				path, len(rubric.Metrics),
				rubric.VerdictThresholds.EffectivePass(),
				rubric.VerdictThresholds.EffectiveNeedsReview())
			continue
		}

		cmd.Printf("⚠ %s:\n", path)
		for _, w := range warnings {
			cmd.Printf("    %s\n", w)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d rubric(s) failed validation", failures, len(args))
	}
	return nil
}
