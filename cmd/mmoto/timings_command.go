package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mmoto/internal/timing"
)

func newTimingsCommand(ctx *commandContext) *cobra.Command {
	var (
		transcriptPath string
		outPath        string
		totalSeconds   float64
	)

	cmd := &cobra.Command{
		Use:   "timings",
		Short: "Extract word timings from a speech-recognition payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := expandArg(transcriptPath)
			if err != nil {
				return err
			}
			if path == "" {
				return fmt.Errorf("--transcript is required")
			}
			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}

			opts := timing.OptionsFromConfig(cfg)
			if totalSeconds > 0 {
				opts.AssumedTotalSeconds = totalSeconds
			}
			result := timing.Extract(cmd.Context(), raw, opts, ctx.loggerValue())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Branch:   %s\n", result.Branch)
			fmt.Fprintf(out, "Words:    %d\n", len(result.Words))
			fmt.Fprintf(out, "Duration: %.2fs\n", result.Duration)
			for _, warning := range result.Warnings {
				fmt.Fprintf(out, "Warning:  %s\n", warning)
			}

			dest, err := expandArg(outPath)
			if err != nil {
				return err
			}
			if dest == "" {
				return nil
			}
			if err := result.Document().Save(dest); err != nil {
				return err
			}
			fmt.Fprintf(out, "Wrote %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&transcriptPath, "transcript", "t", "", "Raw speech-recognition JSON")
	cmd.Flags().StringVar(&outPath, "out", "", "Write word_timings.json to this path")
	cmd.Flags().Float64Var(&totalSeconds, "total-seconds", 0, "Audio length used when the payload has no duration")
	return cmd
}
