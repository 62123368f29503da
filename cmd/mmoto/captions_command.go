package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"mmoto/internal/captions"
	"mmoto/internal/timing"
	"mmoto/internal/transcode"
)

func newCaptionsCommand(ctx *commandContext) *cobra.Command {
	var (
		videoPath   string
		timingsPath string
		outputPath  string
		language    string
	)

	cmd := &cobra.Command{
		Use:   "captions",
		Short: "Caption an existing video from a word timing file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			paths := make([]string, 3)
			for i, raw := range []string{videoPath, timingsPath, outputPath} {
				if paths[i], err = expandArg(raw); err != nil {
					return err
				}
			}
			video, timings, output := paths[0], paths[1], paths[2]
			if video == "" || timings == "" || output == "" {
				return fmt.Errorf("--video, --timings and --output are required")
			}

			doc, err := timing.Load(timings)
			if err != nil {
				return err
			}
			words := doc.Words
			if doc.TranslatedText != "" {
				words = captions.Redistribute(words, doc.TranslatedText)
			}
			if language == "" {
				language = cfg.CaptionLanguage()
			}

			workDir := filepath.Dir(output)
			renderer := captions.NewRenderer(ctx.gateway(), captions.OptionsFromConfig(cfg), ctx.loggerValue())
			outcome, err := renderer.Render(cmd.Context(), captions.Request{
				VideoPath:  video,
				OutputPath: output,
				WorkDir:    workDir,
				Words:      words,
				Text:       doc.CaptionText(),
				Duration:   doc.Duration,
				Language:   language,
				Attempts:   transcode.NewAttemptLog(filepath.Join(workDir, "attempts.log")),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (strategy: %s)\n", outcome.OutputPath, outcome.Strategy)
			if outcome.Degraded {
				fmt.Fprintf(out, "Degraded: %s\n", outcome.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&videoPath, "video", "", "Input video")
	cmd.Flags().StringVar(&timingsPath, "timings", "", "word_timings.json produced by a run or `mmoto timings`")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Captioned output video")
	cmd.Flags().StringVar(&language, "language", "", "Caption language tag (defaults to the configured caption language)")
	return cmd
}
