package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mmoto/internal/footage"
	"mmoto/internal/logging"
	"mmoto/internal/notifications"
	"mmoto/internal/pipeline"
	"mmoto/internal/preflight"
	"mmoto/internal/services/llm"
	"mmoto/internal/services/speech"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		briefPath     string
		outputDir     string
		skipPreflight bool
		jsonOut       bool
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a brief into a finished video",
		Long: `Render runs footage, assembly, narration, reconcile, timing, captions and
closing for one brief and writes the result into a new project folder under
the output directory. Interrupting the command stops the run and records it
as stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path, err := expandArg(briefPath)
			if err != nil {
				return fmt.Errorf("resolve brief path: %w", err)
			}
			if path == "" {
				return fmt.Errorf("--brief is required")
			}
			brief, err := pipeline.LoadBrief(path)
			if err != nil {
				return err
			}
			if dir, err := expandArg(outputDir); err != nil {
				return fmt.Errorf("resolve output dir: %w", err)
			} else if dir != "" {
				cfg.Paths.OutputDir = dir
			}

			runCtx := cmd.Context()
			if !skipPreflight {
				if failed := preflight.Failed(preflight.RunAll(runCtx, cfg)); len(failed) > 0 {
					out := cmd.ErrOrStderr()
					fmt.Fprintln(out, "Preflight checks failed:")
					for _, result := range failed {
						fmt.Fprintln(out, resultLine(result, statusError, false))
					}
					return fmt.Errorf("preflight failed: %d check(s)", len(failed))
				}
			}

			logger := ctx.loggerValue()
			deps := pipeline.Dependencies{
				Transcoder: ctx.gateway(),
				Providers:  footage.ProvidersFromConfig(cfg),
				Notifier:   notifications.NewService(cfg),
			}
			if sc := cfg.GetSpeech(); sc.APIKey != "" {
				client := speech.NewClient(speech.Config{
					APIKey:         sc.APIKey,
					BaseURL:        sc.BaseURL,
					TTSModel:       sc.TTSModel,
					Voice:          sc.Voice,
					STTModel:       sc.STTModel,
					TimeoutSeconds: sc.TimeoutSeconds,
				})
				deps.Synthesizer = client
				deps.Transcriber = client
			}
			if lc := cfg.GetLLM(); lc.APIKey != "" {
				deps.Completer = llm.NewClient(llm.Config{
					APIKey:         lc.APIKey,
					BaseURL:        lc.BaseURL,
					Model:          lc.Model,
					Referer:        lc.Referer,
					Title:          lc.Title,
					TimeoutSeconds: lc.TimeoutSeconds,
				})
			}
			if store, err := ctx.runStore(); err == nil {
				deps.Store = store
			} else {
				logger.Warn("run history disabled", logging.Error(err))
			}

			report, runErr := pipeline.NewRunner(cfg, deps, logger).Run(runCtx, brief)
			if jsonOut {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				printReport(cmd.OutOrStdout(), report)
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&briefPath, "brief", "b", "", "Brief YAML file")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Override the output directory")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip dependency and disk checks")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the run report as JSON")
	return cmd
}

func printReport(out io.Writer, report pipeline.Report) {
	if report.RunID == "" {
		return
	}
	fmt.Fprintf(out, "Run %s %s\n", report.RunID, report.Status)
	if report.ProjectDir != "" {
		fmt.Fprintf(out, "Project: %s\n", report.ProjectDir)
	}
	if report.FinalVideo != "" {
		fmt.Fprintf(out, "Video:   %s (%.1fs)\n", report.FinalVideo, report.DurationSeconds)
	}
	if len(report.Degradations) == 0 {
		return
	}
	fmt.Fprintln(out, "Degradations:")
	for _, d := range report.Degradations {
		fmt.Fprintf(out, "  - %s/%s: %s\n", d.Stage, d.Kind, strings.TrimSpace(d.Detail))
	}
}
