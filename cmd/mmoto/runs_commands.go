package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mmoto/internal/assembly"
	"mmoto/internal/fileutil"
	"mmoto/internal/project"
	"mmoto/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent renders",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.runStore()
			if err != nil {
				return err
			}
			runs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, runs)
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded")
				return nil
			}
			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					run.ID,
					run.StartedAt.Local().Format("2006-01-02 15:04"),
					string(run.Status),
					formatElapsed(run),
					run.Topic,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Started", "Status", "Elapsed", "Topic"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			writeStatsSummary(out, project.StatsPath(ctx.configValue().Paths.OutputDir))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print runs as JSON")
	cmd.AddCommand(newRunsShowCommand(ctx))
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run with its degradations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.runStore()
			if err != nil {
				return err
			}
			run, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, runstore.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			if err != nil {
				return err
			}
			degradations, err := store.Degradations(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:      %s\n", run.ID)
			fmt.Fprintf(out, "Topic:    %s\n", run.Topic)
			fmt.Fprintf(out, "Status:   %s\n", run.Status)
			fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(time.RFC3339))
			if run.Finished() {
				fmt.Fprintf(out, "Finished: %s (%s)\n", run.FinishedAt.Local().Format(time.RFC3339), formatElapsed(run))
			}
			fmt.Fprintf(out, "Project:  %s\n", run.ProjectDir)
			if run.FinalVideo != "" {
				fmt.Fprintf(out, "Video:    %s\n", run.FinalVideo)
			}
			if meta, err := project.ReadMetadata(run.ProjectDir); err == nil && meta.DurationSeconds > 0 {
				fmt.Fprintf(out, "Length:   %.1fs\n", meta.DurationSeconds)
			}
			writeProjectArtifacts(out, project.At(run.ProjectDir))
			if run.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:    %s\n", run.ErrorMessage)
			}
			if len(degradations) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(degradations))
			for _, d := range degradations {
				rows = append(rows, []string{d.Stage, d.Kind, d.Detail})
			}
			fmt.Fprintln(out, renderTable([]string{"Stage", "Kind", "Detail"}, rows, nil))
			return nil
		},
	}
}

func formatElapsed(run runstore.Run) string {
	if !run.Finished() {
		return "-"
	}
	return run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
}

// writeProjectArtifacts prints the assembly plan and subtitle files a run left
// behind. Missing files are skipped; the folder may have been moved.
func writeProjectArtifacts(out io.Writer, proj *project.Project) {
	if plan, err := assembly.ReadPlan(proj.AssemblyPlan()); err == nil {
		if plan.Placeholder {
			fmt.Fprintf(out, "Clips:    placeholder (%.1fs)\n", plan.PlaceholderSeconds)
		} else {
			fmt.Fprintf(out, "Clips:    %d from %q (%.1fs, cap %.1fs per clip)\n",
				len(plan.Segments), plan.PrimaryKeyword, plan.TotalSeconds, plan.PerClipCapSeconds)
		}
	}
	var subtitles []string
	for _, path := range []string{proj.SubtitlesSRT(), proj.SubtitlesASS()} {
		if fileutil.NonEmpty(path) {
			subtitles = append(subtitles, filepath.Base(path))
		}
	}
	if len(subtitles) > 0 {
		fmt.Fprintf(out, "Captions: %s\n", strings.Join(subtitles, ", "))
	}
}

// writeStatsSummary prints the totals of the cumulative stats file.
func writeStatsSummary(out io.Writer, path string) {
	entries, err := project.ReadStats(path)
	if err != nil || len(entries) == 0 {
		return
	}
	produced := 0
	seconds := 0.0
	for _, entry := range entries {
		if entry.Status == string(runstore.StatusCompleted) || entry.Status == string(runstore.StatusDegraded) {
			produced++
			seconds += entry.DurationSeconds
		}
	}
	fmt.Fprintf(out, "Videos produced: %d of %d runs (%.0fs total)\n", produced, len(entries), seconds)
}
