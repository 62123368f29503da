package main

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"mmoto/internal/logs"
	"mmoto/internal/runstore"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		raw    bool
		filter logs.Filter
	)

	cmd := &cobra.Command{
		Use:   "logs RUN_ID",
		Short: "Show the log of one run",
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
			path := filepath.Join(run.ProjectDir, "run.log")

			out := cmd.OutOrStdout()
			emit := func(line string) {
				writeLogLine(out, line, filter, raw)
			}
			tail, offset, err := logs.Tail(path, lines)
			if err != nil {
				return err
			}
			for _, line := range tail {
				emit(line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, emit)
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print JSON lines unformatted")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.Stage, "stage", "", "Only show one stage")
	cmd.Flags().StringVar(&filter.EventType, "event", "", "Only show one event type")
	return cmd
}

func writeLogLine(out io.Writer, line string, filter logs.Filter, raw bool) {
	ev, ok := logs.ParseEvent(line)
	if !ok {
		if filter == (logs.Filter{}) {
			fmt.Fprintln(out, line)
		}
		return
	}
	if !filter.Match(ev) {
		return
	}
	if raw {
		fmt.Fprintln(out, line)
		return
	}
	fmt.Fprintln(out, ev.Format())
}
