package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newProbeCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "probe FILE...",
		Short: "Show dimensions and duration of media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway := ctx.gateway()

			type probeRow struct {
				Path            string  `json:"path"`
				Width           int     `json:"width"`
				Height          int     `json:"height"`
				DurationSeconds float64 `json:"duration_seconds"`
				HasAudio        bool    `json:"has_audio"`
				Error           string  `json:"error,omitempty"`
			}
			results := make([]probeRow, 0, len(args))
			failures := 0
			for _, arg := range args {
				path, err := expandArg(arg)
				if err != nil {
					return err
				}
				row := probeRow{Path: path}
				info, err := gateway.Probe(cmd.Context(), path)
				if err != nil {
					row.Error = err.Error()
					failures++
				} else {
					row.Width, row.Height = info.Width, info.Height
					row.DurationSeconds = info.DurationSeconds
					row.HasAudio = info.HasAudio
				}
				results = append(results, row)
			}

			if jsonOut {
				if err := writeJSON(cmd, results); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(results))
				for _, r := range results {
					if r.Error != "" {
						rows = append(rows, []string{r.Path, "-", "-", "-", "-", r.Error})
						continue
					}
					rows = append(rows, []string{
						r.Path,
						strconv.Itoa(r.Width),
						strconv.Itoa(r.Height),
						fmt.Sprintf("%.2f", r.DurationSeconds),
						yesNo(r.HasAudio),
						"",
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"File", "Width", "Height", "Seconds", "Audio", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				))
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d file(s) could not be probed", failures, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print results as JSON")
	return cmd
}
