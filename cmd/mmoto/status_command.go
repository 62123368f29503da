package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mmoto/internal/config"
	"mmoto/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show dependency, encoder and directory status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := statusLines(cmd, ctx, cfg, colorize)
			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}

func statusLines(cmd *cobra.Command, ctx *commandContext, cfg *config.Config, colorize bool) []string {
	var lines []string
	section := func(title string) {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, renderSectionHeader(title, colorize)...)
	}

	section("Dependencies")
	lines = append(lines, dependencyLines(preflight.CheckSystemDeps(cfg), colorize)...)

	section("Encoding")
	lines = append(lines, renderStatusLine("Hardware accel", statusInfo, yesNo(cfg.FFmpeg.HardwareAccel), colorize))
	lines = append(lines, resultLine(preflight.CheckEncoder(cmd.Context(), ctx.gateway()), statusWarn, colorize))

	section("Directories")
	lines = append(lines, resultLine(preflight.CheckDirectoryAccess("Output", cfg.Paths.OutputDir), statusError, colorize))
	lines = append(lines, resultLine(preflight.CheckDirectoryAccess("Logs", cfg.Paths.LogDir), statusError, colorize))
	lines = append(lines, resultLine(preflight.CheckFreeSpace("Free space", cfg.Paths.OutputDir, preflight.MinFreeBytes), statusWarn, colorize))

	section("Services")
	lines = append(lines, resultLine(preflight.CheckFootageProviders(cfg), statusWarn, colorize))
	if cfg.Closing.Enabled {
		lines = append(lines, resultLine(preflight.CheckFile("Closing video", cfg.Closing.VideoPath), statusError, colorize))
	} else {
		lines = append(lines, renderStatusLine("Closing video", statusInfo, "Disabled", colorize))
	}
	if !cfg.Captions.Enabled {
		lines = append(lines, renderStatusLine("Captions", statusInfo, "Disabled", colorize))
	} else {
		lines = append(lines, renderStatusLine("Captions", statusOK, fmt.Sprintf("%s -> %s", cfg.Captions.SourceLanguage, cfg.CaptionLanguage()), colorize))
	}
	if topic := cfg.Notifications.NtfyTopic; topic != "" {
		lines = append(lines, renderStatusLine("Notifications", statusOK, topic, colorize))
	} else {
		lines = append(lines, renderStatusLine("Notifications", statusInfo, "Disabled", colorize))
	}
	return lines
}
