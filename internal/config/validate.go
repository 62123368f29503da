package config

import (
	"errors"
	"fmt"
	"strings"

	"mmoto/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateAssembly(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateCaptions(); err != nil {
		return err
	}
	if err := c.validateTiming(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateClosing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateOutput() error {
	return ensurePositiveMap(map[string]int{
		"output.width":  c.Output.Width,
		"output.height": c.Output.Height,
		"output.fps":    c.Output.FPS,
	})
}

func (c *Config) validateAssembly() error {
	a := c.Assembly
	if a.MaxClips <= 0 {
		return errors.New("assembly.max_clips must be positive")
	}
	if a.PrimaryClips < 0 || a.PrimaryClips > a.MaxClips {
		return errors.New("assembly.primary_clips must be between 0 and assembly.max_clips")
	}
	if a.PerClipMinSeconds <= 0 || a.PerClipMaxSeconds <= 0 {
		return errors.New("assembly.per_clip_min_seconds and assembly.per_clip_max_seconds must be positive")
	}
	if a.PerClipMinSeconds > a.PerClipMaxSeconds {
		return errors.New("assembly.per_clip_min_seconds must not exceed assembly.per_clip_max_seconds")
	}
	if a.ClipCountLow <= 0 || a.ClipCountHigh <= a.ClipCountLow {
		return errors.New("assembly.clip_count_high must be greater than assembly.clip_count_low (both positive)")
	}
	if a.GlobalCapSeconds <= 0 {
		return errors.New("assembly.global_cap_seconds must be positive")
	}
	if a.PlaceholderSeconds <= 0 {
		return errors.New("assembly.placeholder_seconds must be positive")
	}
	if a.CRF < 0 || a.CRF > 51 {
		return errors.New("assembly.crf must be between 0 and 51")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	r := c.Reconcile
	if r.MinDurationSeconds < 0 {
		return errors.New("reconcile.min_duration_seconds must be >= 0")
	}
	if r.SlowThreshold < 1 {
		return errors.New("reconcile.slow_threshold must be >= 1")
	}
	if r.TrimThreshold < 1 {
		return errors.New("reconcile.trim_threshold must be >= 1")
	}
	if r.TrimTarget < 1 || r.TrimTarget > r.TrimThreshold {
		return errors.New("reconcile.trim_target must be between 1 and reconcile.trim_threshold")
	}
	return nil
}

func (c *Config) validateCaptions() error {
	if !c.Captions.Enabled {
		return nil
	}
	if c.Captions.FontSize <= 0 || c.Captions.SimpleFontSize <= 0 {
		return errors.New("captions.font_size and captions.simple_font_size must be positive")
	}
	if c.Captions.MarginV < 0 {
		return errors.New("captions.margin_v must be >= 0")
	}
	if c.Captions.WordTailSeconds < 0 || c.Captions.WordGapSeconds < 0 {
		return errors.New("captions.word_tail_seconds and captions.word_gap_seconds must be >= 0")
	}
	if c.Captions.MinVisibleSeconds <= 0 {
		return errors.New("captions.min_visible_seconds must be positive")
	}
	for key, code := range map[string]string{
		"captions.source_language":  c.Captions.SourceLanguage,
		"captions.caption_language": c.Captions.CaptionLanguage,
	} {
		if strings.TrimSpace(code) != "" && !language.Supported(code) {
			return fmt.Errorf("%s %q is not supported (use one of %s)", key, code, strings.Join(language.List(), ", "))
		}
	}
	return nil
}

func (c *Config) validateTiming() error {
	t := c.Timing
	if t.MinWordSeconds <= 0 || t.MaxWordSeconds < t.MinWordSeconds {
		return errors.New("timing.max_word_seconds must be >= timing.min_word_seconds > 0")
	}
	if t.AssumedTotalSeconds <= 0 {
		return errors.New("timing.assumed_total_seconds must be positive")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"ffmpeg.transcode_timeout_seconds": c.FFmpeg.TranscodeTimeoutSeconds,
		"ffmpeg.probe_timeout_seconds":     c.FFmpeg.ProbeTimeoutSeconds,
		"footage.search_timeout_seconds":   c.Footage.SearchTimeoutSeconds,
		"footage.download_timeout_seconds": c.Footage.DownloadTimeoutSeconds,
	})
}

func (c *Config) validateClosing() error {
	if c.Closing.Enabled && strings.TrimSpace(c.Closing.VideoPath) == "" {
		return errors.New("closing.video_path (or paths.closing_video) must be set when closing.enabled is true")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
