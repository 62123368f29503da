package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	ClosingVideo string `toml:"closing_video"`
	FontDir      string `toml:"font_dir"`
	StateDB      string `toml:"state_db"`
}

// Output describes the vertical target frame.
type Output struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	FPS    int `toml:"fps"`
}

// Assembly contains clip selection and assembly limits.
type Assembly struct {
	MaxClips             int     `toml:"max_clips"`
	PrimaryClips         int     `toml:"primary_clips"`
	PerClipMaxSeconds    float64 `toml:"per_clip_max_seconds"`
	PerClipMinSeconds    float64 `toml:"per_clip_min_seconds"`
	ClipCountLow         int     `toml:"clip_count_low"`
	ClipCountHigh        int     `toml:"clip_count_high"`
	GlobalCapSeconds     float64 `toml:"global_cap_seconds"`
	TranscodeConcurrency int     `toml:"transcode_concurrency"` // 0 = auto
	PlaceholderSeconds   float64 `toml:"placeholder_seconds"`
	PlaceholderColor     string  `toml:"placeholder_color"`
	CRF                  int     `toml:"crf"`
}

// Reconcile contains the audio/video duration thresholds.
type Reconcile struct {
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
	SlowThreshold      float64 `toml:"slow_threshold"`
	TrimThreshold      float64 `toml:"trim_threshold"`
	TrimTarget         float64 `toml:"trim_target"`
	AudioBitrate       string  `toml:"audio_bitrate"`
}

// Captions contains caption rendering configuration.
type Captions struct {
	Enabled           bool    `toml:"enabled"`
	Font              string  `toml:"font"`
	FontSize          int     `toml:"font_size"`
	SimpleFontSize    int     `toml:"simple_font_size"`
	MarginV           int     `toml:"margin_v"`
	SourceLanguage    string  `toml:"source_language"`
	CaptionLanguage   string  `toml:"caption_language"`
	WordTailSeconds   float64 `toml:"word_tail_seconds"`
	WordGapSeconds    float64 `toml:"word_gap_seconds"`
	MinVisibleSeconds float64 `toml:"min_visible_seconds"`
}

// Timing contains bounds for synthetic word timing.
type Timing struct {
	MinWordSeconds      float64 `toml:"min_word_seconds"`
	MaxWordSeconds      float64 `toml:"max_word_seconds"`
	AssumedTotalSeconds float64 `toml:"assumed_total_seconds"`
}

// Footage contains stock-footage provider settings.
type Footage struct {
	PexelsAPIKey           string `toml:"pexels_api_key"`
	PixabayAPIKey          string `toml:"pixabay_api_key"`
	PerPage                int    `toml:"per_page"`
	SearchTimeoutSeconds   int    `toml:"search_timeout_seconds"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds"`
	RetryAttempts          int    `toml:"retry_attempts"`
	DownloadConcurrency    int    `toml:"download_concurrency"`
	ClipsPerKeyword        int    `toml:"clips_per_keyword"`
}

// FFmpeg contains transcoder binaries and limits.
type FFmpeg struct {
	FFmpegBinary            string `toml:"ffmpeg_binary"`
	FFprobeBinary           string `toml:"ffprobe_binary"`
	HardwareAccel           bool   `toml:"hardware_accel"`
	TranscodeTimeoutSeconds int    `toml:"transcode_timeout_seconds"`
	ProbeTimeoutSeconds     int    `toml:"probe_timeout_seconds"`
}

// LLM contains shared LLM connection settings used by multiple features.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Speech contains text-to-speech and speech-to-text settings.
type Speech struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	TTSModel       string `toml:"tts_model"`
	Voice          string `toml:"voice"`
	STTModel       string `toml:"stt_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Closing controls the optional closing scene.
type Closing struct {
	Enabled   bool   `toml:"enabled"`
	VideoPath string `toml:"video_path"`
}

// Notifications configures ntfy run notifications. An empty topic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifyOnSuccess       bool   `toml:"notify_on_success"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mmoto.
//
// Configuration sections by subsystem:
//   - Paths: output, log and asset locations
//   - Output: target frame size and rate
//   - Assembly: clip selection counts, per-clip and global caps
//   - Reconcile: narration vs video duration thresholds
//   - Captions: caption styling and language
//   - Timing: synthetic word timing bounds
//   - Footage: Pexels and Pixabay credentials and limits
//   - FFmpeg: binaries, hardware acceleration and timeouts
//   - LLM / Speech: OpenAI-compatible endpoints
//   - Closing: closing scene stitching
//   - Notifications: ntfy run outcome messages
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Output        Output        `toml:"output"`
	Assembly      Assembly      `toml:"assembly"`
	Reconcile     Reconcile     `toml:"reconcile"`
	Captions      Captions      `toml:"captions"`
	Timing        Timing        `toml:"timing"`
	Footage       Footage       `toml:"footage"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	LLM           LLM           `toml:"llm"`
	Speech        Speech        `toml:"speech"`
	Closing       Closing       `toml:"closing"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mmoto.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for every transcode.
func (c *Config) FFmpegBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.FFmpegBinary); bin != "" {
		return bin
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.FFmpeg.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

// CaptionLanguage returns the language captions are rendered in.
func (c *Config) CaptionLanguage() string {
	if lang := strings.TrimSpace(c.Captions.CaptionLanguage); lang != "" {
		return lang
	}
	return c.Captions.SourceLanguage
}

// StatePath returns the run history database location.
func (c *Config) StatePath() string {
	if strings.TrimSpace(c.Paths.StateDB) != "" {
		return c.Paths.StateDB
	}
	return filepath.Join(c.Paths.OutputDir, "mmoto.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains common LLM settings used across features.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the shared LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// SpeechConfig is the resolved speech endpoint configuration.
type SpeechConfig struct {
	APIKey         string
	BaseURL        string
	TTSModel       string
	Voice          string
	STTModel       string
	TimeoutSeconds int
}

// GetSpeech returns speech settings, falling back to [llm] for credentials.
func (c *Config) GetSpeech() SpeechConfig {
	cfg := SpeechConfig{
		APIKey:         strings.TrimSpace(c.Speech.APIKey),
		BaseURL:        strings.TrimSpace(c.Speech.BaseURL),
		TTSModel:       strings.TrimSpace(c.Speech.TTSModel),
		Voice:          strings.TrimSpace(c.Speech.Voice),
		STTModel:       strings.TrimSpace(c.Speech.STTModel),
		TimeoutSeconds: c.Speech.TimeoutSeconds,
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(c.LLM.APIKey)
	}
	return cfg
}
