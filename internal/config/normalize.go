package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAssembly()
	c.normalizeCaptions()
	c.normalizeFootage()
	c.normalizeFFmpeg()
	c.normalizeLLM()
	c.normalizeSpeech()
	if err := c.normalizeClosing(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.FontDir, err = expandPath(strings.TrimSpace(c.Paths.FontDir)); err != nil {
		return fmt.Errorf("paths.font_dir: %w", err)
	}
	if c.Paths.ClosingVideo, err = expandPath(strings.TrimSpace(c.Paths.ClosingVideo)); err != nil {
		return fmt.Errorf("paths.closing_video: %w", err)
	}
	if c.Paths.StateDB, err = expandPath(strings.TrimSpace(c.Paths.StateDB)); err != nil {
		return fmt.Errorf("paths.state_db: %w", err)
	}
	return nil
}

func (c *Config) normalizeAssembly() {
	c.Assembly.PlaceholderColor = strings.TrimSpace(c.Assembly.PlaceholderColor)
	if c.Assembly.PlaceholderColor == "" {
		c.Assembly.PlaceholderColor = defaultPlaceholderColor
	}
	if c.Assembly.TranscodeConcurrency < 0 {
		c.Assembly.TranscodeConcurrency = 0
	}
	c.Reconcile.AudioBitrate = strings.TrimSpace(c.Reconcile.AudioBitrate)
	if c.Reconcile.AudioBitrate == "" {
		c.Reconcile.AudioBitrate = defaultAudioBitrate
	}
}

func (c *Config) normalizeCaptions() {
	c.Captions.Font = strings.TrimSpace(c.Captions.Font)
	if c.Captions.Font == "" {
		c.Captions.Font = defaultCaptionFont
	}
	c.Captions.SourceLanguage = strings.ToLower(strings.TrimSpace(c.Captions.SourceLanguage))
	if c.Captions.SourceLanguage == "" {
		c.Captions.SourceLanguage = defaultSourceLanguage
	}
	c.Captions.CaptionLanguage = strings.ToLower(strings.TrimSpace(c.Captions.CaptionLanguage))
}

func (c *Config) normalizeFootage() {
	c.Footage.PexelsAPIKey = strings.TrimSpace(c.Footage.PexelsAPIKey)
	if c.Footage.PexelsAPIKey == "" {
		if value, ok := os.LookupEnv("PEXELS_API_KEY"); ok {
			c.Footage.PexelsAPIKey = strings.TrimSpace(value)
		}
	}
	c.Footage.PixabayAPIKey = strings.TrimSpace(c.Footage.PixabayAPIKey)
	if c.Footage.PixabayAPIKey == "" {
		if value, ok := os.LookupEnv("PIXABAY_API_KEY"); ok {
			c.Footage.PixabayAPIKey = strings.TrimSpace(value)
		}
	}
	if c.Footage.PerPage <= 0 {
		c.Footage.PerPage = defaultFootagePerPage
	}
	if c.Footage.RetryAttempts <= 0 {
		c.Footage.RetryAttempts = defaultRetryAttempts
	}
	if c.Footage.DownloadConcurrency <= 0 {
		c.Footage.DownloadConcurrency = defaultDownloadConcurrency
	}
	if c.Footage.ClipsPerKeyword <= 0 {
		c.Footage.ClipsPerKeyword = defaultClipsPerKeyword
	}
}

func (c *Config) normalizeFFmpeg() {
	c.FFmpeg.FFmpegBinary = strings.TrimSpace(c.FFmpeg.FFmpegBinary)
	if c.FFmpeg.FFmpegBinary == "" {
		c.FFmpeg.FFmpegBinary = defaultFFmpegBinary
	}
	c.FFmpeg.FFprobeBinary = strings.TrimSpace(c.FFmpeg.FFprobeBinary)
	if c.FFmpeg.FFprobeBinary == "" {
		c.FFmpeg.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.Referer = strings.TrimSpace(c.LLM.Referer)
	if c.LLM.Referer == "" {
		c.LLM.Referer = defaultLLMReferer
	}
	c.LLM.Title = strings.TrimSpace(c.LLM.Title)
	if c.LLM.Title == "" {
		c.LLM.Title = defaultLLMTitle
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENROUTER_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeSpeech() {
	c.Speech.BaseURL = strings.TrimRight(strings.TrimSpace(c.Speech.BaseURL), "/")
	if c.Speech.BaseURL == "" {
		c.Speech.BaseURL = defaultSpeechBaseURL
	}
	c.Speech.TTSModel = strings.TrimSpace(c.Speech.TTSModel)
	if c.Speech.TTSModel == "" {
		c.Speech.TTSModel = defaultTTSModel
	}
	c.Speech.Voice = strings.TrimSpace(c.Speech.Voice)
	if c.Speech.Voice == "" {
		c.Speech.Voice = defaultVoice
	}
	c.Speech.STTModel = strings.TrimSpace(c.Speech.STTModel)
	if c.Speech.STTModel == "" {
		c.Speech.STTModel = defaultSTTModel
	}
	if c.Speech.TimeoutSeconds <= 0 {
		c.Speech.TimeoutSeconds = defaultSpeechTimeoutSeconds
	}
	c.Speech.APIKey = strings.TrimSpace(c.Speech.APIKey)
}

func (c *Config) normalizeClosing() error {
	var err error
	path := strings.TrimSpace(c.Closing.VideoPath)
	if path == "" {
		path = c.Paths.ClosingVideo
	}
	if c.Closing.VideoPath, err = expandPath(path); err != nil {
		return fmt.Errorf("closing.video_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
