package config

const (
	defaultConfigPath   = "~/.config/mmoto/config.toml"
	defaultOutputDir    = "~/.local/share/mmoto/videos"
	defaultLogDir       = "~/.local/share/mmoto/logs"
	defaultFontDir      = "~/.local/share/mmoto/fonts"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultLogRetention = 30

	defaultNtfyTimeoutSeconds = 10

	defaultOutputWidth  = 1080
	defaultOutputHeight = 1920
	defaultOutputFPS    = 30

	defaultMaxClips             = 10
	defaultPrimaryClips         = 4
	defaultPerClipMaxSeconds    = 10.0
	defaultPerClipMinSeconds    = 5.0
	defaultClipCountLow         = 5
	defaultClipCountHigh        = 15
	defaultGlobalCapSeconds     = 60.0
	defaultPlaceholderSeconds   = 5.0
	defaultPlaceholderColor     = "black"
	defaultCRF                  = 18
	defaultReconcileMinDuration = 3.0
	defaultSlowThreshold        = 1.05
	defaultTrimThreshold        = 1.10
	defaultTrimTarget           = 1.05
	defaultAudioBitrate         = "256k"

	defaultCaptionFont       = "Anton-Regular"
	defaultCaptionFontSize   = 60
	defaultSimpleFontSize    = 44
	defaultCaptionMarginV    = 138
	defaultSourceLanguage    = "en"
	defaultWordTailSeconds   = 0.05
	defaultWordGapSeconds    = 0.01
	defaultMinVisibleSeconds = 0.15

	defaultMinWordSeconds      = 0.3
	defaultMaxWordSeconds      = 2.0
	defaultAssumedTotalSeconds = 30.0

	defaultFootagePerPage         = 10
	defaultSearchTimeoutSeconds   = 30
	defaultDownloadTimeoutSeconds = 180
	defaultRetryAttempts          = 3
	defaultDownloadConcurrency    = 3
	defaultClipsPerKeyword        = 3

	defaultFFmpegBinary            = "ffmpeg"
	defaultFFprobeBinary           = "ffprobe"
	defaultTranscodeTimeoutSeconds = 300
	defaultProbeTimeoutSeconds     = 60

	defaultLLMBaseURL        = "https://api.openai.com/v1/chat/completions"
	defaultLLMModel          = "gpt-4o-mini"
	defaultLLMReferer        = "https://github.com/mmoto/mmoto"
	defaultLLMTitle          = "mmoto"
	defaultLLMTimeoutSeconds = 60

	defaultSpeechBaseURL        = "https://api.openai.com/v1"
	defaultTTSModel             = "tts-1"
	defaultVoice                = "alloy"
	defaultSTTModel             = "whisper-1"
	defaultSpeechTimeoutSeconds = 120
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			FontDir:   defaultFontDir,
		},
		Output: Output{
			Width:  defaultOutputWidth,
			Height: defaultOutputHeight,
			FPS:    defaultOutputFPS,
		},
		Assembly: Assembly{
			MaxClips:           defaultMaxClips,
			PrimaryClips:       defaultPrimaryClips,
			PerClipMaxSeconds:  defaultPerClipMaxSeconds,
			PerClipMinSeconds:  defaultPerClipMinSeconds,
			ClipCountLow:       defaultClipCountLow,
			ClipCountHigh:      defaultClipCountHigh,
			GlobalCapSeconds:   defaultGlobalCapSeconds,
			PlaceholderSeconds: defaultPlaceholderSeconds,
			PlaceholderColor:   defaultPlaceholderColor,
			CRF:                defaultCRF,
		},
		Reconcile: Reconcile{
			MinDurationSeconds: defaultReconcileMinDuration,
			SlowThreshold:      defaultSlowThreshold,
			TrimThreshold:      defaultTrimThreshold,
			TrimTarget:         defaultTrimTarget,
			AudioBitrate:       defaultAudioBitrate,
		},
		Captions: Captions{
			Enabled:           true,
			Font:              defaultCaptionFont,
			FontSize:          defaultCaptionFontSize,
			SimpleFontSize:    defaultSimpleFontSize,
			MarginV:           defaultCaptionMarginV,
			SourceLanguage:    defaultSourceLanguage,
			WordTailSeconds:   defaultWordTailSeconds,
			WordGapSeconds:    defaultWordGapSeconds,
			MinVisibleSeconds: defaultMinVisibleSeconds,
		},
		Timing: Timing{
			MinWordSeconds:      defaultMinWordSeconds,
			MaxWordSeconds:      defaultMaxWordSeconds,
			AssumedTotalSeconds: defaultAssumedTotalSeconds,
		},
		Footage: Footage{
			PerPage:                defaultFootagePerPage,
			SearchTimeoutSeconds:   defaultSearchTimeoutSeconds,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			RetryAttempts:          defaultRetryAttempts,
			DownloadConcurrency:    defaultDownloadConcurrency,
			ClipsPerKeyword:        defaultClipsPerKeyword,
		},
		FFmpeg: FFmpeg{
			FFmpegBinary:            defaultFFmpegBinary,
			FFprobeBinary:           defaultFFprobeBinary,
			HardwareAccel:           true,
			TranscodeTimeoutSeconds: defaultTranscodeTimeoutSeconds,
			ProbeTimeoutSeconds:     defaultProbeTimeoutSeconds,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Speech: Speech{
			BaseURL:        defaultSpeechBaseURL,
			TTSModel:       defaultTTSModel,
			Voice:          defaultVoice,
			STTModel:       defaultSTTModel,
			TimeoutSeconds: defaultSpeechTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
			NotifyOnSuccess:       true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
