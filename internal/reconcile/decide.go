package reconcile

import (
	"mmoto/internal/config"
)

// Action is the adjustment applied to the video.
type Action string

const (
	ActionNone Action = "none"
	ActionSlow Action = "slow"
	ActionTrim Action = "trim"
)

// Thresholds are the ratio bands that drive Decide.
type Thresholds struct {
	// MinDurationSeconds must be exceeded by both tracks before slowing.
	MinDurationSeconds float64
	// SlowThreshold is the audio/video ratio above which the video is slowed.
	SlowThreshold float64
	// TrimThreshold is the video/audio ratio above which the video is trimmed.
	TrimThreshold float64
	// TrimTarget is the trimmed length as a multiple of the audio length.
	TrimTarget float64
}

// DefaultThresholds mirrors the [reconcile] defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{MinDurationSeconds: 3, SlowThreshold: 1.05, TrimThreshold: 1.10, TrimTarget: 1.05}
}

// ThresholdsFromConfig reads the [reconcile] section.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	if cfg == nil {
		return DefaultThresholds()
	}
	return Thresholds{
		MinDurationSeconds: cfg.Reconcile.MinDurationSeconds,
		SlowThreshold:      cfg.Reconcile.SlowThreshold,
		TrimThreshold:      cfg.Reconcile.TrimThreshold,
		TrimTarget:         cfg.Reconcile.TrimTarget,
	}
}

// Decision is the chosen adjustment.
type Decision struct {
	Action Action `yaml:"action"`
	// Factor is the setpts multiplier for ActionSlow.
	Factor float64 `yaml:"factor,omitempty"`
	// TargetSeconds is the expected video length after the adjustment.
	TargetSeconds float64 `yaml:"target_seconds,omitempty"`
}

// Decide compares the durations. The video is slowed by audio/video when the
// narration is longer than SlowThreshold times the video, and trimmed to
// TrimTarget times the audio when the video is longer than TrimThreshold
// times the narration.
func Decide(video, audio float64, th Thresholds) Decision {
	if video <= 0 || audio <= 0 {
		return Decision{Action: ActionNone, TargetSeconds: video}
	}
	if video > th.MinDurationSeconds && audio > th.MinDurationSeconds && audio/video > th.SlowThreshold {
		return Decision{Action: ActionSlow, Factor: audio / video, TargetSeconds: audio}
	}
	if video > audio*th.TrimThreshold {
		return Decision{Action: ActionTrim, TargetSeconds: audio * th.TrimTarget}
	}
	return Decision{Action: ActionNone, TargetSeconds: video}
}
