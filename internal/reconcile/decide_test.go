package reconcile

import (
	"math"
	"testing"
)

func TestDecide(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		name   string
		video  float64
		audio  float64
		action Action
		factor float64
		target float64
	}{
		{name: "narration much longer slows video", video: 30, audio: 42, action: ActionSlow, factor: 1.4, target: 42},
		{name: "within slow tolerance", video: 30, audio: 31, action: ActionNone, target: 30},
		{name: "short clips never slowed", video: 2.5, audio: 4, action: ActionNone, target: 2.5},
		{name: "video much longer is trimmed", video: 60, audio: 40, action: ActionTrim, target: 42},
		{name: "within trim tolerance", video: 44, audio: 40, action: ActionNone, target: 44},
		{name: "unknown audio", video: 30, audio: 0, action: ActionNone, target: 30},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Decide(tc.video, tc.audio, th)
			if got.Action != tc.action {
				t.Fatalf("action = %s, want %s", got.Action, tc.action)
			}
			if math.Abs(got.Factor-tc.factor) > 1e-9 {
				t.Fatalf("factor = %v, want %v", got.Factor, tc.factor)
			}
			if math.Abs(got.TargetSeconds-tc.target) > 1e-9 {
				t.Fatalf("target = %v, want %v", got.TargetSeconds, tc.target)
			}
		})
	}
}

func TestDecideHonoursCustomThresholds(t *testing.T) {
	th := Thresholds{MinDurationSeconds: 1, SlowThreshold: 1.5, TrimThreshold: 2, TrimTarget: 1}
	if got := Decide(30, 42, th); got.Action != ActionNone {
		t.Fatalf("expected none under wider slow band, got %s", got.Action)
	}
	if got := Decide(90, 40, th); got.Action != ActionTrim || got.TargetSeconds != 40 {
		t.Fatalf("unexpected trim decision %+v", got)
	}
}
