package services

import "fmt"

// Degradation kinds recorded when a stage absorbs a failure.
const (
	DegradationReconcile   = "ReconciliationFailure"
	DegradationCaptions    = "CaptionRenderFailure"
	DegradationPlaceholder = "PlaceholderVideo"
	DegradationProvider    = "ProviderFailure"
	DegradationTranslation = "TranslationFailure"
	DegradationClosing     = "ClosingSceneFailure"
	DegradationClip        = "ClipTransformFailure"
)

// Degradation is a stage-local failure that lowered output quality without
// aborting the run.
type Degradation struct {
	Stage  string `json:"stage" yaml:"stage"`
	Kind   string `json:"kind" yaml:"kind"`
	Detail string `json:"detail" yaml:"detail"`
}

func (d Degradation) String() string {
	if d.Stage == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Detail)
	}
	return fmt.Sprintf("%s/%s: %s", d.Stage, d.Kind, d.Detail)
}
