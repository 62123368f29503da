package pipeline

import (
	"mmoto/internal/runstore"
	"mmoto/internal/services"
)

// Classify maps a run outcome to its terminal status.
func Classify(err error, degradations []services.Degradation) runstore.Status {
	switch {
	case err == nil && len(degradations) > 0:
		return runstore.StatusDegraded
	case err == nil:
		return runstore.StatusCompleted
	case services.IsCanceled(err):
		return runstore.StatusStopped
	default:
		return runstore.StatusFailed
	}
}

// Report summarizes a finished run.
type Report struct {
	RunID           string                 `json:"run_id"`
	ProjectDir      string                 `json:"project_dir"`
	FinalVideo      string                 `json:"final_video,omitempty"`
	Status          runstore.Status        `json:"status"`
	Degradations    []services.Degradation `json:"degradations"`
	DurationSeconds float64                `json:"duration_seconds"`
}
