package preflight

import (
	"context"
	"strings"

	"mmoto/internal/config"
	"mmoto/internal/language"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the checks a render needs for the given config.
// Remote checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Detail: status.Command}
		if !status.Available {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	// Output directory (always checked)
	output := CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir)
	results = append(results, output)
	if output.Passed {
		results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, MinFreeBytes))
	}

	// Closing scene, when enabled with an explicit file
	if cfg.Closing.Enabled && strings.TrimSpace(cfg.Closing.VideoPath) != "" {
		results = append(results, CheckFile("Closing video", cfg.Closing.VideoPath))
	}

	// Translation LLM, only needed when captions change language
	if cfg.Captions.Enabled && translationNeeded(cfg) {
		results = append(results, CheckLLM(ctx, "Translation LLM", cfg.GetLLM()))
	}

	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func translationNeeded(cfg *config.Config) bool {
	return !language.Same(cfg.Captions.SourceLanguage, cfg.CaptionLanguage())
}
