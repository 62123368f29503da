package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"mmoto/internal/config"
	"mmoto/internal/footage"
	"mmoto/internal/transcode"
)

// HardwareDetector reports the encoder the transcoder will use.
type HardwareDetector interface {
	DetectHardware(ctx context.Context) transcode.Capability
}

// CheckEncoder reports the detected H.264 encoder. Software encoding always
// passes; it is only slower.
func CheckEncoder(ctx context.Context, detector HardwareDetector) Result {
	const name = "Encoder"
	if detector == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	capability := detector.DetectHardware(ctx)
	if capability.Available {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (hardware)", capability.Encoder)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (software)", capability.Encoder)}
}

// CheckFootageProviders reports which stock providers have credentials.
func CheckFootageProviders(cfg *config.Config) Result {
	const name = "Footage providers"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	providers := footage.ProvidersFromConfig(cfg)
	if len(providers) == 0 {
		return Result{Name: name, Detail: "No API keys configured (local clips only)"}
	}
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(names, ", ")}
}

// CheckFile verifies that path is a readable, non-empty regular file.
func CheckFile(name, path string) Result {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	case info.IsDir():
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	case info.Size() == 0:
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: empty file)", path)}
	}
	return Result{Name: name, Passed: true, Detail: path}
}
