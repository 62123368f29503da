// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and Parse decodes an already captured payload. Helper
// methods on Result expose the properties the assembler and reconciler need:
// display dimensions (rotation aware), duration with a stream fallback,
// audio presence and frame rate.
package ffprobe
