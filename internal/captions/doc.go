// Package captions renders word-by-word captions onto the reconciled video.
//
// BuildCues turns word timings into one cue per word with a guaranteed
// minimum visible duration. The Renderer walks an ordered list of Strategy
// values (soft subtitle track, styled burn-in, simplified burn-in, single
// full-length caption, plain copy) and stops at the first that produces an
// output. The last strategy copies the input, so Render only fails when the
// input video itself is missing. Every attempt is appended to the run's
// attempts.log.
//
// Translator and Redistribute handle captions in a language other than the
// narration: the translated words are laid onto the original timing slots by
// position.
package captions
