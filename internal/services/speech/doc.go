// Package speech wraps OpenAI-compatible text-to-speech and speech-to-text
// endpoints. Synthesize produces narration audio; Transcribe returns the raw
// verbose_json transcript that the timing extractor parses.
package speech
