// Package timing turns speech-to-text responses of unknown shape into an
// ordered list of word timings.
//
// Extract tries a fixed list of shape parsers (flat words, segments,
// result.words, chunks) and falls back to synthetic timing derived from the
// transcript text. Every call logs which branch fired together with the word
// count so malformed upstream transcripts can be diagnosed from run.log.
// Normalize enforces start < end and non-decreasing starts; overlaps are
// reported as warnings only.
//
// Document is the word_timings.json artifact shared with the caption renderer.
package timing
