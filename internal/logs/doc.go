// Package logs reads the per-run JSON logs a render writes to
// <project>/run.log.
//
// Tail returns the last lines of a file with bounded memory, Follow streams
// lines appended after an offset until its context ends, and ParseEvent
// decodes a line into an Event that a Filter can select by level, stage or
// event type. The CLI "mmoto logs" command is built from these pieces.
package logs
