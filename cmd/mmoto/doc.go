// Package main hosts the mmoto CLI.
//
// The Cobra command tree loads configuration once, builds the transcode
// gateway, run store and external clients, and hands them to the internal
// packages. "render" runs a brief end to end; the remaining commands expose
// single stages (captions, timings, probe) and inspection of run history,
// run logs and environment status.
package main
