// Package project owns the per-run project folder.
//
// A project folder is created under the configured output directory and is
// held under an exclusive file lock for the lifetime of a run, so two runs can
// never write into the same folder. The package also names every artifact the
// pipeline writes there and persists run metadata and cumulative statistics.
package project
