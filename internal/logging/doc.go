// Package logging assembles structured slog loggers and formatting helpers used
// across the mmoto pipeline.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code tags log lines with run IDs,
// stage names, and correlation IDs. Each pipeline run tees its records into a
// per-run JSON log inside the project folder via TeeLogger and NewRunHandler.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the system.
package logging
