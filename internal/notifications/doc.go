// Package notifications publishes run outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Events map to a fixed title, tag set and
// priority; events that are only interesting in the run log are suppressed.
package notifications
