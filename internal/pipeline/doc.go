// Package pipeline drives one short-video run from brief to final file.
//
// A Runner creates the project folder, tees logging into its run.log, and
// executes the footage, assembly, narration, reconcile, timing, captions and
// closing stages in order through stageexec. Stage-local failures that only
// lower quality are collected as degradations; resource failures abort the
// run. The metadata stage always runs so partial runs still leave a record.
package pipeline
