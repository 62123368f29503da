// Package preflight provides readiness checks for the binaries, directories
// and remote services a render depends on.
//
// These checks run in two contexts:
//   - The render command calls RunAll before starting a run. If any check
//     fails the run is refused, so a missing ffmpeg or a full disk is
//     reported before footage is downloaded.
//   - The CLI "mmoto status" command uses the individual check functions
//     to display dependency and service health.
//
// Remote checks are gated by configuration; unconfigured services are skipped.
package preflight
