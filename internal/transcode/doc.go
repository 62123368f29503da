// Package transcode is the single gateway to ffmpeg and ffprobe.
//
// Every video operation in mmoto (clip normalization, concatenation, speed
// change, muxing, caption burn-in, closing-scene stitching) is expressed as a
// Job and executed through Gateway.Run. Each run writes exactly one output
// file, never touches its inputs, and never retries on its own; retry and
// fallback policy belongs to the caller. Failures surface as *Error carrying
// the arguments, exit code and stderr tail.
//
// DetectHardware probes the ffmpeg build once for an H.264 hardware encoder
// (VideoToolbox, then NVENC, then QSV) and RunWithFallback re-runs a failed
// hardware encode with libx264.
package transcode
