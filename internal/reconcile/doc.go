// Package reconcile matches the assembled video to the narration length and
// attaches the narration audio.
//
// Decide picks one of three actions from the two durations: slow the video
// down when the narration is noticeably longer, trim it when the video is
// noticeably longer, or leave it alone. Reconciler applies the decision and
// muxes the audio with a reduced-parameter retry. Tool failures never surface
// as errors: the unmodified or silent video is used instead and the event is
// returned as a degradation.
package reconcile
