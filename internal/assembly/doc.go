// Package assembly selects stock clips for a run, conforms each one to the
// vertical output frame and concatenates them into a single silent video.
//
// Selection favors clips found for the primary keyword and spreads the
// remaining slots across the other keywords. The per-clip duration budget
// shrinks as more clips are selected, and the assembled total never exceeds
// the global cap. Clip transforms run concurrently but the concatenation
// always follows selection order. When nothing usable remains, a solid-color
// placeholder of the target size stands in so later stages still have video.
package assembly
