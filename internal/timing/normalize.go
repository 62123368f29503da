package timing

import (
	"fmt"
	"sort"
	"strings"
)

// Normalize sorts words stably by start, clamps negative starts to zero and
// repairs non-positive durations to minimum. Overlapping neighbours are
// reported as warnings and left untouched.
func Normalize(words []WordTiming, minimum float64) ([]WordTiming, []string) {
	if minimum <= 0 {
		minimum = DefaultOptions().MinWordSeconds
	}
	out := make([]WordTiming, 0, len(words))
	for _, w := range words {
		w.Word = strings.TrimSpace(w.Word)
		if w.Word == "" {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })

	var warnings []string
	for i := range out {
		if out[i].Start < 0 {
			warnings = append(warnings, fmt.Sprintf("word %d (%q) starts before zero", i, out[i].Word))
			out[i].Start = 0
		}
		if out[i].End <= out[i].Start {
			warnings = append(warnings, fmt.Sprintf("word %d (%q) has end <= start; repaired", i, out[i].Word))
			out[i].End = out[i].Start + minimum
		}
	}
	for i := 0; i+1 < len(out); i++ {
		if out[i].End > out[i+1].Start {
			warnings = append(warnings, fmt.Sprintf("word %d (%q) overlaps word %d (%q) by %.3fs",
				i, out[i].Word, i+1, out[i+1].Word, out[i].End-out[i+1].Start))
		}
	}
	return out, warnings
}

// Segment is the timing of one narration file.
type Segment struct {
	Words []WordTiming
	// Duration is the audio length; when zero the last word end is used.
	Duration float64
}

// Offset concatenates per-file timings onto one timeline. Each segment is
// shifted by the cumulative duration of the segments before it plus gap.
func Offset(segments []Segment, gap float64) []WordTiming {
	var out []WordTiming
	cursor := 0.0
	for _, seg := range segments {
		for _, w := range seg.Words {
			out = append(out, WordTiming{Word: w.Word, Start: w.Start + cursor, End: w.End + cursor})
		}
		length := seg.Duration
		if length <= 0 && len(seg.Words) > 0 {
			length = seg.Words[len(seg.Words)-1].End
		}
		cursor += length + gap
	}
	return out
}
