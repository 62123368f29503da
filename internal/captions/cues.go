package captions

import (
	"math"
	"strings"

	"mmoto/internal/config"
	"mmoto/internal/timing"
)

// Cue is one caption event.
type Cue struct {
	Start float64
	End   float64
	Text  string
}

// CueOptions controls per-word display timing.
type CueOptions struct {
	// Tail extends each word past its spoken end.
	Tail float64
	// Gap is kept free before the next word starts.
	Gap float64
	// MinVisible is the shortest duration any cue is shown.
	MinVisible float64
}

// DefaultCueOptions mirrors the [captions] defaults.
func DefaultCueOptions() CueOptions {
	return CueOptions{Tail: 0.05, Gap: 0.01, MinVisible: 0.15}
}

// CueOptionsFromConfig reads the timing fields of the [captions] section.
func CueOptionsFromConfig(cfg *config.Config) CueOptions {
	opts := DefaultCueOptions()
	if cfg == nil {
		return opts
	}
	if cfg.Captions.WordTailSeconds >= 0 {
		opts.Tail = cfg.Captions.WordTailSeconds
	}
	if cfg.Captions.WordGapSeconds >= 0 {
		opts.Gap = cfg.Captions.WordGapSeconds
	}
	if cfg.Captions.MinVisibleSeconds > 0 {
		opts.MinVisible = cfg.Captions.MinVisibleSeconds
	}
	return opts
}

// BuildCues emits one cue per word. A cue ends at
// min(word.end + tail, next.start - gap) and never lasts less than MinVisible.
func BuildCues(words []timing.WordTiming, opts CueOptions) []Cue {
	cues := make([]Cue, 0, len(words))
	for i, w := range words {
		text := strings.TrimSpace(w.Word)
		if text == "" {
			continue
		}
		end := w.End + opts.Tail
		if i+1 < len(words) {
			end = math.Min(end, words[i+1].Start-opts.Gap)
		}
		if end-w.Start < opts.MinVisible {
			end = minimumEnd(w.Start, opts.MinVisible)
		}
		cues = append(cues, Cue{Start: w.Start, End: end, Text: text})
	}
	return cues
}

// minimumEnd returns the smallest end for which end-start >= visible holds in
// float64 arithmetic. start+visible alone can land one ulp short.
func minimumEnd(start, visible float64) float64 {
	end := start + visible
	for end-start < visible {
		end = math.Nextafter(end, math.Inf(1))
	}
	return end
}

// Redistribute lays the words of translated onto the timing slots of words by
// index. The result has the length of the shorter list.
func Redistribute(words []timing.WordTiming, translated string) []timing.WordTiming {
	tokens := strings.Fields(translated)
	n := min(len(tokens), len(words))
	out := make([]timing.WordTiming, n)
	for i := 0; i < n; i++ {
		out[i] = timing.WordTiming{Word: tokens[i], Start: words[i].Start, End: words[i].End}
	}
	return out
}

// SingleCue spans the whole transcript as one caption.
func SingleCue(text string, duration float64, opts CueOptions) Cue {
	if duration < opts.MinVisible {
		duration = opts.MinVisible
	}
	return Cue{Start: 0, End: duration, Text: strings.Join(strings.Fields(text), " ")}
}
