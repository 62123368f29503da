package assembly

import (
	"math/rand/v2"
	"sort"
	"strings"

	"mmoto/internal/config"
	"mmoto/internal/footage"
)

// Default selection limits.
const (
	DefaultMaxClips          = 10
	DefaultPrimaryClips      = 4
	DefaultPerClipMaxSeconds = 10.0
	DefaultPerClipMinSeconds = 5.0
	DefaultClipCountLow      = 5
	DefaultClipCountHigh     = 15
	DefaultGlobalCapSeconds  = 60.0
)

// Select picks up to maxClips clips. Up to primaryMax clips of the primary
// keyword come first in shuffled order, then the other keyword groups share
// the remaining slots evenly in sorted keyword order, then any leftovers fill
// what is still open. A nil rng uses the global source.
func Select(clips []footage.Clip, primaryKeyword string, maxClips, primaryMax int, rng *rand.Rand) []footage.Clip {
	if maxClips <= 0 || len(clips) == 0 {
		return nil
	}
	if primaryMax < 0 {
		primaryMax = 0
	}

	groups := make(map[string][]int)
	var primary []int
	for i, clip := range clips {
		if primaryKeyword != "" && strings.EqualFold(clip.Keyword, primaryKeyword) {
			primary = append(primary, i)
			continue
		}
		groups[clip.Keyword] = append(groups[clip.Keyword], i)
	}

	shuffle := rand.Shuffle
	if rng != nil {
		shuffle = rng.Shuffle
	}
	shuffle(len(primary), func(i, j int) { primary[i], primary[j] = primary[j], primary[i] })

	used := make([]bool, len(clips))
	selected := make([]footage.Clip, 0, maxClips)
	take := func(idx int) {
		used[idx] = true
		selected = append(selected, clips[idx])
	}

	for _, idx := range primary {
		if len(selected) >= primaryMax || len(selected) >= maxClips {
			break
		}
		take(idx)
	}

	others := make([]string, 0, len(groups))
	for keyword := range groups {
		others = append(others, keyword)
	}
	sort.Strings(others)
	if remaining := maxClips - len(selected); remaining > 0 && len(others) > 0 {
		per := max(1, remaining/len(others))
		for _, keyword := range others {
			for n, idx := range groups[keyword] {
				if n >= per || len(selected) >= maxClips {
					break
				}
				take(idx)
			}
		}
	}

	for _, idx := range primary {
		if len(selected) >= maxClips {
			return selected
		}
		if !used[idx] {
			take(idx)
		}
	}
	for idx := range clips {
		if len(selected) >= maxClips {
			break
		}
		if !used[idx] {
			take(idx)
		}
	}
	return selected
}

// Limits bounds clip durations.
type Limits struct {
	PerClipMaxSeconds float64
	PerClipMinSeconds float64
	ClipCountLow      int
	ClipCountHigh     int
}

// DefaultLimits returns 10s per clip up to 5 clips and 5s from 15 clips.
func DefaultLimits() Limits {
	return Limits{
		PerClipMaxSeconds: DefaultPerClipMaxSeconds,
		PerClipMinSeconds: DefaultPerClipMinSeconds,
		ClipCountLow:      DefaultClipCountLow,
		ClipCountHigh:     DefaultClipCountHigh,
	}
}

// LimitsFromConfig reads the per-clip limits from [assembly].
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		PerClipMaxSeconds: cfg.Assembly.PerClipMaxSeconds,
		PerClipMinSeconds: cfg.Assembly.PerClipMinSeconds,
		ClipCountLow:      cfg.Assembly.ClipCountLow,
		ClipCountHigh:     cfg.Assembly.ClipCountHigh,
	}
}

// PerClipCap returns the per-clip duration budget for n selected clips,
// interpolated linearly between the low and high clip counts.
func PerClipCap(n int, lim Limits) float64 {
	if n <= lim.ClipCountLow || lim.ClipCountHigh <= lim.ClipCountLow {
		return lim.PerClipMaxSeconds
	}
	if n >= lim.ClipCountHigh {
		return lim.PerClipMinSeconds
	}
	span := float64(lim.ClipCountHigh - lim.ClipCountLow)
	step := (lim.PerClipMaxSeconds - lim.PerClipMinSeconds) / span
	return lim.PerClipMaxSeconds - float64(n-lim.ClipCountLow)*step
}
