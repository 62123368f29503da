package timing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"mmoto/internal/config"
)

// Branch names the parser that produced a word list.
type Branch string

const (
	BranchWords         Branch = "words"
	BranchSegments      Branch = "segments"
	BranchResultWords   Branch = "result_words"
	BranchChunks        Branch = "chunks"
	BranchTextDuration  Branch = "text_duration"
	BranchSentenceSplit Branch = "sentence_split"
	BranchEmpty         Branch = "empty"
)

// Options bounds the synthetic fallbacks.
type Options struct {
	MinWordSeconds      float64
	MaxWordSeconds      float64
	AssumedTotalSeconds float64
}

// DefaultOptions mirrors the [timing] configuration defaults.
func DefaultOptions() Options {
	return Options{MinWordSeconds: 0.3, MaxWordSeconds: 2.0, AssumedTotalSeconds: 30}
}

// OptionsFromConfig reads the [timing] section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MinWordSeconds:      cfg.Timing.MinWordSeconds,
		MaxWordSeconds:      cfg.Timing.MaxWordSeconds,
		AssumedTotalSeconds: cfg.Timing.AssumedTotalSeconds,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MinWordSeconds <= 0 {
		o.MinWordSeconds = def.MinWordSeconds
	}
	if o.MaxWordSeconds < o.MinWordSeconds {
		o.MaxWordSeconds = def.MaxWordSeconds
		if o.MaxWordSeconds < o.MinWordSeconds {
			o.MaxWordSeconds = o.MinWordSeconds
		}
	}
	if o.AssumedTotalSeconds <= 0 {
		o.AssumedTotalSeconds = def.AssumedTotalSeconds
	}
	return o
}

// ParseError explains why a parser declined a payload. It is only used for
// diagnostics; parsing itself always falls through to the next branch.
type ParseError struct {
	Branch Branch
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("timing parser %s: %s", e.Branch, e.Reason)
}

// parser is one recognized transcript shape.
type parser struct {
	branch Branch
	parse  func(payload map[string]any, opts Options) ([]WordTiming, *ParseError)
}

// parsers run in priority order; the first that yields words wins.
var parsers = []parser{
	{branch: BranchWords, parse: parseTopLevelWords},
	{branch: BranchSegments, parse: parseSegments},
	{branch: BranchResultWords, parse: parseResultWords},
	{branch: BranchChunks, parse: parseChunks},
	{branch: BranchTextDuration, parse: parseTextDuration},
	{branch: BranchSentenceSplit, parse: parseSentenceSplit},
}

func parseTopLevelWords(payload map[string]any, _ Options) ([]WordTiming, *ParseError) {
	list, ok := payload["words"].([]any)
	if !ok {
		return nil, &ParseError{Branch: BranchWords, Reason: "no top-level words array"}
	}
	return wordsOrError(BranchWords, wordList(list))
}

func parseSegments(payload map[string]any, _ Options) ([]WordTiming, *ParseError) {
	return flattenNested(BranchSegments, payload["segments"])
}

func parseResultWords(payload map[string]any, _ Options) ([]WordTiming, *ParseError) {
	result, ok := payload["result"].(map[string]any)
	if !ok {
		return nil, &ParseError{Branch: BranchResultWords, Reason: "no result object"}
	}
	list, ok := result["words"].([]any)
	if !ok {
		return nil, &ParseError{Branch: BranchResultWords, Reason: "result has no words array"}
	}
	return wordsOrError(BranchResultWords, wordList(list))
}

func parseChunks(payload map[string]any, _ Options) ([]WordTiming, *ParseError) {
	return flattenNested(BranchChunks, payload["chunks"])
}

func flattenNested(branch Branch, value any) ([]WordTiming, *ParseError) {
	groups, ok := value.([]any)
	if !ok {
		return nil, &ParseError{Branch: branch, Reason: fmt.Sprintf("no %s array", branch)}
	}
	var words []WordTiming
	for _, group := range groups {
		entry, ok := group.(map[string]any)
		if !ok {
			continue
		}
		list, ok := entry["words"].([]any)
		if !ok {
			continue
		}
		words = append(words, wordList(list)...)
	}
	return wordsOrError(branch, words)
}

func wordsOrError(branch Branch, words []WordTiming) ([]WordTiming, *ParseError) {
	if len(words) == 0 {
		return nil, &ParseError{Branch: branch, Reason: "no usable word entries"}
	}
	return words, nil
}

// wordList keeps entries carrying text plus numeric start and end. The word
// may be under "word" or "text".
func wordList(list []any) []WordTiming {
	words := make([]WordTiming, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		text, _ := entry["word"].(string)
		if strings.TrimSpace(text) == "" {
			text, _ = entry["text"].(string)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		start, okStart := number(entry["start"])
		end, okEnd := number(entry["end"])
		if !okStart || !okEnd {
			continue
		}
		words = append(words, WordTiming{Word: text, Start: start, End: end})
	}
	return words
}

// number reads a finite numeric field. NaN and infinities are rejected so a
// word carrying them is dropped instead of breaking the ordering rules.
func number(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func payloadText(payload map[string]any) string {
	text, _ := payload["text"].(string)
	return strings.TrimSpace(text)
}

// parseTextDuration spreads the words of text over duration in proportion to
// their character length, clamping each word to [min, max].
func parseTextDuration(payload map[string]any, opts Options) ([]WordTiming, *ParseError) {
	text := payloadText(payload)
	if text == "" {
		return nil, &ParseError{Branch: BranchTextDuration, Reason: "no text"}
	}
	duration, ok := number(payload["duration"])
	if !ok || duration <= 0 {
		return nil, &ParseError{Branch: BranchTextDuration, Reason: "no positive duration"}
	}
	tokens := strings.Fields(text)
	totalChars := 0
	for _, token := range tokens {
		totalChars += utf8.RuneCountInString(token)
	}
	words := make([]WordTiming, 0, len(tokens))
	cursor := 0.0
	for _, token := range tokens {
		share := duration * float64(utf8.RuneCountInString(token)) / float64(totalChars)
		share = clamp(share, opts.MinWordSeconds, opts.MaxWordSeconds)
		words = append(words, WordTiming{Word: token, Start: cursor, End: cursor + share})
		cursor += share
	}
	return words, nil
}

// parseSentenceSplit assumes a fixed total, splits it evenly across
// sentences and then evenly across the words of each sentence.
func parseSentenceSplit(payload map[string]any, opts Options) ([]WordTiming, *ParseError) {
	text := payloadText(payload)
	if text == "" {
		return nil, &ParseError{Branch: BranchSentenceSplit, Reason: "no text"}
	}
	sentences := splitSentences(text)
	perSentence := opts.AssumedTotalSeconds / float64(len(sentences))
	var words []WordTiming
	for i, sentence := range sentences {
		tokens := strings.Fields(sentence)
		perWord := perSentence / float64(len(tokens))
		base := float64(i) * perSentence
		for j, token := range tokens {
			start := base + float64(j)*perWord
			words = append(words, WordTiming{Word: token, Start: start, End: start + perWord})
		}
	}
	return words, nil
}

// splitSentences breaks text after each period, keeping the period on the
// sentence and dropping empty pieces.
func splitSentences(text string) []string {
	var sentences []string
	for _, piece := range strings.SplitAfter(text, ".") {
		if len(strings.Fields(piece)) == 0 || strings.Trim(piece, ". \t\n") == "" {
			continue
		}
		sentences = append(sentences, strings.TrimSpace(piece))
	}
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	return sentences
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
