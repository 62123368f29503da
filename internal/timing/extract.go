package timing

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"mmoto/internal/logging"
)

// Result is the outcome of Extract.
type Result struct {
	Words    []WordTiming
	Branch   Branch
	Text     string
	Duration float64
	// Rejected lists the parsers that declined the payload before Branch fired.
	Rejected []*ParseError
	Warnings []string
}

// Document converts the result into the persisted timing artifact.
func (r Result) Document() Document {
	return Document{Text: r.Text, Duration: r.Duration, Words: r.Words}
}

// Extract parses a raw speech-to-text response. A payload that is not a JSON
// object is treated as plain transcript text. The returned words are
// normalized and are empty only when the transcript text is empty.
func Extract(ctx context.Context, raw []byte, opts Options, logger *slog.Logger) Result {
	logger = logging.WithContext(ctx, logging.NewComponentLogger(logger, "timing"))
	opts = opts.withDefaults()

	payload := decodePayload(raw)
	result := Result{Branch: BranchEmpty, Text: payloadText(payload)}

	for _, p := range parsers {
		words, perr := p.parse(payload, opts)
		if perr != nil {
			result.Rejected = append(result.Rejected, perr)
			logger.Debug("timing parser declined",
				logging.String("branch", string(p.branch)),
				logging.String("reason", perr.Reason),
			)
			continue
		}
		result.Branch = p.branch
		result.Words = words
		break
	}

	if result.Words == nil {
		result.Words = []WordTiming{}
	}
	result.Words, result.Warnings = Normalize(result.Words, opts.MinWordSeconds)
	if result.Text == "" {
		result.Text = joinWords(result.Words)
	}
	if duration, ok := number(payload["duration"]); ok && duration > 0 {
		result.Duration = duration
	} else if n := len(result.Words); n > 0 {
		result.Duration = result.Words[n-1].End
	}

	logger.Info("transcript timing parsed",
		logging.String(logging.FieldEventType, "timing_parse"),
		logging.String("branch", string(result.Branch)),
		logging.Int("word_count", len(result.Words)),
		logging.Float64("duration_seconds", result.Duration),
		logging.Int("warnings", len(result.Warnings)),
	)
	if result.Branch == BranchTextDuration || result.Branch == BranchSentenceSplit {
		logging.WarnWithContext(logger, "transcript has no word timing; using synthetic timing", "timing_synthetic",
			logging.String("branch", string(result.Branch)),
			logging.String(logging.FieldImpact, "captions may drift from narration"),
			logging.String(logging.FieldErrorHint, "request word timestamps from the speech-to-text service"),
		)
	}
	return result
}

func decodePayload(raw []byte) map[string]any {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return map[string]any{}
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return map[string]any{"text": trimmed}
	}
	switch v := decoded.(type) {
	case map[string]any:
		return v
	case string:
		return map[string]any{"text": v}
	case []any:
		// A bare word array is the flat shape without its wrapper.
		return map[string]any{"words": v}
	default:
		return map[string]any{}
	}
}

func joinWords(words []WordTiming) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Word
	}
	return strings.Join(parts, " ")
}
