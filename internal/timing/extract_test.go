package timing

import (
	"bytes"
	"context"
	"log/slog"
	"math"
	"strings"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func assertMonotonic(t *testing.T, words []WordTiming) {
	t.Helper()
	for i, w := range words {
		if !(w.Start < w.End) {
			t.Fatalf("word %d: start %.3f not before end %.3f", i, w.Start, w.End)
		}
		if i+1 < len(words) && w.Start > words[i+1].Start {
			t.Fatalf("word %d: start %.3f after next start %.3f", i, w.Start, words[i+1].Start)
		}
	}
}

func TestExtractBranches(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		branch Branch
		words  []string
	}{
		{
			name:   "flat words",
			raw:    `{"words":[{"word":"hello","start":0,"end":0.4},{"word":"world","start":0.5,"end":0.9}]}`,
			branch: BranchWords,
			words:  []string{"hello", "world"},
		},
		{
			name:   "segments",
			raw:    `{"segments":[{"words":[{"word":"one","start":0,"end":0.3}]},{"words":[{"word":"two","start":0.4,"end":0.8}]}]}`,
			branch: BranchSegments,
			words:  []string{"one", "two"},
		},
		{
			name:   "result words",
			raw:    `{"result":{"words":[{"text":"alt","start":"0.1","end":"0.6"}]}}`,
			branch: BranchResultWords,
			words:  []string{"alt"},
		},
		{
			name:   "chunks",
			raw:    `{"chunks":[{"words":[{"word":"a","start":0,"end":0.2},{"word":"b","start":0.3,"end":0.5}]}]}`,
			branch: BranchChunks,
			words:  []string{"a", "b"},
		},
		{
			name:   "text with duration",
			raw:    `{"text":"quick brown fox","duration":3}`,
			branch: BranchTextDuration,
			words:  []string{"quick", "brown", "fox"},
		},
		{
			name:   "text only",
			raw:    `{"text":"First one. Second sentence here."}`,
			branch: BranchSentenceSplit,
			words:  []string{"First", "one.", "Second", "sentence", "here."},
		},
		{
			name:   "plain text payload",
			raw:    `just words`,
			branch: BranchSentenceSplit,
			words:  []string{"just", "words"},
		},
		{
			name:   "empty",
			raw:    `{"text":""}`,
			branch: BranchEmpty,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Extract(context.Background(), []byte(tc.raw), DefaultOptions(), nil)
			if result.Branch != tc.branch {
				t.Fatalf("branch = %s, want %s", result.Branch, tc.branch)
			}
			if len(result.Words) != len(tc.words) {
				t.Fatalf("got %d words, want %d: %+v", len(result.Words), len(tc.words), result.Words)
			}
			for i, w := range tc.words {
				if result.Words[i].Word != w {
					t.Fatalf("word %d = %q, want %q", i, result.Words[i].Word, w)
				}
			}
			assertMonotonic(t, result.Words)
		})
	}
}

func TestExtractPrefersTopLevelWordsOverSegments(t *testing.T) {
	raw := `{
		"words":[{"word":"top","start":0,"end":0.5}],
		"segments":[{"words":[{"word":"nested","start":0,"end":0.5}]}]
	}`
	result := Extract(context.Background(), []byte(raw), DefaultOptions(), nil)
	if result.Branch != BranchWords || result.Words[0].Word != "top" {
		t.Fatalf("expected top-level words to win, got %s %+v", result.Branch, result.Words)
	}
}

func TestExtractTextDurationProportional(t *testing.T) {
	result := Extract(context.Background(), []byte(`{"text":"hello world","duration":2.0}`), DefaultOptions(), nil)
	if result.Branch != BranchTextDuration || len(result.Words) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, w := range result.Words {
		if d := w.Duration(); d < 0.3 || d > 2.0 {
			t.Fatalf("duration %.3f outside clamp range", d)
		}
	}
	if !approx(result.Words[0].Duration(), 1.0) || !approx(result.Words[1].Start, 1.0) {
		t.Fatalf("expected proportional layout, got %+v", result.Words)
	}
	if result.Duration != 2.0 {
		t.Fatalf("expected payload duration, got %v", result.Duration)
	}
}

func TestExtractTextDurationClamps(t *testing.T) {
	raw := `{"text":"a extraordinarily","duration":10}`
	result := Extract(context.Background(), []byte(raw), DefaultOptions(), nil)
	if !approx(result.Words[0].Duration(), 0.625) {
		t.Fatalf("short word duration %.3f", result.Words[0].Duration())
	}
	if !approx(result.Words[1].Duration(), 2.0) {
		t.Fatalf("long word should clamp to 2.0, got %.3f", result.Words[1].Duration())
	}

	raw = `{"text":"a extraordinarily","duration":1}`
	result = Extract(context.Background(), []byte(raw), DefaultOptions(), nil)
	if !approx(result.Words[0].Duration(), 0.3) {
		t.Fatalf("short word should clamp to 0.3, got %.3f", result.Words[0].Duration())
	}
}

func TestExtractSentenceSplitSpreadsAssumedTotal(t *testing.T) {
	result := Extract(context.Background(), []byte(`{"text":"One two. Three."}`), DefaultOptions(), nil)
	want := []WordTiming{
		{Word: "One", Start: 0, End: 7.5},
		{Word: "two.", Start: 7.5, End: 15},
		{Word: "Three.", Start: 15, End: 30},
	}
	for i, w := range want {
		got := result.Words[i]
		if got.Word != w.Word || !approx(got.Start, w.Start) || !approx(got.End, w.End) {
			t.Fatalf("word %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestExtractSkipsInvalidEntries(t *testing.T) {
	raw := `{"words":[{"word":"","start":0,"end":1},{"word":"ok","start":1,"end":1.5},{"word":"nostart","end":2}]}`
	result := Extract(context.Background(), []byte(raw), DefaultOptions(), nil)
	if len(result.Words) != 1 || result.Words[0].Word != "ok" {
		t.Fatalf("expected only valid entry, got %+v", result.Words)
	}
}

func TestExtractDropsNonFiniteTimestamps(t *testing.T) {
	raw := `{"duration":"Inf","words":[` +
		`{"word":"a","start":"NaN","end":"1"},` +
		`{"word":"b","start":"0.5","end":"Inf"},` +
		`{"word":"c","start":"-Inf","end":"2"},` +
		`{"word":"d","start":"1.0","end":"1.4"}]}`
	result := Extract(context.Background(), []byte(raw), DefaultOptions(), nil)
	if len(result.Words) != 1 || result.Words[0].Word != "d" {
		t.Fatalf("expected only the finite word, got %+v", result.Words)
	}
	assertMonotonic(t, result.Words)
	if math.IsInf(result.Duration, 0) || !approx(result.Duration, 1.4) {
		t.Fatalf("duration = %v, want last word end", result.Duration)
	}
}

func TestExtractFallsThroughEmptyWordArray(t *testing.T) {
	raw := `{"words":[],"segments":[{"words":[{"word":"seg","start":0,"end":1}]}]}`
	result := Extract(context.Background(), []byte(raw), DefaultOptions(), nil)
	if result.Branch != BranchSegments {
		t.Fatalf("expected segments branch, got %s", result.Branch)
	}
	if len(result.Rejected) != 1 || result.Rejected[0].Branch != BranchWords {
		t.Fatalf("expected words parser rejection recorded, got %+v", result.Rejected)
	}
}

func TestExtractLogsBranchAndCount(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	Extract(context.Background(), []byte(`{"words":[{"word":"x","start":0,"end":1}]}`), DefaultOptions(), logger)
	out := buf.String()
	for _, want := range []string{`"event_type":"timing_parse"`, `"branch":"words"`, `"word_count":1`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log missing %s: %s", want, out)
		}
	}
}
