package timing

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"mmoto/internal/fileutil"
)

// WordTiming is one spoken word with its start and end in seconds.
type WordTiming struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start.
func (w WordTiming) Duration() float64 {
	return w.End - w.Start
}

// Document is the persisted word-timing artifact of a run.
type Document struct {
	Text           string       `json:"text"`
	Duration       float64      `json:"duration"`
	Words          []WordTiming `json:"words"`
	TranslatedText string       `json:"translatedText,omitempty"`
}

// Load reads a timing document from path.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read word timings: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse word timings %s: %w", path, err)
	}
	return doc, nil
}

// Save writes the document atomically as indented JSON.
func (d Document) Save(path string) error {
	if d.Words == nil {
		d.Words = []WordTiming{}
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode word timings: %w", err)
	}
	if err := fileutil.WriteFileAtomic(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write word timings: %w", err)
	}
	return nil
}

// CaptionText returns the translated text when present, else the source text.
func (d Document) CaptionText() string {
	if strings.TrimSpace(d.TranslatedText) != "" {
		return d.TranslatedText
	}
	return d.Text
}

// Exists reports whether a non-empty timing document is present at path.
func Exists(path string) bool {
	return fileutil.NonEmpty(path)
}
