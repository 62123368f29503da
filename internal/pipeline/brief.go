package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"mmoto/internal/config"
	"mmoto/internal/fileutil"
	"mmoto/internal/services"
)

// Brief is the input document of a run.
type Brief struct {
	Topic    string   `yaml:"topic"`
	Keywords []string `yaml:"keywords"`
	// PrimaryKeyword defaults to the first keyword.
	PrimaryKeyword  string   `yaml:"primary_keyword,omitempty"`
	Sentences       []string `yaml:"sentences,omitempty"`
	Language        string   `yaml:"language,omitempty"`
	CaptionLanguage string   `yaml:"caption_language,omitempty"`
	Voice           string   `yaml:"voice,omitempty"`
	// NarrationFiles replaces speech synthesis when set.
	NarrationFiles []string `yaml:"narration_files,omitempty"`
	// TranscriptFile replaces speech recognition when set.
	TranscriptFile string `yaml:"transcript_file,omitempty"`
	// ClipsDir replaces the stock providers with local clips.
	ClipsDir string `yaml:"clips_dir,omitempty"`
}

// LoadBrief reads a YAML brief. Relative file references are resolved
// against the brief's directory.
func LoadBrief(path string) (Brief, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Brief{}, services.Wrap(services.ErrNotFound, "brief", "load", "read brief", err)
	}
	var brief Brief
	if err := yaml.Unmarshal(data, &brief); err != nil {
		return Brief{}, services.Wrap(services.ErrValidation, "brief", "load", "parse brief", err)
	}
	brief.resolvePaths(filepath.Dir(path))
	return brief, nil
}

// WriteBrief stores brief as YAML.
func WriteBrief(path string, brief Brief) error {
	data, err := yaml.Marshal(brief)
	if err != nil {
		return fmt.Errorf("encode brief: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

func (b *Brief) resolvePaths(base string) {
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	for i, p := range b.NarrationFiles {
		b.NarrationFiles[i] = resolve(p)
	}
	b.TranscriptFile = resolve(b.TranscriptFile)
	b.ClipsDir = resolve(b.ClipsDir)
}

// Normalize trims fields and fills languages, voice and the primary keyword
// from cfg.
func (b *Brief) Normalize(cfg *config.Config) {
	b.Topic = strings.TrimSpace(b.Topic)
	keywords := b.Keywords[:0]
	for _, kw := range b.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	b.Keywords = keywords
	b.PrimaryKeyword = strings.TrimSpace(b.PrimaryKeyword)
	if b.PrimaryKeyword == "" && len(b.Keywords) > 0 {
		b.PrimaryKeyword = b.Keywords[0]
	}
	sentences := b.Sentences[:0]
	for _, s := range b.Sentences {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	b.Sentences = sentences
	if cfg == nil {
		return
	}
	if strings.TrimSpace(b.Language) == "" {
		b.Language = cfg.Captions.SourceLanguage
	}
	if strings.TrimSpace(b.CaptionLanguage) == "" {
		b.CaptionLanguage = cfg.CaptionLanguage()
	}
	if strings.TrimSpace(b.Voice) == "" {
		b.Voice = cfg.Speech.Voice
	}
}

// Validate reports the first missing required field.
func (b Brief) Validate() error {
	switch {
	case b.Topic == "":
		return services.Wrap(services.ErrValidation, "brief", "validate", "topic is required", nil)
	case len(b.Keywords) == 0 && b.ClipsDir == "":
		return services.Wrap(services.ErrValidation, "brief", "validate", "at least one keyword or clips_dir is required", nil)
	case len(b.Sentences) == 0 && len(b.NarrationFiles) == 0:
		return services.Wrap(services.ErrValidation, "brief", "validate", "sentences or narration_files are required", nil)
	}
	return nil
}

// Script joins the narration sentences.
func (b Brief) Script() string {
	return strings.Join(b.Sentences, " ")
}
