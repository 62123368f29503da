package captions

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"mmoto/internal/fileutil"
	"mmoto/internal/language"
)

// fallbackFont is used when the configured font file is not installed.
const fallbackFont = "Arial"

// Style describes the ASS Default style.
type Style struct {
	PlayResX int
	PlayResY int
	Font     string
	FontSize int
	MarginV  int
	// Box draws an opaque box behind the text instead of an outline.
	Box bool
	// Uppercase renders text with the casing rules of Language.
	Uppercase bool
	Language  string
}

// ResolveFont returns font when <fontDir>/<font>.ttf or .otf exists and the
// fallback font otherwise.
func ResolveFont(fontDir, font string) (string, bool) {
	font = strings.TrimSpace(font)
	if font == "" {
		return fallbackFont, false
	}
	if strings.TrimSpace(fontDir) == "" {
		return fallbackFont, false
	}
	for _, ext := range []string{".ttf", ".otf"} {
		if fileutil.NonEmpty(filepath.Join(fontDir, font+ext)) {
			return font, true
		}
	}
	return fallbackFont, false
}

func (s Style) line() string {
	borderStyle, outline, back := 1, 6, "&H00000000"
	if s.Box {
		borderStyle, outline, back = 3, 12, "&H80000000"
	}
	font := s.Font
	if font == "" {
		font = fallbackFont
	}
	return fmt.Sprintf("Style: Default,%s,%d,&H00FFFFFF,&H000000FF,&H00000000,%s,0,0,0,0,100,100,0,0,%d,%d,0,2,10,10,%d,1",
		font, s.FontSize, back, borderStyle, outline, s.MarginV)
}

func (s Style) text(raw string) string {
	if s.Uppercase {
		raw = language.Upper(s.Language, raw)
	}
	return escapeASS(raw)
}

// WriteASS writes one Dialogue event per cue.
func WriteASS(path string, cues []Cue, style Style) error {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("Title: mmoto captions\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("WrapStyle: 0\n")
	fmt.Fprintf(&b, "PlayResX: %d\n", style.PlayResX)
	fmt.Fprintf(&b, "PlayResY: %d\n", style.PlayResY)
	b.WriteString("ScaledBorderAndShadow: yes\n\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	b.WriteString(style.line())
	b.WriteString("\n\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, cue := range cues {
		fmt.Fprintf(&b, "Dialogue: 0,%s,%s,Default,,0,0,0,,%s\n",
			formatASSTimestamp(cue.Start), formatASSTimestamp(cue.End), style.text(cue.Text))
	}
	return writeFile(path, b.String())
}

// WriteSRT writes cues as a SubRip file.
func WriteSRT(path string, cues []Cue) error {
	var b strings.Builder
	for i, cue := range cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTTimestamp(cue.Start), formatSRTTimestamp(cue.End))
		b.WriteString(cue.Text)
		b.WriteString("\n")
	}
	return writeFile(path, b.String())
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create subtitle dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}

var assEscaper = strings.NewReplacer(`\`, `\\`, `{`, `\{`, `}`, `\}`, "\r\n", `\N`, "\n", `\N`)

func escapeASS(text string) string {
	return assEscaper.Replace(text)
}

// formatASSTimestamp renders H:MM:SS.cc.
func formatASSTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 100))
	cs := total % 100
	s := (total / 100) % 60
	m := (total / 6000) % 60
	h := total / 360000
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// formatSRTTimestamp renders HH:MM:SS,mmm.
func formatSRTTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int64(math.Round(seconds * 1000))
	ms := total % 1000
	s := (total / 1000) % 60
	m := (total / 60000) % 60
	h := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

var filterEscaper = strings.NewReplacer(`\`, `\\\\`, `'`, `\\\'`, `:`, `\\:`, `,`, `\,`, `[`, `\[`, `]`, `\]`, `;`, `\;`)

// subtitleFilter builds the ass= video filter for path, pointing libass at
// fontDir when set.
func subtitleFilter(path, fontDir string) string {
	filter := "ass=filename=" + filterEscaper.Replace(path)
	if strings.TrimSpace(fontDir) != "" {
		filter += ":fontsdir=" + filterEscaper.Replace(fontDir)
	}
	return filter
}
