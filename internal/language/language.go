package language

import (
	"strings"

	"golang.org/x/text/cases"
	textlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

type entry struct {
	code2 string // ISO 639-1
	code3 string // ISO 639-2/T
	alt3  string // ISO 639-2/B where it differs
	word  string // lowercase English name
}

// supported lists the narration and caption languages mmoto renders.
var supported = []entry{
	{"tr", "tur", "", "turkish"},
	{"en", "eng", "", "english"},
	{"es", "spa", "", "spanish"},
	{"fr", "fra", "fre", "french"},
	{"de", "deu", "ger", "german"},
	{"it", "ita", "", "italian"},
	{"pt", "por", "", "portuguese"},
	{"ru", "rus", "", "russian"},
	{"zh", "zho", "chi", "chinese"},
	{"ja", "jpn", "", "japanese"},
	{"ko", "kor", "", "korean"},
	{"ar", "ara", "", "arabic"},
}

var index map[string]*entry

func init() {
	index = make(map[string]*entry, len(supported)*4)
	for i := range supported {
		e := &supported[i]
		index[e.code2] = e
		index[e.code3] = e
		index[e.word] = e
		if e.alt3 != "" {
			index[e.alt3] = e
		}
	}
}

// Normalize converts a language code, BCP 47 tag or English name into an
// ISO 639-1 code. Unrecognized input yields "".
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if e, ok := index[code]; ok {
		return e.code2
	}
	tag, err := textlang.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == textlang.No {
		return ""
	}
	return base.String()
}

// Supported reports whether code resolves to a language mmoto can caption.
func Supported(code string) bool {
	_, ok := index[Normalize(code)]
	return ok
}

// Same reports whether a and b name the same base language.
func Same(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	return na != "" && na == nb
}

// ToISO3 returns the ISO 639-2 code, or "und" when unknown.
func ToISO3(code string) string {
	normalized := Normalize(code)
	if e, ok := index[normalized]; ok {
		return e.code3
	}
	if normalized == "" {
		return "und"
	}
	base, err := textlang.ParseBase(normalized)
	if err != nil {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns the English name of the language, e.g. "Turkish".
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	normalized := Normalize(code)
	if normalized == "" {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	tag := textlang.Make(normalized)
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(normalized)
}

// Upper uppercases caption text with the casing rules of the given language,
// so Turkish "i" becomes "İ".
func Upper(code, text string) string {
	tag := textlang.Und
	if normalized := Normalize(code); normalized != "" {
		tag = textlang.Make(normalized)
	}
	return cases.Upper(tag).String(text)
}

// List returns the supported ISO 639-1 codes in display order.
func List() []string {
	codes := make([]string, 0, len(supported))
	for _, e := range supported {
		codes = append(codes, e.code2)
	}
	return codes
}
