package assist

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Vocabulary holds the trigger phrases that route a turn into the
// image-generation, analysis and file-analysis branches. Matching is
// case-insensitive: image triggers match whole words, analysis
// triggers are prefix stems matched as substrings. Matching is
// inherently heuristic, so the phrases are configuration data rather
// than inline literals.
type Vocabulary struct {
	// ImageTriggers route to image generation and are also stripped
	// from the query to extract the image prompt. Ordered longest
	// first so the most specific phrase wins.
	ImageTriggers []string

	// AnalysisTriggers route a plain-text turn into the analysis branch.
	AnalysisTriggers []string

	// FileAnalysisTriggers add an analysis pass on top of the
	// file-processing branch.
	FileAnalysisTriggers []string
}

// DefaultVocabulary returns the built-in trigger phrases.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ImageTriggers: []string{
			"generate an image of",
			"create an image of",
			"generate image of",
			"create image of",
			"make an image of",
			"draw a picture of",
			"draw picture of",
			"generate an image",
			"create an image",
			"draw a picture",
			"picture of",
			"photo of",
			"image of",
			"draw",
		},
		AnalysisTriggers:     []string{"research", "analyz"},
		FileAnalysisTriggers: []string{"analyz", "summar", "extract"},
	}
}

// Normalized returns the vocabulary with empty trigger lists replaced
// by the built-in defaults, so partial config overrides stay usable.
func (v Vocabulary) Normalized() Vocabulary {
	def := DefaultVocabulary()
	if len(v.ImageTriggers) == 0 {
		v.ImageTriggers = def.ImageTriggers
	}
	if len(v.AnalysisTriggers) == 0 {
		v.AnalysisTriggers = def.AnalysisTriggers
	}
	if len(v.FileAnalysisTriggers) == 0 {
		v.FileAnalysisTriggers = def.FileAnalysisTriggers
	}
	v.ImageTriggers = lowercaseAll(v.ImageTriggers)
	v.AnalysisTriggers = lowercaseAll(v.AnalysisTriggers)
	v.FileAnalysisTriggers = lowercaseAll(v.FileAnalysisTriggers)
	return v
}

func lowercaseAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// MatchImage reports whether s contains an image trigger, returning
// the first (longest) matching phrase. Triggers must sit on word
// boundaries: "draw" matches "draw a cat" but not "withdraw" or
// "drawback".
func (v Vocabulary) MatchImage(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, trigger := range v.ImageTriggers {
		if indexTrigger(lower, trigger) >= 0 {
			return trigger, true
		}
	}
	return "", false
}

// indexTrigger returns the index of the first occurrence of trigger in
// lower that is bounded by non-word runes on both sides, or -1.
func indexTrigger(lower, trigger string) int {
	from := 0
	for {
		i := strings.Index(lower[from:], trigger)
		if i < 0 {
			return -1
		}
		i += from
		if boundaryBefore(lower, i) && boundaryAfter(lower, i+len(trigger)) {
			return i
		}
		from = i + 1
	}
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

// MatchesAnalysis reports whether s contains an analysis trigger.
func (v Vocabulary) MatchesAnalysis(s string) bool {
	return containsAnyTrigger(s, v.AnalysisTriggers)
}

// MatchesFileAnalysis reports whether s contains a file-analysis trigger.
func (v Vocabulary) MatchesFileAnalysis(s string) bool {
	return containsAnyTrigger(s, v.FileAnalysisTriggers)
}

func containsAnyTrigger(s string, triggers []string) bool {
	lower := strings.ToLower(s)
	for _, trigger := range triggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

// minPromptRunes is the shortest extraction considered usable as an
// image prompt; anything shorter falls through to the next source.
const minPromptRunes = 3

// defaultImagePrompt is the last-resort prompt when neither the query
// nor the intent yields a usable extraction.
const defaultImagePrompt = "a beautiful artistic scene"

// ExtractImagePrompt derives the image prompt for a turn.
//
// Precedence is deterministic: text after the trigger in the query,
// then text after the trigger in the interpreted intent, then the
// generic default. An extraction shorter than three runes is treated
// as unusable and falls through.
func (v Vocabulary) ExtractImagePrompt(query, intent string) string {
	if p, ok := v.extractAfterTrigger(query); ok {
		return p
	}
	if p, ok := v.extractAfterTrigger(intent); ok {
		return p
	}
	return defaultImagePrompt
}

// extractAfterTrigger returns the cleaned text following the first
// matching trigger in s.
func (v Vocabulary) extractAfterTrigger(s string) (string, bool) {
	trigger, ok := v.MatchImage(s)
	if !ok {
		return "", false
	}

	lower := strings.ToLower(s)
	idx := indexTrigger(lower, trigger)
	rest := s[idx+len(trigger):]
	rest = strings.Trim(rest, " \t\n.,:;!?\"'")
	if len([]rune(rest)) < minPromptRunes {
		return "", false
	}
	return rest, true
}
