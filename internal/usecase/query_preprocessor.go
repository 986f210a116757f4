package usecase

import (
	"regexp"
	"strings"
)

// Compiled regex patterns for keyword extraction
var (
	// Letters only, accented Spanish letters included
	wordPattern = regexp.MustCompile(`[a-záéíóúüñ]+`)

	// Pack/count patterns in Spanish and English listings, e.g. "6 pack", "paquete de 12", "x 24"
	multipackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d+\s*-?\s*pack\b`),
		regexp.MustCompile(`\b\d+\s*(?:pzas?|piezas?|frascos?|botellas?|unidades?|latas?)\b`),
		regexp.MustCompile(`\b(?:pack|paquete|caja)\s+(?:de|of)\s+\d+\b`),
		regexp.MustCompile(`\bx\s*\d+\b`),
		regexp.MustCompile(`\(\d+\s*(?:pzas?|pack|frascos?)\)`),
	}
)

// keywordStopWords are dropped before comparing titles
var keywordStopWords = map[string]bool{
	// Spanish
	"de": true, "la": true, "el": true, "los": true, "las": true, "un": true,
	"una": true, "con": true, "para": true, "por": true, "en": true, "y": true,
	"del": true, "al": true, "sin": true,
	// English
	"the": true, "and": true, "for": true, "with": true, "of": true,
	// Units and packaging
	"ml": true, "gr": true, "kg": true, "lt": true, "pz": true, "pzas": true,
	"oz": true, "lb": true, "pack": true, "botella": true, "lata": true,
	// Retail noise
	"precio": true, "oferta": true, "envio": true, "gratis": true, "upc": true,
}

// QueryPreprocessor extracts comparable keywords from product text
type QueryPreprocessor struct{}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor() *QueryPreprocessor {
	return &QueryPreprocessor{}
}

// Keywords returns the distinct meaningful words of s in order of appearance.
// Words shorter than three letters and stop words are skipped.
func (p *QueryPreprocessor) Keywords(s string) []string {
	if s == "" {
		return nil
	}

	words := wordPattern.FindAllString(strings.ToLower(s), -1)
	seen := make(map[string]bool, len(words))
	keywords := make([]string, 0, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 || keywordStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		keywords = append(keywords, w)
	}
	return keywords
}

// IsMultipack detects listings that sell several units together
func (p *QueryPreprocessor) IsMultipack(title string) bool {
	lower := strings.ToLower(title)
	for _, pattern := range multipackPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}
