// Package normalize canonicalizes free-text residential-complex names into
// token-based lookup keys.
package normalize

import (
	"regexp"
	"strings"
)

// marketingTokens are generic marketing words stripped from complex names.
// Order matters: longer phrases are removed before their substrings.
var marketingTokens = []string{
	"жилой комплекс",
	"жк",
	"residential",
	"residence",
	"complex",
}

// synonyms maps common Latin-script renderings of complex-name tokens to
// their Cyrillic canonical form.
var synonyms = map[string]string{
	"buqar":      "бухар",
	"bukhar":     "бухар",
	"buqarjyrau": "бухаржырау",
	"jyrau":      "жырау",
	"qalashyq":   "калашык",
	"qalashy":    "калашык",
	"qalashyk":   "калашык",
	"exclusive":  "эксклюзив",
	"dauletti":   "даулетти",
}

// \b is ASCII-only in RE2, so word boundaries around Cyrillic tokens are
// expressed with explicit space/edge groups.
var (
	rangeSuffixRe = regexp.MustCompile(`\b(\d+)\s*-\s*\d+\b`)
	blockRe       = regexp.MustCompile(`(^|\s)(блок|block)\s+[a-zа-я0-9]+(\s|$)`)
	stageRe       = regexp.MustCompile(`(^|\s)(очередь|этап|stage|phase)(\s|$)`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// punctuation characters replaced with spaces. Hyphens are handled after the
// numeric range collapse so "2-1" can still be recognized as a range.
const punctuation = "\"'«».,;:()[]{}/\\–_"

// Name normalizes a complex name into a canonical lookup key.
// Deterministic and idempotent: Name(Name(s)) == Name(s).
func Name(raw string) string {
	s := strings.ToLower(raw)

	for _, token := range marketingTokens {
		s = strings.ReplaceAll(s, token, " ")
	}

	for _, ch := range punctuation {
		s = strings.ReplaceAll(s, string(ch), " ")
	}

	// Collapse phase suffixes like "2-1" to "2" before hyphens are stripped
	s = rangeSuffixRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "-", " ")

	s = blockRe.ReplaceAllString(s, " ")
	s = stageRe.ReplaceAllString(s, " ")

	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))

	tokens := strings.Split(s, " ")
	for i, t := range tokens {
		if canonical, ok := synonyms[t]; ok {
			tokens[i] = canonical
		}
	}
	return strings.Join(tokens, " ")
}

// Tokens returns the normalized token set of a name. Empty input yields an
// empty slice.
func Tokens(raw string) []string {
	s := Name(raw)
	if s == "" {
		return nil
	}
	return strings.Split(s, " ")
}
