// Package matching finds the best reference entry for a normalized
// complex-name key.
package matching

import (
	"strings"

	"github.com/Ramsey-B/tulip/pkg/models"
)

const (
	// SimilarityThreshold is the minimum Jaccard score for a fallback match.
	// Tuned to reject unrelated complexes that share a common word.
	SimilarityThreshold = 0.45

	// SubsetScore is the forced score when one token set fully contains the
	// other. A subset relationship is treated as a near-certain match.
	SubsetScore = 0.999
)

// BestMatch returns the reference key best matching the query key.
// Match priority: exact key, variant (trailing-token truncation), then
// Jaccard similarity over token sets. The query and the reference keys are
// expected to be pre-normalized.
func BestMatch(query string, refs map[string]models.ReferenceEntry) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" || len(refs) == 0 {
		return "", false
	}

	if _, ok := refs[query]; ok {
		return query, true
	}

	if key, ok := variantMatch(query, refs); ok {
		return key, true
	}

	return similarityMatch(query, refs)
}

// variantMatch progressively drops trailing tokens from the query,
// simulating phase/block suffixes, and also drops purely numeric tokens
// from each truncation. Each variant is checked for an exact key match,
// then for all of its tokens appearing as substrings of one reference key.
// Shortest truncation wins.
func variantMatch(query string, refs map[string]models.ReferenceEntry) (string, bool) {
	tokens := strings.Fields(query)

	for cut := 1; cut < len(tokens); cut++ {
		variant := dropNumeric(tokens[:len(tokens)-cut])
		if len(variant) == 0 {
			continue
		}

		candidate := strings.Join(variant, " ")
		if _, ok := refs[candidate]; ok {
			return candidate, true
		}

		for key := range refs {
			if containsAllTokens(key, variant) {
				return key, true
			}
		}
	}

	return "", false
}

func dropNumeric(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !isNumeric(t) {
			out = append(out, t)
		}
	}
	return out
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func containsAllTokens(key string, tokens []string) bool {
	for _, t := range tokens {
		if !strings.Contains(key, t) {
			return false
		}
	}
	return true
}

// similarityMatch scores every reference key by token-set Jaccard
// similarity and returns the argmax when it clears SimilarityThreshold.
func similarityMatch(query string, refs map[string]models.ReferenceEntry) (string, bool) {
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return "", false
	}

	bestKey := ""
	bestScore := 0.0

	for key := range refs {
		score := jaccard(queryTokens, tokenSet(key))
		if score > bestScore {
			bestKey = key
			bestScore = score
		}
	}

	if bestScore >= SimilarityThreshold {
		return bestKey, true
	}
	return "", false
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(s) {
		set[t] = struct{}{}
	}
	return set
}

// jaccard computes intersection/union over token sets, with the subset
// override: a full subset relation forces at least SubsetScore.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	intersection := 0
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}

	union := len(a) + len(b) - intersection
	score := float64(intersection) / float64(union)

	smaller := len(a)
	if len(b) < smaller {
		smaller = len(b)
	}
	if intersection == smaller && score < SubsetScore {
		score = SubsetScore
	}

	return score
}
