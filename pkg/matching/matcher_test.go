package matching_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/tulip/pkg/matching"
	"github.com/Ramsey-B/tulip/pkg/models"
)

func refMap(keys ...string) map[string]models.ReferenceEntry {
	refs := make(map[string]models.ReferenceEntry, len(keys))
	for _, k := range keys {
		refs[k] = models.ReferenceEntry{Name: k}
	}
	return refs
}

func TestBestMatch_ExactPriority(t *testing.T) {
	// An exact key wins even when another key shares more tokens with
	// variants of the query.
	refs := refMap("alpha park", "alpha park residence premium")

	key, ok := matching.BestMatch("alpha park", refs)
	require.True(t, ok)
	assert.Equal(t, "alpha park", key)
}

func TestBestMatch_SubsetRule(t *testing.T) {
	refs := refMap("alpha park residence")

	key, ok := matching.BestMatch("alpha park", refs)
	require.True(t, ok)
	assert.Equal(t, "alpha park residence", key)
}

func TestBestMatch_RejectsUnrelated(t *testing.T) {
	refs := refMap("alpha park residence")

	_, ok := matching.BestMatch("beta towers", refs)
	assert.False(t, ok)
}

func TestBestMatch_VariantTruncation(t *testing.T) {
	// Phase suffix tokens are dropped until the base name matches.
	refs := refMap("даулетти")

	key, ok := matching.BestMatch("даулетти 2", refs)
	require.True(t, ok)
	assert.Equal(t, "даулетти", key)
}

func TestBestMatch_SimilarityFallback(t *testing.T) {
	refs := refMap("бухар жырау эксклюзив")

	// Leading token differs so no variant hit; Jaccard 2/4 = 0.5 >= 0.45
	key, ok := matching.BestMatch("гранд бухар жырау", refs)
	require.True(t, ok)
	assert.Equal(t, "бухар жырау эксклюзив", key)
}

func TestBestMatch_EmptyInputs(t *testing.T) {
	_, ok := matching.BestMatch("", refMap("alpha park"))
	assert.False(t, ok)

	_, ok = matching.BestMatch("alpha park", nil)
	assert.False(t, ok)
}
