package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/tulip/pkg/normalize"
)

func TestName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lowercases and trims",
			input:    "  Alpha Park  ",
			expected: "alpha park",
		},
		{
			name:     "strips marketing tokens",
			input:    "ЖК Эксклюзив",
			expected: "эксклюзив",
		},
		{
			name:     "strips full marketing phrase",
			input:    "Жилой комплекс Даулетти",
			expected: "даулетти",
		},
		{
			name:     "punctuation becomes spaces",
			input:    `"Alpha" (Park), [Tower]`,
			expected: "alpha park tower",
		},
		{
			name:     "removes block suffix",
			input:    "Даулетти блок 3а",
			expected: "даулетти",
		},
		{
			name:     "removes bare stage words",
			input:    "Даулетти очередь 2",
			expected: "даулетти 2",
		},
		{
			name:     "collapses numeric range suffix",
			input:    "Alpha Park 2-1",
			expected: "alpha park 2",
		},
		{
			name:     "applies transliteration synonyms",
			input:    "Buqar Jyrau Exclusive",
			expected: "бухар жырау эксклюзив",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalize.Name(tt.input))
		})
	}
}

func TestName_Idempotent(t *testing.T) {
	inputs := []string{
		"ЖК Alpha Park 2-1",
		"Жилой комплекс «Даулетти» блок 3а",
		"Buqar Jyrau, очередь 2",
		"Alpha-Park Residence",
		"",
		"уже нормализовано 2",
	}

	for _, input := range inputs {
		once := normalize.Name(input)
		twice := normalize.Name(once)
		assert.Equal(t, once, twice, "normalize must be idempotent for %q", input)
	}
}

func TestName_PhaseSuffixCollapse(t *testing.T) {
	assert.Equal(t, normalize.Name("Complex 2"), normalize.Name("Complex 2-1"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"alpha", "park", "2"}, normalize.Tokens("ЖК Alpha Park 2-1"))
	assert.Nil(t, normalize.Tokens("  "))
}
