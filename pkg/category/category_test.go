package category_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/tulip/pkg/category"
	"github.com/Ramsey-B/tulip/pkg/models"
)

func f(v float64) *float64 {
	return &v
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		price    *float64
		floor    *float64
		ceiling  *float64
		score    *float64
		expected models.Category
	}{
		{
			name:  "in band with high score",
			price: f(25_000_000), floor: f(22_500_000), ceiling: f(30_000_000), score: f(9),
			expected: models.CategoryA,
		},
		{
			name:  "below floor",
			price: f(20_000_000), floor: f(22_500_000), ceiling: f(30_000_000), score: f(9),
			expected: models.CategoryB,
		},
		{
			name:  "above ceiling with mid score",
			price: f(35_000_000), floor: f(22_500_000), ceiling: f(30_000_000), score: f(6),
			expected: models.CategoryB,
		},
		{
			name:  "above ceiling with low score",
			price: f(35_000_000), floor: f(22_500_000), ceiling: f(30_000_000), score: f(3),
			expected: models.CategoryB,
		},
		{
			name:  "in band with low score falls through",
			price: f(25_000_000), floor: f(22_500_000), ceiling: f(30_000_000), score: f(3),
			expected: models.CategoryC,
		},
		{
			name:  "no score in band",
			price: f(25_000_000), floor: f(22_500_000), ceiling: f(30_000_000), score: nil,
			expected: models.CategoryB,
		},
		{
			name:  "no score out of band",
			price: f(35_000_000), floor: f(22_500_000), ceiling: f(30_000_000), score: nil,
			expected: models.CategoryC,
		},
		{
			name:  "nothing known",
			price: nil, floor: nil, ceiling: nil, score: nil,
			expected: models.CategoryC,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := category.Calculate(tt.price, tt.floor, tt.ceiling, tt.score)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestCalculate_ScoreBoundary(t *testing.T) {
	price, band := f(1_000_000), f(1_000_000)

	// score > 8 is strict: 8.0001 qualifies for A, 8.0 lands in the B rule
	assert.Equal(t, models.CategoryA, category.Calculate(price, band, band, f(8.0001)))
	assert.Equal(t, models.CategoryB, category.Calculate(price, band, band, f(8.0)))
	assert.Equal(t, models.CategoryB, category.Calculate(price, band, band, f(5.0)))
	assert.Equal(t, models.CategoryC, category.Calculate(price, band, band, f(4.9999)))
}

func TestCalculate_NullPriceDegrade(t *testing.T) {
	price := f(25_000_000)

	// A missing floor or ceiling lets the score alone decide
	assert.Equal(t, models.CategoryA, category.Calculate(price, nil, f(30_000_000), f(9)))
	assert.Equal(t, models.CategoryB, category.Calculate(price, f(22_500_000), nil, f(6)))
	assert.Equal(t, models.CategoryC, category.Calculate(price, nil, nil, f(3)))
}
