// Package category computes the sales-priority label for a property from
// its contract price, reference price band, and complex score.
package category

import (
	"github.com/Ramsey-B/tulip/pkg/models"
)

// Calculate returns the A/B/C priority for a property.
//
// The branching is asymmetric on purpose: whether the score itself is
// known changes the rules, not just whether the price band is known. This
// is the documented business rule.
//
// With a known score and a full price band:
//   - A: price inside [floor, ceiling] and score > 8
//   - B: price outside the band, or 5 <= score <= 8
//   - C: price above ceiling with score < 5, and any remaining combination
//
// With a known score but an unknown floor or ceiling, the score alone
// decides: A above 8, B in [5, 8], otherwise C.
//
// Without a score, a price inside a fully known band yields B; everything
// else is C.
func Calculate(contractPrice, floorPrice, ceilingPrice, score *float64) models.Category {
	if score != nil {
		if contractPrice != nil && floorPrice != nil && ceilingPrice != nil {
			return fromBandAndScore(*contractPrice, *floorPrice, *ceilingPrice, *score)
		}
		if floorPrice == nil || ceilingPrice == nil {
			return fromScore(*score)
		}
		return models.CategoryC
	}

	if contractPrice != nil && floorPrice != nil && ceilingPrice != nil &&
		*floorPrice <= *contractPrice && *contractPrice <= *ceilingPrice {
		return models.CategoryB
	}
	return models.CategoryC
}

func fromBandAndScore(price, floor, ceiling, score float64) models.Category {
	inBand := floor <= price && price <= ceiling

	switch {
	case inBand && score > 8:
		return models.CategoryA
	case !inBand || (5 <= score && score <= 8):
		return models.CategoryB
	case price > ceiling && score < 5:
		return models.CategoryC
	}

	// Enumerating the (band, score) combinations shows only in-band prices
	// with score < 5 reach this point; they default to C.
	return models.CategoryC
}

func fromScore(score float64) models.Category {
	switch {
	case score > 8:
		return models.CategoryA
	case 5 <= score && score <= 8:
		return models.CategoryB
	}
	return models.CategoryC
}
