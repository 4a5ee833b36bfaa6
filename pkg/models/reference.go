package models

// ReferenceEntry holds the pricing band and quality score for one
// residential complex, keyed by its normalized name. CeilingPricePerM2 and
// FloorPricePerM2 are per-area rates ("roof"/"window" pricing); multiply by
// a unit's area to get the absolute band.
type ReferenceEntry struct {
	Name              string   `json:"name"`
	CeilingPricePerM2 *float64 `json:"ceiling_price_per_m2,omitempty"`
	FloorPricePerM2   *float64 `json:"floor_price_per_m2,omitempty"`
	Score             *float64 `json:"score,omitempty"`
}
