package models

import (
	"time"

	"github.com/Ramsey-B/tulip/pkg/database"
)

// ListingStatus is the workflow state of a scraped listing
type ListingStatus string

const (
	ListingStatusNew      ListingStatus = "new"
	ListingStatusAssigned ListingStatus = "assigned"
	ListingStatusRecall   ListingStatus = "recall"
	ListingStatusArchived ListingStatus = "archived"
)

// ParsedProperty is a listing row from the external scraper feed.
// FeedID is the upsert conflict key; workflow fields are operator-owned and
// preserved across re-ingestion.
type ParsedProperty struct {
	ID              int64                    `db:"id" json:"id"`
	FeedID          int64                    `db:"feed_id" json:"feed_id"`
	SiteID          *string                  `db:"site_id" json:"site_id,omitempty"`
	KrishaDate      *time.Time               `db:"krisha_date" json:"krisha_date,omitempty"`
	ObjectType      string                   `db:"object_type" json:"object_type"`
	Address         string                   `db:"address" json:"address"`
	Complex         string                   `db:"complex" json:"complex"`
	Builder         string                   `db:"builder" json:"builder"`
	FlatType        string                   `db:"flat_type" json:"flat_type"`
	PropertyClass   string                   `db:"property_class" json:"property_class"`
	Condition       string                   `db:"condition" json:"condition"`
	SellPrice       *int64                   `db:"sell_price" json:"sell_price,omitempty"`
	SellPricePerM2  *int64                   `db:"sell_price_per_m2" json:"sell_price_per_m2,omitempty"`
	HouseNum        string                   `db:"house_num" json:"house_num"`
	FloorNum        *int                     `db:"floor_num" json:"floor_num,omitempty"`
	FloorCount      *int                     `db:"floor_count" json:"floor_count,omitempty"`
	RoomCount       *int                     `db:"room_count" json:"room_count,omitempty"`
	Area            *float64                 `db:"area" json:"area,omitempty"`
	CeilingHeight   *float64                 `db:"ceiling_height" json:"ceiling_height,omitempty"`
	YearBuilt       *int                     `db:"year_built" json:"year_built,omitempty"`
	WallType        string                   `db:"wall_type" json:"wall_type"`
	Phones          database.JSONB[[]string] `db:"phones" json:"phones"`
	Description     string                   `db:"description" json:"description"`

	// Workflow state, operator owned
	AssignedAgent *string       `db:"assigned_agent" json:"assigned_agent,omitempty"`
	AssignedAt    *time.Time    `db:"assigned_at" json:"assigned_at,omitempty"`
	Status        ListingStatus `db:"status" json:"status"`
	RecallAt      *time.Time    `db:"recall_at" json:"recall_at,omitempty"`
	Notes         string        `db:"notes" json:"notes"`
	Category      *Category     `db:"category" json:"category,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (ParsedProperty) TableName() string {
	return "parsed_properties"
}
