package ingest

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/tulip/pkg/category"
	"github.com/Ramsey-B/tulip/pkg/kafka"
	"github.com/Ramsey-B/tulip/pkg/metrics"
	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/reference"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

// ReferenceSource serves the pricing reference map keyed by normalized
// complex name.
type ReferenceSource interface {
	Entries(ctx context.Context) (map[string]models.ReferenceEntry, error)
}

// ListingStore is the persistence surface for scraped listings.
type ListingStore interface {
	ExistingFeedIDs(ctx context.Context, feedIDs []int64) (map[int64]bool, error)
	BulkUpsert(ctx context.Context, listings []*models.ParsedProperty) (inserted, updated int, err error)
	ClaimForAgent(ctx context.Context, agent string, n int) ([]*models.ParsedProperty, error)
	MarkArchived(ctx context.Context, feedIDs []int64) (int, error)
}

// IngestStats summarizes one feed batch.
type IngestStats struct {
	Received int `json:"received"`
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Ingestor accepts scraped-listing batches and manages the claim workflow.
type Ingestor struct {
	store     ListingStore
	reference ReferenceSource
	producer  *kafka.Producer
	logger    ectologger.Logger
}

func New(store ListingStore, reference ReferenceSource, producer *kafka.Producer, logger ectologger.Logger) *Ingestor {
	return &Ingestor{
		store:     store,
		reference: reference,
		producer:  producer,
		logger:    logger,
	}
}

// IngestBatch upserts a batch of feed rows. Categories are computed for
// brand-new feed ids only; re-ingested rows keep whatever category and
// workflow state they already carry.
func (i *Ingestor) IngestBatch(ctx context.Context, listings []*models.ParsedProperty) (IngestStats, error) {
	ctx, span := tracing.StartSpan(ctx, "Ingestor.IngestBatch")
	defer span.End()

	stats := IngestStats{Received: len(listings)}
	if len(listings) == 0 {
		return stats, nil
	}

	feedIDs := make([]int64, 0, len(listings))
	for _, listing := range listings {
		feedIDs = append(feedIDs, listing.FeedID)
	}

	existing, err := i.store.ExistingFeedIDs(ctx, feedIDs)
	if err != nil {
		return stats, err
	}

	var fresh []*models.ParsedProperty
	for _, listing := range listings {
		if !existing[listing.FeedID] {
			fresh = append(fresh, listing)
		}
	}
	i.categorize(ctx, fresh)

	stats.Inserted, stats.Updated, err = i.store.BulkUpsert(ctx, listings)
	if err != nil {
		return stats, err
	}

	metrics.RecordIngestRows(stats.Inserted, stats.Updated)
	if err := i.producer.PublishIngestEvent(ctx, &kafka.IngestEventMessage{
		Type:     "ingest.completed",
		Received: stats.Received,
		Inserted: stats.Inserted,
		Updated:  stats.Updated,
	}); err != nil {
		i.logger.WithContext(ctx).WithError(err).Warn("Failed to publish ingest event")
	}

	i.logger.WithContext(ctx).WithFields(map[string]any{
		"received": stats.Received,
		"inserted": stats.Inserted,
		"updated":  stats.Updated,
	}).Info("Ingested listings batch")
	return stats, nil
}

// Claim atomically assigns up to n unassigned listings to the agent and
// returns the assigned ids partitioned by category.
func (i *Ingestor) Claim(ctx context.Context, agent string, n int) (map[models.Category][]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "Ingestor.Claim")
	defer span.End()

	claimed, err := i.store.ClaimForAgent(ctx, agent, n)
	if err != nil {
		return nil, err
	}

	partitioned := make(map[models.Category][]int64)
	for _, listing := range claimed {
		cat := models.CategoryC
		if listing.Category != nil {
			cat = *listing.Category
		}
		partitioned[cat] = append(partitioned[cat], listing.FeedID)
		metrics.RecordClaim(string(cat))
	}
	return partitioned, nil
}

// Archive flags listings whose source adverts are gone.
func (i *Ingestor) Archive(ctx context.Context, feedIDs []int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "Ingestor.Archive")
	defer span.End()

	return i.store.MarkArchived(ctx, feedIDs)
}

// categorize derives the category for new listings from their complex
// name, sale price and area using the shared reference sheet.
func (i *Ingestor) categorize(ctx context.Context, listings []*models.ParsedProperty) {
	if len(listings) == 0 {
		return
	}

	refs, err := i.reference.Entries(ctx)
	if err != nil {
		i.logger.WithContext(ctx).WithError(err).Warn("Reference entries unavailable, ingesting without categories")
		refs = map[string]models.ReferenceEntry{}
	}

	for _, listing := range listings {
		if listing.Category != nil {
			continue
		}

		var floor, ceiling, score *float64
		if entry, ok := reference.EntryFor(refs, listing.Complex); ok {
			score = entry.Score
			floor, ceiling = reference.Band(entry, listing.Area)
		}

		derived := category.Calculate(floatPtr(listing.SellPrice), floor, ceiling, score)
		listing.Category = &derived
	}
}

func floatPtr(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
