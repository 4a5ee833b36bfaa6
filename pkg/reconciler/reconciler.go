package reconciler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/tulip/pkg/category"
	"github.com/Ramsey-B/tulip/pkg/crm"
	"github.com/Ramsey-B/tulip/pkg/kafka"
	"github.com/Ramsey-B/tulip/pkg/metrics"
	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/reference"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

// deleteGuardRatio is the fast-resync circuit breaker: a delete set larger
// than this share of the store is refused outright. Protects against a
// corrupted or empty authoritative read wiping the store.
const deleteGuardRatio = 0.5

// ErrSyncInProgress is returned when a cycle is requested while another
// one is still running on this instance.
var ErrSyncInProgress = fmt.Errorf("a sync cycle is already in progress")

// DealSource loads the authoritative deal rows.
type DealSource interface {
	Load(ctx context.Context) ([]*models.Property, error)
}

// Enricher resolves CRM data for deal rows.
type Enricher interface {
	FetchBatch(ctx context.Context, crmIDs []string) map[string]crm.Enrichment
}

// ReferenceSource serves the pricing reference map keyed by normalized
// complex name.
type ReferenceSource interface {
	Entries(ctx context.Context) (map[string]models.ReferenceEntry, error)
}

// PropertyStore is the persistence surface the reconciler writes through.
type PropertyStore interface {
	ListIDs(ctx context.Context) ([]string, error)
	SyncUpsert(ctx context.Context, properties []*models.Property) (created, updated, errored int)
	InsertNew(ctx context.Context, properties []*models.Property) (int, error)
	DeleteByIDs(ctx context.Context, crmIDs []string) (int, error)
}

// SyncStats summarizes one reconciliation cycle.
type SyncStats struct {
	Created int  `json:"created"`
	Updated int  `json:"updated"`
	Deleted int  `json:"deleted"`
	Errors  int  `json:"errors"`
	Skipped bool `json:"skipped"`
	// DeleteSkipped reports that the fast-resync delete guard fired
	DeleteSkipped bool `json:"delete_skipped"`
}

// Reconciler drives sync cycles between the deals sheet, the CRM and the
// property store. At most one cycle runs per instance at a time.
type Reconciler struct {
	deals     DealSource
	enricher  Enricher
	reference ReferenceSource
	store     PropertyStore
	producer  *kafka.Producer
	logger    ectologger.Logger

	running atomic.Bool
}

func New(deals DealSource, enricher Enricher, reference ReferenceSource, store PropertyStore, producer *kafka.Producer, logger ectologger.Logger) *Reconciler {
	return &Reconciler{
		deals:     deals,
		enricher:  enricher,
		reference: reference,
		store:     store,
		producer:  producer,
		logger:    logger,
	}
}

// InProgress reports whether a cycle is currently running.
func (r *Reconciler) InProgress() bool {
	return r.running.Load()
}

// FullResync reloads every deal from the authoritative source, enriches
// and recategorizes all of them, rewrites the store and removes rows whose
// keys vanished from the source.
func (r *Reconciler) FullResync(ctx context.Context) (SyncStats, error) {
	if !r.running.CompareAndSwap(false, true) {
		return SyncStats{Skipped: true}, ErrSyncInProgress
	}
	defer r.running.Store(false)

	ctx, span := tracing.StartSpan(ctx, "Reconciler.FullResync")
	defer span.End()

	started := time.Now()
	stats := SyncStats{}

	deals, err := r.deals.Load(ctx)
	if err != nil {
		metrics.RecordSyncCycle("full", "failed", time.Since(started).Seconds())
		return stats, fmt.Errorf("full resync aborted: %w", err)
	}

	r.enrich(ctx, deals)
	r.categorize(ctx, deals)

	stats.Created, stats.Updated, stats.Errors = r.store.SyncUpsert(ctx, deals)

	deleted, err := r.deleteMissing(ctx, deals)
	if err != nil {
		stats.Errors++
		r.logger.WithContext(ctx).WithError(err).Error("failed to delete missing properties")
	}
	stats.Deleted = deleted

	r.finish(ctx, "full", started, stats)
	return stats, nil
}

// FastResync computes the key set difference between source and store:
// brand-new keys are enriched, categorized and inserted; vanished keys are
// deleted unless the delete set would exceed half the store. Existing rows
// are never touched.
func (r *Reconciler) FastResync(ctx context.Context) (SyncStats, error) {
	if !r.running.CompareAndSwap(false, true) {
		return SyncStats{Skipped: true}, ErrSyncInProgress
	}
	defer r.running.Store(false)

	ctx, span := tracing.StartSpan(ctx, "Reconciler.FastResync")
	defer span.End()

	started := time.Now()
	stats := SyncStats{}

	deals, err := r.deals.Load(ctx)
	if err != nil || len(deals) == 0 {
		// a failed or empty authoritative read must not cascade into deletes
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Warn("Fast resync skipped: source load failed")
		} else {
			r.logger.WithContext(ctx).Warn("Fast resync skipped: source is empty")
		}
		stats.Skipped = true
		metrics.RecordSyncCycle("fast", "skipped", time.Since(started).Seconds())
		return stats, nil
	}

	storedIDs, err := r.store.ListIDs(ctx)
	if err != nil {
		metrics.RecordSyncCycle("fast", "failed", time.Since(started).Seconds())
		return stats, fmt.Errorf("fast resync aborted: %w", err)
	}

	stored := make(map[string]bool, len(storedIDs))
	for _, id := range storedIDs {
		stored[id] = true
	}

	sourceIDs := make(map[string]bool, len(deals))
	var newDeals []*models.Property
	for _, deal := range deals {
		sourceIDs[deal.CRMID] = true
		if !stored[deal.CRMID] {
			newDeals = append(newDeals, deal)
		}
	}

	if len(newDeals) > 0 {
		r.enrich(ctx, newDeals)
		r.categorize(ctx, newDeals)

		created, err := r.store.InsertNew(ctx, newDeals)
		if err != nil {
			stats.Errors++
			r.logger.WithContext(ctx).WithError(err).Error("failed to insert new properties")
		}
		stats.Created = created
	}

	var missing []string
	for _, id := range storedIDs {
		if !sourceIDs[id] {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		if float64(len(missing)) > deleteGuardRatio*float64(len(storedIDs)) {
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"missing": len(missing),
				"stored":  len(storedIDs),
			}).Warn("Fast resync delete refused: delete set exceeds half the store")
			stats.DeleteSkipped = true
		} else {
			deleted, err := r.store.DeleteByIDs(ctx, missing)
			if err != nil {
				stats.Errors++
				r.logger.WithContext(ctx).WithError(err).Error("failed to delete missing properties")
			}
			stats.Deleted = deleted
		}
	}

	r.finish(ctx, "fast", started, stats)
	return stats, nil
}

// enrich merges CRM data into the deal rows. Only non-empty values
// replace what came from the sheet; a failed lookup leaves the row as-is.
func (r *Reconciler) enrich(ctx context.Context, deals []*models.Property) {
	if len(deals) == 0 {
		return
	}

	ids := make([]string, 0, len(deals))
	for _, deal := range deals {
		ids = append(ids, deal.CRMID)
	}

	enrichments := r.enricher.FetchBatch(ctx, ids)
	for _, deal := range deals {
		enrichment := enrichments[deal.CRMID]
		if enrichment.Address != "" {
			deal.Address = enrichment.Address
		}
		if enrichment.Complex != "" {
			deal.Complex = enrichment.Complex
		}
		if enrichment.Price != nil {
			deal.ContractPrice = enrichment.Price
		}
		if enrichment.Area != nil {
			deal.Area = enrichment.Area
		}
	}
}

// categorize derives price band, score and category for each deal from
// the reference sheet. Reference load failure degrades to score-free
// categorization rather than failing the cycle.
func (r *Reconciler) categorize(ctx context.Context, deals []*models.Property) {
	refs, err := r.reference.Entries(ctx)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Reference entries unavailable, categorizing without price bands")
		refs = map[string]models.ReferenceEntry{}
	}

	for _, deal := range deals {
		deal.FloorPrice, deal.CeilingPrice, deal.Score = nil, nil, nil

		if entry, ok := reference.EntryFor(refs, deal.Complex); ok {
			deal.Score = entry.Score
			floor, ceiling := reference.Band(entry, deal.Area)
			if floor != nil {
				f := int64(*floor)
				deal.FloorPrice = &f
			}
			if ceiling != nil {
				c := int64(*ceiling)
				deal.CeilingPrice = &c
			}
		}

		derived := category.Calculate(
			floatPtr(deal.ContractPrice), floatPtr(deal.FloorPrice), floatPtr(deal.CeilingPrice), deal.Score)
		deal.Category = &derived
	}
}

func (r *Reconciler) deleteMissing(ctx context.Context, deals []*models.Property) (int, error) {
	storedIDs, err := r.store.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	sourceIDs := make(map[string]bool, len(deals))
	for _, deal := range deals {
		sourceIDs[deal.CRMID] = true
	}

	var missing []string
	for _, id := range storedIDs {
		if !sourceIDs[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	return r.store.DeleteByIDs(ctx, missing)
}

func (r *Reconciler) finish(ctx context.Context, mode string, started time.Time, stats SyncStats) {
	duration := time.Since(started)

	metrics.RecordSyncCycle(mode, "completed", duration.Seconds())
	metrics.RecordSyncRows(mode, stats.Created, stats.Updated, stats.Deleted)

	if err := r.producer.PublishSyncEvent(ctx, &kafka.SyncEventMessage{
		Type:    "sync.completed",
		Mode:    mode,
		Created: stats.Created,
		Updated: stats.Updated,
		Deleted: stats.Deleted,
		Errors:  stats.Errors,
		Skipped: stats.Skipped,
	}); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Failed to publish sync event")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"mode":     mode,
		"created":  stats.Created,
		"updated":  stats.Updated,
		"deleted":  stats.Deleted,
		"errors":   stats.Errors,
		"duration": duration.String(),
	}).Info("Sync cycle finished")
}

func floatPtr(v *int64) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
