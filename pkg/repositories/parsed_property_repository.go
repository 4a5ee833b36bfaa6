package repositories

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/tulip/pkg/database"
	"github.com/Ramsey-B/tulip/pkg/metrics"
	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

const parsedPropertiesTable = "parsed_properties"

// bulkChunkSize caps the number of rows per bulk insert statement
const bulkChunkSize = 200

var parsedPropertyStruct = database.NewStruct(new(models.ParsedProperty))

// insertColumns is the column list for feed upserts. Workflow columns are
// included on insert (new rows start in their initial state) but excluded
// from the conflict update so operator edits survive re-ingestion.
var insertColumns = []string{
	"feed_id", "site_id", "krisha_date", "object_type", "address", "complex",
	"builder", "flat_type", "property_class", "condition", "sell_price",
	"sell_price_per_m2", "house_num", "floor_num", "floor_count", "room_count",
	"area", "ceiling_height", "year_built", "wall_type", "phones",
	"description", "status", "category", "created_at", "updated_at",
}

// descriptiveColumns are refreshed from the feed on every upsert
var descriptiveColumns = []string{
	"site_id", "krisha_date", "object_type", "address", "complex", "builder",
	"flat_type", "property_class", "condition", "sell_price",
	"sell_price_per_m2", "house_num", "floor_num", "floor_count",
	"room_count", "area", "ceiling_height", "year_built", "wall_type",
	"phones", "description",
}

// ParsedPropertyRepository handles database operations for scraped listings
type ParsedPropertyRepository struct {
	*Repository
}

// NewParsedPropertyRepository creates a new parsed property repository
func NewParsedPropertyRepository(db database.DB, logger ectologger.Logger) *ParsedPropertyRepository {
	return &ParsedPropertyRepository{
		Repository: NewRepository(db, logger),
	}
}

// ExistingFeedIDs returns the subset of the given feed ids already stored,
// in a single membership query.
func (r *ParsedPropertyRepository) ExistingFeedIDs(ctx context.Context, feedIDs []int64) (map[int64]bool, error) {
	ctx, span := tracing.StartSpan(ctx, "ParsedPropertyRepository.ExistingFeedIDs")
	defer span.End()

	existing := make(map[int64]bool, len(feedIDs))
	if len(feedIDs) == 0 {
		return existing, nil
	}

	var ids []int64
	err := r.DB().SelectContext(ctx, &ids,
		"SELECT feed_id FROM "+parsedPropertiesTable+" WHERE feed_id = ANY($1)", pq.Array(feedIDs))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to query existing feed ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to query existing feed ids")
	}

	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}

// BulkUpsert writes feed rows keyed on feed_id. Descriptive columns are
// refreshed on conflict; workflow columns keep their stored values. Large
// inputs are chunked to keep statements bounded.
func (r *ParsedPropertyRepository) BulkUpsert(ctx context.Context, listings []*models.ParsedProperty) (inserted, updated int, err error) {
	ctx, span := tracing.StartSpan(ctx, "ParsedPropertyRepository.BulkUpsert")
	defer span.End()

	began := time.Now()
	defer func() { metrics.RecordDatabaseQuery("listing_bulk_upsert", time.Since(began).Seconds()) }()

	for start := 0; start < len(listings); start += bulkChunkSize {
		end := start + bulkChunkSize
		if end > len(listings) {
			end = len(listings)
		}

		chunkInserted, chunkUpdated, err := r.upsertChunk(ctx, listings[start:end])
		if err != nil {
			return inserted, updated, err
		}
		inserted += chunkInserted
		updated += chunkUpdated
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"inserted": inserted,
		"updated":  updated,
	}).Infof("Upserted %d listings", len(listings))
	return inserted, updated, nil
}

func (r *ParsedPropertyRepository) upsertChunk(ctx context.Context, chunk []*models.ParsedProperty) (inserted, updated int, err error) {
	ib := database.NewInsertBuilder()
	ib.InsertInto(parsedPropertiesTable).Cols(insertColumns...)

	for _, listing := range chunk {
		status := listing.Status
		if status == "" {
			status = models.ListingStatusNew
		}
		ib.Values(
			listing.FeedID, listing.SiteID, listing.KrishaDate, listing.ObjectType,
			listing.Address, listing.Complex, listing.Builder, listing.FlatType,
			listing.PropertyClass, listing.Condition, listing.SellPrice,
			listing.SellPricePerM2, listing.HouseNum, listing.FloorNum,
			listing.FloorCount, listing.RoomCount, listing.Area,
			listing.CeilingHeight, listing.YearBuilt, listing.WallType,
			listing.Phones, listing.Description, status, listing.Category,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"),
		)
	}

	ub := ib.OnConflict("feed_id")
	assignments := make([]string, 0, len(descriptiveColumns)+1)
	for _, col := range descriptiveColumns {
		assignments = append(assignments, ub.Assign(col, database.Excluded(col)))
	}
	assignments = append(assignments, ub.Assign("updated_at", sqlbuilder.Raw("NOW()")))
	ub.Set(assignments...)

	ib.Returning("(xmax = 0) AS inserted")

	query, args := ib.Build()
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to bulk upsert listings")
		return 0, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to bulk upsert listings")
	}
	defer rows.Close()

	for rows.Next() {
		var wasInserted bool
		if err := rows.Scan(&wasInserted); err != nil {
			return inserted, updated, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan upsert result")
		}
		if wasInserted {
			inserted++
		} else {
			updated++
		}
	}
	if err := rows.Err(); err != nil {
		return inserted, updated, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read upsert results")
	}
	return inserted, updated, nil
}

// claimQuota computes the per-category targets for a claim of n rows.
// Roughly half A, a third B, the rest C; shortfalls in a higher category
// spill into the next one down during the claim itself.
func claimQuota(n int) map[models.Category]int {
	a := n / 2
	b := n / 3
	return map[models.Category]int{
		models.CategoryA: a,
		models.CategoryB: b,
		models.CategoryC: n - a - b,
	}
}

// ClaimForAgent atomically claims up to n unassigned listings for the
// agent. Rows are taken per category quota with skip-locked selection so
// concurrent claimants partition the pool instead of blocking; shortfall
// in a category rolls over to the lower ones. Assignment time and status
// are stamped in the same transaction.
func (r *ParsedPropertyRepository) ClaimForAgent(ctx context.Context, agent string, n int) ([]*models.ParsedProperty, error) {
	ctx, span := tracing.StartSpan(ctx, "ParsedPropertyRepository.ClaimForAgent")
	defer span.End()

	if agent == "" {
		return nil, BadRequest("agent is required")
	}
	if n <= 0 {
		return nil, BadRequest("claim count must be positive")
	}

	began := time.Now()
	defer func() { metrics.RecordDatabaseQuery("listing_claim", time.Since(began).Seconds()) }()

	txCtx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin claim transaction")
	}
	defer tx.Rollback(ctx)

	quota := claimQuota(n)
	claimed := make([]*models.ParsedProperty, 0, n)
	carry := 0
	for _, category := range []models.Category{models.CategoryA, models.CategoryB, models.CategoryC} {
		want := quota[category] + carry
		if want == 0 {
			continue
		}

		batch, err := r.claimCategory(txCtx, tx, agent, category, want)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, batch...)
		carry = want - len(batch)
	}

	// top up from uncategorized rows when the categorized pool ran dry
	if remaining := n - len(claimed); remaining > 0 {
		batch, err := r.claimUncategorized(txCtx, tx, agent, remaining)
		if err != nil {
			return nil, err
		}
		claimed = append(claimed, batch...)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit claim")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"agent":   agent,
		"claimed": len(claimed),
	}).Info("Claimed listings for agent")
	return claimed, nil
}

func (r *ParsedPropertyRepository) claimCategory(ctx context.Context, tx database.Tx, agent string, category models.Category, limit int) ([]*models.ParsedProperty, error) {
	return r.claimWhere(ctx, tx, agent, "category = $1", []any{string(category)}, limit)
}

func (r *ParsedPropertyRepository) claimUncategorized(ctx context.Context, tx database.Tx, agent string, limit int) ([]*models.ParsedProperty, error) {
	return r.claimWhere(ctx, tx, agent, "category IS NULL", nil, limit)
}

func (r *ParsedPropertyRepository) claimWhere(ctx context.Context, tx database.Tx, agent string, condition string, conditionArgs []any, limit int) ([]*models.ParsedProperty, error) {
	args := append([]any{}, conditionArgs...)
	args = append(args, models.ListingStatusNew, limit, agent, models.ListingStatusAssigned, time.Now().UTC())

	base := len(conditionArgs)
	query := `
		WITH picked AS (
			SELECT id FROM ` + parsedPropertiesTable + `
			WHERE ` + condition + ` AND status = $` + strconv.Itoa(base+1) + ` AND assigned_agent IS NULL
			ORDER BY created_at
			LIMIT $` + strconv.Itoa(base+2) + `
			FOR UPDATE SKIP LOCKED
		)
		UPDATE ` + parsedPropertiesTable + ` SET
			assigned_agent = $` + strconv.Itoa(base+3) + `,
			status = $` + strconv.Itoa(base+4) + `,
			assigned_at = $` + strconv.Itoa(base+5) + `,
			updated_at = NOW()
		WHERE id IN (SELECT id FROM picked)
		RETURNING *`

	rows, err := tx.QueryxContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"agent": agent,
		}).Error("failed to claim listings")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to claim listings")
	}
	defer rows.Close()

	var claimed []*models.ParsedProperty
	for rows.Next() {
		var listing models.ParsedProperty
		if err := rows.StructScan(&listing); err != nil {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to scan claimed listing")
		}
		claimed = append(claimed, &listing)
	}
	if err := rows.Err(); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read claimed listings")
	}
	return claimed, nil
}

// MarkArchived flags listings whose source advert disappeared.
func (r *ParsedPropertyRepository) MarkArchived(ctx context.Context, feedIDs []int64) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "ParsedPropertyRepository.MarkArchived")
	defer span.End()

	if len(feedIDs) == 0 {
		return 0, nil
	}

	result, err := r.DB().ExecContext(ctx,
		"UPDATE "+parsedPropertiesTable+" SET status = $1, updated_at = NOW() WHERE feed_id = ANY($2)",
		models.ListingStatusArchived, pq.Array(feedIDs))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to archive listings")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to archive listings")
	}

	archived, _ := result.RowsAffected()
	r.logger.WithContext(ctx).Infof("Archived %d listings", archived)
	return int(archived), nil
}

// ListByStatus returns listings in a given workflow state.
func (r *ParsedPropertyRepository) ListByStatus(ctx context.Context, status models.ListingStatus, limit int) ([]*models.ParsedProperty, error) {
	ctx, span := tracing.StartSpan(ctx, "ParsedPropertyRepository.ListByStatus")
	defer span.End()

	sb := parsedPropertyStruct.SelectFrom(parsedPropertiesTable)
	sb.Where(sb.Equal("status", string(status)))
	sb.OrderBy("created_at").Limit(limit)

	query, args := sb.Build()
	var listings []*models.ParsedProperty
	if err := r.DB().SelectContext(ctx, &listings, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list listings by status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list listings")
	}
	return listings, nil
}
