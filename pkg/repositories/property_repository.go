package repositories

import (
	"context"
	"net/http"
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

const propertiesTable = "properties"

// syncBatchSize is the number of rows committed per transaction during a
// full resync. A failed batch is rolled back and the sync moves on to the
// next one so a single bad batch cannot sink the whole cycle.
const syncBatchSize = 100

var propertyStruct = database.NewStruct(new(models.Property))

// PropertyRepository handles database operations for deal properties
type PropertyRepository struct {
	*Repository
}

// NewPropertyRepository creates a new property repository
func NewPropertyRepository(db database.DB, logger ectologger.Logger) *PropertyRepository {
	return &PropertyRepository{
		Repository: NewRepository(db, logger),
	}
}

// ListIDs returns the CRM ids of every stored property.
func (r *PropertyRepository) ListIDs(ctx context.Context) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.ListIDs")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("crm_id").From(propertiesTable)

	query, args := sb.Build()
	var ids []string
	if err := r.DB().SelectContext(ctx, &ids, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list property ids")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list property ids")
	}
	return ids, nil
}

// Count returns the number of stored properties.
func (r *PropertyRepository) Count(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.Count")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select("COUNT(*)").From(propertiesTable)

	query, args := sb.Build()
	var count int
	if err := r.DB().GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to count properties")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count properties")
	}
	return count, nil
}

// GetByID retrieves a single property by CRM id.
func (r *PropertyRepository) GetByID(ctx context.Context, crmID string) (*models.Property, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.GetByID")
	defer span.End()

	sb := propertyStruct.SelectFrom(propertiesTable)
	sb.Where(sb.Equal("crm_id", crmID))

	query, args := sb.Build()
	var property models.Property
	if err := r.DB().GetContext(ctx, &property, query, args...); err != nil {
		return nil, NotFound("property %s does not exist", crmID)
	}
	return &property, nil
}

// SyncUpsert writes deal rows from a sync cycle in batches. Each row is
// upserted individually so one malformed row only costs itself; each batch
// is committed on its own and a failed commit rolls back that batch only.
// Updates touch deal-owned columns exclusively.
func (r *PropertyRepository) SyncUpsert(ctx context.Context, properties []*models.Property) (created, updated, errored int) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.SyncUpsert")
	defer span.End()

	start := time.Now()
	defer func() { metrics.RecordDatabaseQuery("property_sync_upsert", time.Since(start).Seconds()) }()

	for start := 0; start < len(properties); start += syncBatchSize {
		end := start + syncBatchSize
		if end > len(properties) {
			end = len(properties)
		}

		batchCreated, batchUpdated, batchErrored := r.upsertBatch(ctx, properties[start:end])
		created += batchCreated
		updated += batchUpdated
		errored += batchErrored
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"created": created,
		"updated": updated,
		"errors":  errored,
	}).Infof("Upserted %d properties", len(properties))
	return created, updated, errored
}

func (r *PropertyRepository) upsertBatch(ctx context.Context, batch []*models.Property) (created, updated, errored int) {
	txCtx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to begin sync batch transaction")
		return 0, 0, len(batch)
	}
	defer tx.Rollback(ctx)

	for _, property := range batch {
		// savepoint per row so a bad row doesn't abort the batch
		if _, err := tx.ExecContext(txCtx, "SAVEPOINT sync_row"); err != nil {
			errored += len(batch) - created - updated - errored
			break
		}

		inserted, err := r.upsertOne(txCtx, tx, property)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"crm_id": property.CRMID,
			}).Error("failed to upsert property")
			errored++
			if _, err := tx.ExecContext(txCtx, "ROLLBACK TO SAVEPOINT sync_row"); err != nil {
				break
			}
			continue
		}

		if _, err := tx.ExecContext(txCtx, "RELEASE SAVEPOINT sync_row"); err != nil {
			break
		}
		if inserted {
			created++
		} else {
			updated++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to commit sync batch, rolling back")
		return 0, 0, len(batch)
	}
	return created, updated, errored
}

func (r *PropertyRepository) upsertOne(ctx context.Context, tx database.Tx, property *models.Property) (inserted bool, err error) {
	cols := append([]string{"crm_id"}, models.DealColumns()...)
	cols = append(cols, "last_modified_by", "created_at", "updated_at")

	values := append([]any{property.CRMID}, property.ToStorageRow()...)
	values = append(values, models.ModifiedBySheet, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))

	ib := database.NewInsertBuilder()
	ib.InsertInto(propertiesTable).Cols(cols...).Values(values...)

	ub := ib.OnConflict("crm_id")
	assignments := make([]string, 0, len(models.DealColumns())+2)
	for _, col := range models.DealColumns() {
		assignments = append(assignments, ub.Assign(col, database.Excluded(col)))
	}
	assignments = append(assignments,
		ub.Assign("last_modified_by", models.ModifiedBySheet),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Set(assignments...)

	// xmax = 0 only holds for freshly inserted rows
	ib.Returning("(xmax = 0) AS inserted")

	query, args := ib.Build()
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&inserted); err != nil {
		return false, err
	}
	return inserted, nil
}

// InsertNew inserts rows that are known to be absent from the store. Rows
// that turn out to exist after all are left untouched.
func (r *PropertyRepository) InsertNew(ctx context.Context, properties []*models.Property) (created int, err error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.InsertNew")
	defer span.End()

	if len(properties) == 0 {
		return 0, nil
	}

	txCtx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin insert transaction")
	}
	defer tx.Rollback(ctx)

	cols := append([]string{"crm_id"}, models.DealColumns()...)
	cols = append(cols, "last_modified_by", "created_at", "updated_at")

	for _, property := range properties {
		values := append([]any{property.CRMID}, property.ToStorageRow()...)
		values = append(values, models.ModifiedBySheet, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))

		ib := database.NewInsertBuilder()
		ib.InsertInto(propertiesTable).Cols(cols...).Values(values...).OnConflictDoNothing()

		query, args := ib.Build()
		result, err := tx.ExecContext(txCtx, query, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"crm_id": property.CRMID,
			}).Error("failed to insert property")
			return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert properties")
		}
		if rows, err := result.RowsAffected(); err == nil {
			created += int(rows)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit property inserts")
	}
	return created, nil
}

// DeleteByIDs removes the properties with the given CRM ids.
func (r *PropertyRepository) DeleteByIDs(ctx context.Context, crmIDs []string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "PropertyRepository.DeleteByIDs")
	defer span.End()

	if len(crmIDs) == 0 {
		return 0, nil
	}

	result, err := r.DB().ExecContext(ctx,
		"DELETE FROM "+propertiesTable+" WHERE crm_id = ANY($1)", pq.Array(crmIDs))
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"count": len(crmIDs),
		}).Error("failed to delete properties")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete properties")
	}

	deleted, _ := result.RowsAffected()
	r.logger.WithContext(ctx).Infof("Deleted %d properties", deleted)
	return int(deleted), nil
}
