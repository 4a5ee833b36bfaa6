package reconciler_test

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/tulip/pkg/crm"
	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/reconciler"
)

type fakeDeals struct {
	deals []*models.Property
	err   error
	block chan struct{}
}

func (f *fakeDeals) Load(_ context.Context) ([]*models.Property, error) {
	if f.block != nil {
		<-f.block
	}
	return f.deals, f.err
}

type fakeEnricher struct {
	data map[string]crm.Enrichment
}

func (f *fakeEnricher) FetchBatch(_ context.Context, ids []string) map[string]crm.Enrichment {
	out := make(map[string]crm.Enrichment, len(ids))
	for _, id := range ids {
		out[id] = f.data[id]
	}
	return out
}

type fakeReference struct {
	entries map[string]models.ReferenceEntry
}

func (f *fakeReference) Entries(_ context.Context) (map[string]models.ReferenceEntry, error) {
	return f.entries, nil
}

type fakeStore struct {
	mu       sync.Mutex
	rows     map[string]*models.Property
	inserted []*models.Property
	deleted  []string
}

func newFakeStore(ids ...string) *fakeStore {
	rows := make(map[string]*models.Property, len(ids))
	for _, id := range ids {
		rows[id] = &models.Property{CRMID: id}
	}
	return &fakeStore{rows: rows}
}

func (f *fakeStore) ListIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.rows))
	for id := range f.rows {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) SyncUpsert(_ context.Context, properties []*models.Property) (created, updated, errored int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range properties {
		if _, ok := f.rows[p.CRMID]; ok {
			updated++
		} else {
			created++
		}
		f.rows[p.CRMID] = p
	}
	return created, updated, 0
}

func (f *fakeStore) InsertNew(_ context.Context, properties []*models.Property) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := 0
	for _, p := range properties {
		if _, ok := f.rows[p.CRMID]; !ok {
			f.rows[p.CRMID] = p
			f.inserted = append(f.inserted, p)
			created++
		}
	}
	return created, nil
}

func (f *fakeStore) DeleteByIDs(_ context.Context, ids []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deleted := 0
	for _, id := range ids {
		if _, ok := f.rows[id]; ok {
			delete(f.rows, id)
			f.deleted = append(f.deleted, id)
			deleted++
		}
	}
	return deleted, nil
}

func deal(crmID string) *models.Property {
	return &models.Property{CRMID: crmID}
}

func newReconciler(deals *fakeDeals, enricher *fakeEnricher, refs *fakeReference, store *fakeStore) *reconciler.Reconciler {
	if enricher == nil {
		enricher = &fakeEnricher{}
	}
	if refs == nil {
		refs = &fakeReference{entries: map[string]models.ReferenceEntry{}}
	}
	return reconciler.New(deals, enricher, refs, store, nil, zapadapter.NewZapEctoLogger(zap.NewNop(), nil))
}

func TestFullResync(t *testing.T) {
	price := int64(30_000_000)
	area := 60.0
	floorRate, ceilingRate, score := 400_000.0, 600_000.0, 9.0

	deals := &fakeDeals{deals: []*models.Property{deal("crm-1"), deal("crm-2")}}
	enricher := &fakeEnricher{data: map[string]crm.Enrichment{
		"crm-1": {Address: "Абая дом 5", Complex: "ЖК Даулетти", Price: &price, Area: &area},
	}}
	refs := &fakeReference{entries: map[string]models.ReferenceEntry{
		"даулетти": {Name: "ЖК Даулетти", FloorPricePerM2: &floorRate, CeilingPricePerM2: &ceilingRate, Score: &score},
	}}
	store := newFakeStore("crm-2", "crm-stale")

	stats, err := newReconciler(deals, enricher, refs, store).FullResync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, []string{"crm-stale"}, store.deleted)

	enriched := store.rows["crm-1"]
	assert.Equal(t, "ЖК Даулетти", enriched.Complex)
	require.NotNil(t, enriched.FloorPrice)
	assert.Equal(t, int64(24_000_000), *enriched.FloorPrice)
	require.NotNil(t, enriched.CeilingPrice)
	assert.Equal(t, int64(36_000_000), *enriched.CeilingPrice)
	require.NotNil(t, enriched.Category)
	// in band with score above 8
	assert.Equal(t, models.CategoryA, *enriched.Category)
}

func TestFullResync_SourceFailureAborts(t *testing.T) {
	deals := &fakeDeals{err: fmt.Errorf("sheet unavailable")}
	store := newFakeStore("crm-1")

	_, err := newReconciler(deals, nil, nil, store).FullResync(context.Background())
	require.Error(t, err)

	// nothing deleted on a failed load
	assert.Empty(t, store.deleted)
}

func TestFastResync_InsertsAndDeletes(t *testing.T) {
	deals := &fakeDeals{deals: []*models.Property{deal("crm-1"), deal("crm-2"), deal("crm-3")}}
	store := newFakeStore("crm-1", "crm-2", "crm-gone")

	stats, err := newReconciler(deals, nil, nil, store).FastResync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 0, stats.Updated)
	assert.Equal(t, 1, stats.Deleted)
	assert.False(t, stats.DeleteSkipped)
	assert.Equal(t, []string{"crm-gone"}, store.deleted)

	// existing rows are never rewritten by a fast resync
	require.Len(t, store.inserted, 1)
	assert.Equal(t, "crm-3", store.inserted[0].CRMID)
}

func TestFastResync_EmptySourceSkips(t *testing.T) {
	deals := &fakeDeals{deals: nil}
	store := newFakeStore("crm-1", "crm-2")

	stats, err := newReconciler(deals, nil, nil, store).FastResync(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.Skipped)
	assert.Zero(t, stats.Deleted)
	assert.Empty(t, store.deleted)
}

func TestFastResync_FailedSourceSkips(t *testing.T) {
	deals := &fakeDeals{err: fmt.Errorf("rate limited")}
	store := newFakeStore("crm-1", "crm-2")

	stats, err := newReconciler(deals, nil, nil, store).FastResync(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.Skipped)
	assert.Empty(t, store.deleted)
}

func TestFastResync_DeleteGuard(t *testing.T) {
	// store has 100 keys, source yields 40 of them plus 1 new: 60% would
	// be deleted, which trips the guard; the new key is still created
	storeIDs := make([]string, 100)
	for i := range storeIDs {
		storeIDs[i] = fmt.Sprintf("crm-%d", i)
	}
	store := newFakeStore(storeIDs...)

	sourceDeals := make([]*models.Property, 0, 41)
	for i := 0; i < 40; i++ {
		sourceDeals = append(sourceDeals, deal(fmt.Sprintf("crm-%d", i)))
	}
	sourceDeals = append(sourceDeals, deal("crm-new"))
	deals := &fakeDeals{deals: sourceDeals}

	stats, err := newReconciler(deals, nil, nil, store).FastResync(context.Background())
	require.NoError(t, err)

	assert.True(t, stats.DeleteSkipped)
	assert.Zero(t, stats.Deleted)
	assert.Empty(t, store.deleted)
	assert.Equal(t, 1, stats.Created)
}

func TestReconciler_RejectsConcurrentCycles(t *testing.T) {
	block := make(chan struct{})
	deals := &fakeDeals{deals: []*models.Property{deal("crm-1")}, block: block}
	store := newFakeStore()
	r := newReconciler(deals, nil, nil, store)

	done := make(chan error, 1)
	go func() {
		_, err := r.FullResync(context.Background())
		done <- err
	}()

	// wait until the first cycle is inside Load
	for !r.InProgress() {
		runtime.Gosched()
	}

	stats, err := r.FastResync(context.Background())
	assert.ErrorIs(t, err, reconciler.ErrSyncInProgress)
	assert.True(t, stats.Skipped)

	close(block)
	require.NoError(t, <-done)
}
