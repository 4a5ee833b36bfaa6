package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/repositories"
)

func testListing(feedID int64) *models.ParsedProperty {
	price := int64(30_000_000)
	area := 55.0
	category := models.CategoryB
	return &models.ParsedProperty{
		FeedID:     feedID,
		ObjectType: "квартира",
		Address:    "Абая дом 5",
		Complex:    "ЖК Даулетти",
		SellPrice:  &price,
		Area:       &area,
		Category:   &category,
	}
}

func cleanupListings(t *testing.T, repo *repositories.ParsedPropertyRepository, feedIDs []int64) {
	t.Cleanup(func() {
		_, _ = repo.DB().ExecContext(context.Background(),
			"DELETE FROM parsed_properties WHERE feed_id = ANY($1)", pq.Array(feedIDs))
	})
}

func TestParsedPropertyRepository_BulkUpsert(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewParsedPropertyRepository(db, getTestLogger())
	ctx := context.Background()

	feedIDs := []int64{910001, 910002}
	cleanupListings(t, repo, feedIDs)

	inserted, updated, err := repo.BulkUpsert(ctx, []*models.ParsedProperty{
		testListing(feedIDs[0]), testListing(feedIDs[1]),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, updated)

	existing, err := repo.ExistingFeedIDs(ctx, append(feedIDs, 999999))
	require.NoError(t, err)
	assert.True(t, existing[feedIDs[0]])
	assert.True(t, existing[feedIDs[1]])
	assert.False(t, existing[999999])

	// re-ingest refreshes descriptive fields
	refreshed := testListing(feedIDs[0])
	newPrice := int64(31_000_000)
	refreshed.SellPrice = &newPrice

	inserted, updated, err = repo.BulkUpsert(ctx, []*models.ParsedProperty{refreshed})
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 1, updated)
}

func TestParsedPropertyRepository_BulkUpsert_PreservesWorkflowState(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewParsedPropertyRepository(db, getTestLogger())
	ctx := context.Background()

	feedID := int64(910010)
	cleanupListings(t, repo, []int64{feedID})

	_, _, err := repo.BulkUpsert(ctx, []*models.ParsedProperty{testListing(feedID)})
	require.NoError(t, err)

	claimed, err := repo.ClaimForAgent(ctx, "agent-a", 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, models.ListingStatusAssigned, claimed[0].Status)
	require.NotNil(t, claimed[0].AssignedAgent)
	assert.Equal(t, "agent-a", *claimed[0].AssignedAgent)
	assert.NotNil(t, claimed[0].AssignedAt)

	// a feed refresh must not clear the assignment
	_, updated, err := repo.BulkUpsert(ctx, []*models.ParsedProperty{testListing(feedID)})
	require.NoError(t, err)
	require.Equal(t, 1, updated)

	listings, err := repo.ListByStatus(ctx, models.ListingStatusAssigned, 100)
	require.NoError(t, err)

	var found *models.ParsedProperty
	for _, l := range listings {
		if l.FeedID == feedID {
			found = l
		}
	}
	require.NotNil(t, found)
	require.NotNil(t, found.AssignedAgent)
	assert.Equal(t, "agent-a", *found.AssignedAgent)
}

func TestParsedPropertyRepository_ClaimForAgent_PartitionsPool(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewParsedPropertyRepository(db, getTestLogger())
	ctx := context.Background()

	feedIDs := make([]int64, 0, 10)
	listings := make([]*models.ParsedProperty, 0, 10)
	for i := int64(0); i < 10; i++ {
		feedID := 910100 + i
		feedIDs = append(feedIDs, feedID)
		listings = append(listings, testListing(feedID))
	}
	cleanupListings(t, repo, feedIDs)

	_, _, err := repo.BulkUpsert(ctx, listings)
	require.NoError(t, err)

	type result struct {
		ids []int64
		err error
	}
	results := make(chan result, 2)
	for _, agent := range []string{"agent-a", "agent-b"} {
		go func(agent string) {
			claimed, err := repo.ClaimForAgent(ctx, agent, 5)
			ids := make([]int64, 0, len(claimed))
			for _, l := range claimed {
				ids = append(ids, l.FeedID)
			}
			results <- result{ids: ids, err: err}
		}(agent)
	}

	seen := make(map[int64]int)
	for i := 0; i < 2; i++ {
		res := <-results
		require.NoError(t, res.err)
		for _, id := range res.ids {
			seen[id]++
		}
	}

	// concurrent claims never hand the same row to both agents
	for id, count := range seen {
		assert.Equal(t, 1, count, "feed id %d claimed twice", id)
	}
}

func TestParsedPropertyRepository_MarkArchived(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	repo := repositories.NewParsedPropertyRepository(db, getTestLogger())
	ctx := context.Background()

	feedID := int64(910200)
	cleanupListings(t, repo, []int64{feedID})

	_, _, err := repo.BulkUpsert(ctx, []*models.ParsedProperty{testListing(feedID)})
	require.NoError(t, err)

	archived, err := repo.MarkArchived(ctx, []int64{feedID, 999999})
	require.NoError(t, err)
	assert.Equal(t, 1, archived)

	listings, err := repo.ListByStatus(ctx, models.ListingStatusArchived, 100)
	require.NoError(t, err)

	var found bool
	for _, l := range listings {
		if l.FeedID == feedID {
			found = true
			assert.WithinDuration(t, time.Now(), l.UpdatedAt, time.Minute)
		}
	}
	assert.True(t, found)
}
