package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/tulip/internal/handlers"
	"github.com/Ramsey-B/tulip/pkg/ingest"
	"github.com/Ramsey-B/tulip/pkg/middleware"
	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/reconciler"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeRunner struct {
	fullErr    error
	fastErr    error
	stats      reconciler.SyncStats
	inProgress bool
}

func (f *fakeRunner) FullResync(ctx context.Context) (reconciler.SyncStats, error) {
	return f.stats, f.fullErr
}

func (f *fakeRunner) FastResync(ctx context.Context) (reconciler.SyncStats, error) {
	return f.stats, f.fastErr
}

func (f *fakeRunner) InProgress() bool {
	return f.inProgress
}

type fakeIngestor struct {
	stats    ingest.IngestStats
	assigned map[models.Category][]int64
	agent    string
	count    int
	archived int
	feedIDs  []int64
}

func (f *fakeIngestor) IngestBatch(ctx context.Context, listings []*models.ParsedProperty) (ingest.IngestStats, error) {
	return f.stats, nil
}

func (f *fakeIngestor) Claim(ctx context.Context, agent string, n int) (map[models.Category][]int64, error) {
	f.agent = agent
	f.count = n
	return f.assigned, nil
}

func (f *fakeIngestor) Archive(ctx context.Context, feedIDs []int64) (int, error) {
	f.feedIDs = feedIDs
	return f.archived, nil
}

func newTestServer(runner *fakeRunner, ingestor *fakeIngestor) *echo.Echo {
	logger := getTestLogger()
	e := echo.New()
	e.Use(middleware.Context())
	e.HTTPErrorHandler = middleware.Error(logger)

	api := e.Group("/api/v1")
	handlers.NewSyncHandler(runner, logger).RegisterRoutes(api)
	handlers.NewListingsHandler(ingestor, logger).RegisterRoutes(api)
	return e
}

func doRequest(e *echo.Echo, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSyncHandler_FullResync(t *testing.T) {
	runner := &fakeRunner{stats: reconciler.SyncStats{Created: 3, Updated: 2, Deleted: 1}}
	e := newTestServer(runner, &fakeIngestor{})

	rec := doRequest(e, http.MethodPost, "/api/v1/sync/full", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats reconciler.SyncStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 3, stats.Created)
	assert.Equal(t, 2, stats.Updated)
	assert.Equal(t, 1, stats.Deleted)
}

func TestSyncHandler_BusyReturnsConflict(t *testing.T) {
	runner := &fakeRunner{fullErr: reconciler.ErrSyncInProgress, fastErr: reconciler.ErrSyncInProgress}
	e := newTestServer(runner, &fakeIngestor{})

	assert.Equal(t, http.StatusConflict, doRequest(e, http.MethodPost, "/api/v1/sync/full", nil, nil).Code)
	assert.Equal(t, http.StatusConflict, doRequest(e, http.MethodPost, "/api/v1/sync/fast", nil, nil).Code)
}

func TestSyncHandler_Status(t *testing.T) {
	runner := &fakeRunner{inProgress: true}
	e := newTestServer(runner, &fakeIngestor{})

	rec := doRequest(e, http.MethodGet, "/api/v1/sync/status", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["in_progress"])
}

func TestListingsHandler_IngestValidation(t *testing.T) {
	e := newTestServer(&fakeRunner{}, &fakeIngestor{})

	// Empty batch rejected
	rec := doRequest(e, http.MethodPost, "/api/v1/listings/ingest", map[string]any{"listings": []any{}}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Missing feed_id rejected
	rec = doRequest(e, http.MethodPost, "/api/v1/listings/ingest", map[string]any{
		"listings": []map[string]any{{"address": "no feed id"}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Valid batch accepted
	rec = doRequest(e, http.MethodPost, "/api/v1/listings/ingest", map[string]any{
		"listings": []map[string]any{{"feed_id": 42, "complex": "Alpha Park"}},
	}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListingsHandler_ClaimRequiresAgent(t *testing.T) {
	ingestor := &fakeIngestor{assigned: map[models.Category][]int64{models.CategoryA: {1, 2}}}
	e := newTestServer(&fakeRunner{}, ingestor)

	rec := doRequest(e, http.MethodPost, "/api/v1/listings/claim", map[string]any{"count": 4}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(e, http.MethodPost, "/api/v1/listings/claim", map[string]any{"count": 4},
		map[string]string{middleware.HeaderAgent: "agent-7"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp handlers.ClaimResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "agent-7", resp.Agent)
	assert.Equal(t, []int64{1, 2}, resp.Assigned[models.CategoryA])
	assert.Equal(t, 4, ingestor.count)
}

func TestListingsHandler_ClaimCountBounds(t *testing.T) {
	e := newTestServer(&fakeRunner{}, &fakeIngestor{})
	headers := map[string]string{middleware.HeaderAgent: "agent-7"}

	assert.Equal(t, http.StatusBadRequest,
		doRequest(e, http.MethodPost, "/api/v1/listings/claim", map[string]any{"count": 0}, headers).Code)
	assert.Equal(t, http.StatusBadRequest,
		doRequest(e, http.MethodPost, "/api/v1/listings/claim", map[string]any{"count": 500}, headers).Code)
}

func TestListingsHandler_Archive(t *testing.T) {
	ingestor := &fakeIngestor{archived: 2}
	e := newTestServer(&fakeRunner{}, ingestor)

	rec := doRequest(e, http.MethodPost, "/api/v1/listings/archive", map[string]any{"feed_ids": []int64{7, 8}}, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{7, 8}, ingestor.feedIDs)

	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body["archived"])
}
