package crm_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/tulip/pkg/crm"
	"github.com/Ramsey-B/tulip/pkg/httpclient"
)

const applicationBody = `{
	"data": {
		"sellDataDto": {"objectPrice": 25000000},
		"realPropertyDto": {
			"totalArea": 65.4,
			"apartmentNumber": "12",
			"addressDto": {
				"street": {"nameRu": "Абая"},
				"building": "5"
			},
			"residentialComplexDto": {"houseName": "ЖК Даулетти"}
		}
	}
}`

func newTestClient(t *testing.T, handler http.Handler) (*crm.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := crm.DefaultConfig()
	config.BaseURL = server.URL
	config.DeviceUUID = "device-1"
	config.BatchPause = time.Millisecond

	// retries off so failure cases count their requests exactly
	httpConfig := httpclient.DefaultConfig()
	httpConfig.MaxRetries = 0

	logger := zapadapter.NewZapEctoLogger(zap.NewNop(), nil)
	client := crm.NewClient(httpclient.NewClient(httpConfig, logger), nil, config, logger)
	return client, server
}

func TestClient_Fetch(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, applicationBody)
	}))

	enrichment, err := client.Fetch(context.Background(), "crm-1")
	require.NoError(t, err)

	assert.Equal(t, "/applications-client/crm-1/device-1/", gotPath)
	assert.Equal(t, "Абая дом 5, кв 12", enrichment.Address)
	assert.Equal(t, "ЖК Даулетти", enrichment.Complex)
	require.NotNil(t, enrichment.Price)
	assert.Equal(t, int64(25000000), *enrichment.Price)
	require.NotNil(t, enrichment.Area)
	assert.Equal(t, 65.4, *enrichment.Area)
}

func TestClient_Fetch_NotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.Fetch(context.Background(), "missing")
	assert.Error(t, err)
}

func TestClient_FetchBatch_CoversEveryID(t *testing.T) {
	var requests int64
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		if r.URL.Path == "/applications-client/bad/device-1/" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, applicationBody)
	}))

	results := client.FetchBatch(context.Background(), []string{"crm-1", "bad", "crm-2"})
	require.Len(t, results, 3)
	assert.Equal(t, int64(3), atomic.LoadInt64(&requests))

	assert.Equal(t, "ЖК Даулетти", results["crm-1"].Complex)
	assert.Equal(t, "ЖК Даулетти", results["crm-2"].Complex)

	// failed lookup still present, as a placeholder
	assert.Equal(t, crm.Enrichment{}, results["bad"])
}

func TestClient_Authenticate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/token", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		fmt.Fprint(w, `{"access_token": "tok-1", "token_type": "bearer", "expires_in": 3600}`)
	}))

	token, err := client.Authenticate(context.Background(), "+7700", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token.AccessToken)
}

func TestClient_Authenticate_BadCredentials(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.Authenticate(context.Background(), "+7700", "wrong")
	assert.Error(t, err)
}
