// Package sheets reads tabular data from published spreadsheets.
package sheets

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/tulip/pkg/httpclient"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

// ErrSourceBusy marks transient upstream failures (rate limit / server
// busy). Callers may retry with backoff; any other error is permanent.
var ErrSourceBusy = errors.New("spreadsheet source busy")

// Reader yields all rows of one sheet. Row cells are raw strings.
type Reader interface {
	ReadRows(ctx context.Context, spreadsheetID string, gid int64) ([][]string, error)
}

// CSVReader fetches a sheet through the spreadsheet's CSV export endpoint.
type CSVReader struct {
	client  *httpclient.Client
	baseURL string
	logger  ectologger.Logger
}

// DefaultExportBaseURL is the Google Sheets CSV export endpoint.
const DefaultExportBaseURL = "https://docs.google.com/spreadsheets/d"

func NewCSVReader(client *httpclient.Client, baseURL string, logger ectologger.Logger) *CSVReader {
	if baseURL == "" {
		baseURL = DefaultExportBaseURL
	}
	return &CSVReader{
		client:  client,
		baseURL: baseURL,
		logger:  logger,
	}
}

// ReadRows downloads the sheet as CSV and parses it. HTTP 429/500/503 are
// reported as ErrSourceBusy so the caller can back off and retry.
func (r *CSVReader) ReadRows(ctx context.Context, spreadsheetID string, gid int64) ([][]string, error) {
	ctx, span := tracing.StartSpan(ctx, "CSVReader.ReadRows")
	defer span.End()

	url := fmt.Sprintf("%s/%s/export?format=csv&gid=%d", r.baseURL, spreadsheetID, gid)

	resp, err := r.client.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sheet %s: %w", spreadsheetID, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return nil, fmt.Errorf("sheet %s returned status %d: %w", spreadsheetID, resp.StatusCode, ErrSourceBusy)
	default:
		return nil, fmt.Errorf("sheet %s returned status %d", spreadsheetID, resp.StatusCode)
	}

	reader := csv.NewReader(bytes.NewReader(resp.Body))
	reader.FieldsPerRecord = -1 // rows may have ragged lengths

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse sheet %s as CSV: %w", spreadsheetID, err)
	}

	r.logger.WithContext(ctx).Debugf("Read %d rows from sheet %s gid=%d", len(rows), spreadsheetID, gid)
	return rows, nil
}
