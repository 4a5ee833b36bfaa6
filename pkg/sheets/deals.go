package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

// dealColumnCount is the fixed width of the deals sheet (columns A..G)
const dealColumnCount = 7

// ErrDealsSheetNotConfigured is returned when the deals spreadsheet id is
// unset. The deals sheet is the source of truth, so this fails fast rather
// than degrading.
var ErrDealsSheetNotConfigured = fmt.Errorf("deals spreadsheet id is not configured")

// DealSourceConfig identifies the deals sheet.
type DealSourceConfig struct {
	SpreadsheetID string
	GID           int64
}

// DealSource reads the authoritative deals sheet. Row 1 is the header and
// is ignored for content; columns A..G are fixed as {CRM id, signing date,
// contract number, agent, team lead, director, client name+phone}.
type DealSource struct {
	reader Reader
	config DealSourceConfig
	logger ectologger.Logger
}

func NewDealSource(reader Reader, config DealSourceConfig, logger ectologger.Logger) *DealSource {
	return &DealSource{
		reader: reader,
		config: config,
		logger: logger,
	}
}

// Load returns one Property per non-empty deal row. Address, complex and
// contract price stay empty here; they are filled by CRM enrichment.
func (s *DealSource) Load(ctx context.Context) ([]*models.Property, error) {
	ctx, span := tracing.StartSpan(ctx, "DealSource.Load")
	defer span.End()

	if s.config.SpreadsheetID == "" {
		return nil, ErrDealsSheetNotConfigured
	}

	rows, err := s.reader.ReadRows(ctx, s.config.SpreadsheetID, s.config.GID)
	if err != nil {
		return nil, fmt.Errorf("failed to load deals sheet: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("deals sheet is empty or unavailable")
	}

	deals := make([]*models.Property, 0, len(rows)-1)
	for _, row := range rows[1:] {
		cols := padRow(row, dealColumnCount)
		if rowEmpty(cols) {
			continue
		}

		crmID := strings.TrimSpace(cols[0])
		if crmID == "" {
			continue
		}

		dateSigned := ParseDate(cols[1])
		deals = append(deals, &models.Property{
			CRMID:          crmID,
			DateSigned:     dateSigned,
			ContractNumber: strings.TrimSpace(cols[2]),
			Agent:          strings.TrimSpace(cols[3]),
			TeamLead:       strings.TrimSpace(cols[4]),
			Director:       strings.TrimSpace(cols[5]),
			ClientName:     strings.TrimSpace(cols[6]),
			Expires:        ExpiryFrom(dateSigned),
		})
	}

	s.logger.WithContext(ctx).Infof("Loaded %d deals from sheet %s", len(deals), s.config.SpreadsheetID)
	return deals, nil
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row[:width]
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

func rowEmpty(cols []string) bool {
	for _, c := range cols {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
