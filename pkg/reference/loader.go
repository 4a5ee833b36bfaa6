package reference

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/tulip/pkg/matching"
	"github.com/Ramsey-B/tulip/pkg/metrics"
	"github.com/Ramsey-B/tulip/pkg/models"
	"github.com/Ramsey-B/tulip/pkg/normalize"
	"github.com/Ramsey-B/tulip/pkg/sheets"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

// ColumnConfig maps reference sheet columns to their roles. Indexes are
// zero-based; the defaults cover the standard A-D layout.
type ColumnConfig struct {
	Name    int `validate:"gte=0"`
	Ceiling int `validate:"gte=0"`
	Score   int `validate:"gte=0"`
	Floor   int `validate:"gte=0"`
}

// DefaultColumnConfig returns the standard column layout
func DefaultColumnConfig() ColumnConfig {
	return ColumnConfig{
		Name:    0,
		Ceiling: 1,
		Score:   2,
		Floor:   3,
	}
}

// Config configures the reference loader.
type Config struct {
	SpreadsheetID string
	GID           int64
	Columns       ColumnConfig
	TTL           time.Duration
}

// DefaultConfig returns sensible loader defaults
func DefaultConfig() Config {
	return Config{
		Columns: DefaultColumnConfig(),
		TTL:     45 * time.Minute,
	}
}

// headerKeywords identify the header row. A row containing any of these as
// a substring (case-insensitive) in its name column is treated as the header.
var headerKeywords = []string{"жк", "комплекс", "название", "name", "complex"}

const (
	retryAttempts  = 4
	retryBaseDelay = 2 * time.Second
)

// Loader reads the pricing reference sheet and serves a normalized-name ->
// entry map with a TTL cache on top. An unset spreadsheet id degrades to an
// empty map so categorization falls back to its score-only rules.
type Loader struct {
	reader sheets.Reader
	config Config
	logger ectologger.Logger

	mu        sync.RWMutex
	cache     map[string]models.ReferenceEntry
	expiresAt time.Time
	hits      int64
	misses    int64
}

func NewLoader(reader sheets.Reader, config Config, logger ectologger.Logger) *Loader {
	if config.TTL <= 0 {
		config.TTL = DefaultConfig().TTL
	}
	return &Loader{
		reader: reader,
		config: config,
		logger: logger,
	}
}

// Entries returns the reference map keyed by normalized complex name,
// refreshing from the sheet when the cached copy has expired.
func (l *Loader) Entries(ctx context.Context) (map[string]models.ReferenceEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "reference.Loader.Entries")
	defer span.End()

	l.mu.RLock()
	cached, fresh := l.cache, time.Now().Before(l.expiresAt)
	l.mu.RUnlock()

	if cached != nil && fresh {
		l.mu.Lock()
		l.hits++
		l.mu.Unlock()
		metrics.RecordReferenceCache("hit")
		return cached, nil
	}

	l.mu.Lock()
	l.misses++
	l.mu.Unlock()
	metrics.RecordReferenceCache("miss")

	entries, err := l.load(ctx)
	if err != nil {
		// serve the stale copy rather than failing a sync cycle
		if cached != nil {
			l.logger.WithContext(ctx).WithError(err).Warn("Failed to refresh reference sheet, serving stale entries")
			return cached, nil
		}
		return nil, err
	}

	l.mu.Lock()
	l.cache = entries
	l.expiresAt = time.Now().Add(l.config.TTL)
	l.mu.Unlock()

	return entries, nil
}

// Invalidate drops the cached copy so the next Entries call reloads.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.cache = nil
	l.expiresAt = time.Time{}
	l.mu.Unlock()
}

// CacheStats reports cache hit/miss counters
type CacheStats struct {
	Size   int
	Hits   int64
	Misses int64
}

func (l *Loader) Stats() CacheStats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return CacheStats{
		Size:   len(l.cache),
		Hits:   l.hits,
		Misses: l.misses,
	}
}

func (l *Loader) load(ctx context.Context) (map[string]models.ReferenceEntry, error) {
	if l.config.SpreadsheetID == "" {
		l.logger.WithContext(ctx).Warn("Reference spreadsheet id is not configured, categorization will run without price bands")
		return map[string]models.ReferenceEntry{}, nil
	}

	rows, err := l.readWithRetry(ctx)
	if err != nil {
		return nil, err
	}

	return l.parse(ctx, rows)
}

func (l *Loader) readWithRetry(ctx context.Context) ([][]string, error) {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		rows, err := l.reader.ReadRows(ctx, l.config.SpreadsheetID, l.config.GID)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !errors.Is(err, sheets.ErrSourceBusy) {
			return nil, err
		}

		l.logger.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"attempt": attempt,
			"delay":   delay.String(),
		}).Warn("Reference sheet is busy, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("reference sheet unavailable after %d attempts: %w", retryAttempts, lastErr)
}

func (l *Loader) parse(ctx context.Context, rows [][]string) (map[string]models.ReferenceEntry, error) {
	maxCol := l.config.Columns.Name
	for _, c := range []int{l.config.Columns.Ceiling, l.config.Columns.Score, l.config.Columns.Floor} {
		if c > maxCol {
			maxCol = c
		}
	}

	headerIdx := -1
	for i, row := range rows {
		if l.config.Columns.Name < len(row) && isHeaderCell(row[l.config.Columns.Name]) {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		return nil, fmt.Errorf("could not locate header row in reference sheet %s", l.config.SpreadsheetID)
	}

	entries := make(map[string]models.ReferenceEntry)
	for _, row := range rows[headerIdx+1:] {
		if l.config.Columns.Name >= len(row) {
			continue
		}
		name := strings.TrimSpace(row[l.config.Columns.Name])
		if name == "" {
			continue
		}
		key := normalize.Name(name)
		if key == "" {
			continue
		}

		entry := models.ReferenceEntry{Name: name}
		if l.config.Columns.Ceiling < len(row) {
			entry.CeilingPricePerM2 = parseRate(row[l.config.Columns.Ceiling])
		}
		if l.config.Columns.Score < len(row) {
			entry.Score = parseRate(row[l.config.Columns.Score])
		}
		if l.config.Columns.Floor < len(row) {
			entry.FloorPricePerM2 = parseRate(row[l.config.Columns.Floor])
		}
		entries[key] = entry
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("reference sheet %s produced no entries", l.config.SpreadsheetID)
	}

	l.logger.WithContext(ctx).Infof("Loaded %d reference entries", len(entries))
	return entries, nil
}

func isHeaderCell(cell string) bool {
	lower := strings.ToLower(strings.TrimSpace(cell))
	for _, keyword := range headerKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// parseRate parses a numeric reference cell, tolerating comma decimal
// separators and embedded spaces. Blank or non-numeric cells yield nil.
// Precision is kept so fractional scores like 8.5 survive.
func parseRate(s string) *float64 {
	var cleaned strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			cleaned.WriteRune(r)
		}
	}
	if cleaned.Len() == 0 {
		return nil
	}

	v, err := strconv.ParseFloat(strings.ReplaceAll(cleaned.String(), ",", "."), 64)
	if err != nil {
		return nil
	}
	return &v
}

// EntryFor resolves the reference entry for a raw complex name through the
// shared normalizer and matcher.
func EntryFor(refs map[string]models.ReferenceEntry, complexName string) (models.ReferenceEntry, bool) {
	key, ok := matching.BestMatch(normalize.Name(complexName), refs)
	if !ok {
		return models.ReferenceEntry{}, false
	}
	return refs[key], true
}

// Band converts an entry's per-area rates into the absolute price band for
// a unit of the given area. A nil area or a missing rate yields a nil bound.
func Band(entry models.ReferenceEntry, area *float64) (floor, ceiling *float64) {
	if area == nil {
		return nil, nil
	}
	if entry.FloorPricePerM2 != nil {
		f := *entry.FloorPricePerM2 * *area
		floor = &f
	}
	if entry.CeilingPricePerM2 != nil {
		c := *entry.CeilingPricePerM2 * *area
		ceiling = &c
	}
	return floor, ceiling
}
