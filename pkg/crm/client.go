package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/tulip/pkg/httpclient"
	"github.com/Ramsey-B/tulip/pkg/metrics"
	"github.com/Ramsey-B/tulip/pkg/redis"
	"github.com/Ramsey-B/tulip/pkg/tracing"
)

// Enrichment is the subset of CRM application data merged into deal rows.
// A zero value marks an id the CRM could not resolve.
type Enrichment struct {
	Address string   `json:"address"`
	Complex string   `json:"complex"`
	Price   *int64   `json:"price"`
	Area    *float64 `json:"area"`
}

// Config configures the CRM client.
type Config struct {
	BaseURL    string
	DeviceUUID string
	BatchSize  int
	BatchPause time.Duration
	CacheTTL   time.Duration
}

// DefaultConfig returns sensible client defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:  200,
		BatchPause: time.Second,
		CacheTTL:   30 * time.Minute,
	}
}

// Client talks to the CRM application API. The cache is optional; a nil
// redis client disables it.
type Client struct {
	http   *httpclient.Client
	cache  *redis.Client
	config Config
	logger ectologger.Logger
}

func NewClient(http *httpclient.Client, cache *redis.Client, config Config, logger ectologger.Logger) *Client {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.BatchPause <= 0 {
		config.BatchPause = DefaultConfig().BatchPause
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultConfig().CacheTTL
	}
	return &Client{
		http:   http,
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// applicationResponse mirrors the CRM application payload. Only the fields
// the enrichment needs are declared.
type applicationResponse struct {
	Data struct {
		SellDataDto struct {
			ObjectPrice *int64 `json:"objectPrice"`
		} `json:"sellDataDto"`
		RealPropertyDto struct {
			TotalArea       *float64 `json:"totalArea"`
			ApartmentNumber string   `json:"apartmentNumber"`
			AddressDto      struct {
				Street struct {
					NameRu string `json:"nameRu"`
				} `json:"street"`
				Building string `json:"building"`
			} `json:"addressDto"`
			ResidentialComplexDto struct {
				HouseName string `json:"houseName"`
			} `json:"residentialComplexDto"`
		} `json:"realPropertyDto"`
	} `json:"data"`
}

// Fetch retrieves enrichment data for a single CRM id.
func (c *Client) Fetch(ctx context.Context, crmID string) (Enrichment, error) {
	if cached, ok := c.cacheGet(ctx, crmID); ok {
		metrics.RecordEnrichment("cache_hit", 0)
		return cached, nil
	}

	start := time.Now()
	url := fmt.Sprintf("%s/applications-client/%s/%s/", strings.TrimRight(c.config.BaseURL, "/"), crmID, c.config.DeviceUUID)
	resp, err := c.http.Get(ctx, url, nil)
	if err != nil {
		metrics.RecordEnrichment("error", time.Since(start).Seconds())
		return Enrichment{}, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to fetch application %s: %s", crmID, err.Error())
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordEnrichment("error", time.Since(start).Seconds())
		return Enrichment{}, httperror.NewHTTPErrorf(resp.StatusCode, "application request for %s returned status %d", crmID, resp.StatusCode)
	}

	var payload applicationResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		metrics.RecordEnrichment("error", time.Since(start).Seconds())
		return Enrichment{}, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to parse application %s: %s", crmID, err.Error())
	}
	metrics.RecordEnrichment("success", time.Since(start).Seconds())

	enrichment := toEnrichment(payload)
	c.cacheSet(ctx, crmID, enrichment)
	return enrichment, nil
}

// FetchBatch resolves enrichment data for every requested id. Ids are
// fetched concurrently in batches with a pause in between so the CRM is
// not hammered. The returned map always contains every requested id;
// failed lookups carry a zero-value Enrichment.
func (c *Client) FetchBatch(ctx context.Context, crmIDs []string) map[string]Enrichment {
	ctx, span := tracing.StartSpan(ctx, "crm.Client.FetchBatch")
	defer span.End()

	results := make(map[string]Enrichment, len(crmIDs))
	var mu sync.Mutex

	for start := 0; start < len(crmIDs); start += c.config.BatchSize {
		end := start + c.config.BatchSize
		if end > len(crmIDs) {
			end = len(crmIDs)
		}
		batch := crmIDs[start:end]

		var wg sync.WaitGroup
		for _, crmID := range batch {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()

				enrichment, err := c.Fetch(ctx, id)
				if err != nil {
					c.logger.WithContext(ctx).WithError(err).WithField("crm_id", id).Debug("CRM enrichment lookup failed")
					enrichment = Enrichment{}
				}

				mu.Lock()
				results[id] = enrichment
				mu.Unlock()
			}(crmID)
		}
		wg.Wait()

		if end < len(crmIDs) {
			select {
			case <-ctx.Done():
				// fill the remainder so the contract holds
				mu.Lock()
				for _, id := range crmIDs[end:] {
					results[id] = Enrichment{}
				}
				mu.Unlock()
				return results
			case <-time.After(c.config.BatchPause):
			}
		}
	}

	c.logger.WithContext(ctx).Infof("Enriched %d CRM ids", len(results))
	return results
}

func toEnrichment(payload applicationResponse) Enrichment {
	property := payload.Data.RealPropertyDto

	var address string
	if street := property.AddressDto.Street.NameRu; street != "" {
		address = fmt.Sprintf("%s дом %s", street, property.AddressDto.Building)
		if property.ApartmentNumber != "" {
			address = fmt.Sprintf("%s, кв %s", address, property.ApartmentNumber)
		}
	}

	return Enrichment{
		Address: address,
		Complex: property.ResidentialComplexDto.HouseName,
		Price:   payload.Data.SellDataDto.ObjectPrice,
		Area:    property.TotalArea,
	}
}

func (c *Client) cacheKey(crmID string) string {
	return "crm:application:" + crmID
}

func (c *Client) cacheGet(ctx context.Context, crmID string) (Enrichment, bool) {
	if c.cache == nil {
		return Enrichment{}, false
	}

	raw, err := c.cache.Get(ctx, c.cacheKey(crmID))
	if err != nil || raw == "" {
		return Enrichment{}, false
	}

	var enrichment Enrichment
	if err := json.Unmarshal([]byte(raw), &enrichment); err != nil {
		return Enrichment{}, false
	}
	return enrichment, true
}

func (c *Client) cacheSet(ctx context.Context, crmID string, enrichment Enrichment) {
	if c.cache == nil {
		return
	}

	raw, err := json.Marshal(enrichment)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(crmID), string(raw), c.config.CacheTTL); err != nil {
		c.logger.WithContext(ctx).WithError(err).Debug("Failed to cache CRM enrichment")
	}
}
