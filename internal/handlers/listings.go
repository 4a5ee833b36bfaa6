package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/tulip/pkg/context"
	"github.com/Ramsey-B/tulip/pkg/ingest"
	"github.com/Ramsey-B/tulip/pkg/models"
)

// Ingestor accepts scraped-listing batches and manages the claim workflow
type Ingestor interface {
	IngestBatch(ctx context.Context, listings []*models.ParsedProperty) (ingest.IngestStats, error)
	Claim(ctx context.Context, agent string, n int) (map[models.Category][]int64, error)
	Archive(ctx context.Context, feedIDs []int64) (int, error)
}

// ListingsHandler manages the scraped-listings feed and claim endpoints
type ListingsHandler struct {
	ingestor Ingestor
	validate *validator.Validate
	logger   ectologger.Logger
}

// NewListingsHandler creates a new listings handler
func NewListingsHandler(ingestor Ingestor, logger ectologger.Logger) *ListingsHandler {
	return &ListingsHandler{
		ingestor: ingestor,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// RegisterRoutes registers listings routes
func (h *ListingsHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/listings/ingest", h.Ingest)
	g.POST("/listings/claim", h.Claim)
	g.POST("/listings/archive", h.Archive)
}

// IngestRequest is a batch of feed rows
type IngestRequest struct {
	Listings []*models.ParsedProperty `json:"listings" validate:"required,min=1,dive,required"`
}

// Ingest accepts a batch of scraped listings.
func (h *ListingsHandler) Ingest(c echo.Context) error {
	ctx := c.Request().Context()

	var req IngestRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}
	for _, listing := range req.Listings {
		if listing.FeedID == 0 {
			return BadRequest("every listing requires a feed_id")
		}
	}

	stats, err := h.ingestor.IngestBatch(ctx, req.Listings)
	if err != nil {
		return err
	}
	return SuccessResponse(c, stats)
}

// ClaimRequest asks for n unassigned listings
type ClaimRequest struct {
	Count int `json:"count" validate:"required,gt=0,lte=100"`
}

// ClaimResponse returns the assigned ids partitioned by category
type ClaimResponse struct {
	Agent    string                      `json:"agent"`
	Assigned map[models.Category][]int64 `json:"assigned"`
}

// Claim assigns unassigned listings to the requesting agent. The agent is
// taken from the X-Agent header.
func (h *ListingsHandler) Claim(c echo.Context) error {
	ctx := c.Request().Context()

	agent := appctx.GetAgent(ctx)
	if agent == "" {
		return BadRequest("X-Agent header is required")
	}

	var req ClaimRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	assigned, err := h.ingestor.Claim(ctx, agent, req.Count)
	if err != nil {
		return err
	}
	return SuccessResponse(c, ClaimResponse{
		Agent:    agent,
		Assigned: assigned,
	})
}

// ArchiveRequest flags listings whose source adverts disappeared
type ArchiveRequest struct {
	FeedIDs []int64 `json:"feed_ids" validate:"required,min=1"`
}

// Archive marks the given listings archived.
func (h *ListingsHandler) Archive(c echo.Context) error {
	ctx := c.Request().Context()

	var req ArchiveRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if err := h.validate.Struct(&req); err != nil {
		return BadRequest(err.Error())
	}

	archived, err := h.ingestor.Archive(ctx, req.FeedIDs)
	if err != nil {
		return err
	}
	return SuccessResponse(c, map[string]any{
		"archived": archived,
	})
}
