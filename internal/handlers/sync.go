package handlers

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/tulip/pkg/reconciler"
)

// SyncRunner exposes the reconciliation entry points to the API
type SyncRunner interface {
	FullResync(ctx context.Context) (reconciler.SyncStats, error)
	FastResync(ctx context.Context) (reconciler.SyncStats, error)
	InProgress() bool
}

// SyncHandler triggers and inspects reconciliation cycles
type SyncHandler struct {
	runner SyncRunner
	logger ectologger.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner SyncRunner, logger ectologger.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		logger: logger,
	}
}

// RegisterRoutes registers sync routes
func (h *SyncHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/sync/full", h.FullResync)
	g.POST("/sync/fast", h.FastResync)
	g.GET("/sync/status", h.Status)
}

// FullResync runs a full reconciliation cycle. Reserved for manual use;
// the scheduler only ever runs fast resyncs.
func (h *SyncHandler) FullResync(c echo.Context) error {
	ctx := c.Request().Context()

	h.logger.WithContext(ctx).Info("Full resync requested")

	stats, err := h.runner.FullResync(ctx)
	if err != nil {
		if errors.Is(err, reconciler.ErrSyncInProgress) {
			return Conflict("a sync cycle is already in progress")
		}
		return err
	}
	return SuccessResponse(c, stats)
}

// FastResync runs an insert/delete-only reconciliation cycle.
func (h *SyncHandler) FastResync(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.runner.FastResync(ctx)
	if err != nil {
		if errors.Is(err, reconciler.ErrSyncInProgress) {
			return Conflict("a sync cycle is already in progress")
		}
		return err
	}
	return SuccessResponse(c, stats)
}

// Status reports whether a cycle is currently running.
func (h *SyncHandler) Status(c echo.Context) error {
	return SuccessResponse(c, map[string]any{
		"in_progress": h.runner.InProgress(),
	})
}
