package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"sessionscribe/internal/api/middleware"
	"sessionscribe/internal/api/v1/dto"
	"sessionscribe/internal/sweeper"
)

// SweepService runs one expiry sweep batch.
type SweepService interface {
	Sweep(ctx context.Context) (*sweeper.Report, error)
}

// CleanupHandler exposes the scheduled retention sweep.
type CleanupHandler struct {
	service SweepService
}

// NewCleanupHandler creates a cleanup handler.
func NewCleanupHandler(service SweepService) *CleanupHandler {
	return &CleanupHandler{service: service}
}

// Cleanup handles POST /cleanup. The operator secret is checked upstream.
func (h *CleanupHandler) Cleanup(c *gin.Context) {
	report, err := h.service.Sweep(c.Request.Context())
	if err != nil {
		middleware.HandleError(c, mapServiceError(err))
		return
	}

	c.JSON(http.StatusOK, dto.CleanupResponse{
		OK:           len(report.Errors) == 0,
		DeletedCount: report.Deleted,
		Errors:       report.Errors,
	})
}
