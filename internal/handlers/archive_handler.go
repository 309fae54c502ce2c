package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/services"
)

// ArchiveHandler handles operator-triggered retention sweeps.
type ArchiveHandler struct {
	archiveService services.ArchiveServicer
}

// NewArchiveHandler creates a new ArchiveHandler.
func NewArchiveHandler(archiveService services.ArchiveServicer) *ArchiveHandler {
	return &ArchiveHandler{archiveService: archiveService}
}

// SweepRequest represents the request payload for a manual sweep.
type SweepRequest struct {
	OrgID string `json:"org_id" binding:"required"`
}

// Sweep handles moving one batch of a tenant's expired entries to cold storage.
// @Summary     Sweep expired entries
// @Description Relocate up to one batch of expired entries into the cold archive
// @Tags        archive
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body SweepRequest true "Tenant to sweep"
// @Success     200 {object} map[string]int "Archived count"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /archive/sweep [post]
func (h *ArchiveHandler) Sweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	count, err := h.archiveService.SweepOrg(req.OrgID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"archived_count": count})
}
