package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/services"
)

// VerifyHandler handles chain integrity verification requests.
type VerifyHandler struct {
	verifyService services.VerifyServicer
}

// NewVerifyHandler creates a new VerifyHandler.
func NewVerifyHandler(verifyService services.VerifyServicer) *VerifyHandler {
	return &VerifyHandler{verifyService: verifyService}
}

// VerifyChain handles replay verification of a tenant's hash chain.
// @Summary     Verify hash chain
// @Description Replay a tenant's audit chain and report the first divergence, if any
// @Tags        chain
// @Produce     json
// @Security    BearerAuth
// @Param       org_id    query string true  "Organization ID"
// @Param       from_date query string false "Start of range (RFC3339 or YYYY-MM-DD, default epoch)"
// @Param       to_date   query string false "End of range (RFC3339 or YYYY-MM-DD, default now)"
// @Success     200 {object} services.VerifyResult "Verification result"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /chain/verify [get]
func (h *VerifyHandler) VerifyChain(c *gin.Context) {
	orgID := c.Query("org_id")

	from := time.Unix(0, 0).UTC()
	if s := c.Query("from_date"); s != "" {
		parsed, err := parseFlexibleTime(s)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		from = parsed
	}

	to := time.Now().UTC()
	if s := c.Query("to_date"); s != "" {
		parsed, err := parseFlexibleTime(s)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
			return
		}
		to = parsed
	}

	result, err := h.verifyService.VerifyChain(orgID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
