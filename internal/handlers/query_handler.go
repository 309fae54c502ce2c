package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/models"
	"chainlog/internal/pagination"
	"chainlog/internal/services"
	"chainlog/internal/uuid"
)

// QueryHandler handles search, statistics, and export over the audit log.
type QueryHandler struct {
	queryService services.QueryServicer
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(queryService services.QueryServicer) *QueryHandler {
	return &QueryHandler{queryService: queryService}
}

// SearchQuery represents the filter parameters accepted by search and export.
type SearchQuery struct {
	OrgID        string `form:"org_id" binding:"required"`
	ActorID      string `form:"actor_id"`
	Category     string `form:"category" binding:"omitempty,audit_category"`
	Action       string `form:"action" binding:"omitempty,audit_action"`
	Severity     string `form:"severity" binding:"omitempty,audit_severity"`
	ResourceType string `form:"resource_type"`
	ResourceID   string `form:"resource_id"`
	IPAddress    string `form:"ip_address"`
	Success      *bool  `form:"success"`
	Q            string `form:"q"`
	FromDate     string `form:"from_date"`
	ToDate       string `form:"to_date"`
}

func (q *SearchQuery) toFilter() (services.SearchFilter, error) {
	from, err := parseOptionalTime(q.FromDate)
	if err != nil {
		return services.SearchFilter{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	to, err := parseOptionalTime(q.ToDate)
	if err != nil {
		return services.SearchFilter{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}

	return services.SearchFilter{
		OrgID:        q.OrgID,
		ActorID:      q.ActorID,
		Category:     models.Category(q.Category),
		Action:       q.Action,
		Severity:     models.Severity(q.Severity),
		ResourceType: q.ResourceType,
		ResourceID:   q.ResourceID,
		IPAddress:    q.IPAddress,
		Success:      q.Success,
		Query:        q.Q,
		FromDate:     from,
		ToDate:       to,
	}, nil
}

// SearchEntries handles filtered, paginated search over the audit log.
// @Summary     Search audit entries
// @Description Search a tenant's audit log with filters (paginated)
// @Tags        entries
// @Produce     json
// @Security    BearerAuth
// @Param       org_id    query string true  "Organization ID"
// @Param       q         query string false "Free-text search over action, resource name, and error message"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.AuditEntry] "Paginated entries"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /entries [get]
func (h *QueryHandler) SearchEntries(c *gin.Context) {
	var query SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.queryService.Search(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetEntry handles retrieving a single audit entry.
// @Summary     Get audit entry by ID
// @Description Get a specific audit entry, scoped to the tenant
// @Tags        entries
// @Produce     json
// @Security    BearerAuth
// @Param       id     path  string true "Entry ID"
// @Param       org_id query string true "Organization ID"
// @Success     200 {object} models.AuditEntry "Entry"
// @Failure     400 {object} ErrorResponse "Invalid entry ID"
// @Failure     404 {object} ErrorResponse "Entry not found"
// @Router      /entries/{id} [get]
func (h *QueryHandler) GetEntry(c *gin.Context) {
	entryID := c.Param("id")
	if !uuid.IsValid(entryID) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid entry ID"))
		return
	}

	entry, err := h.queryService.GetEntry(c.Query("org_id"), entryID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entry": entry})
}

// GetStats handles aggregate statistics over a date window.
// @Summary     Audit statistics
// @Description Aggregate counts, success rate, top actors, and top resource types
// @Tags        entries
// @Produce     json
// @Security    BearerAuth
// @Param       org_id    query string true "Organization ID"
// @Param       from_date query string true "Start of window (RFC3339 or YYYY-MM-DD)"
// @Param       to_date   query string true "End of window (RFC3339 or YYYY-MM-DD)"
// @Success     200 {object} services.AuditStats "Statistics"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /entries/stats [get]
func (h *QueryHandler) GetStats(c *gin.Context) {
	orgID := c.Query("org_id")

	fromStr := c.Query("from_date")
	if fromStr == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "from_date is required"))
		return
	}
	from, err := parseFlexibleTime(fromStr)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	toStr := c.Query("to_date")
	if toStr == "" {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "to_date is required"))
		return
	}
	to, err := parseFlexibleTime(toStr)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	stats, err := h.queryService.Stats(orgID, from, to)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportEntries handles exporting matching entries as JSON or CSV.
// @Summary     Export audit entries
// @Description Export a tenant's audit log as a JSON or CSV attachment
// @Tags        entries
// @Produce     json
// @Produce     text/csv
// @Security    BearerAuth
// @Param       org_id query string true  "Organization ID"
// @Param       format query string false "Export format: json or csv (default json)"
// @Success     200 {file} file "Export payload"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /entries/export [get]
func (h *QueryHandler) ExportEntries(c *gin.Context) {
	var query SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	filter, err := query.toFilter()
	if err != nil {
		respondWithError(c, err)
		return
	}

	var format struct {
		Format string `form:"format,default=json" binding:"export_format"`
	}
	if err := c.ShouldBindQuery(&format); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidFormat, "Export format must be json or csv"))
		return
	}

	result, err := h.queryService.Export(filter, format.Format)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
