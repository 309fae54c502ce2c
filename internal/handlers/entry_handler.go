package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "chainlog/internal/errors"
	"chainlog/internal/middleware"
	"chainlog/internal/models"
	"chainlog/internal/services"
)

// EntryHandler handles audit entry ingestion.
type EntryHandler struct {
	entryService services.EntryServicer
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(entryService services.EntryServicer) *EntryHandler {
	return &EntryHandler{entryService: entryService}
}

// CreateEntryRequest represents the request payload for recording an audit event.
type CreateEntryRequest struct {
	OrgID string `json:"org_id" binding:"required"`

	ActorID    string `json:"actor_id,omitempty"`
	ActorName  string `json:"actor_name,omitempty"`
	ActorEmail string `json:"actor_email,omitempty" binding:"omitempty,email"`

	Category string `json:"category" binding:"required,audit_category"`
	Action   string `json:"action" binding:"required,audit_action"`
	Severity string `json:"severity,omitempty" binding:"omitempty,audit_severity"`

	ResourceType string `json:"resource_type" binding:"required"`
	ResourceID   string `json:"resource_id" binding:"required"`
	ResourceName string `json:"resource_name,omitempty"`

	Before        map[string]any `json:"before,omitempty"`
	After         map[string]any `json:"after,omitempty"`
	ChangedFields []string       `json:"changed_fields,omitempty"`

	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	RequestID    string         `json:"request_id,omitempty"`
	Channel      string         `json:"channel,omitempty" binding:"omitempty,audit_channel"`
	Success      *bool          `json:"success,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`

	RetentionDays int `json:"retention_days,omitempty" binding:"omitempty,min=1,max=3650"`
}

// CreateEntry handles recording a new audit event.
// @Summary     Record audit event
// @Description Append an audit entry to the tenant's hash chain (service endpoint)
// @Tags        entries
// @Accept      json
// @Produce     json
// @Security    ApiKeyAuth
// @Param       request body CreateEntryRequest true "Audit event"
// @Success     202 {object} services.AppendResult "Entry accepted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Router      /entries [post]
func (h *EntryHandler) CreateEntry(c *gin.Context) {
	var req CreateEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	// Context fields default to what the request itself tells us.
	if req.IPAddress == "" {
		req.IPAddress = c.ClientIP()
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}
	if req.RequestID == "" {
		req.RequestID = middleware.RequestID(c)
	}

	success := true
	if req.Success != nil {
		success = *req.Success
	}

	result, err := h.entryService.Append(services.AppendInput{
		OrgID:         req.OrgID,
		ActorID:       req.ActorID,
		ActorName:     req.ActorName,
		ActorEmail:    req.ActorEmail,
		Category:      models.Category(req.Category),
		Action:        req.Action,
		Severity:      models.Severity(req.Severity),
		ResourceType:  req.ResourceType,
		ResourceID:    req.ResourceID,
		ResourceName:  req.ResourceName,
		Before:        req.Before,
		After:         req.After,
		ChangedFields: req.ChangedFields,
		IPAddress:     req.IPAddress,
		UserAgent:     req.UserAgent,
		RequestID:     req.RequestID,
		Channel:       models.Channel(req.Channel),
		Success:       success,
		ErrorMessage:  req.ErrorMessage,
		Metadata:      req.Metadata,
		RetentionDays: req.RetentionDays,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}
