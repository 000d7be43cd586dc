// Package handler exposes the assignment API over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"leadflow_backend/internal/assignment/service"
	"leadflow_backend/internal/assignment/transport"
	"leadflow_backend/platform/httpkit"
	"leadflow_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc      *service.Service
	validate *validator.Validator
}

func New(svc *service.Service, validate *validator.Validator) *Handler {
	return &Handler{svc: svc, validate: validate}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.GetSettings)
	rg.POST("/settings", h.UpdateSettings)
	rg.POST("/assign-manual", h.AssignManual)
	rg.POST("/distribute", h.Distribute)
	rg.GET("/logs", h.ListLogs)
}

// GetSettings returns the tenant's assignment policy.
func (h *Handler) GetSettings(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	policy, err := h.svc.Policy(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromPolicy(policy))
}

// UpdateSettings replaces the tenant's assignment policy wholesale.
func (h *Handler) UpdateSettings(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	policy, err := req.ToDomain(id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}

	saved, err := h.svc.UpdatePolicy(c.Request.Context(), policy)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.FromPolicy(saved))
}

// AssignManual assigns a batch of leads to one agent.
func (h *Handler) AssignManual(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	var req transport.ManualAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.AssignManual(c.Request.Context(), id.TenantID(), req, id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Distribute triggers one scheduler pass over the unassigned pool.
func (h *Handler) Distribute(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	result, err := h.svc.Distribute(c.Request.Context(), id.TenantID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListLogs returns one page of the assignment audit log.
func (h *Handler) ListLogs(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.svc.Logs(c.Request.Context(), id.TenantID(), page, limit)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// LeadHistory returns the assignment history of one lead. Registered under
// the leads route group.
func (h *Handler) LeadHistory(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	history, err := h.svc.LeadHistory(c.Request.Context(), id.TenantID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"history": history})
}
