// Package handler exposes call logging and conflict detection over HTTP.
package handler

import (
	"net/http"
	"time"

	"leadflow_backend/internal/calls/service"
	"leadflow_backend/internal/calls/transport"
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
	rg.POST("/leads/:id/hit-call", h.HitCall)
	rg.GET("/leads/:id/call-history", h.CallHistory)
	rg.GET("/call-conflicts", h.Conflicts)
}

// HitCall records one call attempt on a lead.
func (h *Handler) HitCall(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	var req transport.HitCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.HitCall(c.Request.Context(), id.TenantID(), leadID, id.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CallHistory returns a lead's call records, newest first.
func (h *Handler) CallHistory(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	records, err := h.svc.History(c.Request.Context(), id.TenantID(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"calls": records})
}

// Conflicts answers two questions. With ?dateTime it checks a candidate
// follow-up time against the caller's existing schedule (optionally
// excluding the lead being edited via ?excludeId). Without it, it lists the
// collisions already present: admins see the whole tenant and may filter by
// agent; agents see only their own book.
func (h *Handler) Conflicts(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	if raw := c.Query("dateTime"); raw != "" {
		at, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
			return
		}

		excludeID := uuid.Nil
		if rawID := c.Query("excludeId"); rawID != "" {
			excludeID, err = uuid.Parse(rawID)
			if err != nil {
				httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
				return
			}
		}

		leads, err := h.svc.ConflictsAt(c.Request.Context(), id.TenantID(), id.UserID(), at, excludeID)
		if httpkit.HandleError(c, err) {
			return
		}
		httpkit.OK(c, gin.H{"conflicts": leads})
		return
	}

	var agentID *uuid.UUID
	if id.HasRole("admin") {
		if raw := c.Query("agentId"); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
				return
			}
			agentID = &parsed
		}
	} else {
		self := id.UserID()
		agentID = &self
	}

	conflicts, err := h.svc.Conflicts(c.Request.Context(), id.TenantID(), agentID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"conflicts": conflicts})
}
