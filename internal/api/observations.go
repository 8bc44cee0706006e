package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"market-price-alerts/internal/auth"
	"market-price-alerts/internal/service"
)

// ObservationHandler exposes the review actions. Validation triggers alert
// reconciliation; its failure is reported but never fails the request.
type ObservationHandler struct {
	Service *service.Service
	Logger  zerolog.Logger
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type reconciliationView struct {
	Action       service.Action `json:"action"`
	Tier         string         `json:"tier,omitempty"`
	DeviationPct string         `json:"deviation_pct,omitempty"`
	AlertID      int64          `json:"alert_id,omitempty"`
	Error        string         `json:"error,omitempty"`
}

func (h *ObservationHandler) Register(r gin.IRouter) {
	group := r.Group("/api/observations", auth.RequireRole(auth.RoleDecisionMaker))
	group.POST("/:id/validate", h.validate)
	group.POST("/:id/reject", h.reject)
}

func (h *ObservationHandler) validate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	principal, _ := auth.PrincipalFrom(c)
	result, err := h.Service.ValidateObservation(c.Request.Context(), id, principal.ID)
	if err != nil {
		h.fail(c, err, "validate observation failed")
		return
	}

	out := result.Reconciliation
	view := reconciliationView{Action: out.Action}
	if out.Tier != "" {
		view.Tier = string(out.Tier)
		view.DeviationPct = out.DeviationPct.StringFixed(2)
	}
	if out.Alert != nil {
		view.AlertID = out.Alert.ID
	}
	if out.Err != nil {
		view.Error = "alert reconciliation failed"
	}
	Ok(c, gin.H{
		"observation":    result.Observation,
		"reconciliation": view,
	}, nil)
}

func (h *ObservationHandler) reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	reason := strings.TrimSpace(c.Query("reason"))
	if reason == "" {
		var req rejectRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			reason = strings.TrimSpace(req.Reason)
		}
	}
	principal, _ := auth.PrincipalFrom(c)
	obs, err := h.Service.RejectObservation(c.Request.Context(), id, principal.ID, reason)
	if err != nil {
		h.fail(c, err, "reject observation failed")
		return
	}
	Ok(c, gin.H{"observation": obs}, nil)
}

func (h *ObservationHandler) fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		Error(c, status, msg, nil)
		return
	}
	Error(c, status, err.Error(), nil)
}
