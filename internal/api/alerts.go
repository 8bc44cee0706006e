package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-price-alerts/internal/auth"
	"market-price-alerts/internal/catalog"
	"market-price-alerts/internal/service"
	"market-price-alerts/internal/storage"
	"market-price-alerts/internal/tier"
)

type AlertHandler struct {
	Service   *service.Service
	Directory *catalog.Directory
	Logger    zerolog.Logger
}

type alertView struct {
	ID             int64               `json:"id"`
	Tier           tier.Tier           `json:"tier"`
	Kind           storage.AlertKind   `json:"kind"`
	Status         storage.AlertStatus `json:"status"`
	MarketID       int64               `json:"market_id"`
	MarketName     string              `json:"market_name"`
	Commune        string              `json:"commune,omitempty"`
	Department     string              `json:"department,omitempty"`
	Latitude       *float64            `json:"latitude,omitempty"`
	Longitude      *float64            `json:"longitude,omitempty"`
	ProductID      int64               `json:"product_id"`
	ProductName    string              `json:"product_name"`
	CurrentPrice   decimal.Decimal     `json:"current_price"`
	ReferencePrice decimal.Decimal     `json:"reference_price"`
	DeviationPct   decimal.Decimal     `json:"deviation_pct"`
	Viewed         bool                `json:"viewed"`
	ViewedBy       []string            `json:"viewed_by"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
	ResolvedAt     *time.Time          `json:"resolved_at,omitempty"`
}

func (h *AlertHandler) Register(r gin.IRouter) {
	group := r.Group("/api/alerts")
	group.GET("", h.listAlerts)
	group.GET("/statistics", h.statistics)
	group.GET("/:id", h.getAlert)
	group.POST("/:id/viewed", h.markViewed)
	group.POST("/:id/resolve", auth.RequireRole(auth.RoleDecisionMaker), h.resolveAlert)
	group.POST("/recompute", auth.RequireRole(auth.RoleDecisionMaker), h.recompute)
}

func (h *AlertHandler) listAlerts(c *gin.Context) {
	filter := storage.AlertFilter{
		Status: storage.AlertStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
	}
	if raw := c.Query("tier"); raw != "" {
		t, err := tier.Parse(raw)
		if err != nil {
			Error(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		filter.Tier = t
	}
	var err error
	if filter.MarketID, err = int64Query(c, "market_id"); err != nil {
		Error(c, http.StatusBadRequest, "invalid market_id", nil)
		return
	}
	if filter.ProductID, err = int64Query(c, "product_id"); err != nil {
		Error(c, http.StatusBadRequest, "invalid product_id", nil)
		return
	}
	if filter.Limit, err = intQuery(c, "limit", 0); err != nil {
		Error(c, http.StatusBadRequest, "invalid limit", nil)
		return
	}

	alerts, err := h.Service.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err, "list alerts failed")
		return
	}

	principal, _ := auth.PrincipalFrom(c)
	views := make([]alertView, 0, len(alerts))
	for _, a := range alerts {
		views = append(views, h.view(c, a, principal))
	}
	Ok(c, views, map[string]any{"count": len(views)})
}

func (h *AlertHandler) getAlert(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	alert, err := h.Service.GetAlert(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "get alert failed")
		return
	}
	principal, _ := auth.PrincipalFrom(c)
	Ok(c, h.view(c, alert, principal), nil)
}

func (h *AlertHandler) markViewed(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	principal, _ := auth.PrincipalFrom(c)
	if err := h.Service.MarkViewed(c.Request.Context(), id, principal.ID); err != nil {
		h.fail(c, err, "mark viewed failed")
		return
	}
	Ok(c, gin.H{"id": id, "viewed": true}, nil)
}

func (h *AlertHandler) resolveAlert(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	principal, _ := auth.PrincipalFrom(c)
	alert, err := h.Service.ResolveAlert(c.Request.Context(), id, principal.ID)
	if err != nil {
		h.fail(c, err, "resolve alert failed")
		return
	}
	Ok(c, h.view(c, alert, principal), nil)
}

func (h *AlertHandler) recompute(c *gin.Context) {
	report, err := h.Service.RecomputeRecent(c.Request.Context(), "manual")
	if err != nil {
		h.fail(c, err, "recompute failed")
		return
	}
	Ok(c, report, nil)
}

func (h *AlertHandler) statistics(c *gin.Context) {
	from, err := timeQuery(c, "from", false)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid from", nil)
		return
	}
	to, err := timeQuery(c, "to", true)
	if err != nil {
		Error(c, http.StatusBadRequest, "invalid to", nil)
		return
	}
	stats, err := h.Service.Statistics(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err, "alert statistics failed")
		return
	}
	Ok(c, gin.H{
		"active_total": stats.ActiveTotal,
		"by_tier":      stats.ByTier,
		"by_kind":      stats.ByKind,
	}, nil)
}

func (h *AlertHandler) view(c *gin.Context, a storage.Alert, principal auth.Principal) alertView {
	v := alertView{
		ID:             a.ID,
		Tier:           a.Tier,
		Kind:           a.Kind,
		Status:         a.Status,
		MarketID:       a.MarketID,
		ProductID:      a.ProductID,
		CurrentPrice:   a.CurrentPrice,
		ReferencePrice: a.ReferencePrice,
		DeviationPct:   a.DeviationPct,
		Viewed:         principal.ID != "" && a.ViewedByPrincipal(principal.ID),
		ViewedBy:       a.ViewedBy,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		ResolvedAt:     a.ResolvedAt,
		MarketName:     catalog.Unknown,
		ProductName:    catalog.Unknown,
	}
	if v.ViewedBy == nil {
		v.ViewedBy = []string{}
	}
	if h.Directory != nil {
		m := h.Directory.Market(c.Request.Context(), a.MarketID)
		v.MarketName = m.Name
		v.Commune = m.Commune
		v.Department = m.Department
		v.Latitude = m.Latitude
		v.Longitude = m.Longitude
		v.ProductName = h.Directory.Product(c.Request.Context(), a.ProductID).Name
	}
	return v
}

func (h *AlertHandler) fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		Error(c, status, msg, nil)
		return
	}
	Error(c, status, err.Error(), nil)
}
