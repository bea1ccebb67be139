package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"optionscan/internal/repository"
)

type OpportunityHandler struct {
	Repo repository.Repository
}

func (h *OpportunityHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/opportunities")
	group.GET("", h.listOpportunities)
	group.GET("/:id", h.getOpportunity)
	group.GET("/:id/prices", h.listPriceUpdates)
}

// @Summary List detected opportunities
// @Tags opportunities
// @Param symbol query string false "Underlying symbol"
// @Param alert_type query string false "Alert type (whale_activity, day_trading)"
// @Param strategy query string false "Strategy tag"
// @Param status query string false "open or closed"
// @Param since query string false "RFC3339 or unix seconds"
// @Param until query string false "RFC3339 or unix seconds"
// @Param min_notional query number false "Minimum notional value"
// @Param sort_by query string false "detected_at, notional_value, volume, success_probability"
// @Param order query string false "asc or desc"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/opportunities [get]
func (h *OpportunityHandler) listOpportunities(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListOpportunitiesParams{
		Limit:       intQuery(c, "limit", 50),
		Offset:      intQuery(c, "offset", 0),
		Symbol:      strQueryPtr(c, "symbol"),
		AlertType:   strQueryPtr(c, "alert_type"),
		Strategy:    strQueryPtr(c, "strategy"),
		Closed:      parseStatus(c.Query("status")),
		Since:       timeQueryPtr(c, "since"),
		Until:       timeQueryPtr(c, "until"),
		MinNotional: decimalQueryPtr(c, "min_notional"),
	}
	params.OrderBy = parseOrder(c.Query("sort_by"), map[string]string{
		"detected_at":         "detected_at",
		"notional_value":      "notional_value",
		"volume":              "volume",
		"success_probability": "success_probability",
		"created_at":          "created_at",
	})
	if params.OrderBy == "" {
		params.OrderBy = "detected_at"
	}
	params.Asc = boolPtr(strings.EqualFold(c.Query("order"), "asc"))

	items, err := h.Repo.ListOpportunities(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountOpportunities(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Get one opportunity
// @Tags opportunities
// @Param id path int true "Opportunity ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/opportunities/{id} [get]
func (h *OpportunityHandler) getOpportunity(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	item, err := h.Repo.GetOpportunityByID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "opportunity not found", nil)
		return
	}
	result, err := h.Repo.GetBacktestResultByOpportunityID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{"opportunity": item, "backtest": result}, nil)
}

// @Summary List recorded prices for an opportunity
// @Tags opportunities
// @Param id path int true "Opportunity ID"
// @Param since query string false "RFC3339 or unix seconds"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/opportunities/{id}/prices [get]
func (h *OpportunityHandler) listPriceUpdates(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid id", nil)
		return
	}
	items, err := h.Repo.ListPriceUpdates(c.Request.Context(), repository.ListPriceUpdatesParams{
		OpportunityID: id,
		Limit:         intQuery(c, "limit", 200),
		Offset:        intQuery(c, "offset", 0),
		Since:         timeQueryPtr(c, "since"),
		Asc:           boolPtr(true),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, nil)
}
