package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"optionscan/internal/backtest"
	"optionscan/internal/repository"
)

type BacktestHandler struct {
	Repo   repository.Repository
	Runner *backtest.Runner
}

func (h *BacktestHandler) Register(r *gin.Engine) {
	group := r.Group("/api/v1/backtests")
	group.GET("", h.listResults)
	group.GET("/:opportunity_id", h.getResult)
	group.POST("/run", h.runSweep)
}

// @Summary List backtest results
// @Tags backtests
// @Param entry_basis query string false "detection_price or next_bar_open"
// @Param since query string false "RFC3339 or unix seconds"
// @Param sort_by query string false "evaluated_at or opportunity_id"
// @Param order query string false "asc or desc"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]any
// @Router /api/v1/backtests [get]
func (h *BacktestHandler) listResults(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	params := repository.ListBacktestResultsParams{
		Limit:      intQuery(c, "limit", 50),
		Offset:     intQuery(c, "offset", 0),
		EntryBasis: strQueryPtr(c, "entry_basis"),
		Since:      timeQueryPtr(c, "since"),
	}
	params.OrderBy = parseOrder(c.Query("sort_by"), map[string]string{
		"evaluated_at":   "evaluated_at",
		"opportunity_id": "opportunity_id",
	})
	if params.OrderBy == "" {
		params.OrderBy = "evaluated_at"
	}
	params.Asc = boolPtr(strings.EqualFold(c.Query("order"), "asc"))

	items, err := h.Repo.ListBacktestResults(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	total, err := h.Repo.CountBacktestResults(c.Request.Context(), params)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, items, paginationMeta(params.Limit, params.Offset, total))
}

// @Summary Get the backtest result for one opportunity
// @Tags backtests
// @Param opportunity_id path int true "Opportunity ID"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]any
// @Router /api/v1/backtests/{opportunity_id} [get]
func (h *BacktestHandler) getResult(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	id := uint64Param(c, "opportunity_id")
	if id == 0 {
		Error(c, http.StatusBadRequest, "invalid opportunity_id", nil)
		return
	}
	item, err := h.Repo.GetBacktestResultByOpportunityID(c.Request.Context(), id)
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	if item == nil {
		Error(c, http.StatusNotFound, "backtest result not found", nil)
		return
	}
	Ok(c, item, nil)
}

// @Summary Evaluate opportunities that have no backtest result yet
// @Tags backtests
// @Success 200 {object} map[string]any
// @Router /api/v1/backtests/run [post]
func (h *BacktestHandler) runSweep(c *gin.Context) {
	if h.Runner == nil {
		Error(c, http.StatusServiceUnavailable, "backtest runner unavailable", nil)
		return
	}
	stats, err := h.Runner.RunPending(c.Request.Context())
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, map[string]any{
		"candidates": stats.Candidates,
		"evaluated":  stats.Evaluated,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
	}, nil)
}
