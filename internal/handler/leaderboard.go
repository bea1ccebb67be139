package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"optionscan/internal/leaderboard"
	"optionscan/internal/repository"
)

type LeaderboardHandler struct {
	Repo     repository.Repository
	Horizons []string
}

func (h *LeaderboardHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/leaderboard", h.getLeaderboard)
}

// @Summary Leaderboard over backtested opportunities
// @Tags leaderboard
// @Param horizon query string false "Ranking horizon label, default 1h"
// @Param top query int false "Ranking size, default 10"
// @Param alert_type query string false "Restrict to one alert type"
// @Param strategy query string false "Restrict to one strategy"
// @Param since query string false "RFC3339 or unix seconds"
// @Param until query string false "RFC3339 or unix seconds"
// @Success 200 {object} map[string]any
// @Router /api/v1/leaderboard [get]
func (h *LeaderboardHandler) getLeaderboard(c *gin.Context) {
	if h.Repo == nil {
		Error(c, http.StatusInternalServerError, "repo unavailable", nil)
		return
	}
	rows, err := h.Repo.ListEvaluatedOpportunities(c.Request.Context(), repository.ListEvaluatedParams{
		AlertType: strQueryPtr(c, "alert_type"),
		Strategy:  strQueryPtr(c, "strategy"),
		Since:     timeQueryPtr(c, "since"),
		Until:     timeQueryPtr(c, "until"),
	})
	if err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	board := leaderboard.Build(rows, leaderboard.Options{
		Horizons: h.Horizons,
		RankBy:   c.Query("horizon"),
		TopN:     intQuery(c, "top", 10),
	})
	Ok(c, board, nil)
}
