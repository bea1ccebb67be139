package handler

import (
	"github.com/gin-gonic/gin"

	"optionscan/internal/scanner"
	"optionscan/internal/stream"
)

type StatusHandler struct {
	Scanners []*scanner.Orchestrator
	Hub      *stream.Hub
}

func (h *StatusHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/scanner/status", h.getStatus)
}

// @Summary Scanner cycle status
// @Tags scanner
// @Success 200 {object} map[string]any
// @Router /api/v1/scanner/status [get]
func (h *StatusHandler) getStatus(c *gin.Context) {
	statuses := make([]scanner.Status, 0, len(h.Scanners))
	for _, orch := range h.Scanners {
		if orch == nil {
			continue
		}
		statuses = append(statuses, orch.Status())
	}
	Ok(c, map[string]any{
		"scanners":           statuses,
		"stream_subscribers": h.Hub.Subscribers(),
	}, nil)
}
