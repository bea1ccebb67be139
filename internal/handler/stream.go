package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"optionscan/internal/stream"
)

type StreamHandler struct {
	Hub *stream.Hub
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/v1/stream", h.serveStream)
}

// @Summary Live opportunity stream over websocket
// @Tags scanner
// @Success 101 {string} string "Switching Protocols"
// @Router /api/v1/stream [get]
func (h *StreamHandler) serveStream(c *gin.Context) {
	if h.Hub == nil {
		Error(c, http.StatusServiceUnavailable, "stream unavailable", nil)
		return
	}
	h.Hub.ServeWS(c.Writer, c.Request)
}
