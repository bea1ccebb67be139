package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const writeTimeout = 5 * time.Second

// Hub fans dispatched opportunities out to websocket subscribers.
// Publishing never blocks: a subscriber whose buffer is full misses
// the message instead of stalling the scanner.
type Hub struct {
	Logger *zap.Logger

	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		Logger: logger,
		subs:   make(map[chan []byte]struct{}),
	}
}

func (h *Hub) Publish(v any) {
	if h == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("stream payload marshal failed", zap.Error(err))
		}
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[chan []byte]struct{})
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeWS upgrades the request and streams published payloads until the
// client disconnects. The connection is write-only; CloseRead keeps
// control frames flowing.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		if h.Logger != nil {
			h.Logger.Warn("websocket accept failed", zap.Error(err))
		}
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closed")

	ch, cancel := h.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "shutdown")
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancelWrite()
			if err != nil {
				return
			}
		}
	}
}
