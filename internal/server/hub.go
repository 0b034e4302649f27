package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const broadcastTimeout = 2 * time.Second

// Message is the envelope for every frame sent on the stream.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type conn struct {
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// Hub fans tick summaries and journal events out to websocket subscribers.
type Hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}
	log   *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns: make(map[*conn]struct{}),
		log:   log.With("component", "stream"),
	}
}

// HandleWS upgrades the request and holds it until the client goes away.
// Inbound frames are read and discarded.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error("websocket accept failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	c := &conn{ws: ws, cancel: cancel}

	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("websocket connected", "remote", r.RemoteAddr)

	defer func() {
		h.remove(c)
		_ = ws.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			return
		}
	}
}

// Publish marshals payload and broadcasts it under msgType.
func (h *Hub) Publish(msgType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("websocket marshal failed", "type", msgType, "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), broadcastTimeout)
	defer cancel()
	h.Broadcast(ctx, Message{Type: msgType, Payload: data})
}

// Broadcast sends msg to every connected client. Failed clients are dropped.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("websocket marshal failed", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
			h.log.Debug("websocket write failed", "error", err)
			go h.remove(c)
		}
	}
}

func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; ok {
		c.cancel()
		delete(h.conns, c)
		h.log.Info("websocket disconnected")
	}
}
