// Package notify streams judging announcements to websocket clients.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cryptoj/internal/judge/event"
	"cryptoj/pkg/utils/logger"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// frame is the wire shape of one announcement.
type frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// Hub relays bus events to every connected websocket client. A client that
// cannot keep up is dropped rather than slowing the rest.
type Hub struct {
	bus      *event.Bus
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*websocket.Conn]chan frame
}

// NewHub creates a Hub on the given bus.
func NewHub(bus *event.Bus) *Hub {
	return &Hub{
		bus: bus,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]chan frame),
	}
}

// Run forwards bus events to clients until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	judgeSub := h.bus.Subscribe(event.TopicJudge, sendBufferSize)
	congratsSub := h.bus.Subscribe(event.TopicCongrats, sendBufferSize)
	defer h.bus.Unsubscribe(judgeSub)
	defer h.bus.Unsubscribe(congratsSub)

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case payload, ok := <-judgeSub.C:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(frame{Type: string(event.TopicJudge), Payload: payload})
		case payload, ok := <-congratsSub.C:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(frame{Type: string(event.TopicCongrats), Payload: payload})
		}
	}
}

// Handle upgrades one HTTP request into a subscribed websocket connection.
func (h *Hub) Handle(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}

	send := make(chan frame, sendBufferSize)
	h.mu.Lock()
	h.conns[conn] = send
	h.mu.Unlock()

	go h.writePump(conn, send)
	go h.readPump(conn)
}

func (h *Hub) writePump(conn *websocket.Conn, send chan frame) {
	for f := range send {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(f); err != nil {
			h.drop(conn)
			return
		}
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
	conn.Close()
}

// readPump discards client messages; its only job is noticing a dead peer.
func (h *Hub) readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(conn)
			return
		}
	}
}

func (h *Hub) broadcast(f frame) {
	h.mu.Lock()
	var stale []*websocket.Conn
	for conn, send := range h.conns {
		select {
		case send <- f:
		default:
			stale = append(stale, conn)
		}
	}
	h.mu.Unlock()
	for _, conn := range stale {
		h.drop(conn)
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	send, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
		close(send)
	}
	h.mu.Unlock()
	if ok {
		conn.Close()
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[*websocket.Conn]chan frame)
	h.mu.Unlock()
	for conn, send := range conns {
		close(send)
		conn.Close()
	}
}
