package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"FxPredict/internal/domain/models"
	xlogger "FxPredict/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	streamWriteWait  = 10 * time.Second
	streamSendBuffer = 8
)

type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

// StreamHub fans snapshots out to websocket subscribers.
// New subscribers get the latest snapshot first; slow subscribers are dropped.
type StreamHub struct {
	logger       *xlogger.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration

	mu      sync.Mutex
	clients map[*streamClient]struct{}
	latest  []byte
}

func NewStreamHub(logger *xlogger.Logger, pingInterval time.Duration) *StreamHub {
	if logger == nil {
		logger = xlogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &StreamHub{
		logger:       logger,
		pingInterval: pingInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *StreamHub) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/predictions/stream", h.Serve)
}

// Broadcast sends s to every subscriber and keeps it for late joiners.
func (h *StreamHub) Broadcast(s models.PredictionSnapshot) {
	b, err := json.Marshal(toSnapshotDTO(s))
	if err != nil {
		h.logger.Error("stream: marshal snapshot", xlogger.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = b
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Warn("stream: dropping slow subscriber")
			h.removeLocked(c)
		}
	}
}

// Subscribers reports the number of connected clients.
func (h *StreamHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and streams snapshots until the peer goes away.
func (h *StreamHub) Serve(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("stream: upgrade failed", xlogger.Error(err))
		return nil
	}

	client := &streamClient{conn: conn, send: make(chan []byte, streamSendBuffer)}
	h.mu.Lock()
	if h.latest != nil {
		client.send <- h.latest
	}
	h.clients[client] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("stream: subscriber connected", xlogger.String("remote", c.RealIP()))

	go h.writeLoop(client)
	h.readLoop(client)
	return nil
}

// readLoop discards inbound frames; it exists to notice close and answer pongs.
func (h *StreamHub) readLoop(c *streamClient) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * h.pingInterval))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) writeLoop(c *streamClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case b, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *StreamHub) remove(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *StreamHub) removeLocked(c *streamClient) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every subscriber.
func (h *StreamHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}
