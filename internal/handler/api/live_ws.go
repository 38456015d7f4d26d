package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"optionpulse/internal/domain/models"
	domrepo "optionpulse/internal/domain/repository"
	xlogger "optionpulse/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const writeDeadline = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LiveHub fans prediction results out to websocket subscribers. Publish never
// blocks the collector: slow or dead connections are dropped.
type LiveHub struct {
	logger *xlogger.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewLiveHub(logger *xlogger.Logger) *LiveHub {
	return &LiveHub{
		logger: logger,
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

var _ domrepo.LiveFeed = (*LiveHub)(nil)

func (h *LiveHub) ServeWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.Error(err))
		return nil
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	h.logger.Info("websocket client connected", xlogger.Int("clients", n))

	// Reader loop only detects close; clients do not send payloads.
	go func() {
		defer h.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}

// Publish sends the result to every connected client.
func (h *LiveHub) Publish(r *models.PredictionResult) {
	b, err := json.Marshal(r)
	if err != nil {
		h.logger.Error("live feed marshal", xlogger.Error(err))
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeDeadline))
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			h.drop(conn)
		}
	}
}

// ClientCount reports the number of connected subscribers.
func (h *LiveHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects all subscribers.
func (h *LiveHub) Close() {
	h.mu.Lock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
	h.mu.Unlock()
}

func (h *LiveHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
