package server

import (
	"net/http"
	"strings"
	"time"

	"referral-earnings-go/internal/notify"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// newUpgrader checks the handshake Origin itself; CORS headers do not gate
// websocket upgrades.
func newUpgrader(allowedOrigins []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), allowedOrigins)
		},
	}
}

// originAllowed accepts requests without an Origin (non-browser clients),
// any origin under "*", and otherwise only listed origins.
func originAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin) {
			return true
		}
	}
	return false
}

// Events streams earningsUpdate messages to a websocket client until it
// disconnects. Clients only receive events committed after they connect.
func (h *Handler) Events(allowedOrigins []string) http.HandlerFunc {
	upgrader := newUpgrader(allowedOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		h.streamEvents(upgrader, w, r)
	}
}

func (h *Handler) streamEvents(upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("Websocket upgrade failed",
			zap.String("origin", r.Header.Get("Origin")),
			zap.Error(err))
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	zap.L().Info("Websocket client connected",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("subscribers", h.hub.Subscribers()))

	closed := make(chan struct{})
	go readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := notify.EncodeEvent(event)
			if err != nil {
				zap.L().Error("Failed to encode event", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				zap.L().Debug("Websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-closed:
			zap.L().Info("Websocket client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case <-r.Context().Done():
			return
		}
	}
}

// readPump discards client messages and keeps the read deadline alive on
// pongs. It closes done when the client goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
