package broadcast

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		return strings.Contains(origin, "://"+strings.TrimSpace(r.Host))
	},
}

// ServeWebsocket upgrades the request and streams hub events to it until the
// peer goes away or a write fails. Messages from the peer are ignored.
func (h *Hub) ServeWebsocket(w http.ResponseWriter, r *http.Request, userID int64) {
	ws, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.log.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	defer ws.Close()

	c := h.Register(userID, TransportWebsocket)
	defer h.Unregister(c.ID)
	h.sendTo(c, EventConnected, connectedPayload{ConnectionID: c.ID})

	go h.readPump(ws, c)
	h.writePump(ws, c)
}

func (h *Hub) readPump(ws *websocket.Conn, c *Conn) {
	defer h.Unregister(c.ID)
	pongWait := 2 * h.opts.PingInterval
	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read ended", slog.String("conn_id", c.ID), slog.Any("err", err))
			}
			return
		}
	}
}

func (h *Hub) writePump(ws *websocket.Conn, c *Conn) {
	ticker := time.NewTicker(h.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case frame, ok := <-c.Frames():
			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, frame.Data); err != nil {
				h.log.Warn("websocket write failed", slog.String("conn_id", c.ID), slog.Any("err", err))
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(h.opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
