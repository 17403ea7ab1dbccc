package broadcast

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ServeSSE streams hub events as Server-Sent Events until the client leaves.
func (h *Hub) ServeSSE(w http.ResponseWriter, r *http.Request, userID int64) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	c := h.Register(userID, TransportSSE)
	defer h.Unregister(c.ID)
	h.sendTo(c, EventConnected, connectedPayload{ConnectionID: c.ID})

	heartbeat := time.NewTicker(h.opts.PingInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-c.Frames():
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", frame.Type, frame.Data); err != nil {
				h.log.Warn("sse write failed", slog.String("conn_id", c.ID), slog.Any("err", err))
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
