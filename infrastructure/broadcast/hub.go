package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Event names sent to every connected viewer.
const (
	EventConnected               = "connected"
	EventSheetStatusUpdated      = "sheet_status_updated"
	EventRecutSheetStatusUpdated = "recut_sheet_status_updated"
	EventSheetsAdded             = "sheets_added"
	EventSheetDeleted            = "sheet_deleted"
	EventRecutAdded              = "recut_added"
	EventRecutDeleted            = "recut_deleted"
	EventJobCreated              = "job_created"
	EventJobUpdated              = "job_updated"
	EventJobDeleted              = "job_deleted"
	EventCutlistCreated          = "cutlist_created"
	EventMaterialCreated         = "material_created"
	EventMaterialUpdated         = "material_updated"
	EventMaterialDeleted         = "material_deleted"
)

// Transport labels how a connection is attached.
const (
	TransportWebsocket = "websocket"
	TransportSSE       = "sse"
)

// Event is the JSON envelope written to every connection.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// Frame is one encoded event queued for a connection.
type Frame struct {
	Type string
	Data []byte
}

// Conn is a registered viewer. Frames are delivered in send order.
type Conn struct {
	ID        string
	UserID    int64
	Transport string
	send      chan Frame
}

// Frames yields queued frames; it is closed when the connection is unregistered.
func (c *Conn) Frames() <-chan Frame {
	return c.send
}

// Options tunes the hub.
type Options struct {
	BufferSize   int
	WriteTimeout time.Duration
	PingInterval time.Duration
	Logger       *slog.Logger
}

// Hub is the registry of open viewer connections owned by the server process.
// Notify never blocks: a connection whose buffer is full misses that event.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]*Conn

	opts    Options
	log     *slog.Logger
	dropped atomic.Int64
}

func NewHub(opts Options) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		conns: make(map[string]*Conn),
		opts:  opts,
		log:   log.With(slog.String("component", "hub")),
	}
}

// Register adds a connection and returns it.
func (h *Hub) Register(userID int64, transport string) *Conn {
	c := &Conn{
		ID:        uuid.NewString(),
		UserID:    userID,
		Transport: transport,
		send:      make(chan Frame, h.opts.BufferSize),
	}
	h.mu.Lock()
	h.conns[c.ID] = c
	total := len(h.conns)
	h.mu.Unlock()
	h.log.Info("connection registered", slog.String("conn_id", c.ID), slog.String("transport", transport), slog.Int64("user_id", userID), slog.Int("total", total))
	return c
}

// Unregister removes a connection and closes its frame channel. Calling it
// more than once is harmless.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
		close(c.send)
	}
	total := len(h.conns)
	h.mu.Unlock()
	if ok {
		h.log.Info("connection unregistered", slog.String("conn_id", id), slog.Int("total", total))
	}
}

// Close unregisters every connection, which ends their writer loops.
func (h *Hub) Close() {
	if h == nil {
		return
	}
	h.mu.Lock()
	n := len(h.conns)
	for id, c := range h.conns {
		delete(h.conns, id)
		close(c.send)
	}
	h.mu.Unlock()
	if n > 0 {
		h.log.Info("hub closed", slog.Int("connections", n))
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Dropped returns how many deliveries were skipped because a buffer was full.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Notify queues the event for every open connection and returns how many
// accepted it. It is at most once per connection and fire-and-forget.
// A nil hub accepts and drops everything.
func (h *Hub) Notify(eventType string, payload any) int {
	if h == nil {
		return 0
	}
	frame, err := encode(eventType, payload)
	if err != nil {
		h.log.Error("encode event failed", slog.String("event", eventType), slog.Any("err", err))
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, c := range h.conns {
		select {
		case c.send <- frame:
			delivered++
		default:
			h.dropped.Add(1)
			h.log.Warn("connection buffer full, dropping event", slog.String("conn_id", c.ID), slog.String("event", eventType))
		}
	}
	h.log.Debug("event published", slog.String("event", eventType), slog.Int("delivered", delivered))
	return delivered
}

// sendTo queues an event for a single connection, e.g. the connect greeting.
func (h *Hub) sendTo(c *Conn, eventType string, payload any) {
	frame, err := encode(eventType, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.conns[c.ID]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func encode(eventType string, payload any) (Frame, error) {
	b, err := json.Marshal(Event{Type: eventType, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: eventType, Data: b}, nil
}
