package client

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// EventDialer opens the server event websocket.
type EventDialer interface {
	DialEvents(ctx context.Context) (*websocket.Conn, error)
}

// WatcherOptions tunes the resync loops. Zero values use the defaults.
type WatcherOptions struct {
	DetailInterval time.Duration
	RecutInterval  time.Duration
	ReconnectDelay time.Duration
	Logger         *slog.Logger
}

// Watcher keeps a Reconciler in sync: it refreshes on matching realtime
// events and polls on fixed intervals whether or not the socket is up.
type Watcher struct {
	dialer EventDialer
	rec    *Reconciler
	opts   WatcherOptions
	log    *slog.Logger
}

func NewWatcher(dialer EventDialer, rec *Reconciler, opts WatcherOptions) *Watcher {
	if opts.DetailInterval <= 0 {
		opts.DetailInterval = 5 * time.Second
	}
	if opts.RecutInterval <= 0 {
		opts.RecutInterval = 3 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		dialer: dialer,
		rec:    rec,
		opts:   opts,
		log:    log.With(slog.String("component", "watcher"), slog.Int64("job_id", rec.JobID())),
	}
}

// recut cell changes only need the recut list; everything else reloads the job
const eventRecutSheetStatus = "recut_sheet_status_updated"

type eventEnvelope struct {
	Type    string       `json:"type"`
	Payload eventPayload `json:"payload"`
}

type eventPayload struct {
	JobID      int64 `json:"jobId"`
	MaterialID int64 `json:"materialId"`
	RecutID    int64 `json:"recutId"`
}

// Run blocks until ctx is done. Requests already in flight are not cancelled
// early; they end with ctx.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.rec.Refresh(ctx); err != nil && ctx.Err() == nil {
		w.log.Warn("initial refresh failed", slog.Any("err", err))
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		w.poll(ctx, w.opts.DetailInterval, func(ctx context.Context) error { return w.rec.Refresh(ctx) })
	}()
	go func() {
		defer wg.Done()
		w.poll(ctx, w.opts.RecutInterval, w.refreshAllRecuts)
	}()
	go func() {
		defer wg.Done()
		w.listen(ctx)
	}()
	wg.Wait()
	return ctx.Err()
}

func (w *Watcher) poll(ctx context.Context, every time.Duration, fn func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				w.log.Debug("poll failed", slog.Any("err", err))
			}
		}
	}
}

func (w *Watcher) refreshAllRecuts(ctx context.Context) error {
	for _, id := range w.rec.MaterialIDs() {
		if err := w.rec.RefreshRecuts(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// listen reads events until ctx ends, redialling after a delay on failure.
func (w *Watcher) listen(ctx context.Context) {
	for {
		if w.dialer != nil {
			if err := w.readEvents(ctx); err != nil && ctx.Err() == nil {
				w.log.Info("event stream lost", slog.Any("err", err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.ReconnectDelay):
		}
	}
}

func (w *Watcher) readEvents(ctx context.Context) error {
	conn, err := w.dialer.DialEvents(ctx)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var env eventEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			w.log.Debug("skipping undecodable event", slog.Any("err", err))
			continue
		}
		w.handle(ctx, env)
	}
}

func (w *Watcher) handle(ctx context.Context, env eventEnvelope) {
	if env.Payload.JobID != w.rec.JobID() {
		return
	}
	var err error
	if env.Type == eventRecutSheetStatus && env.Payload.MaterialID != 0 {
		err = w.rec.RefreshRecuts(ctx, env.Payload.MaterialID)
	} else {
		err = w.rec.Refresh(ctx)
	}
	if err != nil && ctx.Err() == nil {
		w.log.Warn("refresh after event failed", slog.String("event", env.Type), slog.Any("err", err))
	}
}
