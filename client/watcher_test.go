package client

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuttracker/infrastructure/broadcast"
	"cuttracker/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherRefreshesOnMatchingEvents(t *testing.T) {
	srv := startLiveServer(t)
	api := loggedInAPI(t, srv)
	rec := NewReconciler(api, srv.jobID, ReconcilerOptions{Logger: quietLogger()})
	w := NewWatcher(api, rec, WatcherOptions{DetailInterval: time.Hour, RecutInterval: time.Hour, ReconnectDelay: 50 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return srv.hub.Count() == 1 }, 3*time.Second, 10*time.Millisecond)
	key := Key{Kind: KindMaterial, EntityID: srv.materialID, Index: 1}

	// another client changes the sheet; only the event tells us
	_, err := srv.store.SetSheetStatus(context.Background(), 1, srv.materialID, 1, models.SheetSkip)
	require.NoError(t, err)
	srv.hub.Notify(broadcast.EventSheetStatusUpdated, broadcast.SheetStatusPayload{JobID: srv.jobID + 100, MaterialID: srv.materialID, SheetIndex: 1, Status: "skip"})
	time.Sleep(100 * time.Millisecond)
	status, _ := rec.Status(key)
	assert.Equal(t, models.SheetPending, status, "events for other jobs are ignored")

	srv.hub.Notify(broadcast.EventSheetStatusUpdated, broadcast.SheetStatusPayload{JobID: srv.jobID, MaterialID: srv.materialID, SheetIndex: 1, Status: "skip"})
	assert.Eventually(t, func() bool {
		s, _ := rec.Status(key)
		return s == models.SheetSkip
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcherPollsWithoutEvents(t *testing.T) {
	backend := newFakeBackend(models.SheetPending)
	rec := NewReconciler(backend, 1, ReconcilerOptions{Logger: quietLogger()})
	w := NewWatcher(nil, rec, WatcherOptions{DetailInterval: 20 * time.Millisecond, RecutInterval: 20 * time.Millisecond, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	backend.mu.Lock()
	backend.material().SheetStatuses[0] = models.SheetCut
	backend.material().Recuts[0].SheetStatuses[1] = models.SheetSkip
	backend.mu.Unlock()

	assert.Eventually(t, func() bool {
		m, _ := rec.Status(Key{Kind: KindMaterial, EntityID: 5, Index: 0})
		r, _ := rec.Status(Key{Kind: KindRecut, EntityID: 9, Index: 1})
		return m == models.SheetCut && r == models.SheetSkip
	}, 2*time.Second, 10*time.Millisecond)
}
