package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cuttracker/models"
)

type fakeBackend struct {
	mu      sync.Mutex
	job     JobDetail
	setErr  error
	getErr  error
	sent    []models.SheetStatus
	gets    int
	started chan models.SheetStatus
	// gates[i] holds the i-th set call until closed
	gates []chan struct{}
	// beforeFail runs when a set fails, e.g. to simulate another writer
	beforeFail func(f *fakeBackend)
}

func newFakeBackend(statuses ...models.SheetStatus) *fakeBackend {
	m := &models.Material{ID: 5, TotalSheets: len(statuses), SheetStatuses: statuses}
	m.Recuts = []*models.RecutEntry{{ID: 9, MaterialID: 5, Quantity: 2, SheetStatuses: models.NewSheetStatuses(2)}}
	return &fakeBackend{job: JobDetail{Job: models.Job{ID: 1, Cutlists: []*models.Cutlist{{ID: 2, JobID: 1, Materials: []*models.Material{m}}}}}}
}

func (f *fakeBackend) material() *models.Material { return f.job.Job.Cutlists[0].Materials[0] }

func (f *fakeBackend) GetJob(context.Context, int64) (JobDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return JobDetail{}, f.getErr
	}
	// deep enough copy for the reconciler to own
	m := *f.material()
	m.SheetStatuses = append(models.SheetStatuses(nil), m.SheetStatuses...)
	rc := *m.Recuts[0]
	rc.SheetStatuses = append(models.SheetStatuses(nil), rc.SheetStatuses...)
	m.Recuts = []*models.RecutEntry{&rc}
	return JobDetail{Job: models.Job{ID: 1, Cutlists: []*models.Cutlist{{ID: 2, JobID: 1, Materials: []*models.Material{&m}}}}}, nil
}

func (f *fakeBackend) ListRecuts(context.Context, int64) ([]models.RecutEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rc := *f.material().Recuts[0]
	rc.SheetStatuses = append(models.SheetStatuses(nil), rc.SheetStatuses...)
	return []models.RecutEntry{rc}, nil
}

func (f *fakeBackend) set(seq models.SheetStatuses, index int, status models.SheetStatus) error {
	f.mu.Lock()
	f.sent = append(f.sent, status)
	started := f.started
	var gate chan struct{}
	if n := len(f.sent) - 1; n < len(f.gates) {
		gate = f.gates[n]
	}
	f.mu.Unlock()
	if started != nil {
		started <- status
	}
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		if f.beforeFail != nil {
			f.beforeFail(f)
		}
		return f.setErr
	}
	if !seq.InRange(index) {
		return &APIError{StatusCode: 422, Kind: "out_of_range"}
	}
	seq[index] = status
	return nil
}

func (f *fakeBackend) SetSheetStatus(_ context.Context, _ int64, index int, status models.SheetStatus) error {
	return f.set(f.material().SheetStatuses, index, status)
}

func (f *fakeBackend) SetRecutSheetStatus(_ context.Context, _ int64, index int, status models.SheetStatus) error {
	return f.set(f.material().Recuts[0].SheetStatuses, index, status)
}

func quietReconciler(b Backend, opts ReconcilerOptions) *Reconciler {
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewReconciler(b, 1, opts)
}

func TestActivateCyclesAndConfirms(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(models.SheetPending, models.SheetPending)
	rec := quietReconciler(backend, ReconcilerOptions{})
	require.NoError(t, rec.Refresh(ctx))

	key := Key{Kind: KindMaterial, EntityID: 5, Index: 1}
	for _, want := range []models.SheetStatus{models.SheetCut, models.SheetSkip, models.SheetPending} {
		got, err := rec.Activate(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		status, ok := rec.Status(key)
		require.True(t, ok)
		assert.Equal(t, want, status)
		assert.False(t, rec.Pending(key))
	}
	assert.Equal(t, []models.SheetStatus{models.SheetCut, models.SheetSkip, models.SheetPending}, backend.sent)
	assert.Equal(t, 4, backend.gets)
}

func TestActivateShowsOptimisticValueWhileInFlight(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(models.SheetPending)
	backend.started = make(chan models.SheetStatus, 2)
	first, second := make(chan struct{}), make(chan struct{})
	backend.gates = []chan struct{}{first, second}
	rec := quietReconciler(backend, ReconcilerOptions{})
	require.NoError(t, rec.Refresh(ctx))
	key := Key{Kind: KindMaterial, EntityID: 5, Index: 0}

	doneA := make(chan struct{})
	go func() {
		defer close(doneA)
		_, _ = rec.Activate(ctx, key)
	}()
	assert.Equal(t, models.SheetCut, <-backend.started)

	status, _ := rec.Status(key)
	assert.Equal(t, models.SheetCut, status)
	confirmed, _ := rec.Confirmed(key)
	assert.Equal(t, models.SheetPending, confirmed)
	assert.True(t, rec.Pending(key))

	// a second click before the first answer cycles from the optimistic value
	doneB := make(chan struct{})
	go func() {
		defer close(doneB)
		_, _ = rec.Activate(ctx, key)
	}()
	assert.Equal(t, models.SheetSkip, <-backend.started)

	close(first)
	<-doneA
	status, _ = rec.Status(key)
	assert.Equal(t, models.SheetSkip, status, "later click still in flight keeps its value")
	assert.True(t, rec.Pending(key))

	close(second)
	<-doneB
	status, _ = rec.Status(key)
	assert.Equal(t, models.SheetSkip, status)
	assert.False(t, rec.Pending(key))
}

func TestActivateFailureRollsBackToFreshServerValue(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(models.SheetPending, models.SheetPending)
	var gotKey Key
	var gotErr error
	rec := quietReconciler(backend, ReconcilerOptions{OnError: func(k Key, err error) { gotKey, gotErr = k, err }})
	require.NoError(t, rec.Refresh(ctx))

	failure := &APIError{StatusCode: 500, Kind: "storage_failure"}
	backend.setErr = failure
	// another operator marks the sheet skipped while our request fails
	backend.beforeFail = func(f *fakeBackend) { f.material().SheetStatuses[1] = models.SheetSkip }

	key := Key{Kind: KindMaterial, EntityID: 5, Index: 1}
	next, err := rec.Activate(ctx, key)
	require.ErrorIs(t, err, failure)
	assert.Equal(t, models.SheetCut, next)

	status, _ := rec.Status(key)
	assert.Equal(t, models.SheetSkip, status, "rolls back to the server value, not the click-time value")
	assert.False(t, rec.Pending(key))
	assert.Equal(t, key, gotKey)
	assert.ErrorIs(t, gotErr, failure)
}

func TestActivateFailureWithoutRefetchUsesCachedServerValue(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(models.SheetCut)
	rec := quietReconciler(backend, ReconcilerOptions{})
	require.NoError(t, rec.Refresh(ctx))

	backend.setErr = errors.New("connection reset")
	backend.getErr = errors.New("connection reset")
	key := Key{Kind: KindMaterial, EntityID: 5, Index: 0}
	_, err := rec.Activate(ctx, key)
	require.Error(t, err)

	status, ok := rec.Status(key)
	require.True(t, ok)
	assert.Equal(t, models.SheetCut, status)
}

func TestActivateOutOfRangeIndexRollsBack(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(models.SheetPending)
	rec := quietReconciler(backend, ReconcilerOptions{})
	require.NoError(t, rec.Refresh(ctx))

	key := Key{Kind: KindMaterial, EntityID: 5, Index: 4}
	_, err := rec.Activate(ctx, key)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "out_of_range", apiErr.Kind)
	_, ok := rec.Status(key)
	assert.False(t, ok)
}

func TestActivateRecutRefreshesRecutList(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend(models.SheetPending)
	rec := quietReconciler(backend, ReconcilerOptions{})
	require.NoError(t, rec.Refresh(ctx))
	gets := backend.gets

	key := Key{Kind: KindRecut, EntityID: 9, Index: 1}
	_, err := rec.Activate(ctx, key)
	require.NoError(t, err)
	status, _ := rec.Status(key)
	assert.Equal(t, models.SheetCut, status)
	assert.Equal(t, gets, backend.gets, "recut refresh should not reload the whole job")
}

func TestRefreshCallsOnChange(t *testing.T) {
	backend := newFakeBackend(models.SheetCut, models.SheetPending)
	changed := make(chan JobDetail, 1)
	rec := quietReconciler(backend, ReconcilerOptions{OnChange: func(d JobDetail) { changed <- d }})
	require.NoError(t, rec.Refresh(context.Background()))

	select {
	case d := <-changed:
		assert.Equal(t, int64(1), d.Job.ID)
	case <-time.After(time.Second):
		t.Fatal("OnChange not called")
	}
	assert.Equal(t, []int64{5}, rec.MaterialIDs())
}
