package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cuttracker/models"
)

// Kind names which sheet sequence a key points into.
type Kind string

const (
	KindMaterial Kind = "material"
	KindRecut    Kind = "recut"
)

// Key addresses one sheet cell.
type Key struct {
	Kind     Kind
	EntityID int64
	Index    int
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d/%d", k.Kind, k.EntityID, k.Index)
}

type entity struct {
	Kind Kind
	ID   int64
}

func (k Key) entity() entity { return entity{Kind: k.Kind, ID: k.EntityID} }

// Backend is the slice of API the reconciler drives.
type Backend interface {
	GetJob(ctx context.Context, jobID int64) (JobDetail, error)
	ListRecuts(ctx context.Context, materialID int64) ([]models.RecutEntry, error)
	SetSheetStatus(ctx context.Context, materialID int64, index int, status models.SheetStatus) error
	SetRecutSheetStatus(ctx context.Context, recutID int64, index int, status models.SheetStatus) error
}

// ReconcilerOptions holds optional callbacks.
type ReconcilerOptions struct {
	// OnError is called after a failed mutation has been rolled back.
	OnError func(key Key, err error)
	// OnChange is called after server state for the job was applied.
	OnChange func(detail JobDetail)
	Logger   *slog.Logger
}

// Reconciler keeps the displayed sheet statuses of one job. Clicks are
// applied locally first and replaced by server state once it arrives.
type Reconciler struct {
	backend Backend
	jobID   int64
	opts    ReconcilerOptions
	log     *slog.Logger

	mu         sync.Mutex
	confirmed  map[entity]models.SheetStatuses
	optimistic map[Key]models.SheetStatus
	inflight   map[Key]int
	recutOwner map[int64]int64
	detail     JobDetail
	loaded     bool
}

func NewReconciler(backend Backend, jobID int64, opts ReconcilerOptions) *Reconciler {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		backend:    backend,
		jobID:      jobID,
		opts:       opts,
		log:        log.With(slog.String("component", "reconciler"), slog.Int64("job_id", jobID)),
		confirmed:  make(map[entity]models.SheetStatuses),
		optimistic: make(map[Key]models.SheetStatus),
		inflight:   make(map[Key]int),
		recutOwner: make(map[int64]int64),
	}
}

// JobID is the job this reconciler tracks.
func (r *Reconciler) JobID() int64 { return r.jobID }

// Status returns the displayed value of a cell: the optimistic value when a
// click is outstanding, else the last server-confirmed value.
func (r *Reconciler) Status(key Key) (models.SheetStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.displayedLocked(key)
}

// Confirmed returns the last server-confirmed value of a cell.
func (r *Reconciler) Confirmed(key Key) (models.SheetStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.confirmedLocked(key)
}

// Pending reports whether the cell shows an unconfirmed value.
func (r *Reconciler) Pending(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.optimistic[key]
	return ok
}

// Detail returns the last job tree received from the server.
func (r *Reconciler) Detail() (JobDetail, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.detail, r.loaded
}

// MaterialIDs lists the materials of the last loaded job.
func (r *Reconciler) MaterialIDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for _, cl := range r.detail.Job.Cutlists {
		for _, m := range cl.Materials {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (r *Reconciler) confirmedLocked(key Key) (models.SheetStatus, bool) {
	seq, ok := r.confirmed[key.entity()]
	if !ok || !seq.InRange(key.Index) {
		return "", false
	}
	return seq[key.Index], true
}

func (r *Reconciler) displayedLocked(key Key) (models.SheetStatus, bool) {
	if s, ok := r.optimistic[key]; ok {
		return s, true
	}
	return r.confirmedLocked(key)
}

// Activate advances a cell one step along pending -> cut -> skip -> pending,
// shows the new value at once and sends it. Every call sends its own request,
// so two quick calls cycle twice.
//
// On success the job is refetched. On failure the cell falls back to the
// server-confirmed value, refetched at that moment when possible, and
// OnError is called. The returned status is the one that was requested.
func (r *Reconciler) Activate(ctx context.Context, key Key) (models.SheetStatus, error) {
	r.mu.Lock()
	current, ok := r.displayedLocked(key)
	if !ok {
		current = models.SheetPending
	}
	next := current.Next()
	r.optimistic[key] = next
	r.inflight[key]++
	r.mu.Unlock()

	var err error
	switch key.Kind {
	case KindMaterial:
		err = r.backend.SetSheetStatus(ctx, key.EntityID, key.Index, next)
	case KindRecut:
		err = r.backend.SetRecutSheetStatus(ctx, key.EntityID, key.Index, next)
	default:
		err = fmt.Errorf("unknown sheet kind %q", key.Kind)
	}

	r.mu.Lock()
	r.inflight[key]--
	if r.inflight[key] <= 0 {
		delete(r.inflight, key)
	}
	if err == nil {
		r.setConfirmedLocked(key, next)
	}
	r.mu.Unlock()

	if err != nil {
		r.log.Warn("sheet status update failed", slog.String("key", key.String()), slog.String("status", string(next)), slog.Any("err", err))
		r.rollback(ctx, key)
		if r.opts.OnError != nil {
			r.opts.OnError(key, err)
		}
		return next, err
	}

	if rerr := r.refreshFor(ctx, key); rerr != nil {
		r.log.Warn("refetch after update failed", slog.String("key", key.String()), slog.Any("err", rerr))
		r.mu.Lock()
		r.settleLocked(key)
		r.mu.Unlock()
	}
	return next, nil
}

// setConfirmedLocked records a value the server accepted.
func (r *Reconciler) setConfirmedLocked(key Key, status models.SheetStatus) {
	e := key.entity()
	seq, ok := r.confirmed[e]
	if !ok || !seq.InRange(key.Index) {
		return
	}
	r.confirmed[e] = seq.Set(key.Index, status)
}

// settleLocked drops the optimistic value of a cell unless a later click on
// it is still in flight.
func (r *Reconciler) settleLocked(key Key) {
	if r.inflight[key] == 0 {
		delete(r.optimistic, key)
	}
}

func (r *Reconciler) rollback(ctx context.Context, key Key) {
	if err := r.refreshFor(ctx, key); err != nil {
		r.log.Warn("refetch after failure failed, using cached state", slog.String("key", key.String()), slog.Any("err", err))
	}
	r.mu.Lock()
	r.settleLocked(key)
	r.mu.Unlock()
}

func (r *Reconciler) refreshFor(ctx context.Context, key Key) error {
	if key.Kind == KindRecut {
		r.mu.Lock()
		materialID, ok := r.recutOwner[key.EntityID]
		r.mu.Unlock()
		if ok {
			return r.RefreshRecuts(ctx, materialID)
		}
	}
	return r.Refresh(ctx)
}

// Refresh refetches the whole job and applies it.
func (r *Reconciler) Refresh(ctx context.Context) error {
	detail, err := r.backend.GetJob(ctx, r.jobID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.detail = detail
	r.loaded = true
	for _, cl := range detail.Job.Cutlists {
		for _, m := range cl.Materials {
			r.applyLocked(entity{Kind: KindMaterial, ID: m.ID}, m.SheetStatuses)
			for _, rc := range m.Recuts {
				r.recutOwner[rc.ID] = m.ID
				r.applyLocked(entity{Kind: KindRecut, ID: rc.ID}, rc.SheetStatuses)
			}
		}
	}
	r.mu.Unlock()
	if r.opts.OnChange != nil {
		r.opts.OnChange(detail)
	}
	return nil
}

// RefreshRecuts refetches the recut list of one material and applies it.
func (r *Reconciler) RefreshRecuts(ctx context.Context, materialID int64) error {
	recuts, err := r.backend.ListRecuts(ctx, materialID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	for _, rc := range recuts {
		r.recutOwner[rc.ID] = materialID
		r.applyLocked(entity{Kind: KindRecut, ID: rc.ID}, rc.SheetStatuses)
	}
	r.mu.Unlock()
	return nil
}

// applyLocked stores server state for an entity. Optimistic values with no
// request in flight are superseded; those still in flight keep showing until
// their own response lands.
func (r *Reconciler) applyLocked(e entity, seq models.SheetStatuses) {
	r.confirmed[e] = append(models.SheetStatuses(nil), seq...)
	for key := range r.optimistic {
		if key.entity() == e && r.inflight[key] == 0 {
			delete(r.optimistic, key)
		}
	}
}
