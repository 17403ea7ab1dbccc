package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/sheets"
	"cuttracker/infrastructure/sqlite"
	"cuttracker/models"
)

func openJobsTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "jobs-test.db")
	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	migrationsDir := filepath.Join(filepath.Dir(file), "..", "..", "infrastructure", "sqlite", "migrations")
	if err := sqlite.ApplyMigrations(context.Background(), db, migrationsDir); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	err = db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, username, password_hash, role) VALUES (1, 'admin', 'hash', 'admin')`)
		return err
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return db
}

// seedJob creates a job with one cutlist holding two materials (4 and 2
// sheets) and a recut of 3 on the first material.
func seedJob(t *testing.T, db *sqlite.DB) (models.Job, *sheets.Store) {
	t.Helper()
	ctx := context.Background()
	auditSvc := audit.NewService()
	due := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	job, err := CreateJob(ctx, db, auditSvc, 1, CreateJobInput{Name: "Kitchen", Customer: "Acme", Notes: "Gloss doors", DueDate: &due})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	cl, err := CreateCutlist(ctx, db, auditSvc, 1, job.ID, "Carcasses")
	if err != nil {
		t.Fatalf("create cutlist: %v", err)
	}
	store := sheets.NewStore(db, auditSvc)
	first, err := store.CreateMaterial(ctx, 1, sheets.MaterialInput{CutlistID: cl.ID, Color: "White", Thickness: "18mm", TotalSheets: 4})
	if err != nil {
		t.Fatalf("create material: %v", err)
	}
	if _, err := store.CreateMaterial(ctx, 1, sheets.MaterialInput{CutlistID: cl.ID, Color: "Oak", TotalSheets: 2}); err != nil {
		t.Fatalf("create material: %v", err)
	}
	if _, err := store.SetSheetStatus(ctx, 1, first.Material.ID, 0, models.SheetCut); err != nil {
		t.Fatalf("cut: %v", err)
	}
	if _, err := store.SetSheetStatus(ctx, 1, first.Material.ID, 1, models.SheetSkip); err != nil {
		t.Fatalf("skip: %v", err)
	}
	if _, err := store.AddRecutEntry(ctx, 1, first.Material.ID, 3, "chipped"); err != nil {
		t.Fatalf("recut: %v", err)
	}
	return job, store
}

func TestCreateJob_Validation(t *testing.T) {
	db := openJobsTestDB(t)
	_, err := CreateJob(context.Background(), db, audit.NewService(), 1, CreateJobInput{Name: " ", Customer: "Acme"})
	if !errors.Is(err, sheets.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	_, err = CreateJob(context.Background(), db, audit.NewService(), 1, CreateJobInput{Name: "Job", Customer: ""})
	if !errors.Is(err, sheets.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestLoadJobDetail_LoadsNestedTree(t *testing.T) {
	db := openJobsTestDB(t)
	job, _ := seedJob(t, db)

	got, err := LoadJobDetail(context.Background(), db, job.ID)
	if err != nil {
		t.Fatalf("load detail: %v", err)
	}
	if got.Name != "Kitchen" || got.Status != StatusOpen {
		t.Fatalf("unexpected job %+v", got)
	}
	if len(got.Cutlists) != 1 || len(got.Cutlists[0].Materials) != 2 {
		t.Fatalf("expected 1 cutlist with 2 materials, got %+v", got.Cutlists)
	}
	first := got.Cutlists[0].Materials[0]
	if first.Color != "White" || first.CompletedSheets != 1 || first.SheetStatuses[1] != models.SheetSkip {
		t.Fatalf("unexpected first material %+v", first)
	}
	if len(first.Recuts) != 1 || first.Recuts[0].Quantity != 3 {
		t.Fatalf("expected one recut of 3, got %+v", first.Recuts)
	}

	p := JobProgress(got)
	if p.TotalSheets != 6 || p.CompletedSheets != 1 || p.SkippedSheets != 1 || p.RecutSheets != 3 {
		t.Fatalf("unexpected progress %+v", p)
	}
}

func TestLoadJobDetail_NotFound(t *testing.T) {
	db := openJobsTestDB(t)
	if _, err := LoadJobDetail(context.Background(), db, 42); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListJobs_RollsUpSheetsAndFilters(t *testing.T) {
	db := openJobsTestDB(t)
	job, _ := seedJob(t, db)
	ctx := context.Background()
	other, err := CreateJob(ctx, db, audit.NewService(), 1, CreateJobInput{Name: "Office", Customer: "Beta"})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := SetJobStatus(ctx, db, audit.NewService(), 1, other.ID, StatusCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}

	active, err := ListJobs(ctx, db, "active")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(active) != 1 || active[0].ID != job.ID {
		t.Fatalf("expected only the open job, got %+v", active)
	}
	row := active[0]
	if row.CutlistCount != 1 || row.MaterialCount != 2 || row.TotalSheets != 6 || row.CompletedSheets != 1 {
		t.Fatalf("unexpected rollup %+v", row)
	}
	if row.Percent() != 16 {
		t.Fatalf("expected 16%%, got %d", row.Percent())
	}

	all, err := ListJobs(ctx, db, "all")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 || all[0].ID != other.ID {
		t.Fatalf("expected newest first across all jobs, got %+v", all)
	}

	completed, _ := ListJobs(ctx, db, NormalizeFilter("COMPLETED"))
	if len(completed) != 1 || completed[0].Status != StatusCompleted {
		t.Fatalf("expected the completed job, got %+v", completed)
	}
}

func TestSetJobStatus_Errors(t *testing.T) {
	db := openJobsTestDB(t)
	job, _ := seedJob(t, db)
	ctx := context.Background()
	if err := SetJobStatus(ctx, db, audit.NewService(), 1, job.ID, "shipped"); !errors.Is(err, sheets.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if err := SetJobStatus(ctx, db, audit.NewService(), 1, 999, StatusOpen); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteJob_CascadesToMaterials(t *testing.T) {
	db := openJobsTestDB(t)
	job, _ := seedJob(t, db)
	ctx := context.Background()

	if err := DeleteJob(ctx, db, audit.NewService(), 1, job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var materials, recuts int
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewRaw(`SELECT COUNT(*) FROM materials`).Scan(ctx, &materials); err != nil {
			return err
		}
		return tx.NewRaw(`SELECT COUNT(*) FROM recut_entries`).Scan(ctx, &recuts)
	})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if materials != 0 || recuts != 0 {
		t.Fatalf("expected cascade delete, got materials=%d recuts=%d", materials, recuts)
	}
	if err := DeleteJob(ctx, db, audit.NewService(), 1, job.ID); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCreateCutlist_UnknownJob(t *testing.T) {
	db := openJobsTestDB(t)
	if _, err := CreateCutlist(context.Background(), db, audit.NewService(), 1, 77, "Doors"); !errors.Is(err, sheets.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRecentActivity_MergesJobAndMaterialRows(t *testing.T) {
	db := openJobsTestDB(t)
	job, _ := seedJob(t, db)
	ctx := context.Background()
	detail, err := LoadJobDetail(ctx, db, job.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	entries, err := RecentActivity(ctx, db, detail, 3)
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].ID < entries[i].ID {
			t.Fatalf("entries not newest first: %+v", entries)
		}
	}
	if entries[0].Action != "material.sheet_status" || entries[0].Username != "admin" {
		t.Fatalf("expected newest material status change by admin, got %+v", entries[0])
	}
}
