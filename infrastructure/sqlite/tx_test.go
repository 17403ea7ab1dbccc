package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"
)

func testMigrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	return filepath.Join(filepath.Dir(file), "migrations")
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := ApplyMigrations(context.Background(), db, testMigrationsDir(t)); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

func insertJob(ctx context.Context, tx bun.Tx, name string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO jobs (name, customer, status, created_by_user_id) VALUES (?, 'Acme', 'open', 1)`, name)
	return err
}

func countJobs(t *testing.T, db *DB, name string) int {
	t.Helper()
	var count int
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM jobs WHERE name = ?`, name).Scan(ctx, &count)
	})
	if err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	return count
}

func TestWithWriteTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if err := insertJob(ctx, tx, "rollback-job"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got: %v", err)
	}
	if count := countJobs(t, db, "rollback-job"); count != 0 {
		t.Fatalf("expected rollback to remove insert, count=%d", count)
	}
}

func TestWithWriteTxCommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)

	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return insertJob(ctx, tx, "commit-job")
	})
	if err != nil {
		t.Fatalf("write tx failed: %v", err)
	}
	if count := countJobs(t, db, "commit-job"); count != 1 {
		t.Fatalf("expected committed insert, count=%d", count)
	}
}

func TestWithReadTxRejectsWrite(t *testing.T) {
	db := openTestDB(t)

	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return insertJob(ctx, tx, "read-only-job")
	})
	if err == nil && countJobs(t, db, "read-only-job") > 0 {
		t.Fatalf("expected write in read tx to be blocked; write succeeded")
	}
}

func TestNilDBReturnsError(t *testing.T) {
	var db *DB
	if err := db.WithWriteTx(context.Background(), func(context.Context, bun.Tx) error { return nil }); err == nil {
		t.Fatalf("expected error from nil db")
	}
}
