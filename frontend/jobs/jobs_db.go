package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/sheets"
	"cuttracker/infrastructure/sqlite"
	"cuttracker/models"
)

// NormalizeFilter maps the list filter query value; unknown values mean "active".
func NormalizeFilter(raw string) string {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "all" || ValidStatus(v) {
		return v
	}
	return "active"
}

func ListJobs(ctx context.Context, db *sqlite.DB, filter string) ([]JobRow, error) {
	rows := make([]JobRow, 0)
	where := ""
	args := []any{}
	switch filter {
	case "all":
	case "active":
		where = "WHERE j.status IN (?, ?)"
		args = append(args, StatusOpen, StatusInProgress)
	default:
		where = "WHERE j.status = ?"
		args = append(args, filter)
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`
SELECT j.id, j.name, j.customer, j.status,
       COALESCE(strftime('%d/%m/%Y', j.due_date), '') AS due_date,
       (SELECT COUNT(*) FROM cutlists cl WHERE cl.job_id = j.id) AS cutlist_count,
       COUNT(m.id) AS material_count,
       COALESCE(SUM(m.total_sheets), 0) AS total_sheets,
       COALESCE(SUM(m.completed_sheets), 0) AS completed_sheets
FROM jobs j
LEFT JOIN cutlists cl ON cl.job_id = j.id
LEFT JOIN materials m ON m.cutlist_id = cl.id
`+where+`
GROUP BY j.id
ORDER BY j.id DESC`, args...).Scan(ctx, &rows)
	})
	return rows, err
}

func CreateJob(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID int64, in CreateJobInput) (models.Job, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Customer = strings.TrimSpace(in.Customer)
	if in.Name == "" {
		return models.Job{}, fmt.Errorf("job name is required: %w", sheets.ErrInvalidArgument)
	}
	if in.Customer == "" {
		return models.Job{}, fmt.Errorf("customer is required: %w", sheets.ErrInvalidArgument)
	}

	now := time.Now()
	job := models.Job{
		Name:            in.Name,
		Customer:        in.Customer,
		Notes:           strings.TrimSpace(in.Notes),
		Status:          StatusOpen,
		DueDate:         in.DueDate,
		CreatedByUserID: userID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&job).Exec(ctx); err != nil {
			return err
		}
		return auditSvc.WriteID(ctx, tx, userID, "job.create", audit.EntityJobs, job.ID, nil, job)
	})
	if err != nil {
		return models.Job{}, err
	}
	return job, nil
}

// LoadJobDetail loads a job with its cutlists, materials and recut entries,
// each level ordered by id.
func LoadJobDetail(ctx context.Context, db *sqlite.DB, jobID int64) (models.Job, error) {
	var job models.Job
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&job).
			Where("j.id = ?", jobID).
			Relation("Cutlists", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.OrderExpr("id ASC")
			}).
			Relation("Cutlists.Materials", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.OrderExpr("id ASC")
			}).
			Relation("Cutlists.Materials.Recuts", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.OrderExpr("id ASC")
			}).
			Limit(1).
			Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Job{}, fmt.Errorf("job %d: %w", jobID, sheets.ErrNotFound)
	}
	if err != nil {
		return models.Job{}, err
	}
	if job.Cutlists == nil {
		job.Cutlists = []*models.Cutlist{}
	}
	return job, nil
}

func SetJobStatus(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID, jobID int64, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unknown job status %q: %w", status, sheets.ErrInvalidArgument)
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var before string
		if err := tx.NewRaw(`SELECT status FROM jobs WHERE id = ?`, jobID).Scan(ctx, &before); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("job %d: %w", jobID, sheets.ErrNotFound)
			}
			return err
		}
		if _, err := tx.NewUpdate().Model((*models.Job)(nil)).
			Set("status = ?", status).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", jobID).
			Exec(ctx); err != nil {
			return err
		}
		return auditSvc.WriteID(ctx, tx, userID, "job.status", audit.EntityJobs, jobID,
			map[string]any{"status": before}, map[string]any{"status": status})
	})
}

// DeleteJob removes a job; cutlists, materials and recuts go with it.
func DeleteJob(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID, jobID int64) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var job models.Job
		if err := tx.NewSelect().Model(&job).Where("j.id = ?", jobID).Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("job %d: %w", jobID, sheets.ErrNotFound)
			}
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Job)(nil)).Where("id = ?", jobID).Exec(ctx); err != nil {
			return err
		}
		return auditSvc.WriteID(ctx, tx, userID, "job.delete", audit.EntityJobs, jobID, job, nil)
	})
}

func CreateCutlist(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, userID, jobID int64, name string) (models.Cutlist, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Cutlist{}, fmt.Errorf("cutlist name is required: %w", sheets.ErrInvalidArgument)
	}
	cl := models.Cutlist{JobID: jobID, Name: name, CreatedAt: time.Now()}
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var exists int
		if err := tx.NewRaw(`SELECT COUNT(*) FROM jobs WHERE id = ?`, jobID).Scan(ctx, &exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("job %d: %w", jobID, sheets.ErrNotFound)
		}
		if _, err := tx.NewInsert().Model(&cl).Exec(ctx); err != nil {
			return err
		}
		return auditSvc.WriteID(ctx, tx, userID, "cutlist.create", audit.EntityCutlists, cl.ID, nil, cl)
	})
	if err != nil {
		return models.Cutlist{}, err
	}
	cl.Materials = []*models.Material{}
	return cl, nil
}

// RecentActivity returns audit rows touching the job and its materials.
func RecentActivity(ctx context.Context, db *sqlite.DB, job models.Job, limit int) ([]audit.Entry, error) {
	materialIDs := make([]string, 0)
	for _, cl := range job.Cutlists {
		for _, m := range cl.Materials {
			materialIDs = append(materialIDs, strconv.FormatInt(m.ID, 10))
		}
	}
	var out []audit.Entry
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		jobRows, err := audit.Recent(ctx, tx, audit.EntityJobs, []string{strconv.FormatInt(job.ID, 10)}, limit)
		if err != nil {
			return err
		}
		materialRows, err := audit.Recent(ctx, tx, audit.EntityMaterials, materialIDs, limit)
		if err != nil {
			return err
		}
		out = mergeNewestFirst(jobRows, materialRows, limit)
		return nil
	})
	return out, err
}

func mergeNewestFirst(a, b []audit.Entry, limit int) []audit.Entry {
	out := make([]audit.Entry, 0, len(a)+len(b))
	i, j := 0, 0
	for (i < len(a) || j < len(b)) && (limit <= 0 || len(out) < limit) {
		if j >= len(b) || (i < len(a) && a[i].ID > b[j].ID) {
			out = append(out, a[i])
			i++
			continue
		}
		out = append(out, b[j])
		j++
	}
	return out
}
