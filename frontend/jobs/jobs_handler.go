package jobs

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sessioncontext "cuttracker/frontend/shared/context"
	"cuttracker/frontend/shared/respond"
	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/broadcast"
	"cuttracker/infrastructure/rbac"
	"cuttracker/infrastructure/sheets"
	"cuttracker/infrastructure/sqlite"
)

func JobsPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := NormalizeFilter(r.URL.Query().Get("filter"))
		rows, err := ListJobs(r.Context(), db, filter)
		if err != nil {
			slog.Error("jobs: failed to list", slog.Any("err", err))
			http.Error(w, "failed to load jobs", http.StatusInternalServerError)
			return
		}

		data := PageData{
			Filter:       filter,
			CanEdit:      canEdit(r),
			Status:       strings.TrimSpace(r.URL.Query().Get("status")),
			ErrorMessage: strings.TrimSpace(r.URL.Query().Get("error")),
			Rows:         rows,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := JobsPage(data).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render jobs page", http.StatusInternalServerError)
			return
		}
	}
}

func CreateJobCommandHandler(db *sqlite.DB, auditSvc *audit.Service, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/tasker/jobs?error="+url.QueryEscape("Invalid form data"), http.StatusSeeOther)
			return
		}
		dueDate, err := parseOptionalDate(r.FormValue("due_date"))
		if err != nil {
			http.Redirect(w, r, "/tasker/jobs?error="+url.QueryEscape("Invalid due date"), http.StatusSeeOther)
			return
		}

		job, err := CreateJob(r.Context(), db, auditSvc, sessioncontext.UserID(r.Context()), CreateJobInput{
			Name:     r.FormValue("name"),
			Customer: r.FormValue("customer"),
			Notes:    r.FormValue("notes"),
			DueDate:  dueDate,
		})
		if err != nil {
			if !errors.Is(err, sheets.ErrInvalidArgument) {
				slog.Error("jobs: create failed", slog.Any("err", err))
			}
			http.Redirect(w, r, "/tasker/jobs?error="+url.QueryEscape(userMessage(err, "Failed to create job")), http.StatusSeeOther)
			return
		}

		hub.Notify(broadcast.EventJobCreated, broadcast.JobPayload{JobID: job.ID, Status: job.Status})
		http.Redirect(w, r, fmt.Sprintf("/tasker/jobs/%d?status=%s", job.ID, url.QueryEscape("Job created")), http.StatusSeeOther)
	}
}

func JobDetailPageQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := respond.IDParam(r, "id")
		if !ok {
			http.Error(w, "invalid job id", http.StatusBadRequest)
			return
		}
		job, err := LoadJobDetail(r.Context(), db, jobID)
		if err != nil {
			if errors.Is(err, sheets.ErrNotFound) {
				http.Error(w, "job not found", http.StatusNotFound)
				return
			}
			slog.Error("jobs: load detail failed", slog.Int64("job_id", jobID), slog.Any("err", err))
			http.Error(w, "failed to load job", http.StatusInternalServerError)
			return
		}
		activity, err := RecentActivity(r.Context(), db, job, 15)
		if err != nil {
			slog.Warn("jobs: load activity failed", slog.Int64("job_id", jobID), slog.Any("err", err))
		}

		data := DetailPageData{
			Job:          job,
			CanEdit:      canEdit(r),
			IsAdmin:      sessioncontext.HasRole(r.Context(), rbac.RoleAdmin),
			Status:       strings.TrimSpace(r.URL.Query().Get("status")),
			ErrorMessage: strings.TrimSpace(r.URL.Query().Get("error")),
			Activity:     activity,
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := JobDetailPage(data).Render(r.Context(), w); err != nil {
			http.Error(w, "failed to render job page", http.StatusInternalServerError)
			return
		}
	}
}

func UpdateJobStatusCommandHandler(db *sqlite.DB, auditSvc *audit.Service, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := respond.IDParam(r, "id")
		if !ok {
			http.Redirect(w, r, "/tasker/jobs?error="+url.QueryEscape("Invalid job id"), http.StatusSeeOther)
			return
		}
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, jobURL(jobID, "error", "Invalid form data"), http.StatusSeeOther)
			return
		}
		status := strings.TrimSpace(r.FormValue("status"))
		if err := SetJobStatus(r.Context(), db, auditSvc, sessioncontext.UserID(r.Context()), jobID, status); err != nil {
			if errors.Is(err, sheets.ErrNotFound) {
				http.Redirect(w, r, "/tasker/jobs?error="+url.QueryEscape("Job not found"), http.StatusSeeOther)
				return
			}
			http.Redirect(w, r, jobURL(jobID, "error", userMessage(err, "Failed to update job status")), http.StatusSeeOther)
			return
		}
		hub.Notify(broadcast.EventJobUpdated, broadcast.JobPayload{JobID: jobID, Status: status})
		http.Redirect(w, r, jobURL(jobID, "status", "Status set to "+statusLabel(status)), http.StatusSeeOther)
	}
}

func DeleteJobCommandHandler(db *sqlite.DB, auditSvc *audit.Service, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := respond.IDParam(r, "id")
		if !ok {
			http.Redirect(w, r, "/tasker/jobs?error="+url.QueryEscape("Invalid job id"), http.StatusSeeOther)
			return
		}
		if err := DeleteJob(r.Context(), db, auditSvc, sessioncontext.UserID(r.Context()), jobID); err != nil {
			http.Redirect(w, r, "/tasker/jobs?error="+url.QueryEscape(userMessage(err, "Failed to delete job")), http.StatusSeeOther)
			return
		}
		hub.Notify(broadcast.EventJobDeleted, broadcast.JobPayload{JobID: jobID})
		http.Redirect(w, r, "/tasker/jobs?status="+url.QueryEscape("Job deleted"), http.StatusSeeOther)
	}
}

// JobDetailQueryHandler returns the authoritative job record clients
// reconcile against.
func JobDetailQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid job id")
			return
		}
		job, err := LoadJobDetail(r.Context(), db, jobID)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}
		respond.OK(w, map[string]any{"job": job, "progress": JobProgress(job)})
	}
}

func CreateCutlistCommandHandler(db *sqlite.DB, auditSvc *audit.Service, hub *broadcast.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := respond.IDParam(r, "id")
		if !ok {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid job id")
			return
		}
		var req CreateCutlistRequest
		if err := respond.Decode(r, &req); err != nil {
			respond.Error(w, http.StatusBadRequest, "invalid_argument", "invalid request body")
			return
		}
		cl, err := CreateCutlist(r.Context(), db, auditSvc, sessioncontext.UserID(r.Context()), jobID, req.Name)
		if err != nil {
			respond.StoreError(w, r, err)
			return
		}
		hub.Notify(broadcast.EventCutlistCreated, broadcast.CutlistPayload{JobID: jobID, CutlistID: cl.ID})
		respond.JSON(w, http.StatusCreated, map[string]any{"ok": true, "cutlist": cl})
	}
}

func TravelerPDFQueryHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := respond.IDParam(r, "id")
		if !ok {
			http.Error(w, "invalid job id", http.StatusBadRequest)
			return
		}
		job, err := LoadJobDetail(r.Context(), db, jobID)
		if err != nil {
			if errors.Is(err, sheets.ErrNotFound) {
				http.Error(w, "job not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to load job", http.StatusInternalServerError)
			return
		}
		pdfBytes, err := renderTravelerPDF(job, time.Now())
		if err != nil {
			slog.Error("jobs: render traveler failed", slog.Int64("job_id", jobID), slog.Any("err", err))
			http.Error(w, "failed to render traveler", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", "inline; filename="+TravelerCode(jobID)+".pdf")
		_, _ = w.Write(pdfBytes)
	}
}

func JobExportXLSXHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID, ok := respond.IDParam(r, "id")
		if !ok {
			http.Error(w, "invalid job id", http.StatusBadRequest)
			return
		}
		job, err := LoadJobDetail(r.Context(), db, jobID)
		if err != nil {
			if errors.Is(err, sheets.ErrNotFound) {
				http.Error(w, "job not found", http.StatusNotFound)
				return
			}
			http.Error(w, "failed to load job", http.StatusInternalServerError)
			return
		}
		f, err := buildJobWorkbook(job)
		if err != nil {
			slog.Error("jobs: build workbook failed", slog.Int64("job_id", jobID), slog.Any("err", err))
			http.Error(w, "failed to export job", http.StatusInternalServerError)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename=job-"+strconv.FormatInt(jobID, 10)+".xlsx")
		if err := f.Write(w); err != nil {
			slog.Error("jobs: write workbook failed", slog.Int64("job_id", jobID), slog.Any("err", err))
		}
	}
}

func JobsExportCSVHandler(db *sqlite.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := ListJobs(r.Context(), db, NormalizeFilter(r.URL.Query().Get("filter")))
		if err != nil {
			http.Error(w, "failed to load jobs", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", "attachment; filename=jobs.csv")
		if err := writeJobsCSV(w, rows); err != nil {
			slog.Error("jobs: write csv failed", slog.Any("err", err))
		}
	}
}

func canEdit(r *http.Request) bool {
	return sessioncontext.HasRole(r.Context(), rbac.RoleAdmin) || sessioncontext.HasRole(r.Context(), rbac.RoleOperator)
}

func parseOptionalDate(raw string) (*time.Time, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func jobURL(jobID int64, key, msg string) string {
	return fmt.Sprintf("/tasker/jobs/%d?%s=%s", jobID, key, url.QueryEscape(msg))
}

// userMessage returns err's text for validation errors and fallback otherwise.
func userMessage(err error, fallback string) string {
	if errors.Is(err, sheets.ErrInvalidArgument) || errors.Is(err, sheets.ErrNotFound) {
		msg := err.Error()
		if i := strings.LastIndex(msg, ": "); i > 0 {
			msg = msg[:i]
		}
		return msg
	}
	return fallback
}
