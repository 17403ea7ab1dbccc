package jobs

import (
	"time"

	"cuttracker/infrastructure/audit"
	"cuttracker/models"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var Statuses = []string{StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled}

func ValidStatus(status string) bool {
	for _, s := range Statuses {
		if s == status {
			return true
		}
	}
	return false
}

type CreateJobInput struct {
	Name     string
	Customer string
	Notes    string
	DueDate  *time.Time
}

// JobRow is one line of the jobs list with sheet progress rolled up.
type JobRow struct {
	ID              int64  `bun:"id"`
	Name            string `bun:"name"`
	Customer        string `bun:"customer"`
	Status          string `bun:"status"`
	DueDate         string `bun:"due_date"`
	CutlistCount    int    `bun:"cutlist_count"`
	MaterialCount   int    `bun:"material_count"`
	TotalSheets     int    `bun:"total_sheets"`
	CompletedSheets int    `bun:"completed_sheets"`
}

func (r JobRow) Percent() int {
	if r.TotalSheets == 0 {
		return 0
	}
	return r.CompletedSheets * 100 / r.TotalSheets
}

type PageData struct {
	Filter       string
	CanEdit      bool
	Status       string
	ErrorMessage string
	Rows         []JobRow
}

type DetailPageData struct {
	Job          models.Job
	CanEdit      bool
	IsAdmin      bool
	Status       string
	ErrorMessage string
	Activity     []audit.Entry
}

// Progress sums material sheets across every cutlist of a job.
type Progress struct {
	TotalSheets     int `json:"totalSheets"`
	CompletedSheets int `json:"completedSheets"`
	SkippedSheets   int `json:"skippedSheets"`
	RecutSheets     int `json:"recutSheets"`
	RecutCompleted  int `json:"recutCompleted"`
}

func JobProgress(job models.Job) Progress {
	var p Progress
	for _, cl := range job.Cutlists {
		for _, m := range cl.Materials {
			p.TotalSheets += m.TotalSheets
			p.CompletedSheets += m.CompletedSheets
			for _, s := range m.SheetStatuses {
				if s == models.SheetSkip {
					p.SkippedSheets++
				}
			}
			for _, r := range m.Recuts {
				p.RecutSheets += r.Quantity
				p.RecutCompleted += r.CompletedSheets
			}
		}
	}
	return p
}

type CreateCutlistRequest struct {
	Name string `json:"name"`
}
