package models

import (
	"time"

	"github.com/uptrace/bun"
)

// User represents an authenticated app user.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,unique,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         string    `bun:"role,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Session is used by middleware and auth handlers.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:s"`

	ID                string         `bun:"id,pk"`
	UserID            int64          `bun:"user_id,notnull"`
	User              User           `bun:"rel:belongs-to,join:user_id=id"`
	UserRoles         []string       `bun:"-"`
	ScreenPermissions map[string]int `bun:"-"`
	ExpiresAt         time.Time      `bun:"expires_at,notnull"`
	CreatedAt         time.Time      `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt         time.Time      `bun:"updated_at,notnull,default:current_timestamp"`
}

// Expired returns true when the session expiry time has passed.
func (s Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// Job is a customer cutting job. Cutlists hang off it.
type Job struct {
	bun.BaseModel `bun:"table:jobs,alias:j"`

	ID              int64      `bun:"id,pk,autoincrement" json:"id"`
	Name            string     `bun:"name,notnull" json:"name"`
	Customer        string     `bun:"customer,notnull" json:"customer"`
	Notes           string     `bun:"notes,notnull,default:''" json:"notes"`
	Status          string     `bun:"status,notnull" json:"status"`
	DueDate         *time.Time `bun:"due_date" json:"dueDate,omitempty"`
	CreatedByUserID int64      `bun:"created_by_user_id,notnull" json:"createdByUserId"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Cutlists []*Cutlist `bun:"rel:has-many,join:id=job_id" json:"cutlists"`
}

// Cutlist groups the sheet materials cut for one job.
type Cutlist struct {
	bun.BaseModel `bun:"table:cutlists,alias:cl"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	JobID     int64     `bun:"job_id,notnull" json:"jobId"`
	Name      string    `bun:"name,notnull" json:"name"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`

	Materials []*Material `bun:"rel:has-many,join:id=cutlist_id" json:"materials"`
}

// Material is a batch of sheet stock on a cutlist.
//
// SheetStatuses always has exactly TotalSheets entries and CompletedSheets is
// the number of entries that are SheetCut.
type Material struct {
	bun.BaseModel `bun:"table:materials,alias:m"`

	ID              int64         `bun:"id,pk,autoincrement" json:"id"`
	CutlistID       int64         `bun:"cutlist_id,notnull" json:"cutlistId"`
	Color           string        `bun:"color,notnull" json:"color"`
	Thickness       string        `bun:"thickness,notnull,default:''" json:"thickness"`
	SheetSize       string        `bun:"sheet_size,notnull,default:''" json:"sheetSize"`
	TotalSheets     int           `bun:"total_sheets,notnull" json:"totalSheets"`
	CompletedSheets int           `bun:"completed_sheets,notnull" json:"completedSheets"`
	SheetStatuses   SheetStatuses `bun:"sheet_statuses,notnull" json:"sheetStatuses"`
	CreatedAt       time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time     `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`

	Recuts []*RecutEntry `bun:"rel:has-many,join:id=material_id" json:"recuts"`
}

// RecutEntry is a rework batch tied to a material with its own sheet sequence.
type RecutEntry struct {
	bun.BaseModel `bun:"table:recut_entries,alias:re"`

	ID              int64         `bun:"id,pk,autoincrement" json:"id"`
	MaterialID      int64         `bun:"material_id,notnull" json:"materialId"`
	Quantity        int           `bun:"quantity,notnull" json:"quantity"`
	Reason          string        `bun:"reason,notnull,default:''" json:"reason"`
	CreatedByUserID int64         `bun:"created_by_user_id,notnull" json:"createdByUserId"`
	CompletedSheets int           `bun:"completed_sheets,notnull" json:"completedSheets"`
	SheetStatuses   SheetStatuses `bun:"sheet_statuses,notnull" json:"sheetStatuses"`
	CreatedAt       time.Time     `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt       time.Time     `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// AuditLog captures immutable change history for key operations.
type AuditLog struct {
	bun.BaseModel `bun:"table:audit_logs,alias:al"`

	ID         int64     `bun:"id,pk,autoincrement"`
	UserID     int64     `bun:"user_id,notnull"`
	Action     string    `bun:"action,notnull"`
	EntityType string    `bun:"entity_type,notnull"`
	EntityID   string    `bun:"entity_id,notnull"`
	BeforeJSON string    `bun:"before_json"`
	AfterJSON  string    `bun:"after_json"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
