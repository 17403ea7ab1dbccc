package audit

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/uptrace/bun"

	"cuttracker/models"
)

// Entity types recorded in audit_logs.entity_type.
const (
	EntityJobs      = "jobs"
	EntityCutlists  = "cutlists"
	EntityMaterials = "materials"
	EntityRecuts    = "recut_entries"
	EntityUsers     = "users"
)

// Service writes audit records inside the caller transaction.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Write(ctx context.Context, tx bun.Tx, userID int64, action, entityType, entityID string, before, after any) error {
	if s == nil {
		return nil
	}
	beforeJSON, err := marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return err
	}
	_, err = tx.NewInsert().Model(&models.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
	}).Exec(ctx)
	return err
}

// WriteID is Write with an int64 entity id.
func (s *Service) WriteID(ctx context.Context, tx bun.Tx, userID int64, action, entityType string, entityID int64, before, after any) error {
	return s.Write(ctx, tx, userID, action, entityType, strconv.FormatInt(entityID, 10), before, after)
}

// Entry is one audit row joined with the acting username.
type Entry struct {
	ID         int64  `bun:"id"`
	Username   string `bun:"username"`
	Action     string `bun:"action"`
	EntityType string `bun:"entity_type"`
	EntityID   string `bun:"entity_id"`
	AfterJSON  string `bun:"after_json"`
	CreatedAt  string `bun:"created_at"`
}

// Recent returns the newest audit rows for the given entities, newest first.
func Recent(ctx context.Context, tx bun.Tx, entityType string, entityIDs []string, limit int) ([]Entry, error) {
	out := make([]Entry, 0)
	if len(entityIDs) == 0 {
		return out, nil
	}
	if limit <= 0 {
		limit = 20
	}
	err := tx.NewRaw(`
SELECT al.id, COALESCE(u.username, '') AS username, al.action, al.entity_type, al.entity_id,
       COALESCE(al.after_json, '') AS after_json,
       strftime('%d/%m/%Y %H:%M', al.created_at) AS created_at
FROM audit_logs al
LEFT JOIN users u ON u.id = al.user_id
WHERE al.entity_type = ? AND al.entity_id IN (?)
ORDER BY al.id DESC
LIMIT ?`, entityType, bun.In(entityIDs), limit).Scan(ctx, &out)
	return out, err
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
