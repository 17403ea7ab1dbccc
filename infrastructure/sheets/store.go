package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"cuttracker/infrastructure/audit"
	"cuttracker/infrastructure/sqlite"
	"cuttracker/models"
)

// MaxSheets bounds the sheet count of one material or recut entry.
const MaxSheets = 10000

// checkCount rejects n outside [min, MaxSheets].
func checkCount(op, name string, n, min int) error {
	if n < min {
		return fmt.Errorf("%s: %s must be at least %d: %w", op, name, min, ErrInvalidArgument)
	}
	if n > MaxSheets {
		return fmt.Errorf("%s: %s must not exceed %d: %w", op, name, MaxSheets, ErrInvalidArgument)
	}
	return nil
}

// Store is the authoritative record of per-sheet status for materials and
// recut entries. Each operation runs in one write transaction, so the status
// sequence, the sheet count and the completed count always change together.
//
// Any of pending, cut or skip may be written to any index at any time; the
// click cycle is a client convention.
type Store struct {
	db    *sqlite.DB
	audit *audit.Service
}

func NewStore(db *sqlite.DB, auditSvc *audit.Service) *Store {
	return &Store{db: db, audit: auditSvc}
}

// MaterialChange is a committed material mutation plus the owning job id.
type MaterialChange struct {
	JobID    int64
	Material models.Material
}

// RecutChange is a committed recut mutation plus the owning job id.
type RecutChange struct {
	JobID int64
	Recut models.RecutEntry
}

// MaterialInput describes a new material on a cutlist.
type MaterialInput struct {
	CutlistID   int64
	Color       string
	Thickness   string
	SheetSize   string
	TotalSheets int
}

// CreateMaterial adds a material with an all-pending sheet sequence.
func (s *Store) CreateMaterial(ctx context.Context, userID int64, in MaterialInput) (MaterialChange, error) {
	const op = "create material"
	in.Color = strings.TrimSpace(in.Color)
	if in.Color == "" {
		return MaterialChange{}, fmt.Errorf("%s: color is required: %w", op, ErrInvalidArgument)
	}
	if err := checkCount(op, "total sheets", in.TotalSheets, 1); err != nil {
		return MaterialChange{}, err
	}

	var out MaterialChange
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var jobID int64
		if err := tx.NewRaw(`SELECT job_id FROM cutlists WHERE id = ?`, in.CutlistID).Scan(ctx, &jobID); err != nil {
			return err
		}
		now := time.Now()
		m := models.Material{
			CutlistID:     in.CutlistID,
			Color:         in.Color,
			Thickness:     strings.TrimSpace(in.Thickness),
			SheetSize:     strings.TrimSpace(in.SheetSize),
			TotalSheets:   in.TotalSheets,
			SheetStatuses: models.NewSheetStatuses(in.TotalSheets),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}
		if err := s.audit.WriteID(ctx, tx, userID, "material.create", audit.EntityMaterials, m.ID, nil, m); err != nil {
			return err
		}
		out = MaterialChange{JobID: jobID, Material: m}
		return nil
	})
	return out, classify(op, err)
}

// DeleteMaterial removes a material and, by cascade, its recut entries.
func (s *Store) DeleteMaterial(ctx context.Context, userID, materialID int64) (MaterialChange, error) {
	const op = "delete material"
	var out MaterialChange
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		m, jobID, err := loadMaterial(ctx, tx, materialID)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.Material)(nil)).Where("id = ?", materialID).Exec(ctx); err != nil {
			return err
		}
		if err := s.audit.WriteID(ctx, tx, userID, "material.delete", audit.EntityMaterials, materialID, m, nil); err != nil {
			return err
		}
		out = MaterialChange{JobID: jobID, Material: m}
		return nil
	})
	return out, classify(op, err)
}

// SetSheetStatus sets one sheet of a material and recomputes its completed count.
func (s *Store) SetSheetStatus(ctx context.Context, userID, materialID int64, sheetIndex int, status models.SheetStatus) (MaterialChange, error) {
	const op = "set sheet status"
	if !status.Valid() {
		return MaterialChange{}, fmt.Errorf("%s: unknown status %q: %w", op, status, ErrInvalidArgument)
	}
	return s.mutateMaterial(ctx, op, materialID, func(ctx context.Context, tx bun.Tx, m *models.Material) error {
		if !m.SheetStatuses.InRange(sheetIndex) {
			return outOfRange(op, sheetIndex, m.TotalSheets)
		}
		before := m.SheetStatuses[sheetIndex]
		m.SheetStatuses = m.SheetStatuses.Set(sheetIndex, status)
		return s.audit.WriteID(ctx, tx, userID, "material.sheet_status", audit.EntityMaterials, m.ID,
			map[string]any{"sheetIndex": sheetIndex, "status": before},
			map[string]any{"sheetIndex": sheetIndex, "status": status})
	})
}

// DeleteSheet removes one sheet; later sheets shift down by one index.
func (s *Store) DeleteSheet(ctx context.Context, userID, materialID int64, sheetIndex int) (MaterialChange, error) {
	const op = "delete sheet"
	return s.mutateMaterial(ctx, op, materialID, func(ctx context.Context, tx bun.Tx, m *models.Material) error {
		if !m.SheetStatuses.InRange(sheetIndex) {
			return outOfRange(op, sheetIndex, m.TotalSheets)
		}
		removed := m.SheetStatuses[sheetIndex]
		m.SheetStatuses = m.SheetStatuses.Remove(sheetIndex)
		return s.audit.WriteID(ctx, tx, userID, "material.sheet_delete", audit.EntityMaterials, m.ID,
			map[string]any{"sheetIndex": sheetIndex, "status": removed, "totalSheets": m.TotalSheets},
			map[string]any{"totalSheets": len(m.SheetStatuses)})
	})
}

// ResizeMaterial pads with pending sheets or truncates trailing sheets.
func (s *Store) ResizeMaterial(ctx context.Context, userID, materialID int64, totalSheets int) (MaterialChange, error) {
	const op = "resize material"
	if err := checkCount(op, "total sheets", totalSheets, 0); err != nil {
		return MaterialChange{}, err
	}
	return s.mutateMaterial(ctx, op, materialID, func(ctx context.Context, tx bun.Tx, m *models.Material) error {
		before := m.TotalSheets
		m.SheetStatuses = m.SheetStatuses.Resize(totalSheets)
		return s.audit.WriteID(ctx, tx, userID, "material.resize", audit.EntityMaterials, m.ID,
			map[string]any{"totalSheets": before},
			map[string]any{"totalSheets": totalSheets})
	})
}

// MaterialUpdate edits a material; nil fields are left unchanged.
type MaterialUpdate struct {
	Color       *string
	Thickness   *string
	SheetSize   *string
	TotalSheets *int
}

// UpdateMaterial edits the descriptive fields and, when TotalSheets is set,
// resizes the sheet sequence the same way ResizeMaterial does.
func (s *Store) UpdateMaterial(ctx context.Context, userID, materialID int64, in MaterialUpdate) (MaterialChange, error) {
	const op = "update material"
	if in.Color != nil && strings.TrimSpace(*in.Color) == "" {
		return MaterialChange{}, fmt.Errorf("%s: color is required: %w", op, ErrInvalidArgument)
	}
	if in.TotalSheets != nil {
		if err := checkCount(op, "total sheets", *in.TotalSheets, 0); err != nil {
			return MaterialChange{}, err
		}
	}
	return s.mutateMaterial(ctx, op, materialID, func(ctx context.Context, tx bun.Tx, m *models.Material) error {
		before := map[string]any{"color": m.Color, "thickness": m.Thickness, "sheetSize": m.SheetSize, "totalSheets": m.TotalSheets}
		if in.Color != nil {
			m.Color = strings.TrimSpace(*in.Color)
		}
		if in.Thickness != nil {
			m.Thickness = strings.TrimSpace(*in.Thickness)
		}
		if in.SheetSize != nil {
			m.SheetSize = strings.TrimSpace(*in.SheetSize)
		}
		if in.TotalSheets != nil {
			m.SheetStatuses = m.SheetStatuses.Resize(*in.TotalSheets)
		}
		if _, err := tx.NewUpdate().Model(m).
			Column("color", "thickness", "sheet_size").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		after := map[string]any{"color": m.Color, "thickness": m.Thickness, "sheetSize": m.SheetSize, "totalSheets": len(m.SheetStatuses)}
		return s.audit.WriteID(ctx, tx, userID, "material.update", audit.EntityMaterials, m.ID, before, after)
	})
}

// AddSheetsResult carries whichever entity AddSheets changed.
type AddSheetsResult struct {
	JobID    int64
	Material models.Material
	Recut    *models.RecutEntry
}

// AddSheets appends count pending sheets to the material, or when isRecut is
// set creates a new recut entry of quantity count instead.
func (s *Store) AddSheets(ctx context.Context, userID, materialID int64, count int, isRecut bool, reason string) (AddSheetsResult, error) {
	const op = "add sheets"
	if err := checkCount(op, "count", count, 1); err != nil {
		return AddSheetsResult{}, err
	}
	if isRecut {
		change, err := s.AddRecutEntry(ctx, userID, materialID, count, reason)
		if err != nil {
			return AddSheetsResult{}, err
		}
		m, err := s.LoadMaterial(ctx, materialID)
		if err != nil {
			return AddSheetsResult{}, err
		}
		recut := change.Recut
		return AddSheetsResult{JobID: change.JobID, Material: m, Recut: &recut}, nil
	}

	change, err := s.mutateMaterial(ctx, op, materialID, func(ctx context.Context, tx bun.Tx, m *models.Material) error {
		before := m.TotalSheets
		if count > MaxSheets-before {
			return fmt.Errorf("%s: %d sheets plus %d exceeds %d: %w", op, before, count, MaxSheets, ErrInvalidArgument)
		}
		m.SheetStatuses = m.SheetStatuses.Resize(before + count)
		return s.audit.WriteID(ctx, tx, userID, "material.sheets_add", audit.EntityMaterials, m.ID,
			map[string]any{"totalSheets": before},
			map[string]any{"totalSheets": before + count, "added": count})
	})
	if err != nil {
		return AddSheetsResult{}, err
	}
	return AddSheetsResult{JobID: change.JobID, Material: change.Material}, nil
}

// AddRecutEntry creates a rework batch with an all-pending sequence.
func (s *Store) AddRecutEntry(ctx context.Context, userID, materialID int64, quantity int, reason string) (RecutChange, error) {
	const op = "add recut"
	if err := checkCount(op, "quantity", quantity, 1); err != nil {
		return RecutChange{}, err
	}
	var out RecutChange
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, jobID, err := loadMaterial(ctx, tx, materialID)
		if err != nil {
			return err
		}
		now := time.Now()
		r := models.RecutEntry{
			MaterialID:      materialID,
			Quantity:        quantity,
			Reason:          strings.TrimSpace(reason),
			CreatedByUserID: userID,
			SheetStatuses:   models.NewSheetStatuses(quantity),
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if _, err := tx.NewInsert().Model(&r).Exec(ctx); err != nil {
			return err
		}
		if err := s.audit.WriteID(ctx, tx, userID, "recut.create", audit.EntityRecuts, r.ID, nil, r); err != nil {
			return err
		}
		out = RecutChange{JobID: jobID, Recut: r}
		return nil
	})
	return out, classify(op, err)
}

// SetRecutSheetStatus sets one sheet of a recut entry, bounded by its quantity.
func (s *Store) SetRecutSheetStatus(ctx context.Context, userID, recutID int64, sheetIndex int, status models.SheetStatus) (RecutChange, error) {
	const op = "set recut sheet status"
	if !status.Valid() {
		return RecutChange{}, fmt.Errorf("%s: unknown status %q: %w", op, status, ErrInvalidArgument)
	}
	var out RecutChange
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		r, jobID, err := loadRecut(ctx, tx, recutID)
		if err != nil {
			return err
		}
		if !r.SheetStatuses.InRange(sheetIndex) {
			return outOfRange(op, sheetIndex, r.Quantity)
		}
		before := r.SheetStatuses[sheetIndex]
		r.SheetStatuses = r.SheetStatuses.Set(sheetIndex, status)
		r.CompletedSheets = r.SheetStatuses.CountCut()
		r.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(&r).
			Column("sheet_statuses", "completed_sheets", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		if err := s.audit.WriteID(ctx, tx, userID, "recut.sheet_status", audit.EntityRecuts, r.ID,
			map[string]any{"sheetIndex": sheetIndex, "status": before},
			map[string]any{"sheetIndex": sheetIndex, "status": status}); err != nil {
			return err
		}
		out = RecutChange{JobID: jobID, Recut: r}
		return nil
	})
	return out, classify(op, err)
}

// DeleteRecutEntry removes a whole recut entry.
func (s *Store) DeleteRecutEntry(ctx context.Context, userID, recutID int64) (RecutChange, error) {
	const op = "delete recut"
	var out RecutChange
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		r, jobID, err := loadRecut(ctx, tx, recutID)
		if err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*models.RecutEntry)(nil)).Where("id = ?", recutID).Exec(ctx); err != nil {
			return err
		}
		if err := s.audit.WriteID(ctx, tx, userID, "recut.delete", audit.EntityRecuts, recutID, r, nil); err != nil {
			return err
		}
		out = RecutChange{JobID: jobID, Recut: r}
		return nil
	})
	return out, classify(op, err)
}

// LoadMaterial reads one material without its recuts.
func (s *Store) LoadMaterial(ctx context.Context, materialID int64) (models.Material, error) {
	var m models.Material
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		m, _, err = loadMaterial(ctx, tx, materialID)
		return err
	})
	return m, classify("load material", err)
}

// LoadRecut reads one recut entry.
func (s *Store) LoadRecut(ctx context.Context, recutID int64) (models.RecutEntry, error) {
	var r models.RecutEntry
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		r, _, err = loadRecut(ctx, tx, recutID)
		return err
	})
	return r, classify("load recut", err)
}

// ListRecuts returns a material's recut entries, oldest first.
func (s *Store) ListRecuts(ctx context.Context, materialID int64) ([]models.RecutEntry, error) {
	recuts := make([]models.RecutEntry, 0)
	err := s.db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var exists int
		if err := tx.NewRaw(`SELECT COUNT(*) FROM materials WHERE id = ?`, materialID).Scan(ctx, &exists); err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("material %d: %w", materialID, ErrNotFound)
		}
		return tx.NewSelect().Model(&recuts).
			Where("material_id = ?", materialID).
			OrderExpr("id ASC").
			Scan(ctx)
	})
	return recuts, classify("list recuts", err)
}

// mutateMaterial loads the material, applies fn to it and persists the
// sequence together with the derived total and completed counts.
func (s *Store) mutateMaterial(ctx context.Context, op string, materialID int64, fn func(ctx context.Context, tx bun.Tx, m *models.Material) error) (MaterialChange, error) {
	var out MaterialChange
	err := s.db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		m, jobID, err := loadMaterial(ctx, tx, materialID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx, &m); err != nil {
			return err
		}
		m.TotalSheets = len(m.SheetStatuses)
		m.CompletedSheets = m.SheetStatuses.CountCut()
		m.UpdatedAt = time.Now()
		if _, err := tx.NewUpdate().Model(&m).
			Column("sheet_statuses", "total_sheets", "completed_sheets", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		out = MaterialChange{JobID: jobID, Material: m}
		return nil
	})
	return out, classify(op, err)
}

func loadMaterial(ctx context.Context, tx bun.Tx, materialID int64) (models.Material, int64, error) {
	var m models.Material
	if err := tx.NewSelect().Model(&m).Where("m.id = ?", materialID).Limit(1).Scan(ctx); err != nil {
		return models.Material{}, 0, fmt.Errorf("material %d: %w", materialID, err)
	}
	var jobID int64
	if err := tx.NewRaw(`SELECT job_id FROM cutlists WHERE id = ?`, m.CutlistID).Scan(ctx, &jobID); err != nil {
		return models.Material{}, 0, err
	}
	return m, jobID, nil
}

func loadRecut(ctx context.Context, tx bun.Tx, recutID int64) (models.RecutEntry, int64, error) {
	var r models.RecutEntry
	if err := tx.NewSelect().Model(&r).Where("re.id = ?", recutID).Limit(1).Scan(ctx); err != nil {
		return models.RecutEntry{}, 0, fmt.Errorf("recut %d: %w", recutID, err)
	}
	var jobID int64
	err := tx.NewRaw(`
SELECT cl.job_id FROM materials m
JOIN cutlists cl ON cl.id = m.cutlist_id
WHERE m.id = ?`, r.MaterialID).Scan(ctx, &jobID)
	if err != nil {
		return models.RecutEntry{}, 0, err
	}
	return r, jobID, nil
}

func outOfRange(op string, index, size int) error {
	return fmt.Errorf("%s: index %d not in [0,%d): %w", op, index, size, ErrOutOfRange)
}
