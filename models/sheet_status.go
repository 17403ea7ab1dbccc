package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// SheetStatus is the cut state of one sheet.
type SheetStatus string

const (
	SheetPending SheetStatus = "pending"
	SheetCut     SheetStatus = "cut"
	SheetSkip    SheetStatus = "skip"
)

// ParseSheetStatus accepts exactly pending, cut or skip.
func ParseSheetStatus(raw string) (SheetStatus, error) {
	switch SheetStatus(raw) {
	case SheetPending:
		return SheetPending, nil
	case SheetCut:
		return SheetCut, nil
	case SheetSkip:
		return SheetSkip, nil
	default:
		return "", fmt.Errorf("unknown sheet status %q", raw)
	}
}

// Valid reports whether s is one of pending, cut or skip.
func (s SheetStatus) Valid() bool {
	return s == SheetPending || s == SheetCut || s == SheetSkip
}

// Next is the operator click cycle: pending -> cut -> skip -> pending.
// Unknown values restart the cycle at cut.
func (s SheetStatus) Next() SheetStatus {
	switch s {
	case SheetPending:
		return SheetCut
	case SheetCut:
		return SheetSkip
	case SheetSkip:
		return SheetPending
	default:
		return SheetCut
	}
}

// SheetStatuses is an index-addressed sheet sequence stored as a JSON array.
type SheetStatuses []SheetStatus

// NewSheetStatuses returns n pending entries.
func NewSheetStatuses(n int) SheetStatuses {
	if n < 0 {
		n = 0
	}
	out := make(SheetStatuses, n)
	for i := range out {
		out[i] = SheetPending
	}
	return out
}

// CountCut returns how many entries are cut.
func (s SheetStatuses) CountCut() int {
	n := 0
	for _, v := range s {
		if v == SheetCut {
			n++
		}
	}
	return n
}

// InRange reports whether i addresses an existing sheet.
func (s SheetStatuses) InRange(i int) bool {
	return i >= 0 && i < len(s)
}

// Set returns a copy with index i set to status. The caller checks the range.
func (s SheetStatuses) Set(i int, status SheetStatus) SheetStatuses {
	out := append(SheetStatuses(nil), s...)
	out[i] = status
	return out
}

// Remove returns a copy without index i; later entries shift down by one.
func (s SheetStatuses) Remove(i int) SheetStatuses {
	out := make(SheetStatuses, 0, len(s)-1)
	out = append(out, s[:i]...)
	return append(out, s[i+1:]...)
}

// Resize pads with pending or truncates trailing entries to length n.
func (s SheetStatuses) Resize(n int) SheetStatuses {
	if n < 0 {
		n = 0
	}
	if n <= len(s) {
		return append(SheetStatuses(nil), s[:n]...)
	}
	out := make(SheetStatuses, n)
	copy(out, s)
	for i := len(s); i < n; i++ {
		out[i] = SheetPending
	}
	return out
}

// Value implements driver.Valuer.
func (s SheetStatuses) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]SheetStatus(s))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (s *SheetStatuses) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*s = SheetStatuses{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan sheet statuses: unsupported type %T", src)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*s = SheetStatuses{}
		return nil
	}
	var out []SheetStatus
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("scan sheet statuses: %w", err)
	}
	for i, v := range out {
		if !v.Valid() {
			return fmt.Errorf("scan sheet statuses: index %d has unknown status %q", i, v)
		}
	}
	*s = out
	return nil
}
