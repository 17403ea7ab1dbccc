package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSheetStatusNext_CycleReturnsToPending(t *testing.T) {
	s := SheetPending
	s = s.Next()
	assert.Equal(t, SheetCut, s)
	s = s.Next()
	assert.Equal(t, SheetSkip, s)
	s = s.Next()
	assert.Equal(t, SheetPending, s)
}

func TestParseSheetStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want SheetStatus
		ok   bool
	}{
		{raw: "pending", want: SheetPending, ok: true},
		{raw: "cut", want: SheetCut, ok: true},
		{raw: "skip", want: SheetSkip, ok: true},
		{raw: " CUT ", ok: false},
		{raw: "Skip", ok: false},
		{raw: "cut ", ok: false},
		{raw: "done", ok: false},
		{raw: "", ok: false},
	}
	for _, tc := range cases {
		got, err := ParseSheetStatus(tc.raw)
		if !tc.ok {
			assert.Error(t, err, "raw=%q", tc.raw)
			continue
		}
		require.NoError(t, err, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got)
	}
}

func TestSheetStatuses_SetLeavesOtherIndicesUnchanged(t *testing.T) {
	s := NewSheetStatuses(6)
	got := s.Set(2, SheetCut)

	assert.Equal(t, SheetStatuses{SheetPending, SheetPending, SheetCut, SheetPending, SheetPending, SheetPending}, got)
	assert.Equal(t, 1, got.CountCut())
	assert.Equal(t, NewSheetStatuses(6), s, "Set must not mutate the receiver")

	got = got.Set(2, SheetSkip)
	assert.Equal(t, 0, got.CountCut())
	assert.Equal(t, SheetSkip, got[2])
}

func TestSheetStatuses_SetIsIdempotent(t *testing.T) {
	once := NewSheetStatuses(3).Set(1, SheetCut)
	twice := once.Set(1, SheetCut)
	assert.Equal(t, once, twice)
}

func TestSheetStatuses_RemoveShiftsLaterIndices(t *testing.T) {
	s := SheetStatuses{SheetCut, SheetSkip, SheetPending, SheetCut, SheetSkip}
	got := s.Remove(1)

	require.Len(t, got, 4)
	assert.Equal(t, SheetCut, got[0])
	assert.Equal(t, s[2:], got[1:])
}

func TestSheetStatuses_Resize(t *testing.T) {
	s := NewSheetStatuses(6).Set(0, SheetCut)

	grown := s.Resize(9)
	require.Len(t, grown, 9)
	assert.Equal(t, s, grown[:6])
	assert.Equal(t, SheetStatuses{SheetPending, SheetPending, SheetPending}, grown[6:])

	shrunk := grown.Resize(2)
	assert.Equal(t, SheetStatuses{SheetCut, SheetPending}, shrunk)
}

func TestSheetStatuses_ValueAndScan(t *testing.T) {
	v, err := SheetStatuses{SheetCut, SheetPending}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["cut","pending"]`, v)

	var nilSeq SheetStatuses
	v, err = nilSeq.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var out SheetStatuses
	require.NoError(t, out.Scan([]byte(`["skip","cut"]`)))
	assert.Equal(t, SheetStatuses{SheetSkip, SheetCut}, out)

	assert.Error(t, out.Scan(`["bogus"]`))
}
