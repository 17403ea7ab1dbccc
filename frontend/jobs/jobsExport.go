package jobs

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"cuttracker/models"
)

var jobSheetHeaders = []string{"Cutlist", "Material ID", "Color", "Thickness", "Sheet Size", "Total Sheets", "Cut", "Skipped", "Pending", "Recut Sheets", "Recut Cut"}

// buildJobWorkbook writes one summary row per material plus a second sheet
// listing every individual sheet status.
func buildJobWorkbook(job models.Job) (*excelize.File, error) {
	f := excelize.NewFile()
	const summary = "Materials"
	const detail = "Sheets"
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(detail); err != nil {
		return nil, err
	}

	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return nil, err
	}

	if err := f.SetCellValue(summary, "A1", fmt.Sprintf("%s (%s)", job.Name, job.Customer)); err != nil {
		return nil, err
	}
	for i, h := range jobSheetHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "3"
		_ = f.SetCellValue(summary, cell, h)
		_ = f.SetCellStyle(summary, cell, cell, boldStyle)
	}

	detailHeaders := []string{"Cutlist", "Material ID", "Color", "Source", "Recut ID", "Sheet #", "Status"}
	for i, h := range detailHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		_ = f.SetCellValue(detail, cell, h)
		_ = f.SetCellStyle(detail, cell, cell, boldStyle)
	}

	row, detailRow := 4, 2
	for _, cl := range job.Cutlists {
		for _, m := range cl.Materials {
			skipped, pending := 0, 0
			for i, s := range m.SheetStatuses {
				switch s {
				case models.SheetSkip:
					skipped++
				case models.SheetPending:
					pending++
				}
				writeDetailRow(f, detail, detailRow, cl.Name, m, "material", "", i, s)
				detailRow++
			}
			recutSheets, recutCut := 0, 0
			for _, r := range m.Recuts {
				recutSheets += r.Quantity
				recutCut += r.CompletedSheets
				for i, s := range r.SheetStatuses {
					writeDetailRow(f, detail, detailRow, cl.Name, m, "recut", strconv.FormatInt(r.ID, 10), i, s)
					detailRow++
				}
			}
			values := []any{cl.Name, m.ID, m.Color, m.Thickness, m.SheetSize, m.TotalSheets, m.CompletedSheets, skipped, pending, recutSheets, recutCut}
			for i, v := range values {
				col, _ := excelize.ColumnNumberToName(i + 1)
				_ = f.SetCellValue(summary, fmt.Sprintf("%s%d", col, row), v)
			}
			row++
		}
	}

	widths := []float64{20, 12, 16, 12, 14, 13, 8, 9, 9, 13, 10}
	for i, w := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(summary, col, col, w)
	}
	return f, nil
}

func writeDetailRow(f *excelize.File, sheet string, row int, cutlist string, m *models.Material, source, recutID string, index int, status models.SheetStatus) {
	values := []any{cutlist, m.ID, m.Color, source, recutID, index + 1, string(status)}
	for i, v := range values {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetCellValue(sheet, fmt.Sprintf("%s%d", col, row), v)
	}
}

func writeJobsCSV(w io.Writer, rows []JobRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "name", "customer", "status", "due_date", "cutlists", "materials", "total_sheets", "completed_sheets", "percent"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write([]string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			r.Customer,
			r.Status,
			r.DueDate,
			strconv.Itoa(r.CutlistCount),
			strconv.Itoa(r.MaterialCount),
			strconv.Itoa(r.TotalSheets),
			strconv.Itoa(r.CompletedSheets),
			strconv.Itoa(r.Percent()),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
