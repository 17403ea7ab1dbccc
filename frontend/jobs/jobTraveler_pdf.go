package jobs

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"strings"
	"time"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/jung-kurt/gofpdf"

	"cuttracker/models"
)

// TravelerCode is the barcode value printed on a job traveler.
func TravelerCode(jobID int64) string {
	return fmt.Sprintf("J%08d", jobID)
}

// renderTravelerPDF prints the shop traveler: job header with barcode, then
// one table row per material with a box per sheet.
func renderTravelerPDF(job models.Job, printedAt time.Time) ([]byte, error) {
	code := TravelerCode(job.ID)
	barcodePNG, err := renderCode128PNG(code, 900, 200)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Job Traveler "+code, false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	name := strings.TrimSpace(job.Name)
	if name == "" {
		name = "Unnamed Job"
	}
	customer := strings.TrimSpace(job.Customer)
	if customer == "" {
		customer = "Unknown Customer"
	}
	dueText := "N/A"
	if job.DueDate != nil && !job.DueDate.IsZero() {
		dueText = job.DueDate.Format("02/01/2006")
	}

	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 11, name, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 7, "Customer: "+customer, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Status: "+statusLabel(job.Status), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Due: "+dueText, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, "Printed: "+printedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")

	opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
	imageName := "job-barcode-" + code
	pdf.RegisterImageOptionsReader(imageName, opt, bytes.NewReader(barcodePNG))
	pageW, _ := pdf.GetPageSize()
	imgW, imgH := 80.0, 18.0
	pdf.ImageOptions(imageName, pageW-imgW-10, 12, imgW, imgH, false, opt, 0, "")
	pdf.SetXY(pageW-imgW-10, 31)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(imgW, 5, code, "", 1, "C", false, 0, "")

	if strings.TrimSpace(job.Notes) != "" {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 5, job.Notes, "", "L", false)
	}

	progress := JobProgress(job)
	pdf.Ln(3)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Sheets: %d cut / %d total, %d skipped", progress.CompletedSheets, progress.TotalSheets, progress.SkippedSheets), "", 1, "L", false, 0, "")

	for _, cl := range job.Cutlists {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "B", 14)
		pdf.CellFormat(0, 8, cl.Name, "B", 1, "L", false, 0, "")
		if len(cl.Materials) == 0 {
			pdf.SetFont("Helvetica", "", 10)
			pdf.CellFormat(0, 6, "No materials", "", 1, "L", false, 0, "")
			continue
		}
		for _, m := range cl.Materials {
			addTravelerMaterial(pdf, m)
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func addTravelerMaterial(pdf *gofpdf.Fpdf, m *models.Material) {
	label := strings.TrimSpace(strings.Join([]string{m.Color, m.Thickness, m.SheetSize}, " "))
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("%s  (%d/%d)", label, m.CompletedSheets, m.TotalSheets), "", 1, "L", false, 0, "")
	writeSheetBoxes(pdf, m.SheetStatuses)
	for _, r := range m.Recuts {
		pdf.SetFont("Helvetica", "", 10)
		reason := strings.TrimSpace(r.Reason)
		if reason == "" {
			reason = "-"
		}
		pdf.CellFormat(0, 6, fmt.Sprintf("Recut x%d: %s", r.Quantity, reason), "", 1, "L", false, 0, "")
		writeSheetBoxes(pdf, r.SheetStatuses)
	}
}

// writeSheetBoxes draws numbered boxes, filled for cut and crossed for skip.
func writeSheetBoxes(pdf *gofpdf.Fpdf, statuses models.SheetStatuses) {
	const box = 8.0
	left, _, right, _ := pdf.GetMargins()
	pageW, _ := pdf.GetPageSize()
	perRow := int((pageW - left - right) / box)
	if perRow < 1 {
		perRow = 1
	}
	pdf.SetFont("Helvetica", "", 7)
	for i, s := range statuses {
		if i > 0 && i%perRow == 0 {
			pdf.Ln(box)
		}
		x, y := pdf.GetXY()
		switch s {
		case models.SheetCut:
			pdf.SetFillColor(200, 200, 200)
			pdf.CellFormat(box, box, fmt.Sprintf("%d", i+1), "1", 0, "C", true, 0, "")
		case models.SheetSkip:
			pdf.CellFormat(box, box, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
			pdf.Line(x, y, x+box, y+box)
		default:
			pdf.CellFormat(box, box, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		}
	}
	pdf.Ln(box + 2)
}

func renderCode128PNG(value string, width, height int) ([]byte, error) {
	bc, err := code128.Encode(value)
	if err != nil {
		return nil, err
	}
	scaled, err := barcode.Scale(bc, width, height)
	if err != nil {
		return nil, err
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(img, img.Bounds(), scaled, image.Point{}, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
