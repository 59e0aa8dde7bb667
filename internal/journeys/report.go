package journeys

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"github.com/bbus-fleet/backend/internal/models"
)

const (
	reportSheet = "journeys"
	reportFont  = "DejaVu"
)

var (
	//go:embed fonts/DejaVuSansCondensed.ttf
	fontRegular []byte
	//go:embed fonts/DejaVuSansCondensed-Bold.ttf
	fontBold []byte
)

var reportColumns = []string{"Timestamp", "Status", "Bus", "Route", "Card", "Card type", "Latitude", "Longitude", "Device"}

func reportRow(j models.JourneyDetail, loc *time.Location) []string {
	return []string{
		j.Timestamp.In(loc).Format("2006-01-02 15:04:05"),
		string(j.Status),
		j.Bus.PlateNumber,
		j.Route.Code,
		j.AccessCard.CardID,
		string(j.AccessCard.CardType),
		j.Latitude,
		j.Longitude,
		j.Application.DeviceID,
	}
}

// BuildXLSX renders journeys as a single-sheet workbook with a header row.
func BuildXLSX(list []models.JourneyDetail, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return nil, err
	}

	for i, h := range reportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(reportSheet, cell, h)
	}
	for r, j := range list {
		for i, v := range reportRow(j, loc) {
			cell, _ := excelize.CoordinatesToCellName(i+1, r+2)
			_ = f.SetCellValue(reportSheet, cell, v)
		}
	}
	_ = f.SetColWidth(reportSheet, "A", "A", 20)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildPDF renders journeys as a landscape A4 table.
func BuildPDF(list []models.JourneyDetail, loc *time.Location, generated time.Time) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddUTF8FontFromBytes(reportFont, "", fontRegular)
	pdf.AddUTF8FontFromBytes(reportFont, "B", fontBold)
	pdf.SetFont(reportFont, "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Journeys")
	pdf.Ln(10)
	pdf.SetFont(reportFont, "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generated.In(loc).Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %d", len(list)))
	pdf.Ln(8)

	widths := []float64{36, 42, 28, 28, 36, 22, 26, 26, 33}
	pdf.SetFont(reportFont, "B", 9)
	for i, h := range reportColumns {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont(reportFont, "", 8)
	for _, j := range list {
		for i, v := range reportRow(j, loc) {
			pdf.CellFormat(widths[i], 6, v, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
