package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/jung-kurt/gofpdf/v2"
)

// pdfColumn pairs a header label with its width in millimetres. Widths sum
// to the usable width of a landscape A4 page.
type pdfColumn struct {
	label string
	width float64
}

var pdfColumns = []pdfColumn{
	{"ID", 14},
	{"Date/Heure", 34},
	{"Appelant", 30},
	{"Appelé", 30},
	{"Direction", 22},
	{"Statut", 24},
	{"Durée", 18},
	{"Attente", 18},
	{"Seg.", 12},
	{"Agents", 75},
}

// WritePDF renders the call logs as a landscape A4 table with a period
// header and repeated column headers on every page.
func WritePDF(logs []domain.AggregatedCallLog, periodStart, periodEnd time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 9, "Journal des appels", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	period := fmt.Sprintf("Période: %s - %s", periodStart.Format("02/01/2006 15:04"), periodEnd.Format("02/01/2006 15:04"))
	pdf.CellFormat(0, 6, period, "", 1, "L", false, 0, "")
	pdf.Ln(2)

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range pdfColumns {
			pdf.CellFormat(col.width, 7, col.label, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	writeHeader()

	for _, log := range logs {
		// Repeat the header after an automatic page break.
		if pdf.GetY() > 185 {
			pdf.AddPage()
			writeHeader()
		}

		cells := []string{
			log.CallHistoryIDShort,
			log.StartedAt,
			callerCell(log),
			calleeCell(log),
			string(log.Direction),
			string(log.FinalStatus),
			log.TotalDurationDisplay,
			log.WaitTimeDisplay,
			fmt.Sprintf("%d", log.SegmentCount),
			log.HandledByDisplay,
		}
		for i, col := range pdfColumns {
			pdf.CellFormat(col.width, 6, truncate(cells[i], col.width), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func callerCell(log domain.AggregatedCallLog) string {
	if log.CallerName != "" {
		return log.CallerNumber + " " + log.CallerName
	}
	return log.CallerNumber
}

func calleeCell(log domain.AggregatedCallLog) string {
	if log.CalleeName != "" {
		return log.CalleeNumber + " " + log.CalleeName
	}
	return log.CalleeNumber
}

// truncate clips a cell value to roughly its column width, Helvetica at 8pt
// running about 1.6mm per character.
func truncate(s string, width float64) string {
	max := int(width / 1.6)
	if max < 4 {
		max = 4
	}
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
