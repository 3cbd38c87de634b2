// Package export renders the filtered call log as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/callvista/cdr-analytics-service/internal/domain"
)

// csvHeaders matches the dashboard's column labels.
var csvHeaders = []string{
	"ID",
	"Date/Heure",
	"Appelant",
	"Nom Appelant",
	"Appelé",
	"Nom Appelé",
	"Direction",
	"Statut",
	"Durée Totale",
	"Temps Attente",
	"Segments",
	"Transféré",
}

// WriteCSV renders the call logs as semicolon-separated CSV, the delimiter
// French locale spreadsheets expect.
func WriteCSV(logs []domain.AggregatedCallLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = ';'

	if err := w.Write(csvHeaders); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, log := range logs {
		transferred := "Non"
		if log.WasTransferred {
			transferred = "Oui"
		}
		record := []string{
			log.CallHistoryIDShort,
			log.StartedAt,
			log.CallerNumber,
			log.CallerName,
			log.CalleeNumber,
			log.CalleeName,
			string(log.Direction),
			string(log.FinalStatus),
			log.TotalDurationDisplay,
			log.WaitTimeDisplay,
			strconv.Itoa(log.SegmentCount),
			transferred,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}
