package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/config"
	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/callvista/cdr-analytics-service/internal/export"
	"github.com/callvista/cdr-analytics-service/internal/services/calllog"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/callvista/cdr-analytics-service/pkg/metrics"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// exportPageSize is the repository fetch size while draining rows.
const exportPageSize = 100

// ExportHandler streams the filtered call log as CSV or PDF
type ExportHandler struct {
	service *calllog.Service
	cfg     config.Config
	metrics *metrics.Metrics
}

// NewExportHandler creates a new export handler
func NewExportHandler(service *calllog.Service, cfg config.Config, m *metrics.Metrics) *ExportHandler {
	return &ExportHandler{service: service, cfg: cfg, metrics: m}
}

// SetupExportRoutes sets up the export routes
func (h *ExportHandler) SetupExportRoutes(router *mux.Router) {
	router.HandleFunc("/calls/export", h.ExportCallLogs).Methods("GET")
}

// ExportCallLogs godoc
// @Summary Export the filtered call log
// @Description Same filters as /api/calls; format=csv (default) or pdf
// @Tags calls
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Router /api/calls/export [get]
func (h *ExportHandler) ExportCallLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	format := q.Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		http.Error(w, "format must be csv or pdf", http.StatusBadRequest)
		return
	}

	start, end, err := parsePeriod(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	filters, err := parseLogsFilters(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	logs, truncated, err := h.collectLogs(r, start, end, filters)
	if err != nil {
		logger.Base().Error("export query failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var payload []byte
	var contentType string
	switch format {
	case "csv":
		payload, err = export.WriteCSV(logs)
		contentType = "text/csv; charset=utf-8"
	case "pdf":
		payload, err = export.WritePDF(logs, start, end)
		contentType = "application/pdf"
	}
	if err != nil {
		logger.Base().Error("export rendering failed",
			zap.String("format", format),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if h.metrics != nil {
		h.metrics.IncExport(format)
	}
	logger.Base().Info("export produced",
		zap.String("format", format),
		zap.Int("rows", len(logs)),
		zap.Bool("truncated", truncated))

	filename := fmt.Sprintf("journal_appels_%s_%s.%s",
		start.Format("20060102"), end.Format("20060102"), format)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if truncated {
		w.Header().Set("X-Export-Truncated", "true")
	}
	w.Write(payload)
}

// collectLogs drains the paginated call log until exhaustion or the export
// row ceiling. The second return reports whether the ceiling cut the result.
func (h *ExportHandler) collectLogs(r *http.Request, start, end time.Time, filters domain.LogsFilters) ([]domain.AggregatedCallLog, bool, error) {
	maxRows := h.cfg.ExportMaxRows
	if maxRows <= 0 {
		maxRows = config.DefaultConfig.ExportMaxRows
	}

	var logs []domain.AggregatedCallLog
	for page := 1; ; page++ {
		resp, err := h.service.GetCallLogs(r.Context(), start, end, filters,
			domain.LogsPage{Page: page, PageSize: exportPageSize})
		if err != nil {
			return nil, false, err
		}
		if len(resp.Logs) == 0 {
			return logs, false, nil
		}

		for _, log := range resp.Logs {
			if len(logs) >= maxRows {
				return logs, true, nil
			}
			logs = append(logs, log)
		}

		if page >= resp.TotalPages {
			return logs, false, nil
		}
	}
}
