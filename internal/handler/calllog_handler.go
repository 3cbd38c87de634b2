package handler

import (
	"encoding/json"
	"net/http"

	"github.com/callvista/cdr-analytics-service/internal/services/calllog"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallLogHandler handles HTTP requests for the aggregated call log
type CallLogHandler struct {
	service *calllog.Service
}

// NewCallLogHandler creates a new call log handler
func NewCallLogHandler(service *calllog.Service) *CallLogHandler {
	return &CallLogHandler{service: service}
}

// SetupCallLogRoutes sets up the call log routes
func (h *CallLogHandler) SetupCallLogRoutes(router *mux.Router) {
	router.HandleFunc("/calls", h.GetCallLogs).Methods("GET")
	router.HandleFunc("/calls/{callHistoryId}/chain", h.GetCallChain).Methods("GET")
}

// GetCallLogs godoc
// @Summary List aggregated call logs
// @Description One row per logical call, collapsed from its CDR segments
// @Tags calls
// @Produce json
// @Param startDate query string false "Period start (RFC 3339 or YYYY-MM-DD)"
// @Param endDate query string false "Period end (RFC 3339 or YYYY-MM-DD)"
// @Param directions query string false "Comma separated directions"
// @Param statuses query string false "Comma separated final statuses"
// @Param callerSearch query string false "Caller number/name, * wildcard allowed"
// @Param page query int false "Page number (1-based)"
// @Param pageSize query int false "Rows per page (max 100)"
// @Success 200 {object} domain.AggregatedCallLogsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Router /api/calls [get]
func (h *CallLogHandler) GetCallLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

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
	page := parseLogsPage(q)

	resp, err := h.service.GetCallLogs(r.Context(), start, end, filters, page)
	if err != nil {
		logger.Base().Error("call log query failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetCallChain godoc
// @Summary Get the segment chain of one logical call
// @Description Reconstructed and classified segments grouped into ring windows
// @Tags calls
// @Produce json
// @Param callHistoryId path string true "Call history ID"
// @Success 200 {object} calllog.ChainResponse
// @Failure 404 {object} map[string]string "No segments for this call"
// @Router /api/calls/{callHistoryId}/chain [get]
func (h *CallLogHandler) GetCallChain(w http.ResponseWriter, r *http.Request) {
	callHistoryID := mux.Vars(r)["callHistoryId"]
	if callHistoryID == "" {
		http.Error(w, "callHistoryId is required", http.StatusBadRequest)
		return
	}

	resp, err := h.service.GetCallChain(r.Context(), callHistoryID)
	if err != nil {
		logger.Base().Error("chain reconstruction failed",
			zap.String("call_history_id", callHistoryID),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if resp == nil || resp.SegmentCount == 0 {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
