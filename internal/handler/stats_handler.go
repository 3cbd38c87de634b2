package handler

import (
	"encoding/json"
	"net/http"

	"github.com/callvista/cdr-analytics-service/internal/services/stats"
	"github.com/callvista/cdr-analytics-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StatsHandler handles HTTP requests for queue statistics
type StatsHandler struct {
	service *stats.Service
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service *stats.Service) *StatsHandler {
	return &StatsHandler{service: service}
}

// SetupStatsRoutes sets up the statistics routes
func (h *StatsHandler) SetupStatsRoutes(router *mux.Router) {
	router.HandleFunc("/stats/queues", h.ListQueues).Methods("GET")
	router.HandleFunc("/stats/queues/{queueNumber}", h.GetQueueStatistics).Methods("GET")
	router.HandleFunc("/stats/queues/{queueNumber}/kpis", h.GetQueueKPIs).Methods("GET")
	router.HandleFunc("/stats/queues/{queueNumber}/agents", h.GetAgentPerformance).Methods("GET")
	router.HandleFunc("/stats/queues/{queueNumber}/trends", h.GetTrend).Methods("GET")

	// Flat variants taking the queue as a query parameter.
	router.HandleFunc("/stats/trends", h.GetTrend).Methods("GET").Queries("queue", "{queueNumber}")
	router.HandleFunc("/stats/agents", h.GetAgentPerformance).Methods("GET").Queries("queue", "{queueNumber}")
}

// ListQueues godoc
// @Summary List every queue present in the CDR data
// @Tags stats
// @Produce json
// @Success 200 {array} domain.QueueRef
// @Router /api/stats/queues [get]
func (h *StatsHandler) ListQueues(w http.ResponseWriter, r *http.Request) {
	queues, err := h.service.ListQueues(r.Context())
	if err != nil {
		logger.Base().Error("queue listing failed", zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(queues)
}

// GetQueueStatistics godoc
// @Summary Full statistics bundle for one queue
// @Description KPIs, agent performance and both trend resolutions in one call
// @Tags stats
// @Produce json
// @Param queueNumber path string true "Queue DN number"
// @Param startDate query string false "Period start"
// @Param endDate query string false "Period end"
// @Success 200 {object} stats.QueueStatistics
// @Router /api/stats/queues/{queueNumber} [get]
func (h *StatsHandler) GetQueueStatistics(w http.ResponseWriter, r *http.Request) {
	queueNumber := mux.Vars(r)["queueNumber"]
	start, end, err := parsePeriod(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.service.QueueStatistics(r.Context(), queueNumber, start, end)
	if err != nil {
		logger.Base().Error("queue statistics failed",
			zap.String("queue", queueNumber),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetQueueKPIs returns only the KPI block for one queue.
func (h *StatsHandler) GetQueueKPIs(w http.ResponseWriter, r *http.Request) {
	queueNumber := mux.Vars(r)["queueNumber"]
	start, end, err := parsePeriod(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	kpis, err := h.service.QueueKPIs(r.Context(), queueNumber, start, end)
	if err != nil {
		logger.Base().Error("queue KPI query failed",
			zap.String("queue", queueNumber),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(kpis)
}

// GetAgentPerformance returns per-agent handling stats for one queue.
func (h *StatsHandler) GetAgentPerformance(w http.ResponseWriter, r *http.Request) {
	queueNumber := mux.Vars(r)["queueNumber"]
	start, end, err := parsePeriod(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	agents, err := h.service.AgentPerformance(r.Context(), queueNumber, start, end)
	if err != nil {
		logger.Base().Error("agent performance query failed",
			zap.String("queue", queueNumber),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agents)
}

// GetTrend godoc
// @Summary Call volume trend for one queue
// @Tags stats
// @Produce json
// @Param queueNumber path string true "Queue DN number"
// @Param granularity query string false "daily (default) or hourly"
// @Success 200 {array} domain.TrendPoint
// @Router /api/stats/queues/{queueNumber}/trends [get]
func (h *StatsHandler) GetTrend(w http.ResponseWriter, r *http.Request) {
	queueNumber := mux.Vars(r)["queueNumber"]
	q := r.URL.Query()

	start, end, err := parsePeriod(q)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	granularity := stats.GranularityDaily
	if raw := q.Get("granularity"); raw != "" {
		granularity = stats.Granularity(raw)
	}

	points, err := h.service.Trend(r.Context(), queueNumber, start, end, granularity)
	if err != nil {
		if granularity != stats.GranularityDaily && granularity != stats.GranularityHourly {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Base().Error("trend query failed",
			zap.String("queue", queueNumber),
			zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}
