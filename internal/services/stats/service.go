package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/cache"
	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/callvista/cdr-analytics-service/internal/repository"
	"github.com/callvista/cdr-analytics-service/pkg/metrics"
)

// Granularity selects the trend bucket size.
type Granularity string

const (
	GranularityDaily  Granularity = "daily"
	GranularityHourly Granularity = "hourly"
)

// QueueStatistics bundles everything the queue dashboard page shows.
type QueueStatistics struct {
	QueueNumber string                    `json:"queueNumber"`
	QueueName   string                    `json:"queueName"`
	PeriodStart string                    `json:"periodStart"`
	PeriodEnd   string                    `json:"periodEnd"`
	KPIs        *domain.QueueKPIs         `json:"kpis"`
	Agents      []domain.AgentPerformance `json:"agents"`
	DailyTrend  []domain.TrendPoint       `json:"dailyTrend"`
	HourlyTrend []domain.TrendPoint       `json:"hourlyTrend"`
}

// Service computes queue and agent statistics, with KPI caching.
type Service struct {
	repo    repository.RepositoryManager
	cache   *cache.StatsCache
	metrics *metrics.Metrics
}

// NewService creates a stats service. statsCache may be nil to disable
// caching; m may be nil to disable instrumentation.
func NewService(repo repository.RepositoryManager, statsCache *cache.StatsCache, m *metrics.Metrics) *Service {
	return &Service{repo: repo, cache: statsCache, metrics: m}
}

// ListQueues returns every queue seen in the CDR data.
func (s *Service) ListQueues(ctx context.Context) ([]domain.QueueRef, error) {
	return s.repo.Stats().ListQueues(ctx)
}

// QueueKPIs returns the queue's KPIs for the period, from cache when possible.
func (s *Service) QueueKPIs(ctx context.Context, queueNumber string, start, end time.Time) (*domain.QueueKPIs, error) {
	if s.cache != nil {
		if kpis := s.cache.GetQueueKPIs(ctx, queueNumber, start, end); kpis != nil {
			if s.metrics != nil {
				s.metrics.IncStatsCacheHit()
			}
			return kpis, nil
		}
		if s.metrics != nil {
			s.metrics.IncStatsCacheMiss()
		}
	}

	kpis, err := s.repo.Stats().QueueKPIs(ctx, queueNumber, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to compute KPIs for queue %s: %w", queueNumber, err)
	}

	if s.cache != nil {
		s.cache.SetQueueKPIs(ctx, queueNumber, start, end, kpis)
	}
	return kpis, nil
}

// QueueStatistics assembles the full dashboard payload for one queue.
func (s *Service) QueueStatistics(ctx context.Context, queueNumber string, start, end time.Time) (*QueueStatistics, error) {
	kpis, err := s.QueueKPIs(ctx, queueNumber, start, end)
	if err != nil {
		return nil, err
	}
	agents, err := s.repo.Stats().AgentPerformance(ctx, queueNumber, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent performance for queue %s: %w", queueNumber, err)
	}
	daily, err := s.repo.Stats().DailyTrend(ctx, queueNumber, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily trend for queue %s: %w", queueNumber, err)
	}
	hourly, err := s.repo.Stats().HourlyTrend(ctx, queueNumber, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get hourly trend for queue %s: %w", queueNumber, err)
	}

	return &QueueStatistics{
		QueueNumber: queueNumber,
		QueueName:   kpis.QueueName,
		PeriodStart: start.UTC().Format(time.RFC3339),
		PeriodEnd:   end.UTC().Format(time.RFC3339),
		KPIs:        kpis,
		Agents:      agents,
		DailyTrend:  daily,
		HourlyTrend: hourly,
	}, nil
}

// Trend returns the queue's call volume per bucket.
func (s *Service) Trend(ctx context.Context, queueNumber string, start, end time.Time, g Granularity) ([]domain.TrendPoint, error) {
	switch g {
	case GranularityHourly:
		return s.repo.Stats().HourlyTrend(ctx, queueNumber, start, end)
	case GranularityDaily, "":
		return s.repo.Stats().DailyTrend(ctx, queueNumber, start, end)
	default:
		return nil, fmt.Errorf("unknown trend granularity %q", g)
	}
}

// AgentPerformance returns the per-agent handling stats for one queue.
func (s *Service) AgentPerformance(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.AgentPerformance, error) {
	return s.repo.Stats().AgentPerformance(ctx, queueNumber, start, end)
}
