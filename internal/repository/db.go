package repository

import (
	"context"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"gorm.io/gorm"
)

// CDRRepository defines read access to the raw cdroutput rows
type CDRRepository interface {
	// Chain reconstruction input: every segment of one logical call,
	// ordered chronologically.
	GetCallSegments(ctx context.Context, callHistoryID string) ([]domain.CDRSegment, error)

	// Aggregated dashboard rows.
	GetAggregatedCallLogs(ctx context.Context, start, end time.Time, filters domain.LogsFilters, page domain.LogsPage) ([]CallAggregateRow, int, error)
}

// UserRepository defines the interface for dashboard account operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.DashboardUser) error
	GetByUsername(ctx context.Context, username string) (*domain.DashboardUser, error)
	GetByID(ctx context.Context, id string) (*domain.DashboardUser, error)
	EnsureAdmin(ctx context.Context, username, passwordHash string) error
}

// StatsRepository defines the interface for queue and agent statistics
type StatsRepository interface {
	ListQueues(ctx context.Context) ([]domain.QueueRef, error)
	QueueKPIs(ctx context.Context, queueNumber string, start, end time.Time) (*domain.QueueKPIs, error)
	AgentPerformance(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.AgentPerformance, error)
	DailyTrend(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.TrendPoint, error)
	HourlyTrend(ctx context.Context, queueNumber string, start, end time.Time) ([]domain.TrendPoint, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	CDR() CDRRepository
	User() UserRepository
	Stats() StatsRepository

	// Health check
	Ping(ctx context.Context) error

	// Close connection
	Close() error
}

// GormRepositoryManager implements RepositoryManager using GORM
type GormRepositoryManager struct {
	db        *gorm.DB
	cdrRepo   *GormCDRRepository
	userRepo  *GormUserRepository
	statsRepo *GormStatsRepository
}

// NewGormRepositoryManager creates a new GORM repository manager
func NewGormRepositoryManager(db *gorm.DB) *GormRepositoryManager {
	return &GormRepositoryManager{
		db:        db,
		cdrRepo:   NewGormCDRRepository(db),
		userRepo:  NewGormUserRepository(db),
		statsRepo: NewGormStatsRepository(db),
	}
}

// CDR returns the CDR repository
func (m *GormRepositoryManager) CDR() CDRRepository {
	return m.cdrRepo
}

// User returns the dashboard user repository
func (m *GormRepositoryManager) User() UserRepository {
	return m.userRepo
}

// Stats returns the statistics repository
func (m *GormRepositoryManager) Stats() StatsRepository {
	return m.statsRepo
}

// Ping checks the database connection
func (m *GormRepositoryManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (m *GormRepositoryManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
