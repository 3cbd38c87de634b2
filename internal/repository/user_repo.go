package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/callvista/cdr-analytics-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUserRepository handles database operations for dashboard accounts
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new dashboard user repository
func NewGormUserRepository(db *gorm.DB) *GormUserRepository {
	return &GormUserRepository{db: db}
}

// Create creates a new dashboard user
func (r *GormUserRepository) Create(ctx context.Context, user *domain.DashboardUser) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	user.UpdatedAt = time.Now()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create dashboard user: %w", err)
	}
	return nil
}

// GetByUsername retrieves a dashboard user by username
func (r *GormUserRepository) GetByUsername(ctx context.Context, username string) (*domain.DashboardUser, error) {
	var user domain.DashboardUser
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dashboard user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a dashboard user by ID
func (r *GormUserRepository) GetByID(ctx context.Context, id string) (*domain.DashboardUser, error) {
	var user domain.DashboardUser
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dashboard user: %w", err)
	}
	return &user, nil
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func (r *GormUserRepository) EnsureAdmin(ctx context.Context, username, passwordHash string) error {
	existing, err := r.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return r.Create(ctx, &domain.DashboardUser{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
	})
}
