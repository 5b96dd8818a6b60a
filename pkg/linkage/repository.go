package linkage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("comparison not found")

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 500
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) AutoMigrate() error {
	return r.db.AutoMigrate(&ComparisonLog{})
}

func (r *Repository) SaveComparison(ctx context.Context, log *ComparisonLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *Repository) Recent(ctx context.Context, limit int) ([]ComparisonLog, error) {
	var logs []ComparisonLog
	result := r.db.WithContext(ctx).Order("created_at DESC").Limit(clampLimit(limit)).Find(&logs)
	return logs, result.Error
}

// FindByRequestID returns the latest verdict stored for a request.
func (r *Repository) FindByRequestID(ctx context.Context, requestID string) (*ComparisonLog, error) {
	var log ComparisonLog
	result := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at DESC").
		First(&log)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &log, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
