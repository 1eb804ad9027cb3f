package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"toolAdvisor/business/analytics"
	"toolAdvisor/domain"
)

type UsageEventRepository struct {
	DB *gorm.DB
}

var _ analytics.EventRepository = (*UsageEventRepository)(nil)

func NewUsageEventRepository(db *gorm.DB) *UsageEventRepository {
	return &UsageEventRepository{DB: db}
}

func (r *UsageEventRepository) SaveEvent(ctx context.Context, ev *domain.UsageEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	if err := r.DB.WithContext(ctx).Create(ev).Error; err != nil {
		return fmt.Errorf("failed to save usage event: %w", err)
	}

	return nil
}
