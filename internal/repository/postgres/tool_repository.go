package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolAdvisor/business/recommendation"
	"toolAdvisor/domain"
)

type ToolRepository struct {
	DB *gorm.DB
}

var _ recommendation.ToolProvider = (*ToolRepository)(nil)

func NewToolRepository(db *gorm.DB) *ToolRepository {
	return &ToolRepository{DB: db}
}

func (r *ToolRepository) GetTool(ctx context.Context, id string) (*domain.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var tool domain.Tool
	err := r.DB.WithContext(ctx).First(&tool, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", recommendation.ErrToolNotFound, id)
		}
		return nil, fmt.Errorf("failed to find tool: %w", err)
	}

	return &tool, nil
}

func (r *ToolRepository) ListTools(ctx context.Context) ([]domain.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var tools []domain.Tool
	if err := r.DB.WithContext(ctx).Order("id").Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	return tools, nil
}

func (r *ToolRepository) UpsertTool(ctx context.Context, tool *domain.Tool) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(tool).Error
	if err != nil {
		return fmt.Errorf("failed to upsert tool: %w", err)
	}

	return nil
}

func (r *ToolRepository) DeleteTool(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	result := r.DB.WithContext(ctx).Delete(&domain.Tool{}, "id = ?", id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete tool: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", recommendation.ErrToolNotFound, id)
	}

	return nil
}
