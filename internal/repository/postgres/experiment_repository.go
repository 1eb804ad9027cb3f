package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolAdvisor/business/experiment"
	"toolAdvisor/domain"
)

type ExperimentRepository struct {
	DB *gorm.DB
}

var _ experiment.Repository = (*ExperimentRepository)(nil)

func NewExperimentRepository(db *gorm.DB) *ExperimentRepository {
	return &ExperimentRepository{DB: db}
}

func (r *ExperimentRepository) ListVariants(ctx context.Context, name string) ([]domain.ExperimentVariant, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var variants []domain.ExperimentVariant
	err := r.DB.WithContext(ctx).
		Where("experiment = ?", name).
		Order("name").
		Find(&variants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list experiment variants: %w", err)
	}

	return variants, nil
}

func (r *ExperimentRepository) UpsertVariant(ctx context.Context, v domain.ExperimentVariant) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "experiment"}, {Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"traffic_pct",
				"w_collaborative",
				"w_content_based",
				"w_contextual",
				"updated_at",
			}),
		}).
		Create(&v).Error
	if err != nil {
		return fmt.Errorf("failed to upsert experiment variant: %w", err)
	}

	return nil
}
