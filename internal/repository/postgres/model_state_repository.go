package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolAdvisor/business/recommendation"
	"toolAdvisor/business/scoring"
	"toolAdvisor/domain"
)

const defaultModelSlot = "global"

type ModelStateRepository struct {
	DB   *gorm.DB
	Slot string
}

var _ recommendation.ModelStateRepository = (*ModelStateRepository)(nil)

func NewModelStateRepository(db *gorm.DB) *ModelStateRepository {
	return &ModelStateRepository{DB: db, Slot: defaultModelSlot}
}

// LoadModelState returns nil when nothing has been persisted yet.
func (r *ModelStateRepository) LoadModelState(ctx context.Context) (*scoring.ModelState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error: %w", err)
	}

	var row domain.ModelStateRow
	err := r.DB.WithContext(ctx).First(&row, "slot = ?", r.Slot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model_state: %w", err)
	}

	var state scoring.ModelState
	if err := json.Unmarshal(row.StateJSON, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state_json: %w", err)
	}

	return &state, nil
}

func (r *ModelStateRepository) SaveModelState(ctx context.Context, state *scoring.ModelState) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal model state: %w", err)
	}

	row := domain.ModelStateRow{
		Slot:      r.Slot,
		StateJSON: raw,
	}

	if err := r.DB.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns:   []clause.Column{{Name: "slot"}},
			DoUpdates: clause.AssignmentColumns([]string{"state_json", "updated_at"}),
		},
	).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to upsert model_state: %w", err)
	}

	return nil
}
