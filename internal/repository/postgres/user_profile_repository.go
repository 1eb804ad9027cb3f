package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"toolAdvisor/domain"
)

type UserProfileRepository struct {
	DB *gorm.DB
}

func NewUserProfileRepository(db *gorm.DB) *UserProfileRepository {
	return &UserProfileRepository{DB: db}
}

func (r *UserProfileRepository) GetProfile(ctx context.Context, userID string) (domain.UserProfile, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("context error: %w", err)
	}

	var row domain.UserProfile
	err := r.DB.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserProfile{}, false, nil
	}
	if err != nil {
		return domain.UserProfile{}, false, fmt.Errorf("failed to find user profile: %w", err)
	}
	return row, true, nil
}

func (r *UserProfileRepository) UpsertProfile(ctx context.Context, p domain.UserProfile) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"skill_level", "workflow_stage", "device", "updated_at"}),
		}).
		Create(&p).Error
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}
	return nil
}
