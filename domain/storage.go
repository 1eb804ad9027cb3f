package domain

import "time"

// ModelStateRow stores the learned scoring model as one JSON document per slot.
type ModelStateRow struct {
	Slot      string    `gorm:"column:slot;primaryKey"`
	StateJSON []byte    `gorm:"column:state_json"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ModelStateRow) TableName() string {
	return "model_state"
}

// CacheEntryRow backs the slowest cache level.
type CacheEntryRow struct {
	Key       string    `gorm:"column:key;primaryKey"`
	Payload   []byte    `gorm:"column:payload;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (CacheEntryRow) TableName() string {
	return "recommendation_cache"
}
