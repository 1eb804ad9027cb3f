package domain

import (
	"time"

	"gorm.io/datatypes"
)

type FeedbackType string

const (
	FeedbackShown     FeedbackType = "shown"
	FeedbackSelected  FeedbackType = "selected"
	FeedbackCompleted FeedbackType = "completed"
	FeedbackDismissed FeedbackType = "dismissed"
)

type FeedbackEvent struct {
	UserID    string          `json:"user_id" validate:"required"`
	ToolID    string          `json:"tool_id" validate:"required"`
	Type      FeedbackType    `json:"type" validate:"required,oneof=shown selected completed dismissed"`
	Context   ContextSnapshot `json:"context"`
	Timestamp time.Time       `json:"timestamp"`
}

// UsageEvent is the analytics record fired at the usage sink.
type UsageEvent struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	EventType  string            `gorm:"column:event_type;not null" json:"event_type"`
	UserID     string            `gorm:"column:user_id;not null;index" json:"user_id"`
	RequestID  string            `gorm:"column:request_id" json:"request_id"`
	ToolID     string            `gorm:"column:tool_id" json:"tool_id"`
	Variant    string            `gorm:"column:variant" json:"variant"`
	Properties datatypes.JSONMap `gorm:"column:properties;type:jsonb" json:"properties"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (UsageEvent) TableName() string {
	return "usage_events"
}
