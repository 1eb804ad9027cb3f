package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Tool is the catalog view of a recommendable tool. Description and
// Guidelines are owned by the authoring subsystem; the engine only reads them.
type Tool struct {
	ID                   string                      `gorm:"column:id;primaryKey" json:"id"`
	Name                 string                      `gorm:"column:name;not null" json:"name"`
	Description          string                      `gorm:"column:description" json:"description"`
	Category             string                      `gorm:"column:category" json:"category"`
	Keywords             datatypes.JSONSlice[string] `gorm:"column:keywords;type:jsonb" json:"keywords"`
	Guidelines           datatypes.JSONSlice[string] `gorm:"column:guidelines;type:jsonb" json:"guidelines"`
	Intents              datatypes.JSONSlice[string] `gorm:"column:intents;type:jsonb" json:"intents"`
	WorkflowStages       datatypes.JSONSlice[string] `gorm:"column:workflow_stages;type:jsonb" json:"workflow_stages"`
	Devices              datatypes.JSONSlice[string] `gorm:"column:devices;type:jsonb" json:"devices"`
	MinSkillLevel        SkillLevel                  `gorm:"column:min_skill_level" json:"min_skill_level"`
	AvgCompletionSeconds int                         `gorm:"column:avg_completion_seconds" json:"avg_completion_seconds"`
	SuccessRate          float64                     `gorm:"column:success_rate" json:"success_rate"`
	UpdatedAt            time.Time                   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Tool) TableName() string {
	return "tools"
}
