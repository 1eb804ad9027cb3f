package domain

import "time"

// UserProfile holds per-user defaults folded into requests that leave them out.
type UserProfile struct {
	UserID        string     `gorm:"column:user_id;primaryKey" json:"user_id" validate:"required"`
	SkillLevel    SkillLevel `gorm:"column:skill_level" json:"skill_level" validate:"omitempty,oneof=beginner intermediate advanced expert"`
	WorkflowStage string     `gorm:"column:workflow_stage" json:"workflow_stage,omitempty"`
	Device        string     `gorm:"column:device" json:"device,omitempty"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (UserProfile) TableName() string {
	return "user_profiles"
}

// Defaults fills empty context fields from the profile.
func (p UserProfile) Defaults(c ContextSnapshot) ContextSnapshot {
	if c.SkillLevel == "" {
		c.SkillLevel = p.SkillLevel
	}
	if c.WorkflowStage == "" {
		c.WorkflowStage = p.WorkflowStage
	}
	if c.Device == "" {
		c.Device = p.Device
	}
	return c
}
