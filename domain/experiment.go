package domain

import "time"

// ExperimentVariant is one arm of an A/B split. Weight overrides are optional;
// when all three are zero the engine's base weights apply.
type ExperimentVariant struct {
	Experiment          string    `gorm:"column:experiment;primaryKey" json:"experiment"`
	Name                string    `gorm:"column:name;primaryKey" json:"name"`
	TrafficPct          int       `gorm:"column:traffic_pct;not null" json:"traffic_pct" validate:"gte=0,lte=100"`
	WeightCollaborative float64   `gorm:"column:w_collaborative" json:"w_collaborative" validate:"gte=0,lte=1"`
	WeightContentBased  float64   `gorm:"column:w_content_based" json:"w_content_based" validate:"gte=0,lte=1"`
	WeightContextual    float64   `gorm:"column:w_contextual" json:"w_contextual" validate:"gte=0,lte=1"`
	UpdatedAt           time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ExperimentVariant) TableName() string {
	return "experiment_variants"
}

func (v ExperimentVariant) HasWeights() bool {
	return v.WeightCollaborative != 0 || v.WeightContentBased != 0 || v.WeightContextual != 0
}
