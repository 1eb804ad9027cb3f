package domain

type ConfidenceLevel string

const (
	ConfidenceVeryLow  ConfidenceLevel = "very_low"
	ConfidenceLow      ConfidenceLevel = "low"
	ConfidenceMedium   ConfidenceLevel = "medium"
	ConfidenceHigh     ConfidenceLevel = "high"
	ConfidenceVeryHigh ConfidenceLevel = "very_high"
)

// Bucket boundaries shared by the analyzer and any UI label.
const (
	ConfidenceLowThreshold      = 0.3
	ConfidenceMediumThreshold   = 0.5
	ConfidenceHighThreshold     = 0.7
	ConfidenceVeryHighThreshold = 0.9
)

func LevelFor(confidence float64) ConfidenceLevel {
	switch {
	case confidence >= ConfidenceVeryHighThreshold:
		return ConfidenceVeryHigh
	case confidence >= ConfidenceHighThreshold:
		return ConfidenceHigh
	case confidence >= ConfidenceMediumThreshold:
		return ConfidenceMedium
	case confidence >= ConfidenceLowThreshold:
		return ConfidenceLow
	default:
		return ConfidenceVeryLow
	}
}

type UncertaintyType string

const (
	UncertaintyData     UncertaintyType = "data"
	UncertaintyModel    UncertaintyType = "model"
	UncertaintyContext  UncertaintyType = "context"
	UncertaintyUser     UncertaintyType = "user"
	UncertaintyTemporal UncertaintyType = "temporal"
)

type UncertaintyFactor struct {
	Name        string          `json:"name"`
	Type        UncertaintyType `json:"type"`
	Description string          `json:"description"`
	Impact      float64         `json:"impact"`
	Mitigations []string        `json:"mitigations"`
}

type ConfidenceFactor struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
}

type ComponentConfidence struct {
	Algorithm   float64 `json:"algorithm"`
	Contextual  float64 `json:"contextual"`
	DataQuality float64 `json:"data_quality"`
	UserModel   float64 `json:"user_model"`
}

// ConfidenceAnalysis is derived per recommendation and never stored on its own.
type ConfidenceAnalysis struct {
	OverallConfidence float64             `json:"overall_confidence"`
	Level             ConfidenceLevel     `json:"level"`
	Interval          ConfidenceInterval  `json:"interval"`
	Components        ComponentConfidence `json:"components"`
	Strengths         []ConfidenceFactor  `json:"strengths"`
	Weaknesses        []ConfidenceFactor  `json:"weaknesses"`
	Uncertainties     []UncertaintyFactor `json:"uncertainties"`
	Explanation       string              `json:"explanation"`
}
