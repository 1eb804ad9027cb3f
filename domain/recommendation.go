package domain

type AlgorithmName string

const (
	AlgorithmCollaborative AlgorithmName = "collaborative"
	AlgorithmContentBased  AlgorithmName = "content_based"
	AlgorithmContextual    AlgorithmName = "contextual"
)

// AlgorithmScores holds the per-algorithm scores and their weighted sum.
// Every value is in [0,1].
type AlgorithmScores struct {
	Collaborative float64 `json:"collaborative"`
	ContentBased  float64 `json:"content_based"`
	Contextual    float64 `json:"contextual"`
	Combined      float64 `json:"combined"`
}

func (s AlgorithmScores) Get(name AlgorithmName) float64 {
	switch name {
	case AlgorithmCollaborative:
		return s.Collaborative
	case AlgorithmContentBased:
		return s.ContentBased
	case AlgorithmContextual:
		return s.Contextual
	default:
		return 0
	}
}

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// IntervalFor builds the symmetric interval with margin 0.1*(1-confidence),
// both bounds clamped to [0,1].
func IntervalFor(confidence float64) ConfidenceInterval {
	margin := 0.1 * (1 - confidence)
	return ConfidenceInterval{
		Lower: Clamp01(confidence - margin),
		Upper: Clamp01(confidence + margin),
	}
}

type ContextualRecommendation struct {
	ToolID               string             `json:"tool_id"`
	ToolName             string             `json:"tool_name"`
	Rank                 int                `json:"rank"`
	Scores               AlgorithmScores    `json:"scores"`
	Confidence           float64            `json:"confidence"`
	Interval             ConfidenceInterval `json:"confidence_interval"`
	Reasons              []string           `json:"reasons"`
	EstimatedOutcome     string             `json:"estimated_outcome,omitempty"`
	EstimatedTimeSeconds int                `json:"estimated_time_seconds,omitempty"`
	Analysis             ConfidenceAnalysis `json:"confidence_analysis"`
	Explanation          *Explanation       `json:"explanation,omitempty"`
	AlgorithmVersions    map[string]string  `json:"algorithm_versions,omitempty"`
}

// Clamp01 clamps v into [0,1], mapping NaN to 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
