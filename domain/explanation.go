package domain

type ExplanationLevelKind string

const (
	ExplanationSummary     ExplanationLevelKind = "summary"
	ExplanationDetailed    ExplanationLevelKind = "detailed"
	ExplanationTechnical   ExplanationLevelKind = "technical"
	ExplanationEducational ExplanationLevelKind = "educational"
)

type Evidence struct {
	Source      string  `json:"source"`
	Description string  `json:"description"`
	Value       float64 `json:"value"`
}

type ExplanationLevel struct {
	Level      ExplanationLevelKind `json:"level"`
	Content    string               `json:"content"`
	KeyPoints  []string             `json:"key_points"`
	Evidence   []Evidence           `json:"evidence,omitempty"`
	Confidence float64              `json:"confidence"`
}

type Explanation struct {
	ToolID   string             `json:"tool_id"`
	Levels   []ExplanationLevel `json:"levels"`
	Degraded bool               `json:"degraded"`
}

func (e Explanation) Level(kind ExplanationLevelKind) (ExplanationLevel, bool) {
	for _, l := range e.Levels {
		if l.Level == kind {
			return l, true
		}
	}
	return ExplanationLevel{}, false
}

// Counterfactual says why a scored alternative was not chosen over the top pick.
type Counterfactual struct {
	ToolID    string        `json:"tool_id"`
	ToolName  string        `json:"tool_name"`
	Combined  float64       `json:"combined_score"`
	Algorithm AlgorithmName `json:"algorithm"`
	Delta     float64       `json:"delta"`
	Reason    string        `json:"reason"`
}
