package scoring

import (
	"context"
	"time"

	"toolAdvisor/domain"
)

// NeutralScore is used for missing signals and failed algorithms.
const NeutralScore = 0.5

// Input is what every algorithm sees for one request.
type Input struct {
	UserID  string
	Message string
	History []domain.ConversationTurn
	Context domain.ContextSnapshot
	Now     time.Time
}

// Result is one algorithm's view of one tool. Value and Confidence are in [0,1].
type Result struct {
	Value      float64
	Confidence float64
	Reasons    []string
}

// Algorithm scores a tool for a request. Implementations must be
// deterministic for a given input and model state.
type Algorithm interface {
	Name() domain.AlgorithmName
	Version() string
	Score(ctx context.Context, in Input, tool domain.Tool) (Result, error)
}

func neutralResult() Result {
	return Result{Value: NeutralScore, Confidence: 0}
}
