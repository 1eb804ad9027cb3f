package domain

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalFor(t *testing.T) {
	iv := IntervalFor(0.95)
	assert.InDelta(t, 0.945, iv.Lower, 1e-9)
	assert.InDelta(t, 0.955, iv.Upper, 1e-9)

	for _, c := range []float64{0, 0.1, 0.5, 0.99, 1} {
		iv := IntervalFor(c)
		assert.LessOrEqual(t, iv.Lower, c)
		assert.GreaterOrEqual(t, iv.Upper, c)
		assert.GreaterOrEqual(t, iv.Lower, 0.0)
		assert.LessOrEqual(t, iv.Upper, 1.0)
	}
}

func TestLevelFor(t *testing.T) {
	cases := map[float64]ConfidenceLevel{
		0.95: ConfidenceVeryHigh,
		0.9:  ConfidenceVeryHigh,
		0.89: ConfidenceHigh,
		0.7:  ConfidenceHigh,
		0.5:  ConfidenceMedium,
		0.3:  ConfidenceLow,
		0.29: ConfidenceVeryLow,
		0:    ConfidenceVeryLow,
	}
	for c, want := range cases {
		assert.Equal(t, want, LevelFor(c), c)
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.3))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
	assert.Equal(t, 0.4, Clamp01(0.4))
}

func TestEngineErrorMatching(t *testing.T) {
	err := fmt.Errorf("pipeline: %w", NewRateLimitError(2*time.Second))

	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrValidation))

	ee := AsEngineError(err)
	assert.Equal(t, CodeRateLimited, ee.Code)
	assert.Equal(t, 2*time.Second, ee.RetryAfter)
	assert.True(t, ee.Surfaced())
}

func TestAsEngineErrorWrapsUnknown(t *testing.T) {
	cause := errors.New("boom")
	ee := AsEngineError(cause)
	require.NotNil(t, ee)
	assert.Equal(t, CodeInternal, ee.Code)
	assert.ErrorIs(t, ee, cause)
	assert.False(t, ee.Surfaced())
	assert.Nil(t, AsEngineError(nil))
}

func TestSurfacedCodes(t *testing.T) {
	assert.True(t, NewValidationError("x").Surfaced())
	assert.True(t, NewScoringError("x", nil).Surfaced())
	assert.False(t, NewExplanationError("x", nil).Surfaced())
	assert.False(t, NewCacheError("x", nil).Surfaced())
}

func TestContextUpdateApply(t *testing.T) {
	req := RecommendationRequest{
		UserID:  "u-1",
		Message: "hello",
		Context: ContextSnapshot{SkillLevel: SkillBeginner, Intent: "send_message"},
		History: []ConversationTurn{{Role: "user", Content: "hi"}},
	}
	out := ContextUpdate{
		Message: "now schedule it",
		Turn:    &ConversationTurn{Role: "assistant", Content: "sure"},
		Context: ContextSnapshot{Intent: "schedule", BusinessContext: map[string]string{"team": "sales"}},
	}.Apply(req)

	assert.Equal(t, "now schedule it", out.Message)
	assert.Equal(t, SkillBeginner, out.Context.SkillLevel)
	assert.Equal(t, "schedule", out.Context.Intent)
	assert.Equal(t, "sales", out.Context.BusinessContext["team"])
	assert.Len(t, out.History, 2)
	assert.Len(t, req.History, 1)
	assert.Equal(t, "send_message", req.Context.Intent)
}

func TestUserProfileDefaults(t *testing.T) {
	p := UserProfile{UserID: "u-1", SkillLevel: SkillExpert, WorkflowStage: "review", Device: "desktop"}
	got := p.Defaults(ContextSnapshot{Device: "mobile"})

	assert.Equal(t, SkillExpert, got.SkillLevel)
	assert.Equal(t, "review", got.WorkflowStage)
	assert.Equal(t, "mobile", got.Device)
}
