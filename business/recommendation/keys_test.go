package recommendation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"toolAdvisor/domain"
)

func TestCacheKey_NormalisedFormsMatch(t *testing.T) {
	a := domain.RecommendationRequest{
		UserID:           "u-1",
		Message:          "share the report",
		Context:          domain.ContextSnapshot{SkillLevel: "Advanced", Intent: "Share", BusinessContext: map[string]string{"Team": "ops"}},
		CandidateToolIDs: []string{"b", "a", "b"},
	}
	b := a
	b.Message = "  share the report "
	b.Context = domain.ContextSnapshot{SkillLevel: "advanced", Intent: " share", BusinessContext: map[string]string{"team": "ops"}}
	b.CandidateToolIDs = []string{"a", "b"}
	b.RequestID = "ignored"

	ka := cacheKey("1", normalizeRequest(a, 20, 5))
	kb := cacheKey("1", normalizeRequest(b, 20, 5))
	assert.Equal(t, ka, kb)
	assert.True(t, strings.HasPrefix(ka, "reco:v1:"))
}

func TestCacheKey_Distinguishes(t *testing.T) {
	base := normalizeRequest(domain.RecommendationRequest{
		UserID:  "u-1",
		Context: domain.ContextSnapshot{Intent: "share"},
	}, 20, 5)
	key := cacheKey("1", base)

	other := base
	other.UserID = "u-2"
	assert.NotEqual(t, key, cacheKey("1", other))

	other = base
	other.IncludeExplanations = true
	assert.NotEqual(t, key, cacheKey("1", other))

	assert.NotEqual(t, key, cacheKey("2", base), "schema bump orphans old keys")
}

func TestNormalizeRequest_BoundsHistoryAndResults(t *testing.T) {
	req := domain.RecommendationRequest{UserID: "u", MaxResults: 50}
	for i := 0; i < 30; i++ {
		req.History = append(req.History, domain.ConversationTurn{Role: "user", Content: string(rune('a' + i%26))})
	}

	out := normalizeRequest(req, 20, 5)
	assert.Len(t, out.History, 20)
	assert.Equal(t, req.History[10], out.History[0])
	assert.Equal(t, 5, out.MaxResults)
	assert.Len(t, req.History, 30, "input untouched")

	out = normalizeRequest(domain.RecommendationRequest{UserID: "u", MaxResults: 2}, 20, 5)
	assert.Equal(t, 2, out.MaxResults)
}

func TestDefaultConfig_IsValid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ConfidenceThreshold = 1.5
	assert.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.RateLimit.Strategy = "leaky"
	assert.ErrorIs(t, cfg.Validate(), domain.ErrConfiguration)
}
