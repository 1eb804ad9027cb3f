package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolAdvisor/business/scoring"
	"toolAdvisor/domain"
)

func fullContext() domain.ContextSnapshot {
	return domain.ContextSnapshot{
		SkillLevel:    domain.SkillIntermediate,
		WorkflowStage: "review",
		Intent:        "refactor",
		Device:        "desktop",
		TimeOfDay:     "morning",
	}
}

func confidences(v float64) map[domain.AlgorithmName]float64 {
	return map[domain.AlgorithmName]float64{
		domain.AlgorithmCollaborative: v,
		domain.AlgorithmContentBased:  v,
		domain.AlgorithmContextual:    v,
	}
}

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(DefaultConfig())
	require.NoError(t, err)
	return a
}

func names(fs []domain.UncertaintyFactor) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

func TestAnalyze_ConfidentAndAgreeing(t *testing.T) {
	a := newAnalyzer(t)
	res := a.Analyze(Input{
		Scores:      domain.AlgorithmScores{Collaborative: 0.8, ContentBased: 0.8, Contextual: 0.8, Combined: 0.8},
		Confidences: confidences(0.9),
		Weights:     scoring.DefaultWeights(),
		Context:     fullContext(),
		HasText:     true,
		UserSupport: 20,
	})

	assert.InDelta(t, 0.5*0.9+0.3*1.0+0.2*(20.0/30.0), res.OverallConfidence, 1e-9)
	assert.Equal(t, domain.ConfidenceHigh, res.Level)
	assert.Empty(t, res.Uncertainties)
	assert.Empty(t, res.Weaknesses)
	assert.Len(t, res.Strengths, 4)
	assert.LessOrEqual(t, res.Interval.Lower, res.OverallConfidence)
	assert.GreaterOrEqual(t, res.Interval.Upper, res.OverallConfidence)
}

func TestAnalyze_LimitedContext(t *testing.T) {
	a := newAnalyzer(t)
	res := a.Analyze(Input{
		Scores:      domain.AlgorithmScores{Collaborative: 0.5, ContentBased: 0.5, Contextual: 0.6},
		Confidences: confidences(0.5),
		Weights:     scoring.DefaultWeights(),
		Context:     domain.ContextSnapshot{Intent: "send_message"},
		UserSupport: 3,
	})

	require.Contains(t, names(res.Uncertainties), "limited_context_data")
	f := res.Uncertainties[0]
	assert.Equal(t, domain.UncertaintyContext, f.Type)
	assert.InDelta(t, 1-1.0/6.0, f.Impact, 1e-9)
	assert.NotEmpty(t, f.Mitigations)
	assert.Contains(t, f.Mitigations[0], "skill level")
	assert.Contains(t, res.Explanation, "limited context data")
}

func TestAnalyze_AlgorithmDisagreement(t *testing.T) {
	a := newAnalyzer(t)
	res := a.Analyze(Input{
		Scores:      domain.AlgorithmScores{Collaborative: 0, ContentBased: 0, Contextual: 1, Combined: 0.45},
		Confidences: confidences(0.9),
		Weights:     scoring.DefaultWeights(),
		Context:     fullContext(),
		HasText:     true,
		UserSupport: 50,
	})

	require.Equal(t, []string{"algorithm_disagreement"}, names(res.Uncertainties))
	assert.InDelta(t, 1.0/3.0, res.Uncertainties[0].Impact, 1e-9)
	assert.NotEmpty(t, res.Uncertainties[0].Mitigations)
	assert.Contains(t, res.Explanation, "algorithm disagreement")
	assert.Less(t, res.Components.Algorithm, 0.9)
}

func TestAnalyze_FailuresAndColdStart(t *testing.T) {
	a := newAnalyzer(t)
	res := a.Analyze(Input{
		Scores:      domain.AlgorithmScores{Collaborative: 0.5, ContentBased: 0.5, Contextual: 0.5},
		Confidences: confidences(0.5),
		Weights:     scoring.DefaultWeights(),
		Failed:      []domain.AlgorithmName{domain.AlgorithmContextual},
		Context:     fullContext(),
		HasText:     true,
	})

	assert.Equal(t, []string{"algorithm_failure", "cold_start_user"}, names(res.Uncertainties))
	for _, u := range res.Uncertainties {
		assert.NotEmpty(t, u.Mitigations, u.Name)
	}
}

func TestAnalyze_IntervalAlwaysContainsConfidence(t *testing.T) {
	a := newAnalyzer(t)
	for _, c := range []float64{0, 0.1, 0.35, 0.5, 0.75, 0.99, 1} {
		res := a.Analyze(Input{
			Scores:      domain.AlgorithmScores{Collaborative: c, ContentBased: 1 - c, Contextual: c},
			Confidences: confidences(c),
			Weights:     scoring.DefaultWeights(),
			UserSupport: int(c * 100),
		})
		assert.LessOrEqual(t, res.Interval.Lower, res.OverallConfidence)
		assert.GreaterOrEqual(t, res.Interval.Upper, res.OverallConfidence)
		assert.GreaterOrEqual(t, res.Interval.Lower, 0.0)
		assert.LessOrEqual(t, res.Interval.Upper, 1.0)
		assert.Equal(t, domain.LevelFor(res.OverallConfidence), res.Level)
	}
}

func TestNewAnalyzer_ValidatesConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Algorithm: 0.6, DataQuality: 0.3, UserModel: 0.2}
	_, err := NewAnalyzer(cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	cfg = DefaultConfig()
	cfg.DisagreementThreshold = 0
	_, err = NewAnalyzer(cfg)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestVarianceAndCompleteness(t *testing.T) {
	assert.InDelta(t, 0.0, Variance(domain.AlgorithmScores{Collaborative: 0.4, ContentBased: 0.4, Contextual: 0.4}), 1e-12)
	assert.InDelta(t, 1.0/3.0, Variance(domain.AlgorithmScores{Contextual: 1}), 1e-12)
	assert.InDelta(t, 0.64/3.0, Variance(domain.AlgorithmScores{Collaborative: 0.9, ContentBased: 0.1, Contextual: 0.1}), 1e-12)

	assert.Equal(t, 0.0, Completeness(domain.ContextSnapshot{}, false))
	assert.Equal(t, 1.0, Completeness(fullContext(), true))
}
