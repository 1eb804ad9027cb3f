package scoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolAdvisor/domain"
)

type staticAlgorithm struct {
	name   domain.AlgorithmName
	scores map[string]float64
	err    error
	panics bool
}

func (s *staticAlgorithm) Name() domain.AlgorithmName { return s.name }
func (s *staticAlgorithm) Version() string            { return "static/test" }

func (s *staticAlgorithm) Score(_ context.Context, _ Input, tool domain.Tool) (Result, error) {
	if s.panics {
		panic("scorer exploded")
	}
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{Value: s.scores[tool.ID], Confidence: 0.8, Reasons: []string{string(s.name) + " likes " + tool.ID}}, nil
}

type fixture map[string][3]float64

func newStaticRanker(t *testing.T, f fixture) (*Ranker, []domain.Tool) {
	t.Helper()
	collab := &staticAlgorithm{name: domain.AlgorithmCollaborative, scores: map[string]float64{}}
	content := &staticAlgorithm{name: domain.AlgorithmContentBased, scores: map[string]float64{}}
	ctxFit := &staticAlgorithm{name: domain.AlgorithmContextual, scores: map[string]float64{}}

	var tools []domain.Tool
	for id, s := range f {
		collab.scores[id] = s[0]
		content.scores[id] = s[1]
		ctxFit.scores[id] = s[2]
		tools = append(tools, domain.Tool{ID: id, Name: id})
	}
	r, err := NewRanker(collab, content, ctxFit)
	require.NoError(t, err)
	return r, tools
}

func testInput() Input {
	return Input{
		UserID:  "u-1",
		Context: domain.ContextSnapshot{SkillLevel: domain.SkillBeginner, Intent: "send_message"},
		Now:     time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
}

func ids(s []ScoredTool) []string {
	out := make([]string, len(s))
	for i, st := range s {
		out[i] = st.Tool.ID
	}
	return out
}

func TestRanker_WorkedExample(t *testing.T) {
	r, tools := newStaticRanker(t, fixture{
		"ToolA": {0.9, 0.8, 0.7},
		"ToolB": {0.5, 0.5, 0.5},
	})

	res, err := r.Rank(context.Background(), testInput(), tools, RankOptions{
		Weights:    Weights{Collaborative: 0.3, ContentBased: 0.25, Contextual: 0.45},
		MaxResults: 5,
	})
	require.NoError(t, err)
	require.Len(t, res.Ranked, 2)

	assert.Equal(t, "ToolA", res.Ranked[0].Tool.ID)
	assert.InDelta(t, 0.785, res.Ranked[0].Scores.Combined, 1e-9)
	assert.InDelta(t, 0.5, res.Ranked[1].Scores.Combined, 1e-9)
}

func TestRanker_CombinedIsWeightedSum(t *testing.T) {
	f := fixture{
		"a": {0.11, 0.93, 0.42},
		"b": {0.0, 1.0, 0.5},
		"c": {0.77, 0.31, 0.05},
		"d": {1, 1, 1},
	}
	r, tools := newStaticRanker(t, f)
	w := Weights{Collaborative: 0.2, ContentBased: 0.35, Contextual: 0.45}

	res, err := r.Rank(context.Background(), testInput(), tools, RankOptions{Weights: w, MaxResults: 10})
	require.NoError(t, err)
	require.Len(t, res.Ranked, 4)

	for i, st := range res.Ranked {
		s := f[st.Tool.ID]
		assert.InDelta(t, w.Collaborative*s[0]+w.ContentBased*s[1]+w.Contextual*s[2], st.Scores.Combined, 1e-9)
		if i > 0 {
			assert.GreaterOrEqual(t, res.Ranked[i-1].Scores.Combined, st.Scores.Combined)
		}
	}
}

func TestRanker_TieBreakContextualThenID(t *testing.T) {
	r, tools := newStaticRanker(t, fixture{
		"zeta":  {0.5, 0.5, 0.5},
		"alpha": {0.5, 0.5, 0.5},
		"beta":  {1.0, 0.5, 0.25},
	})
	w := Weights{Collaborative: 0.25, ContentBased: 0.25, Contextual: 0.5}

	res, err := r.Rank(context.Background(), testInput(), tools, RankOptions{Weights: w, MaxResults: 3})
	require.NoError(t, err)

	// beta has the same combined score but a lower contextual score
	assert.Equal(t, res.Ranked[0].Scores.Combined, res.Ranked[2].Scores.Combined)
	assert.Equal(t, []string{"alpha", "zeta", "beta"}, ids(res.Ranked))

	again, err := r.Rank(context.Background(), testInput(), tools, RankOptions{Weights: w, MaxResults: 3})
	require.NoError(t, err)
	assert.Equal(t, ids(res.Ranked), ids(again.Ranked))
}

func TestRanker_ThresholdAppliedBeforeTruncation(t *testing.T) {
	r, tools := newStaticRanker(t, fixture{
		"t90": {0.9, 0.9, 0.9},
		"t20": {0.2, 0.2, 0.2},
		"t80": {0.8, 0.8, 0.8},
		"t70": {0.7, 0.7, 0.7},
		"t10": {0.1, 0.1, 0.1},
	})

	res, err := r.Rank(context.Background(), testInput(), tools, RankOptions{
		Weights:             DefaultWeights(),
		ConfidenceThreshold: 0.5,
		MaxResults:          2,
		Alternatives:        2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t90", "t80"}, ids(res.Ranked))
	assert.Equal(t, []string{"t70", "t20"}, ids(res.Alternatives))

	res, err = r.Rank(context.Background(), testInput(), tools, RankOptions{
		Weights:             DefaultWeights(),
		ConfidenceThreshold: 0.5,
		MaxResults:          5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t90", "t80", "t70"}, ids(res.Ranked))
}

func TestRanker_InvalidWeights(t *testing.T) {
	r, tools := newStaticRanker(t, fixture{"a": {0.5, 0.5, 0.5}})

	for name, w := range map[string]Weights{
		"sum below one": {Collaborative: 0.3, ContentBased: 0.3, Contextual: 0.3},
		"sum above one": {Collaborative: 0.5, ContentBased: 0.5, Contextual: 0.1},
		"negative":      {Collaborative: -0.2, ContentBased: 0.6, Contextual: 0.6},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := r.Rank(context.Background(), testInput(), tools, RankOptions{Weights: w})
			assert.ErrorIs(t, err, domain.ErrConfiguration)
		})
	}

	assert.NoError(t, Weights{Collaborative: 0.3, ContentBased: 0.25, Contextual: 0.45 + 5e-7}.Validate())
}

func TestRanker_FailedAlgorithmIsNeutral(t *testing.T) {
	collab := &staticAlgorithm{name: domain.AlgorithmCollaborative, err: errors.New("matrix unavailable")}
	content := &staticAlgorithm{name: domain.AlgorithmContentBased, panics: true}
	ctxFit := &staticAlgorithm{name: domain.AlgorithmContextual, scores: map[string]float64{"a": 0.9}}
	r, err := NewRanker(collab, content, ctxFit)
	require.NoError(t, err)

	res, err := r.Rank(context.Background(), testInput(), []domain.Tool{{ID: "a"}}, RankOptions{
		Weights:    DefaultWeights(),
		MaxResults: 1,
	})
	require.NoError(t, err)
	require.Len(t, res.Ranked, 1)

	s := res.Ranked[0].Scores
	assert.Equal(t, NeutralScore, s.Collaborative)
	assert.Equal(t, NeutralScore, s.ContentBased)
	assert.Equal(t, 0.9, s.Contextual)
	assert.True(t, res.Failed(domain.AlgorithmCollaborative))
	assert.True(t, res.Failed(domain.AlgorithmContentBased))
	assert.False(t, res.Failed(domain.AlgorithmContextual))
	assert.Equal(t, 0.0, res.Ranked[0].Confidences[domain.AlgorithmCollaborative])
}

func TestRanker_AllAlgorithmsFailed(t *testing.T) {
	boom := errors.New("boom")
	r, err := NewRanker(
		&staticAlgorithm{name: domain.AlgorithmCollaborative, err: boom},
		&staticAlgorithm{name: domain.AlgorithmContentBased, err: boom},
		&staticAlgorithm{name: domain.AlgorithmContextual, err: boom},
	)
	require.NoError(t, err)

	_, err = r.Rank(context.Background(), testInput(), []domain.Tool{{ID: "a"}}, RankOptions{Weights: DefaultWeights()})
	assert.ErrorIs(t, err, domain.ErrScoring)
	assert.ErrorIs(t, err, boom)
}

func TestRanker_EmptyCandidates(t *testing.T) {
	r, _ := newStaticRanker(t, fixture{})
	res, err := r.Rank(context.Background(), testInput(), nil, RankOptions{Weights: DefaultWeights()})
	require.NoError(t, err)
	assert.Empty(t, res.Ranked)
	assert.Len(t, res.Versions, 3)
}

func TestNewRanker_RequiresAllAlgorithms(t *testing.T) {
	_, err := NewRanker(&staticAlgorithm{name: domain.AlgorithmCollaborative})
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = NewRanker(
		&staticAlgorithm{name: domain.AlgorithmCollaborative},
		&staticAlgorithm{name: domain.AlgorithmCollaborative},
		&staticAlgorithm{name: domain.AlgorithmContextual},
	)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
