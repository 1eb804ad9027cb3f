package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

// WeightTolerance is how far the weight sum may stray from 1.
const WeightTolerance = 1e-6

type Weights struct {
	Collaborative float64 `yaml:"collaborative" json:"collaborative"`
	ContentBased  float64 `yaml:"content_based" json:"content_based"`
	Contextual    float64 `yaml:"contextual" json:"contextual"`
}

func DefaultWeights() Weights {
	return Weights{Collaborative: 0.3, ContentBased: 0.25, Contextual: 0.45}
}

func (w Weights) Validate() error {
	for name, v := range map[domain.AlgorithmName]float64{
		domain.AlgorithmCollaborative: w.Collaborative,
		domain.AlgorithmContentBased:  w.ContentBased,
		domain.AlgorithmContextual:    w.Contextual,
	} {
		if v < 0 || math.IsNaN(v) {
			return domain.NewConfigurationError("weight for %s must be non-negative, got %v", name, v)
		}
	}
	sum := w.Collaborative + w.ContentBased + w.Contextual
	if math.Abs(sum-1) > WeightTolerance {
		return domain.NewConfigurationError("algorithm weights must sum to 1, got %v", sum)
	}
	return nil
}

func (w Weights) Get(name domain.AlgorithmName) float64 {
	switch name {
	case domain.AlgorithmCollaborative:
		return w.Collaborative
	case domain.AlgorithmContentBased:
		return w.ContentBased
	case domain.AlgorithmContextual:
		return w.Contextual
	default:
		return 0
	}
}

// Combine is the weighted sum of the three algorithm scores.
func (w Weights) Combine(s domain.AlgorithmScores) float64 {
	return w.Collaborative*s.Collaborative + w.ContentBased*s.ContentBased + w.Contextual*s.Contextual
}

type RankOptions struct {
	Weights             Weights
	ConfidenceThreshold float64
	MaxResults          int
	// Alternatives is how many non-selected candidates to keep for
	// counterfactuals.
	Alternatives int
}

type ScoredTool struct {
	Tool        domain.Tool
	Scores      domain.AlgorithmScores
	Confidences map[domain.AlgorithmName]float64
	Reasons     []string
}

type AlgorithmFailure struct {
	Algorithm domain.AlgorithmName
	Err       error
}

type RankResult struct {
	Ranked       []ScoredTool
	Alternatives []ScoredTool
	Failures     []AlgorithmFailure
	Versions     map[string]string
}

// Failed reports whether the named algorithm fell back to neutral scores.
func (r RankResult) Failed(name domain.AlgorithmName) bool {
	for _, f := range r.Failures {
		if f.Algorithm == name {
			return true
		}
	}
	return false
}

// Ranker runs the scoring algorithms in parallel and orders candidates by
// their combined score.
type Ranker struct {
	algorithms []Algorithm
}

func NewRanker(algorithms ...Algorithm) (*Ranker, error) {
	seen := make(map[domain.AlgorithmName]bool, len(algorithms))
	for _, a := range algorithms {
		switch a.Name() {
		case domain.AlgorithmCollaborative, domain.AlgorithmContentBased, domain.AlgorithmContextual:
		default:
			return nil, domain.NewConfigurationError("unknown algorithm %q", a.Name())
		}
		if seen[a.Name()] {
			return nil, domain.NewConfigurationError("algorithm %q registered twice", a.Name())
		}
		seen[a.Name()] = true
	}
	if len(seen) != 3 {
		return nil, domain.NewConfigurationError("ranker needs collaborative, content_based and contextual algorithms")
	}
	return &Ranker{algorithms: algorithms}, nil
}

func (r *Ranker) Versions() map[string]string {
	out := make(map[string]string, len(r.algorithms))
	for _, a := range r.algorithms {
		out[string(a.Name())] = a.Version()
	}
	return out
}

type algorithmRun struct {
	results []Result
	err     error
}

func (r *Ranker) Rank(ctx context.Context, in Input, tools []domain.Tool, opts RankOptions) (RankResult, error) {
	if err := opts.Weights.Validate(); err != nil {
		return RankResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return RankResult{}, fmt.Errorf("context error: %w", err)
	}

	out := RankResult{Versions: r.Versions()}
	if len(tools) == 0 {
		return out, nil
	}

	runs := make([]algorithmRun, len(r.algorithms))
	var g errgroup.Group
	for i, algo := range r.algorithms {
		g.Go(func() error {
			runs[i] = runAlgorithm(ctx, algo, in, tools)
			return nil
		})
	}
	_ = g.Wait()

	for i, algo := range r.algorithms {
		if runs[i].err == nil {
			continue
		}
		out.Failures = append(out.Failures, AlgorithmFailure{Algorithm: algo.Name(), Err: runs[i].err})
		logger.Warn("scoring_algorithm_failed",
			"algorithm", string(algo.Name()),
			"version", algo.Version(),
			"error", runs[i].err,
		)
	}
	if len(out.Failures) == len(r.algorithms) {
		return RankResult{}, domain.NewScoringError("all scoring algorithms failed", out.Failures[0].Err)
	}

	scored := make([]ScoredTool, len(tools))
	for t, tool := range tools {
		st := ScoredTool{
			Tool:        tool,
			Confidences: make(map[domain.AlgorithmName]float64, len(r.algorithms)),
		}
		type contribution struct {
			value   float64
			reasons []string
		}
		var contributions []contribution

		for i, algo := range r.algorithms {
			res := neutralResult()
			if runs[i].err == nil {
				res = runs[i].results[t]
			}
			value := domain.Clamp01(res.Value)
			switch algo.Name() {
			case domain.AlgorithmCollaborative:
				st.Scores.Collaborative = value
			case domain.AlgorithmContentBased:
				st.Scores.ContentBased = value
			case domain.AlgorithmContextual:
				st.Scores.Contextual = value
			}
			st.Confidences[algo.Name()] = domain.Clamp01(res.Confidence)
			contributions = append(contributions, contribution{
				value:   opts.Weights.Get(algo.Name()) * value,
				reasons: res.Reasons,
			})
		}
		st.Scores.Combined = opts.Weights.Combine(st.Scores)

		sort.SliceStable(contributions, func(a, b int) bool {
			return contributions[a].value > contributions[b].value
		})
		seen := make(map[string]bool)
		for _, c := range contributions {
			for _, reason := range c.reasons {
				if !seen[reason] {
					seen[reason] = true
					st.Reasons = append(st.Reasons, reason)
				}
			}
		}
		scored[t] = st
	}

	sortScored(scored)

	// threshold first, then truncate
	kept := make([]ScoredTool, 0, len(scored))
	var rest []ScoredTool
	for _, st := range scored {
		if st.Scores.Combined < opts.ConfidenceThreshold {
			rest = append(rest, st)
			continue
		}
		kept = append(kept, st)
	}
	if opts.MaxResults > 0 && len(kept) > opts.MaxResults {
		overflow := append([]ScoredTool(nil), kept[opts.MaxResults:]...)
		rest = append(overflow, rest...)
		kept = kept[:opts.MaxResults]
	}
	sortScored(rest)
	if len(rest) > opts.Alternatives {
		rest = rest[:opts.Alternatives]
	}

	out.Ranked = kept
	out.Alternatives = rest
	return out, nil
}

// sortScored orders by combined score, then contextual score, then tool id.
func sortScored(s []ScoredTool) {
	sort.SliceStable(s, func(i, j int) bool {
		a, b := s[i].Scores, s[j].Scores
		if a.Combined != b.Combined {
			return a.Combined > b.Combined
		}
		if a.Contextual != b.Contextual {
			return a.Contextual > b.Contextual
		}
		return s[i].Tool.ID < s[j].Tool.ID
	})
}

// runAlgorithm scores every tool with one algorithm. Any error or panic
// fails the whole algorithm.
func runAlgorithm(ctx context.Context, algo Algorithm, in Input, tools []domain.Tool) (run algorithmRun) {
	defer func() {
		if p := recover(); p != nil {
			run = algorithmRun{err: fmt.Errorf("%s panicked: %v", algo.Name(), p)}
		}
	}()

	results := make([]Result, len(tools))
	for i, tool := range tools {
		res, err := algo.Score(ctx, in, tool)
		if err != nil {
			return algorithmRun{err: fmt.Errorf("%s score %s: %w", algo.Name(), tool.ID, err)}
		}
		if math.IsNaN(res.Value) || math.IsInf(res.Value, 0) {
			return algorithmRun{err: fmt.Errorf("%s score %s: non-finite value", algo.Name(), tool.ID)}
		}
		results[i] = res
	}
	return algorithmRun{results: results}
}
