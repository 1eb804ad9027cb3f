package explanation

import (
	"fmt"

	"toolAdvisor/domain"
)

var counterfactualOrder = []domain.AlgorithmName{
	domain.AlgorithmCollaborative,
	domain.AlgorithmContentBased,
	domain.AlgorithmContextual,
}

// Alternative is a scored candidate that was not chosen.
type Alternative struct {
	ToolID   string
	ToolName string
	Scores   domain.AlgorithmScores
}

// Counterfactuals explains, for each of the first k alternatives, why the top
// recommendation beat it, keyed on the largest single algorithm-score gap.
func Counterfactuals(top domain.ContextualRecommendation, alternatives []Alternative, k int) []domain.Counterfactual {
	if k <= 0 || len(alternatives) == 0 {
		return nil
	}
	if len(alternatives) > k {
		alternatives = alternatives[:k]
	}

	out := make([]domain.Counterfactual, 0, len(alternatives))
	for _, alt := range alternatives {
		algo, delta := largestGap(top.Scores, alt.Scores)
		name := alt.ToolName
		if name == "" {
			name = alt.ToolID
		}
		out = append(out, domain.Counterfactual{
			ToolID:    alt.ToolID,
			ToolName:  name,
			Combined:  alt.Scores.Combined,
			Algorithm: algo,
			Delta:     delta,
			Reason:    counterfactualReason(name, toolName(top), algo, delta),
		})
	}
	return out
}

// largestGap returns the algorithm where top leads alt the most. Ties keep
// the earlier algorithm.
func largestGap(top, alt domain.AlgorithmScores) (domain.AlgorithmName, float64) {
	best := counterfactualOrder[0]
	bestDelta := top.Get(best) - alt.Get(best)
	for _, name := range counterfactualOrder[1:] {
		if d := top.Get(name) - alt.Get(name); d > bestDelta {
			best, bestDelta = name, d
		}
	}
	return best, bestDelta
}

func counterfactualReason(alt, top string, algo domain.AlgorithmName, delta float64) string {
	if delta <= 0 {
		return fmt.Sprintf("%s scores at least as well as %s on every signal but ranks lower overall.", alt, top)
	}
	switch algo {
	case domain.AlgorithmCollaborative:
		return fmt.Sprintf("%s is chosen less often than %s by users with a similar history.", alt, top)
	case domain.AlgorithmContentBased:
		return fmt.Sprintf("%s matches your request less closely than %s.", alt, top)
	default:
		return fmt.Sprintf("%s fits your current context less well than %s.", alt, top)
	}
}
