package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"

	"toolAdvisor/domain"
)

const (
	collaborativeVersion = "item-cf/1.0"
	// shrinkage pulls sparse neighbourhoods toward the popularity prior.
	shrinkage = 3.0
)

// Collaborative is item-based collaborative filtering over the feedback
// interaction matrix, backed off to tool popularity for cold users.
type Collaborative struct {
	store *ModelStore
}

var _ Algorithm = (*Collaborative)(nil)

func NewCollaborative(store *ModelStore) *Collaborative {
	return &Collaborative{store: store}
}

func (c *Collaborative) Name() domain.AlgorithmName { return domain.AlgorithmCollaborative }

func (c *Collaborative) Version() string { return collaborativeVersion }

// preference maps an accumulated reward onto [0,1).
func preference(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return 1 - math.Exp(-r)
}

func (c *Collaborative) Score(ctx context.Context, in Input, tool domain.Tool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context error: %w", err)
	}

	var (
		prior   float64
		raters  int
		cf      float64
		support int
	)
	c.store.withInteractions(func(m map[string]map[string]float64) {
		users := sortedKeys(m)
		prior, raters = popularity(m, users, tool.ID)
		cf, support = neighbourhood(m, users, in.UserID, tool.ID)
	})

	lambda := float64(support) / (float64(support) + shrinkage)
	res := Result{
		Value:      domain.Clamp01(lambda*cf + (1-lambda)*prior),
		Confidence: domain.Clamp01(0.2 + 0.8*lambda),
	}
	if support == 0 && raters == 0 {
		res.Confidence = 0
	}

	if support > 0 && cf >= 0.6 {
		res.Reasons = append(res.Reasons, "users with a similar tool history chose it")
	}
	if prior >= 0.6 {
		res.Reasons = append(res.Reasons, "frequently chosen by other users")
	}
	return res, nil
}

// sortedKeys fixes the summation order so equal inputs give bit-identical scores.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// popularity is the Laplace-smoothed share of users with positive feedback on
// the tool, 0.5 with no data, and the number of users who rated it.
func popularity(m map[string]map[string]float64, users []string, toolID string) (float64, int) {
	positive, raters := 0, 0
	for _, u := range users {
		v, ok := m[u][toolID]
		if !ok {
			continue
		}
		raters++
		if v > 0 {
			positive++
		}
	}
	return (float64(positive) + 1) / (float64(raters) + 2), raters
}

// neighbourhood predicts the user's preference for target from the tools the
// user has interacted with, weighted by item cosine similarity.
func neighbourhood(m map[string]map[string]float64, users []string, userID, target string) (float64, int) {
	own, ok := m[userID]
	if !ok || len(own) == 0 {
		return 0, 0
	}
	if _, rated := own[target]; rated {
		return preference(own[target]), len(own)
	}

	num, den := 0.0, 0.0
	support := 0
	for _, item := range sortedKeys(own) {
		sim := itemSimilarity(m, users, item, target)
		if sim <= 0 {
			continue
		}
		num += sim * preference(own[item])
		den += sim
		support++
	}
	if den == 0 {
		return 0, 0
	}
	return num / den, support
}

// itemSimilarity is the cosine similarity of two tools' preference columns.
func itemSimilarity(m map[string]map[string]float64, users []string, a, b string) float64 {
	dotAB, na, nb := 0.0, 0.0, 0.0
	for _, u := range users {
		row := m[u]
		pa := preference(row[a])
		pb := preference(row[b])
		dotAB += pa * pb
		na += pa * pa
		nb += pb * pb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dotAB / (math.Sqrt(na) * math.Sqrt(nb))
}
