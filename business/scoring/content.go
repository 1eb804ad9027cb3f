package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"toolAdvisor/domain"
)

const (
	contentVersion    = "tf-cosine/1.1"
	intentMatchWeight = 0.3
	maxMatchedTerms   = 3
)

// ContentBased compares the request text with the tool's descriptive text.
type ContentBased struct{}

var _ Algorithm = (*ContentBased)(nil)

func NewContentBased() *ContentBased {
	return &ContentBased{}
}

func (c *ContentBased) Name() domain.AlgorithmName { return domain.AlgorithmContentBased }

func (c *ContentBased) Version() string { return contentVersion }

func (c *ContentBased) Score(ctx context.Context, in Input, tool domain.Tool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context error: %w", err)
	}

	query := termFrequencies(queryText(in)...)
	if len(query) == 0 {
		return neutralResult(), nil
	}
	doc := termFrequencies(toolText(tool)...)

	sim := cosine(query, doc)
	intentMatch := containsFold(tool.Intents, in.Context.Intent)

	value := (1 - intentMatchWeight) * sim
	if intentMatch {
		value += intentMatchWeight
	}

	queryTerms := 0.0
	for _, n := range query {
		queryTerms += n
	}

	res := Result{
		Value:      domain.Clamp01(value),
		Confidence: domain.Clamp01(queryTerms / (queryTerms + 5)),
	}
	if intentMatch {
		res.Reasons = append(res.Reasons, fmt.Sprintf("built for %q", in.Context.Intent))
	}
	if terms := matchedTerms(query, doc); len(terms) > 0 {
		res.Reasons = append(res.Reasons, "matches "+strings.Join(terms, ", "))
	}
	return res, nil
}

// matchedTerms returns the shared terms with the highest combined weight.
func matchedTerms(query, doc termVector) []string {
	type tw struct {
		term   string
		weight float64
	}
	var shared []tw
	for term, w := range query {
		if d, ok := doc[term]; ok {
			shared = append(shared, tw{term: term, weight: w * d})
		}
	}
	sort.Slice(shared, func(i, j int) bool {
		if shared[i].weight != shared[j].weight {
			return shared[i].weight > shared[j].weight
		}
		return shared[i].term < shared[j].term
	})
	if len(shared) > maxMatchedTerms {
		shared = shared[:maxMatchedTerms]
	}
	out := make([]string, len(shared))
	for i, s := range shared {
		out[i] = s.term
	}
	return out
}
