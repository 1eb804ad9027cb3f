package scoring

import (
	"math"
	"strings"
	"unicode"

	"toolAdvisor/domain"
)

// historyWindow is how many trailing conversation turns feed the query text.
const historyWindow = 3

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"can": {}, "do": {}, "for": {}, "from": {}, "how": {}, "i": {}, "in": {}, "is": {},
	"it": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "please": {}, "so": {},
	"that": {}, "the": {}, "this": {}, "to": {}, "want": {}, "we": {}, "what": {},
	"with": {}, "you": {}, "your": {},
}

// tokenize lowercases s and splits it on anything that is not a letter or
// digit, dropping stopwords and single characters.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

type termVector map[string]float64

func termFrequencies(texts ...string) termVector {
	tv := make(termVector)
	for _, t := range texts {
		for _, tok := range tokenize(t) {
			tv[tok]++
		}
	}
	return tv
}

func (v termVector) norm() float64 {
	sum := 0.0
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

func cosine(a, b termVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(b) < len(a) {
		a, b = b, a
	}
	d := 0.0
	for term, w := range a {
		d += w * b[term]
	}
	na, nb := a.norm(), b.norm()
	if na == 0 || nb == 0 {
		return 0
	}
	return d / (na * nb)
}

// queryText gathers the request text the content scorer compares against.
func queryText(in Input) []string {
	parts := []string{in.Message, in.Context.Intent, in.Context.WorkflowStage}
	start := len(in.History) - historyWindow
	if start < 0 {
		start = 0
	}
	for _, turn := range in.History[start:] {
		parts = append(parts, turn.Content)
	}
	return parts
}

func toolText(t domain.Tool) []string {
	parts := []string{t.Name, t.Description, t.Category}
	parts = append(parts, t.Keywords...)
	parts = append(parts, t.Guidelines...)
	parts = append(parts, t.Intents...)
	parts = append(parts, t.WorkflowStages...)
	return parts
}

func containsFold(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
