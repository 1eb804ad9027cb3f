package scoring

import (
	"context"
	"fmt"

	"toolAdvisor/domain"
)

const (
	contextualVersion = "linucb-fit/1.0"
	// learnedPrior is the arm count at which the learned estimate and the
	// static fit weigh the same.
	learnedPrior = 5.0
)

// fit weights of the static metadata match
const (
	fitSkill  = 0.3
	fitStage  = 0.25
	fitIntent = 0.3
	fitDevice = 0.15
)

// Contextual scores how well a tool's metadata fits the request context,
// refined by the LinUCB arms learned from feedback.
type Contextual struct {
	store *ModelStore
}

var _ Algorithm = (*Contextual)(nil)

func NewContextual(store *ModelStore) *Contextual {
	return &Contextual{store: store}
}

func (c *Contextual) Name() domain.AlgorithmName { return domain.AlgorithmContextual }

func (c *Contextual) Version() string { return contextualVersion }

func (c *Contextual) Score(ctx context.Context, in Input, tool domain.Tool) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("context error: %w", err)
	}

	var reasons []string

	skill := skillFit(in.Context.SkillLevel, tool.MinSkillLevel)
	if skill >= 0.9 && in.Context.SkillLevel != "" && tool.MinSkillLevel != "" {
		reasons = append(reasons, fmt.Sprintf("suits %s users", in.Context.SkillLevel))
	}
	stage := listFit(in.Context.WorkflowStage, tool.WorkflowStages)
	if stage == 1 {
		reasons = append(reasons, fmt.Sprintf("fits the %s stage", in.Context.WorkflowStage))
	}
	intent := listFit(in.Context.Intent, tool.Intents)
	device := listFit(in.Context.Device, tool.Devices)
	if device == 1 {
		reasons = append(reasons, fmt.Sprintf("works on %s", in.Context.Device))
	}

	static := fitSkill*skill + fitStage*stage + fitIntent*intent + fitDevice*device

	x := buildFeatureVector(in.Context, in.Now)
	mean, width, count := c.store.contextualEstimate(in.UserID, tool.ID, x)
	learned := sigmoid(mean)
	w := float64(count) / (float64(count) + learnedPrior)
	value := (1-w)*static + w*learned

	if count > 0 && learned >= 0.7 {
		reasons = append(reasons, "worked well in similar contexts")
	}

	return Result{
		Value:      domain.Clamp01(value),
		Confidence: domain.Clamp01(0.5*contextCoverage(in.Context) + 0.5/(1+width)),
		Reasons:    reasons,
	}, nil
}

// skillFit is 1 when the user meets the tool's minimum level and falls off
// by 0.4 per missing level; 0.5 when either side is unknown.
func skillFit(user, required domain.SkillLevel) float64 {
	u, r := user.Rank(), required.Rank()
	if u == 0 || r == 0 {
		return NeutralScore
	}
	if u >= r {
		return 1
	}
	return domain.Clamp01(1 - 0.4*float64(r-u))
}

// listFit is 1 on a match, 0.2 on a miss, 0.5 when either side is empty.
func listFit(v string, supported []string) float64 {
	if v == "" || len(supported) == 0 {
		return NeutralScore
	}
	if containsFold(supported, v) {
		return 1
	}
	return 0.2
}

// contextCoverage is the share of context fields that are set.
func contextCoverage(c domain.ContextSnapshot) float64 {
	set := 0
	for _, present := range []bool{
		c.SkillLevel != "",
		c.WorkflowStage != "",
		c.Intent != "",
		c.Device != "",
		c.TimeOfDay != "",
	} {
		if present {
			set++
		}
	}
	return float64(set) / 5
}
