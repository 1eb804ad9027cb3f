package confidence

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"toolAdvisor/business/scoring"
	"toolAdvisor/domain"
)

const (
	defaultWeightAlgorithm   = 0.5
	defaultWeightDataQuality = 0.3
	defaultWeightUserModel   = 0.2

	defaultCompletenessThreshold = 0.8
	defaultDisagreementThreshold = 0.2
	// userModelPrior is the event count at which user-model confidence is 0.5.
	defaultUserModelPrior = 10.0

	disagreementPenalty = 0.5
	contextSignals      = 6
)

// Weights blend the three confidence components; they must sum to 1.
type Weights struct {
	Algorithm   float64 `yaml:"algorithm"`
	DataQuality float64 `yaml:"data_quality"`
	UserModel   float64 `yaml:"user_model"`
}

func (w Weights) Validate() error {
	if w.Algorithm < 0 || w.DataQuality < 0 || w.UserModel < 0 {
		return domain.NewConfigurationError("confidence weights must be non-negative")
	}
	sum := w.Algorithm + w.DataQuality + w.UserModel
	if math.Abs(sum-1) > scoring.WeightTolerance {
		return domain.NewConfigurationError("confidence weights must sum to 1, got %v", sum)
	}
	return nil
}

type Config struct {
	Weights               Weights `yaml:"weights"`
	CompletenessThreshold float64 `yaml:"completeness_threshold"`
	DisagreementThreshold float64 `yaml:"disagreement_threshold"`
	UserModelPrior        float64 `yaml:"user_model_prior"`
}

func DefaultConfig() Config {
	return Config{
		Weights: Weights{
			Algorithm:   defaultWeightAlgorithm,
			DataQuality: defaultWeightDataQuality,
			UserModel:   defaultWeightUserModel,
		},
		CompletenessThreshold: defaultCompletenessThreshold,
		DisagreementThreshold: defaultDisagreementThreshold,
		UserModelPrior:        defaultUserModelPrior,
	}
}

// Input is everything the analyzer needs about one scored tool.
type Input struct {
	Scores      domain.AlgorithmScores
	Confidences map[domain.AlgorithmName]float64
	Weights     scoring.Weights
	Failed      []domain.AlgorithmName
	Context     domain.ContextSnapshot
	HasText     bool
	UserSupport int
}

type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.CompletenessThreshold <= 0 || cfg.CompletenessThreshold > 1 {
		return nil, domain.NewConfigurationError("completeness threshold must be in (0,1], got %v", cfg.CompletenessThreshold)
	}
	if cfg.DisagreementThreshold <= 0 {
		return nil, domain.NewConfigurationError("disagreement threshold must be positive, got %v", cfg.DisagreementThreshold)
	}
	if cfg.UserModelPrior <= 0 {
		cfg.UserModelPrior = defaultUserModelPrior
	}
	return &Analyzer{cfg: cfg}, nil
}

var algorithmOrder = []domain.AlgorithmName{
	domain.AlgorithmCollaborative,
	domain.AlgorithmContentBased,
	domain.AlgorithmContextual,
}

// Completeness is the share of context signals present in the request.
func Completeness(c domain.ContextSnapshot, hasText bool) float64 {
	present := 0
	for _, ok := range []bool{
		c.SkillLevel != "",
		c.WorkflowStage != "",
		c.Intent != "",
		c.Device != "",
		c.TimeOfDay != "" || len(c.BusinessContext) > 0,
		hasText,
	} {
		if ok {
			present++
		}
	}
	return float64(present) / contextSignals
}

// Variance is the sample variance of the three algorithm scores.
func Variance(s domain.AlgorithmScores) float64 {
	vals := []float64{s.Collaborative, s.ContentBased, s.Contextual}
	mean := (vals[0] + vals[1] + vals[2]) / 3
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return ss / float64(len(vals)-1)
}

func (a *Analyzer) Analyze(in Input) domain.ConfidenceAnalysis {
	variance := Variance(in.Scores)
	completeness := Completeness(in.Context, in.HasText)
	userModel := float64(in.UserSupport) / (float64(in.UserSupport) + a.cfg.UserModelPrior)

	algo := 0.0
	for _, name := range algorithmOrder {
		algo += in.Weights.Get(name) * in.Confidences[name]
	}
	algo = domain.Clamp01(algo - disagreementPenalty*math.Sqrt(variance))

	w := a.cfg.Weights
	overall := domain.Clamp01(w.Algorithm*algo + w.DataQuality*completeness + w.UserModel*userModel)

	out := domain.ConfidenceAnalysis{
		OverallConfidence: overall,
		Level:             domain.LevelFor(overall),
		Interval:          domain.IntervalFor(overall),
		Components: domain.ComponentConfidence{
			Algorithm:   algo,
			Contextual:  domain.Clamp01(in.Confidences[domain.AlgorithmContextual]),
			DataQuality: completeness,
			UserModel:   userModel,
		},
	}

	out.Uncertainties = a.uncertainties(in, variance, completeness)
	out.Strengths, out.Weaknesses = a.factors(in, variance, completeness, out.Uncertainties)
	out.Explanation = describe(out)
	return out
}

func (a *Analyzer) uncertainties(in Input, variance, completeness float64) []domain.UncertaintyFactor {
	var out []domain.UncertaintyFactor

	if completeness < a.cfg.CompletenessThreshold {
		out = append(out, domain.UncertaintyFactor{
			Name:        "limited_context_data",
			Type:        domain.UncertaintyContext,
			Description: fmt.Sprintf("only %.0f%% of context signals were provided", completeness*100),
			Impact:      1 - completeness,
			Mitigations: contextMitigations(in.Context, in.HasText),
		})
	}

	if variance > a.cfg.DisagreementThreshold {
		out = append(out, domain.UncertaintyFactor{
			Name: "algorithm_disagreement",
			Type: domain.UncertaintyModel,
			Description: fmt.Sprintf("scoring algorithms disagree (collaborative %.2f, content %.2f, contextual %.2f)",
				in.Scores.Collaborative, in.Scores.ContentBased, in.Scores.Contextual),
			Impact: domain.Clamp01(variance),
			Mitigations: []string{
				"compare with the alternative recommendations",
				"give feedback on the chosen tool to improve the model",
			},
		})
	}

	for _, name := range in.Failed {
		out = append(out, domain.UncertaintyFactor{
			Name:        "algorithm_failure",
			Type:        domain.UncertaintyModel,
			Description: fmt.Sprintf("the %s scorer was unavailable and a neutral score was used", name),
			Impact:      in.Weights.Get(name),
			Mitigations: []string{"retry the request later for a full ensemble score"},
		})
	}

	if in.UserSupport == 0 {
		out = append(out, domain.UncertaintyFactor{
			Name:        "cold_start_user",
			Type:        domain.UncertaintyUser,
			Description: "no feedback history for this user yet",
			Impact:      0.2,
			Mitigations: []string{
				"recommendations lean on overall tool popularity",
				"selecting or dismissing tools personalises future results",
			},
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Impact > out[j].Impact
	})
	return out
}

func contextMitigations(c domain.ContextSnapshot, hasText bool) []string {
	var missing []string
	if c.SkillLevel == "" {
		missing = append(missing, "skill level")
	}
	if c.WorkflowStage == "" {
		missing = append(missing, "workflow stage")
	}
	if c.Intent == "" {
		missing = append(missing, "intent")
	}
	if c.Device == "" {
		missing = append(missing, "device")
	}
	if !hasText {
		missing = append(missing, "a description of the task")
	}
	out := []string{"ranking falls back to neutral scores for missing fields"}
	if len(missing) > 0 {
		out = append([]string{"provide " + strings.Join(missing, ", ")}, out...)
	}
	return out
}

func (a *Analyzer) factors(in Input, variance, completeness float64, uncertainties []domain.UncertaintyFactor) (strengths, weaknesses []domain.ConfidenceFactor) {
	if variance <= a.cfg.DisagreementThreshold/4 && len(in.Failed) == 0 {
		strengths = append(strengths, domain.ConfidenceFactor{
			Name:        "algorithm_agreement",
			Description: "all scoring algorithms broadly agree",
			Weight:      a.cfg.Weights.Algorithm,
		})
	}
	if completeness >= a.cfg.CompletenessThreshold {
		strengths = append(strengths, domain.ConfidenceFactor{
			Name:        "rich_context",
			Description: "the request carries most context signals",
			Weight:      a.cfg.Weights.DataQuality,
		})
	}
	if in.UserSupport >= int(a.cfg.UserModelPrior) {
		strengths = append(strengths, domain.ConfidenceFactor{
			Name:        "established_user_model",
			Description: fmt.Sprintf("%d feedback events inform this user's model", in.UserSupport),
			Weight:      a.cfg.Weights.UserModel,
		})
	}
	if in.Scores.Combined >= domain.ConfidenceHighThreshold {
		strengths = append(strengths, domain.ConfidenceFactor{
			Name:        "strong_match",
			Description: fmt.Sprintf("combined score %.2f", in.Scores.Combined),
			Weight:      in.Scores.Combined,
		})
	}

	for _, u := range uncertainties {
		weaknesses = append(weaknesses, domain.ConfidenceFactor{
			Name:        u.Name,
			Description: u.Description,
			Weight:      u.Impact,
		})
	}
	return strengths, weaknesses
}

// describe summarises the analysis; every uncertainty is named so the text
// never claims more certainty than the factors allow.
func describe(a domain.ConfidenceAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s confidence (%.0f%%).",
		strings.ReplaceAll(string(a.Level), "_", " "), a.OverallConfidence*100)
	if len(a.Uncertainties) > 0 {
		names := make([]string, len(a.Uncertainties))
		for i, u := range a.Uncertainties {
			names[i] = strings.ReplaceAll(u.Name, "_", " ")
		}
		fmt.Fprintf(&b, " Uncertain because of: %s.", strings.Join(names, ", "))
	}
	return b.String()
}
