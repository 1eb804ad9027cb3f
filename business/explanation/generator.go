package explanation

import (
	"fmt"
	"sort"
	"strings"

	"toolAdvisor/business/scoring"
	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

// DegradedConfidence is reported by the fallback explanation.
const DegradedConfidence = 0.5

const maxKeyPoints = 4

// Request is the input for explaining one recommendation.
type Request struct {
	Recommendation domain.ContextualRecommendation
	Context        domain.ContextSnapshot
	Weights        scoring.Weights
	Brief          bool
}

// LevelBuilder renders one explanation level. The generator overwrites the
// returned confidence with the recommendation's overall confidence.
type LevelBuilder func(req Request) (domain.ExplanationLevel, error)

type Option func(*Generator)

// WithLevelBuilder replaces the renderer of one level.
func WithLevelBuilder(kind domain.ExplanationLevelKind, b LevelBuilder) Option {
	return func(g *Generator) {
		g.builders[kind] = b
	}
}

type Generator struct {
	builders map[domain.ExplanationLevelKind]LevelBuilder
}

func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		builders: map[domain.ExplanationLevelKind]LevelBuilder{
			domain.ExplanationSummary:     buildSummary,
			domain.ExplanationDetailed:    buildDetailed,
			domain.ExplanationTechnical:   buildTechnical,
			domain.ExplanationEducational: buildEducational,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Levels returns which levels a request gets: summary always, detailed unless
// brief, technical for advanced and expert users, educational for beginners
// who did not ask for brevity.
func Levels(skill domain.SkillLevel, brief bool) []domain.ExplanationLevelKind {
	levels := []domain.ExplanationLevelKind{domain.ExplanationSummary}
	if !brief {
		levels = append(levels, domain.ExplanationDetailed)
	}
	if skill.IsAdvanced() {
		levels = append(levels, domain.ExplanationTechnical)
	}
	if !brief && skill.Rank() == domain.SkillBeginner.Rank() {
		levels = append(levels, domain.ExplanationEducational)
	}
	return levels
}

// Explain never fails: a level that errors or panics turns the whole
// explanation into the degraded single-level fallback.
func (g *Generator) Explain(req Request) *domain.Explanation {
	rec := req.Recommendation
	out := &domain.Explanation{ToolID: rec.ToolID}

	for _, kind := range Levels(req.Context.SkillLevel, req.Brief) {
		level, err := g.build(kind, req)
		if err != nil {
			ee := domain.NewExplanationError(fmt.Sprintf("build %s explanation", kind), err)
			logger.Warn("explanation_degraded",
				"tool_id", rec.ToolID,
				"level", string(kind),
				"error", ee,
			)
			return degraded(rec)
		}
		level.Level = kind
		level.Confidence = rec.Analysis.OverallConfidence
		out.Levels = append(out.Levels, level)
	}
	return out
}

func (g *Generator) build(kind domain.ExplanationLevelKind, req Request) (level domain.ExplanationLevel, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	b, ok := g.builders[kind]
	if !ok || b == nil {
		return domain.ExplanationLevel{}, fmt.Errorf("no builder for level %s", kind)
	}
	return b(req)
}

func degraded(rec domain.ContextualRecommendation) *domain.Explanation {
	name := rec.ToolName
	if name == "" {
		name = rec.ToolID
	}
	return &domain.Explanation{
		ToolID: rec.ToolID,
		Levels: []domain.ExplanationLevel{{
			Level:      domain.ExplanationSummary,
			Content:    fmt.Sprintf("%s is recommended for your current context.", name),
			KeyPoints:  []string{fmt.Sprintf("combined score %.2f", rec.Scores.Combined)},
			Confidence: DegradedConfidence,
		}},
		Degraded: true,
	}
}

func toolName(rec domain.ContextualRecommendation) string {
	if rec.ToolName != "" {
		return rec.ToolName
	}
	return rec.ToolID
}

func buildSummary(req Request) (domain.ExplanationLevel, error) {
	rec := req.Recommendation
	var b strings.Builder
	fmt.Fprintf(&b, "%s is a good fit", toolName(rec))
	if len(rec.Reasons) > 0 {
		fmt.Fprintf(&b, ": %s", rec.Reasons[0])
	}
	b.WriteString(".")

	// uncertainty is always named so the summary cannot overstate confidence
	for _, u := range rec.Analysis.Uncertainties {
		if u.Name == "algorithm_disagreement" || u.Name == "limited_context_data" || u.Name == "algorithm_failure" {
			fmt.Fprintf(&b, " Note: %s.", u.Description)
			break
		}
	}

	points := rec.Reasons
	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return domain.ExplanationLevel{
		Content:   b.String(),
		KeyPoints: append([]string(nil), points...),
	}, nil
}

func buildDetailed(req Request) (domain.ExplanationLevel, error) {
	rec := req.Recommendation
	a := rec.Analysis

	var b strings.Builder
	fmt.Fprintf(&b, "%s ranked #%d with a combined score of %.2f. ", toolName(rec), rec.Rank, rec.Scores.Combined)
	b.WriteString(a.Explanation)

	var points []string
	for _, s := range a.Strengths {
		points = append(points, s.Description)
	}
	for _, u := range a.Uncertainties {
		if len(u.Mitigations) > 0 {
			points = append(points, fmt.Sprintf("%s: %s", u.Description, u.Mitigations[0]))
		} else {
			points = append(points, u.Description)
		}
	}
	if rec.EstimatedTimeSeconds > 0 {
		points = append(points, fmt.Sprintf("typically takes about %s", humanSeconds(rec.EstimatedTimeSeconds)))
	}

	return domain.ExplanationLevel{
		Content:   b.String(),
		KeyPoints: points,
		Evidence:  algorithmEvidence(rec, req.Weights),
	}, nil
}

func buildTechnical(req Request) (domain.ExplanationLevel, error) {
	rec := req.Recommendation
	s := rec.Scores
	w := req.Weights
	c := rec.Analysis.Components

	content := fmt.Sprintf(
		"combined = %.2f*%.3f + %.2f*%.3f + %.2f*%.3f = %.3f; confidence %.3f in [%.3f, %.3f] "+
			"(algorithm %.3f, data quality %.3f, user model %.3f)",
		w.Collaborative, s.Collaborative,
		w.ContentBased, s.ContentBased,
		w.Contextual, s.Contextual,
		s.Combined,
		rec.Analysis.OverallConfidence, rec.Analysis.Interval.Lower, rec.Analysis.Interval.Upper,
		c.Algorithm, c.DataQuality, c.UserModel,
	)

	versions := make([]string, 0, len(rec.AlgorithmVersions))
	for name, v := range rec.AlgorithmVersions {
		versions = append(versions, name+"="+v)
	}
	sort.Strings(versions)

	points := []string{fmt.Sprintf("confidence level %s", rec.Analysis.Level)}
	if len(versions) > 0 {
		points = append(points, "algorithms: "+strings.Join(versions, ", "))
	}
	for _, u := range rec.Analysis.Uncertainties {
		points = append(points, fmt.Sprintf("%s (%s, impact %.2f)", u.Name, u.Type, u.Impact))
	}

	return domain.ExplanationLevel{
		Content:   content,
		KeyPoints: points,
		Evidence:  algorithmEvidence(rec, w),
	}, nil
}

func buildEducational(req Request) (domain.ExplanationLevel, error) {
	rec := req.Recommendation
	content := fmt.Sprintf(
		"Recommendations weigh three signals: what similar users found helpful, how well the tool's "+
			"description matches what you asked for, and how well it suits your situation. %s scored "+
			"highest on %s.",
		toolName(rec), strongestSignal(rec.Scores))
	return domain.ExplanationLevel{
		Content: content,
		KeyPoints: []string{
			"selecting or dismissing tools teaches the system your preferences",
			"adding your goal or workflow stage sharpens the results",
		},
	}, nil
}

func strongestSignal(s domain.AlgorithmScores) string {
	best, label := s.Collaborative, "what similar users found helpful"
	if s.ContentBased > best {
		best, label = s.ContentBased, "matching your request"
	}
	if s.Contextual > best {
		label = "fitting your situation"
	}
	return label
}

func algorithmEvidence(rec domain.ContextualRecommendation, w scoring.Weights) []domain.Evidence {
	return []domain.Evidence{
		{
			Source:      string(domain.AlgorithmCollaborative),
			Description: fmt.Sprintf("similar-user signal, weight %.2f", w.Collaborative),
			Value:       rec.Scores.Collaborative,
		},
		{
			Source:      string(domain.AlgorithmContentBased),
			Description: fmt.Sprintf("text match signal, weight %.2f", w.ContentBased),
			Value:       rec.Scores.ContentBased,
		},
		{
			Source:      string(domain.AlgorithmContextual),
			Description: fmt.Sprintf("context fit signal, weight %.2f", w.Contextual),
			Value:       rec.Scores.Contextual,
		},
	}
}

func humanSeconds(s int) string {
	if s < 60 {
		return fmt.Sprintf("%d seconds", s)
	}
	m := (s + 30) / 60
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
