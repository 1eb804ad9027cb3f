package domain

import (
	"strings"
	"time"
)

type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillExpert       SkillLevel = "expert"
)

// Rank orders skill levels; unknown levels rank 0.
func (s SkillLevel) Rank() int {
	switch SkillLevel(strings.ToLower(string(s))) {
	case SkillBeginner:
		return 1
	case SkillIntermediate:
		return 2
	case SkillAdvanced:
		return 3
	case SkillExpert:
		return 4
	default:
		return 0
	}
}

func (s SkillLevel) IsAdvanced() bool {
	return s.Rank() >= SkillAdvanced.Rank()
}

type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ContextSnapshot is the user's task context at request time. Every field is
// optional; scorers substitute neutral values for missing ones.
type ContextSnapshot struct {
	SkillLevel      SkillLevel        `json:"skill_level,omitempty"`
	WorkflowStage   string            `json:"workflow_stage,omitempty"`
	Intent          string            `json:"intent,omitempty"`
	Device          string            `json:"device,omitempty"`
	TimeOfDay       string            `json:"time_of_day,omitempty"`
	BusinessContext map[string]string `json:"business_context,omitempty"`
}

func (c ContextSnapshot) IsEmpty() bool {
	return c.SkillLevel == "" &&
		c.WorkflowStage == "" &&
		c.Intent == "" &&
		c.Device == "" &&
		c.TimeOfDay == "" &&
		len(c.BusinessContext) == 0
}

// Merge returns c overlaid with the non-empty fields of patch.
func (c ContextSnapshot) Merge(patch ContextSnapshot) ContextSnapshot {
	out := c
	if patch.SkillLevel != "" {
		out.SkillLevel = patch.SkillLevel
	}
	if patch.WorkflowStage != "" {
		out.WorkflowStage = patch.WorkflowStage
	}
	if patch.Intent != "" {
		out.Intent = patch.Intent
	}
	if patch.Device != "" {
		out.Device = patch.Device
	}
	if patch.TimeOfDay != "" {
		out.TimeOfDay = patch.TimeOfDay
	}
	if len(patch.BusinessContext) > 0 {
		merged := make(map[string]string, len(c.BusinessContext)+len(patch.BusinessContext))
		for k, v := range c.BusinessContext {
			merged[k] = v
		}
		for k, v := range patch.BusinessContext {
			merged[k] = v
		}
		out.BusinessContext = merged
	}
	return out
}

// RecommendationRequest is treated as immutable once submitted; the engine
// copies it before normalising.
type RecommendationRequest struct {
	RequestID           string             `json:"request_id,omitempty"`
	UserID              string             `json:"user_id" validate:"required"`
	SessionID           string             `json:"session_id,omitempty"`
	ClientIP            string             `json:"-"`
	Message             string             `json:"message,omitempty"`
	History             []ConversationTurn `json:"history,omitempty" validate:"dive"`
	Context             ContextSnapshot    `json:"context"`
	CandidateToolIDs    []string           `json:"candidate_tool_ids,omitempty"`
	MaxResults          int                `json:"max_results,omitempty" validate:"gte=0"`
	IncludeExplanations bool               `json:"include_explanations"`
	BriefExplanations   bool               `json:"brief_explanations,omitempty"`
}

// ContextUpdate drives a streaming session forward.
type ContextUpdate struct {
	Message string            `json:"message,omitempty"`
	Turn    *ConversationTurn `json:"turn,omitempty"`
	Context ContextSnapshot   `json:"context"`
}

// Apply returns a copy of req with the update folded in.
func (u ContextUpdate) Apply(req RecommendationRequest) RecommendationRequest {
	out := req
	out.Context = req.Context.Merge(u.Context)
	if u.Message != "" {
		out.Message = u.Message
	}
	if u.Turn != nil {
		history := make([]ConversationTurn, 0, len(req.History)+1)
		history = append(history, req.History...)
		out.History = append(history, *u.Turn)
	}
	return out
}
