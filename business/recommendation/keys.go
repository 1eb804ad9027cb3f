package recommendation

import (
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"toolAdvisor/domain"
)

// keyMaterial is the canonical form hashed into a cache key. encoding/json
// sorts map keys, so equal requests marshal to equal bytes.
type keyMaterial struct {
	Schema     string            `json:"s"`
	UserID     string            `json:"u"`
	Message    string            `json:"m"`
	History    []string          `json:"h"`
	Skill      string            `json:"sk"`
	Stage      string            `json:"st"`
	Intent     string            `json:"i"`
	Device     string            `json:"d"`
	TimeOfDay  string            `json:"t"`
	Business   map[string]string `json:"b"`
	Candidates []string          `json:"c"`
	MaxResults int               `json:"n"`
	Explain    bool              `json:"e"`
	Brief      bool              `json:"br"`
}

func norm(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeRequest returns a copy of req with context labels lower-cased,
// candidates sorted and de-duplicated, history bounded to the last maxHistory
// turns and max results clamped to limit.
func normalizeRequest(req domain.RecommendationRequest, maxHistory, limit int) domain.RecommendationRequest {
	out := req
	out.UserID = strings.TrimSpace(req.UserID)
	out.Message = strings.TrimSpace(req.Message)

	if len(req.History) > maxHistory {
		out.History = append([]domain.ConversationTurn(nil), req.History[len(req.History)-maxHistory:]...)
	} else {
		out.History = append([]domain.ConversationTurn(nil), req.History...)
	}

	c := req.Context
	out.Context = domain.ContextSnapshot{
		SkillLevel:    domain.SkillLevel(norm(string(c.SkillLevel))),
		WorkflowStage: norm(c.WorkflowStage),
		Intent:        norm(c.Intent),
		Device:        norm(c.Device),
		TimeOfDay:     norm(c.TimeOfDay),
	}
	if len(c.BusinessContext) > 0 {
		out.Context.BusinessContext = make(map[string]string, len(c.BusinessContext))
		for k, v := range c.BusinessContext {
			out.Context.BusinessContext[norm(k)] = strings.TrimSpace(v)
		}
	}

	if len(req.CandidateToolIDs) > 0 {
		seen := make(map[string]bool, len(req.CandidateToolIDs))
		ids := make([]string, 0, len(req.CandidateToolIDs))
		for _, id := range req.CandidateToolIDs {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out.CandidateToolIDs = ids
	}

	if out.MaxResults <= 0 || out.MaxResults > limit {
		out.MaxResults = limit
	}
	return out
}

// cacheKey is a pure function of the schema version, the user, the
// normalised context and the request parameters.
func cacheKey(schema string, req domain.RecommendationRequest) string {
	km := keyMaterial{
		Schema:     schema,
		UserID:     req.UserID,
		Message:    req.Message,
		Skill:      string(req.Context.SkillLevel),
		Stage:      req.Context.WorkflowStage,
		Intent:     req.Context.Intent,
		Device:     req.Context.Device,
		TimeOfDay:  req.Context.TimeOfDay,
		Business:   req.Context.BusinessContext,
		Candidates: req.CandidateToolIDs,
		MaxResults: req.MaxResults,
		Explain:    req.IncludeExplanations,
		Brief:      req.BriefExplanations,
	}
	for _, t := range req.History {
		km.History = append(km.History, norm(t.Role)+":"+t.Content)
	}

	// json.Marshal cannot fail on this struct
	raw, _ := json.Marshal(km)
	sum := blake2b.Sum256(raw)
	return "reco:v" + schema + ":" + hex.EncodeToString(sum[:])
}

// dedupKey groups identical in-flight requests from one client address.
func dedupKey(key string, req domain.RecommendationRequest) string {
	return key + "|" + req.ClientIP
}
