package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"toolAdvisor/business/recommendation"
	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

type (
	RecommendationHandler struct {
		validate *validator.Validate
		service  RecommendationService
		profiles ProfileReader
		upgrader websocket.Upgrader
	}

	RecommendationService interface {
		GetRecommendations(ctx context.Context, req domain.RecommendationRequest) (*domain.RecommendationResponse, error)
		BatchGetRecommendations(ctx context.Context, reqs []domain.RecommendationRequest) ([]*domain.RecommendationResponse, error)
		StreamRecommendations(ctx context.Context, req domain.RecommendationRequest, updates <-chan domain.ContextUpdate) <-chan domain.StreamEvent
		RecordFeedback(ctx context.Context, ev domain.FeedbackEvent) error
	}

	// ProfileReader supplies per-user context defaults; optional.
	ProfileReader interface {
		GetProfile(ctx context.Context, userID string) (domain.UserProfile, bool, error)
	}

	RecommendRequest struct {
		RequestID           string                    `json:"request_id" validate:"max=128"`
		SessionID           string                    `json:"session_id" validate:"max=128"`
		Message             string                    `json:"message" validate:"max=8000"`
		History             []domain.ConversationTurn `json:"history" validate:"max=200"`
		Context             domain.ContextSnapshot    `json:"context"`
		CandidateToolIDs    []string                  `json:"candidate_tool_ids" validate:"max=500,dive,required"`
		MaxResults          int                       `json:"max_results" validate:"gte=0,lte=100"`
		IncludeExplanations *bool                     `json:"include_explanations"`
		BriefExplanations   bool                      `json:"brief_explanations"`
	}

	BatchRequest struct {
		Requests []RecommendRequest `json:"requests" validate:"required,min=1,dive"`
	}

	FeedbackRequest struct {
		ToolID  string                 `json:"tool_id" validate:"required"`
		Type    string                 `json:"type" validate:"required,oneof=shown selected completed dismissed"`
		Context domain.ContextSnapshot `json:"context"`
	}
)

var _ RecommendationService = (*recommendation.Engine)(nil)

func NewRecommendationHandler(svc RecommendationService, profiles ProfileReader) *RecommendationHandler {
	return &RecommendationHandler{
		validate: validator.New(),
		service:  svc,
		profiles: profiles,
		upgrader: newStreamUpgrader(nil),
	}
}

// WithAllowedOrigins restricts stream upgrades to the given browser origins.
// An empty list accepts only same-host origins.
func (h *RecommendationHandler) WithAllowedOrigins(origins []string) *RecommendationHandler {
	h.upgrader = newStreamUpgrader(origins)
	return h
}

// toDomain builds the engine request for the authenticated caller.
func (h *RecommendationHandler) toDomain(c echo.Context, userID string, body RecommendRequest) domain.RecommendationRequest {
	include := true
	if body.IncludeExplanations != nil {
		include = *body.IncludeExplanations
	}

	req := domain.RecommendationRequest{
		RequestID:           body.RequestID,
		UserID:              userID,
		SessionID:           body.SessionID,
		ClientIP:            c.RealIP(),
		Message:             body.Message,
		History:             body.History,
		Context:             body.Context,
		CandidateToolIDs:    body.CandidateToolIDs,
		MaxResults:          body.MaxResults,
		IncludeExplanations: include,
		BriefExplanations:   body.BriefExplanations,
	}

	if h.profiles != nil {
		profile, ok, err := h.profiles.GetProfile(c.Request().Context(), userID)
		if err != nil {
			logger.Warn("profile_lookup_failed", "user_id", userID, "error", err)
		} else if ok {
			req.Context = profile.Defaults(req.Context)
		}
	}
	return req
}

// POST /api/v1/recommendations
func (h *RecommendationHandler) Recommend(c echo.Context) error {
	userID, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var body RecommendRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	resp, err := h.service.GetRecommendations(c.Request().Context(), h.toDomain(c, userID, body))
	if err != nil {
		if resp == nil {
			return writeError(c, err)
		}
		return writeStatus(c, resp.RequestID, resp.Status)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(resp))
}

// POST /api/v1/recommendations/batch
func (h *RecommendationHandler) Batch(c echo.Context) error {
	userID, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var body BatchRequest
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	reqs := make([]domain.RecommendationRequest, len(body.Requests))
	for i, r := range body.Requests {
		reqs[i] = h.toDomain(c, userID, r)
	}

	resps, err := h.service.BatchGetRecommendations(c.Request().Context(), reqs)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(resps))
}

// POST /api/v1/feedback
func (h *RecommendationHandler) Feedback(c echo.Context) error {
	userID, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	var req FeedbackRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}
	if err := h.validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	event := domain.FeedbackEvent{
		UserID:    userID,
		ToolID:    req.ToolID,
		Type:      domain.FeedbackType(req.Type),
		Context:   req.Context,
		Timestamp: time.Now(),
	}

	if err := h.service.RecordFeedback(c.Request().Context(), event); err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, fres.Response.StatusCreated("feedback recorded"))
}
