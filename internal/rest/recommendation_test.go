package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolAdvisor/domain"
)

type fakeService struct {
	mu          sync.Mutex
	last        domain.RecommendationRequest
	fail        *domain.EngineError
	bareErr     error
	batchErr    error
	feedback    []domain.FeedbackEvent
	feedbackErr error
}

func (f *fakeService) GetRecommendations(ctx context.Context, req domain.RecommendationRequest) (*domain.RecommendationResponse, error) {
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()

	if f.bareErr != nil {
		return nil, f.bareErr
	}
	if f.fail != nil {
		return &domain.RecommendationResponse{
			RequestID: "req-failed",
			UserID:    req.UserID,
			Status: domain.Status{
				Code:              string(f.fail.Code),
				Message:           f.fail.Message,
				RetryAfterSeconds: int(f.fail.RetryAfter.Seconds()),
			},
		}, f.fail
	}
	return &domain.RecommendationResponse{
		RequestID: "req-ok",
		UserID:    req.UserID,
		Status:    domain.Status{Success: true, Code: domain.StatusCodeOK},
	}, nil
}

func (f *fakeService) BatchGetRecommendations(ctx context.Context, reqs []domain.RecommendationRequest) ([]*domain.RecommendationResponse, error) {
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := make([]*domain.RecommendationResponse, len(reqs))
	for i, r := range reqs {
		out[i] = &domain.RecommendationResponse{UserID: r.UserID, Status: domain.Status{Success: true, Code: domain.StatusCodeOK}}
	}
	return out, nil
}

// StreamRecommendations echoes the request intent back as the request id.
func (f *fakeService) StreamRecommendations(ctx context.Context, req domain.RecommendationRequest, updates <-chan domain.ContextUpdate) <-chan domain.StreamEvent {
	out := make(chan domain.StreamEvent)
	go func() {
		defer close(out)
		send := func(typ domain.StreamEventType) bool {
			ev := domain.StreamEvent{
				Type:      typ,
				Data:      &domain.RecommendationResponse{UserID: req.UserID, RequestID: req.Context.Intent},
				Timestamp: time.Now(),
			}
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}
		if !send(domain.StreamInitial) {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				req = u.Apply(req)
				if !send(domain.StreamUpdate) {
					return
				}
			}
		}
	}()
	return out
}

func (f *fakeService) RecordFeedback(ctx context.Context, ev domain.FeedbackEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, ev)
	return f.feedbackErr
}

type fakeProfiles struct {
	profiles map[string]domain.UserProfile
	upserted []domain.UserProfile
}

func (f *fakeProfiles) GetProfile(ctx context.Context, userID string) (domain.UserProfile, bool, error) {
	p, ok := f.profiles[userID]
	return p, ok, nil
}

func (f *fakeProfiles) UpsertProfile(ctx context.Context, p domain.UserProfile) error {
	f.upserted = append(f.upserted, p)
	return nil
}

func newJSONContext(method, body, userID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if userID != "" {
		c.Set("user_id", userID)
	}
	return c, rec
}

func TestRecommendUsesCallerAndProfileDefaults(t *testing.T) {
	svc := &fakeService{}
	profiles := &fakeProfiles{profiles: map[string]domain.UserProfile{
		"u-1": {UserID: "u-1", SkillLevel: domain.SkillExpert, Device: "desktop"},
	}}
	h := NewRecommendationHandler(svc, profiles)

	body := `{"user_id":"someone-else","message":"send a note","context":{"intent":"send_message","device":"mobile"},"max_results":3}`
	c, rec := newJSONContext(http.MethodPost, body, "u-1")

	require.NoError(t, h.Recommend(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "req-ok")

	assert.Equal(t, "u-1", svc.last.UserID)
	assert.Equal(t, domain.SkillExpert, svc.last.Context.SkillLevel)
	assert.Equal(t, "mobile", svc.last.Context.Device)
	assert.Equal(t, "send_message", svc.last.Context.Intent)
	assert.True(t, svc.last.IncludeExplanations)
	assert.Equal(t, 3, svc.last.MaxResults)
	assert.NotEmpty(t, svc.last.ClientIP)
}

func TestRecommendRequiresCaller(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil)
	c, rec := newJSONContext(http.MethodPost, `{}`, "")

	require.NoError(t, h.Recommend(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecommendRejectsInvalidBody(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"max_results":-1}`, "u-1")

	require.NoError(t, h.Recommend(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendFailureStatusMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    *domain.EngineError
		status int
	}{
		{"validation", domain.NewValidationError("context is empty"), http.StatusBadRequest},
		{"rate limited", domain.NewRateLimitError(3 * time.Second), http.StatusTooManyRequests},
		{"circuit open", domain.NewCircuitOpenError(nil), http.StatusServiceUnavailable},
		{"timeout", domain.NewTimeoutError(time.Second, nil), http.StatusGatewayTimeout},
		{"scoring", domain.NewScoringError("all algorithms failed", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewRecommendationHandler(&fakeService{fail: tc.err}, nil)
			c, rec := newJSONContext(http.MethodPost, `{"context":{"intent":"x"}}`, "u-1")

			require.NoError(t, h.Recommend(c))
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), string(tc.err.Code))
		})
	}
}

func TestRecommendRateLimitSetsRetryAfter(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{fail: domain.NewRateLimitError(3 * time.Second)}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"context":{"intent":"x"}}`, "u-1")

	require.NoError(t, h.Recommend(c))
	assert.Equal(t, "3", rec.Header().Get("Retry-After"))
}

func TestRecommendErrorWithoutResponse(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{bareErr: domain.NewTimeoutError(time.Second, nil)}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"context":{"intent":"x"}}`, "u-1")

	require.NotPanics(t, func() {
		require.NoError(t, h.Recommend(c))
	})
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Contains(t, rec.Body.String(), string(domain.CodeTimeout))
}

func TestBatch(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"requests":[{"context":{"intent":"a"}},{"context":{"intent":"b"}}]}`, "u-1")

	require.NoError(t, h.Batch(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, strings.Count(rec.Body.String(), `"user_id":"u-1"`))
}

func TestBatchEmptyIsRejected(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"requests":[]}`, "u-1")

	require.NoError(t, h.Batch(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchServiceError(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{batchErr: domain.NewValidationError("batch too large")}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"requests":[{"context":{"intent":"a"}}]}`, "u-1")

	require.NoError(t, h.Batch(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedback(t *testing.T) {
	svc := &fakeService{}
	h := NewRecommendationHandler(svc, nil)
	c, rec := newJSONContext(http.MethodPost, `{"tool_id":"tool-a","type":"selected"}`, "u-1")

	require.NoError(t, h.Feedback(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, svc.feedback, 1)
	assert.Equal(t, "u-1", svc.feedback[0].UserID)
	assert.Equal(t, domain.FeedbackSelected, svc.feedback[0].Type)
	assert.False(t, svc.feedback[0].Timestamp.IsZero())
}

func TestFeedbackValidation(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"tool_id":"tool-a","type":"liked"}`, "u-1")

	require.NoError(t, h.Feedback(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFeedbackUnknownTool(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{feedbackErr: domain.NewValidationError("unknown tool %q", "nope")}, nil)
	c, rec := newJSONContext(http.MethodPost, `{"tool_id":"nope","type":"shown"}`, "u-1")

	require.NoError(t, h.Feedback(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStreamOverWebsocket(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil)

	e := echo.New()
	e.GET("/stream", h.Stream, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", "u-1")
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(RecommendRequest{Context: domain.ContextSnapshot{Intent: "first"}}))

	var ev domain.StreamEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.StreamInitial, ev.Type)
	require.NotNil(t, ev.Data)
	assert.Equal(t, "u-1", ev.Data.UserID)
	assert.Equal(t, "first", ev.Data.RequestID)

	require.NoError(t, conn.WriteJSON(domain.ContextUpdate{Context: domain.ContextSnapshot{Intent: "second"}}))
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, domain.StreamUpdate, ev.Type)
	assert.Equal(t, "second", ev.Data.RequestID)
}

func TestStreamRejectsInvalidFirstMessage(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil)

	e := echo.New()
	e.GET("/stream", h.Stream, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", "u-1")
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/stream", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"max_results": -5}))

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev domain.StreamEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	assert.Equal(t, domain.StreamError, ev.Type)
	require.NotNil(t, ev.Error)
	assert.Equal(t, string(domain.CodeValidation), ev.Error.Code)
}

func TestStreamChecksOrigin(t *testing.T) {
	h := NewRecommendationHandler(&fakeService{}, nil).WithAllowedOrigins([]string{"https://app.example.com/"})

	e := echo.New()
	e.GET("/stream", h.Stream, func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", "u-1")
			return next(c)
		}
	})
	srv := httptest.NewServer(e)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://app.example.com"}})
	require.NoError(t, err)
	conn.Close()
}
