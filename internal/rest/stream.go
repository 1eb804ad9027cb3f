package rest

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"toolAdvisor/app/echo-server/metrics"
	"toolAdvisor/business/recommendation"
	"toolAdvisor/domain"
	"toolAdvisor/pkg/logger"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamMaxMessage   = 1 << 20
)

func newStreamUpgrader(origins []string) websocket.Upgrader {
	u := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}
	if len(origins) == 0 {
		// nil CheckOrigin falls back to the same-host check.
		return u
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = struct{}{}
	}
	_, wildcard := allowed["*"]
	u.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || wildcard {
			return true
		}
		_, ok := allowed[origin]
		return ok
	}
	return u
}

// GET /api/v1/recommendations/stream
//
// The first client message is a RecommendRequest; every later message is a
// domain.ContextUpdate. The server writes one StreamEvent per pass.
func (h *RecommendationHandler) Stream(c echo.Context) error {
	userID, ok := callerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ResponseError{Message: "unauthorized"})
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("stream_upgrade_failed", "error", err)
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(streamMaxMessage)

	metrics.StreamSessions.Inc()
	defer metrics.StreamSessions.Dec()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	traceID := recommendation.TraceIDFromContext(ctx)

	var body RecommendRequest
	if err := conn.ReadJSON(&body); err != nil {
		logger.Debug("stream_read_failed", "trace_id", traceID, "error", err)
		return nil
	}
	if err := h.validate.Struct(&body); err != nil {
		_ = writeStreamJSON(conn, domain.StreamEvent{
			Type:      domain.StreamError,
			Error:     &domain.Status{Code: string(domain.CodeValidation), Message: err.Error()},
			Timestamp: time.Now(),
		})
		return nil
	}

	updates := make(chan domain.ContextUpdate)
	go func() {
		defer cancel()
		defer close(updates)
		for {
			var u domain.ContextUpdate
			if err := conn.ReadJSON(&u); err != nil {
				return
			}
			select {
			case updates <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.Debug("stream_opened", "trace_id", traceID, "user_id", userID)
	events := h.service.StreamRecommendations(ctx, h.toDomain(c, userID, body), updates)

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				logger.Debug("stream_closed", "trace_id", traceID, "user_id", userID)
				return nil
			}
			if err := writeStreamJSON(conn, ev); err != nil {
				logger.Debug("stream_write_failed", "trace_id", traceID, "error", err)
				return nil
			}
		case <-ping.C:
			deadline := time.Now().Add(streamWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return nil
			}
		}
	}
}

func writeStreamJSON(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
