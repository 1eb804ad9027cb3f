package rest

import (
	"context"
	"net/http"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"toolAdvisor/domain"
)

type (
	ProfileHandler struct {
		validate *validator.Validate
		profiles ProfileStore
		cache    CacheInvalidator
	}

	ProfileStore interface {
		ProfileReader
		UpsertProfile(ctx context.Context, p domain.UserProfile) error
	}
)

func NewProfileHandler(profiles ProfileStore, cache CacheInvalidator) *ProfileHandler {
	return &ProfileHandler{
		validate: validator.New(),
		profiles: profiles,
		cache:    cache,
	}
}

// GET /api/v1/profiles/:user_id
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	userID := c.Param("user_id")

	profile, ok, err := h.profiles.GetProfile(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, ResponseError{Message: "profile not found"})
	}

	return c.JSON(http.StatusOK, fres.Response.StatusOK(profile))
}

// PUT /api/v1/profiles/:user_id
//
// A profile change drops every cached ranking of the user.
func (h *ProfileHandler) UpsertProfile(c echo.Context) error {
	ctx := c.Request().Context()

	var body domain.UserProfile
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: "invalid body: " + err.Error()})
	}
	body.UserID = c.Param("user_id")
	if err := h.validate.Struct(&body); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	if err := h.profiles.UpsertProfile(ctx, body); err != nil {
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	res := h.cache.InvalidateCache(ctx, domain.InvalidationCriteria{UserID: body.UserID})

	return c.JSON(http.StatusOK, fres.Response.StatusOK(echo.Map{
		"profile":     body,
		"invalidated": res.Invalidated,
	}))
}
