package episode

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caretrack/caretrack/internal/domain/record"
	"github.com/caretrack/caretrack/internal/domain/team"
	"github.com/caretrack/caretrack/internal/platform/auth"
	"github.com/caretrack/caretrack/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/episodes", h.ListEpisodes)
	api.POST("/episodes", h.CreateEpisode)
	api.GET("/episodes/:id", h.GetEpisode)
	api.PUT("/episodes/:id", h.UpdateEpisode)
	api.POST("/episodes/:id/actions/copyto/:category", h.CopyToCategory)
}

func (h *Handler) ListEpisodes(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)
	episodes, err := h.svc.ListByTag(
		c.Request().Context(),
		c.QueryParam("tag"),
		c.QueryParam("subtag"),
		viewer,
	)
	if err != nil {
		return httpError(err)
	}
	lo, hi := pagination.FromContext(c).Bounds(len(episodes))
	return c.JSON(http.StatusOK, episodes[lo:hi])
}

func (h *Handler) CreateEpisode(c echo.Context) error {
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	viewer, _ := auth.CurrentUser(c)
	serialized, err := h.svc.Admit(c.Request().Context(), payload, viewer)
	if err != nil {
		if errors.Is(err, ErrActiveEpisode) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Patient already has active episode"})
		}
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, serialized)
}

func (h *Handler) GetEpisode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	viewer, _ := auth.CurrentUser(c)
	serialized, err := h.svc.Serialize(c.Request().Context(), id, viewer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, serialized)
}

func (h *Handler) UpdateEpisode(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var payload map[string]any
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	viewer, _ := auth.CurrentUser(c)
	serialized, err := h.svc.Update(c.Request().Context(), id, payload, viewer)
	if err != nil {
		if errors.Is(err, ErrConsistency) {
			return c.JSON(http.StatusConflict, map[string]string{"error": "Item has changed"})
		}
		return httpError(err)
	}
	return c.JSON(http.StatusOK, serialized)
}

func (h *Handler) CopyToCategory(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	category := c.Param("category")
	if category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category is required")
	}

	viewer, _ := auth.CurrentUser(c)
	serialized, err := h.svc.CopyToCategory(c.Request().Context(), id, category, viewer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, serialized)
}

// httpError maps service errors onto API statuses.
func httpError(err error) error {
	var badDate *record.MalformedDateError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "episode not found")
	case errors.Is(err, ErrMissingDemographics), errors.Is(err, team.ErrNotFound),
		errors.As(err, &badDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
