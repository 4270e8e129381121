package filter

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caretrack/caretrack/internal/domain/extract"
	"github.com/caretrack/caretrack/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/filters", h.ListFilters)
	api.POST("/filters", h.CreateFilter)
	api.GET("/filters/:id", h.GetFilter)
	api.PUT("/filters/:id", h.UpdateFilter)
	api.DELETE("/filters/:id", h.DeleteFilter)
}

type filterRequest struct {
	Name     string              `json:"name"`
	Criteria []extract.Criterion `json:"criteria"`
}

func (h *Handler) ListFilters(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)
	filters, err := h.svc.List(c.Request().Context(), viewer.ID)
	if err != nil {
		return httpError(err)
	}
	items := make([]map[string]any, 0, len(filters))
	for _, f := range filters {
		items = append(items, f.Serialize())
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) CreateFilter(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)
	var req filterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.Create(c.Request().Context(), viewer.ID, req.Name, req.Criteria)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, f.Serialize())
}

func (h *Handler) GetFilter(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	f, err := h.svc.Get(c.Request().Context(), id, viewer.ID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f.Serialize())
}

func (h *Handler) UpdateFilter(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req filterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	f, err := h.svc.Update(c.Request().Context(), id, viewer.ID, req.Name, req.Criteria)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, f.Serialize())
}

func (h *Handler) DeleteFilter(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id, viewer.ID); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "filter not found")
	case errors.Is(err, ErrMissingName):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
