package patient

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	api.GET("/patients/search", h.SearchPatients)
	api.GET("/patients/:id", h.GetPatient)
}

func (h *Handler) SearchPatients(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)
	results, err := h.svc.Search(
		c.Request().Context(),
		c.QueryParam("hospital_number"),
		c.QueryParam("name"),
		viewer,
	)
	if err != nil {
		if errors.Is(err, ErrNoSearchTerms) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "No search terms"})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	lo, hi := pagination.FromContext(c).Bounds(len(results))
	return c.JSON(http.StatusOK, results[lo:hi])
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	viewer, _ := auth.CurrentUser(c)
	serialized, err := h.svc.Get(c.Request().Context(), id, viewer)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, serialized)
}
