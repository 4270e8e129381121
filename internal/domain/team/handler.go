package team

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/caretrack/caretrack/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/teams", h.ListTeams)
}

func (h *Handler) ListTeams(c echo.Context) error {
	user, _ := auth.CurrentUser(c)
	teams, err := h.svc.VisibleTeams(c.Request().Context(), user.IsSuperuser())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if teams == nil {
		teams = []*Team{}
	}
	return c.JSON(http.StatusOK, teams)
}
