package lookup

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/lookup-lists", h.ListLookupLists)
	api.GET("/lookup-lists/:name", h.GetLookupList)
}

func (h *Handler) ListLookupLists(c echo.Context) error {
	lists, err := h.svc.Lists(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if lists == nil {
		lists = []*List{}
	}
	return c.JSON(http.StatusOK, lists)
}

func (h *Handler) GetLookupList(c echo.Context) error {
	list, err := h.svc.Get(c.Request().Context(), c.Param("name"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "lookup list not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, list)
}
