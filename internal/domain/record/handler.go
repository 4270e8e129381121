package record

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/caretrack/caretrack/internal/schema"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes nests subrecord CRUD under both owner resources. The
// scope baked into each route is checked against the record type's
// declared scope, so an episode type cannot be reached through a
// patient path or the other way round.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	for scope, prefix := range map[schema.Scope]string{
		schema.ScopeEpisode: "/episodes/:id/records",
		schema.ScopePatient: "/patients/:id/records",
	} {
		api.GET(prefix+"/:type", h.ListRecords(scope))
		api.POST(prefix+"/:type", h.CreateRecord(scope))
		api.GET(prefix+"/:type/:record_id", h.GetRecord(scope))
		api.PUT(prefix+"/:type/:record_id", h.UpdateRecord(scope))
		api.DELETE(prefix+"/:type/:record_id", h.DeleteRecord(scope))
	}
}

// resolveOwned reads the :id and :type params and checks the type is
// reachable through the request's owner path.
func (h *Handler) resolveOwned(c echo.Context, scope schema.Scope) (*schema.RecordType, uuid.UUID, error) {
	ownerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rt, err := h.svc.Registry().Resolve(c.Param("type"))
	if err != nil {
		return nil, uuid.Nil, httpError(err)
	}
	if rt.Virtual || rt.Scope != scope {
		return nil, uuid.Nil, echo.NewHTTPError(http.StatusNotFound,
			rt.Name+" is not a "+scope.String()+" subrecord")
	}
	return rt, ownerID, nil
}

func (h *Handler) ListRecords(scope schema.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		rt, ownerID, err := h.resolveOwned(c, scope)
		if err != nil {
			return err
		}
		recs, err := h.svc.ListFor(c.Request().Context(), rt.Name, ownerID)
		if err != nil {
			return httpError(err)
		}
		items := make([]map[string]any, 0, len(recs))
		for _, rec := range recs {
			items = append(items, rec.Serialize())
		}
		return c.JSON(http.StatusOK, items)
	}
}

func (h *Handler) CreateRecord(scope schema.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		rt, ownerID, err := h.resolveOwned(c, scope)
		if err != nil {
			return err
		}
		var payload map[string]any
		if err := c.Bind(&payload); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		if payload == nil {
			payload = map[string]any{}
		}
		payload[rt.OwnerColumn()] = ownerID.String()

		rec, err := h.svc.Create(c.Request().Context(), rt.Name, payload)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusCreated, rec.Serialize())
	}
}

func (h *Handler) GetRecord(scope schema.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		rt, ownerID, err := h.resolveOwned(c, scope)
		if err != nil {
			return err
		}
		rec, err := h.fetchOwned(c, rt, ownerID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, rec.Serialize())
	}
}

func (h *Handler) UpdateRecord(scope schema.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		rt, ownerID, err := h.resolveOwned(c, scope)
		if err != nil {
			return err
		}
		rec, err := h.fetchOwned(c, rt, ownerID)
		if err != nil {
			return err
		}
		var payload map[string]any
		if err := c.Bind(&payload); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		updated, err := h.svc.Update(c.Request().Context(), rt.Name, rec.ID, payload)
		if err != nil {
			if errors.Is(err, ErrConsistency) {
				return c.JSON(http.StatusConflict, map[string]string{"error": "Item has changed"})
			}
			return httpError(err)
		}
		return c.JSON(http.StatusOK, updated.Serialize())
	}
}

func (h *Handler) DeleteRecord(scope schema.Scope) echo.HandlerFunc {
	return func(c echo.Context) error {
		rt, ownerID, err := h.resolveOwned(c, scope)
		if err != nil {
			return err
		}
		rec, err := h.fetchOwned(c, rt, ownerID)
		if err != nil {
			return err
		}
		if err := h.svc.Delete(c.Request().Context(), rt.Name, rec.ID); err != nil {
			return httpError(err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// fetchOwned loads the :record_id instance and hides it when it does
// not belong to the owner in the path.
func (h *Handler) fetchOwned(c echo.Context, rt *schema.RecordType, ownerID uuid.UUID) (*Record, error) {
	id, err := uuid.Parse(c.Param("record_id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid record id")
	}
	rec, err := h.svc.Get(c.Request().Context(), rt.Name, id)
	if err != nil {
		return nil, httpError(err)
	}
	if rec.OwnerID != ownerID {
		return nil, echo.NewHTTPError(http.StatusNotFound, "record not found")
	}
	return rec, nil
}

// httpError maps storage and schema errors onto API statuses.
func httpError(err error) error {
	var (
		unknownType  *schema.UnknownTypeError
		unknownField *schema.UnknownFieldError
		ambiguous    *schema.AmbiguousTypeError
		badDate      *MalformedDateError
	)
	switch {
	case errors.As(err, &unknownType), errors.Is(err, ErrNotSubrecord):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "record not found")
	case errors.As(err, &unknownField), errors.As(err, &ambiguous), errors.As(err, &badDate),
		errors.Is(err, ErrMissingOwner), errors.Is(err, ErrSingletonExists):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
