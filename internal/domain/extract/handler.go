package extract

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/caretrack/caretrack/internal/domain/record"
	"github.com/caretrack/caretrack/internal/platform/auth"
	"github.com/caretrack/caretrack/internal/schema"
)

const (
	mimeZip  = "application/zip"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Handler struct {
	extractor *Extractor
}

func NewHandler(extractor *Extractor) *Handler {
	return &Handler{extractor: extractor}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/search/extract", h.Extract)
	api.POST("/search/extract/download", h.Download)
}

// Extract runs the criteria and returns the matched episodes serialized
// for the caller. An empty criteria list matches nothing.
func (h *Handler) Extract(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)

	var criteria []Criterion
	if err := c.Bind(&criteria); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	episodes, err := h.extractor.ProjectJSON(c.Request().Context(), criteria, viewer)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, episodes)
}

type downloadRequest struct {
	Criteria []Criterion `json:"criteria"`
	Format   string      `json:"format"`
}

// Download streams the extract as an attachment: a zip of CSVs by
// default, or an XLSX workbook when format says so.
func (h *Handler) Download(c echo.Context) error {
	viewer, _ := auth.CurrentUser(c)

	var req downloadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	description := Description(viewer.Username, time.Now(), req.Criteria)
	ctx := c.Request().Context()

	var (
		data     []byte
		filename string
		mime     string
		err      error
	)
	switch req.Format {
	case "", "zip":
		mime = mimeZip
		data, filename, err = h.extractor.ProjectCSV(ctx, req.Criteria, viewer, description)
	case "xlsx":
		mime = mimeXLSX
		data, filename, err = h.extractor.ProjectXLSX(ctx, req.Criteria, viewer, description)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unknown format "+req.Format)
	}
	if err != nil {
		return httpError(err)
	}

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Blob(http.StatusOK, mime, data)
}

// httpError maps resolution failures onto API statuses. A criterion
// naming an unknown type or field is the client's mistake, not a
// missing resource.
func httpError(err error) error {
	var (
		unknownType  *schema.UnknownTypeError
		unknownField *schema.UnknownFieldError
		ambiguous    *schema.AmbiguousTypeError
		badDate      *record.MalformedDateError
	)
	switch {
	case errors.As(err, &unknownType), errors.As(err, &unknownField),
		errors.As(err, &ambiguous), errors.As(err, &badDate):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
