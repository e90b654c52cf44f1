package transcript

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carevisit/carevisit/internal/platform/auth"
	"github.com/carevisit/carevisit/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/retry-transcription", h.RetryTranscription)
	api.DELETE("/delete-transcript", h.DeleteTranscript)
	api.GET("/transcripts", h.ListTranscripts)
	api.GET("/transcripts/:id", h.GetTranscript)
}

type retryRequest struct {
	TranscriptID string `json:"transcriptId"`
}

func (h *Handler) RetryTranscription(c echo.Context) error {
	var req retryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := uuid.Parse(req.TranscriptID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid transcriptId")
	}

	count, err := h.svc.Retry(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrRetryLimit):
			return echo.NewHTTPError(http.StatusBadRequest, "maximum retry attempts reached")
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusNotFound, "transcript not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"retryCount": count})
}

func (h *Handler) DeleteTranscript(c echo.Context) error {
	id, err := uuid.Parse(c.QueryParam("transcriptId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid transcriptId")
	}
	if err := h.svc.Delete(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusNotFound, "transcript not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListTranscripts(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	items, total, err := h.svc.List(c.Request().Context(), ownerID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetTranscript(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	t, err := h.svc.Get(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "transcript not found")
	}
	return c.JSON(http.StatusOK, t)
}
