package recording

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carevisit/carevisit/internal/platform/auth"
	"github.com/carevisit/carevisit/internal/platform/blobstore"
	"github.com/carevisit/carevisit/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/convert-audio", h.ConvertAudio)
	api.GET("/recordings", h.ListRecordings)
	api.GET("/recordings/:id", h.GetRecording)
	api.DELETE("/recordings/:id", h.DeleteRecording)
}

// ConvertAudio accepts a multipart upload and responds as soon as the
// placeholder row exists; conversion happens in the background.
func (h *Handler) ConvertAudio(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fileHeader.Size > blobstore.MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds maximum allowed size")
	}

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file")
	}
	defer src.Close()

	audio, err := io.ReadAll(io.LimitReader(src, blobstore.MaxFileSize+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "could not read uploaded file")
	}
	if int64(len(audio)) > blobstore.MaxFileSize {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "file exceeds maximum allowed size")
	}

	rec, err := h.svc.Upload(c.Request().Context(), ownerID, c.FormValue("title"), audio)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"recordingId": rec.ID,
		"status":      rec.Status,
	})
}

func (h *Handler) ListRecordings(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	items, total, err := h.svc.List(c.Request().Context(), ownerID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetRecording(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return notFoundOrForbidden(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) DeleteRecording(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return notFoundOrForbidden(err)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Ownership failures deliberately look like not-found so the API does not
// leak which ids exist.
func notFoundOrForbidden(_ error) error {
	return echo.NewHTTPError(http.StatusNotFound, "recording not found")
}
