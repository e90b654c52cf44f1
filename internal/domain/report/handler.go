package report

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
	api.POST("/generate-medical-report", h.GenerateReport)
	api.POST("/send-medical-report", h.SendReport)
	api.GET("/reports", h.ListReports)
	api.GET("/reports/:id", h.GetReport)
	api.POST("/reports/:id/share", h.ShareReport)
	api.DELETE("/reports/:id", h.DeleteReport)
}

type generateRequest struct {
	TranscriptID string `json:"transcriptId"`
}

func (h *Handler) GenerateReport(c echo.Context) error {
	var req generateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	transcriptID, err := uuid.Parse(req.TranscriptID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid transcriptId")
	}

	rep, err := h.svc.Generate(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), transcriptID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"reportId": rep.ID,
		"status":   rep.Status,
	})
}

type sendRequest struct {
	ReportID   string   `json:"reportId"`
	Recipients []string `json:"recipients"`
}

func (h *Handler) SendReport(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	id, err := uuid.Parse(req.ReportID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid reportId")
	}
	if len(req.Recipients) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "at least one recipient is required")
	}

	messageID, err := h.svc.SendEmail(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id, req.Recipients)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		case errors.Is(err, ErrNotCompleted):
			return echo.NewHTTPError(http.StatusBadRequest, "report is not completed")
		case errors.Is(err, ErrEmailDisabled):
			return echo.NewHTTPError(http.StatusServiceUnavailable, "email delivery is not configured")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"messageId": messageID})
}

func (h *Handler) ListReports(c echo.Context) error {
	ownerID := auth.UserIDFromContext(c.Request().Context())

	// ?transcriptId= narrows the list to the single report for a transcript.
	if raw := c.QueryParam("transcriptId"); raw != "" {
		transcriptID, err := uuid.Parse(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid transcriptId")
		}
		rep, err := h.svc.GetByTranscript(c.Request().Context(), ownerID, transcriptID)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return c.JSON(http.StatusOK, pagination.NewResponse([]*MedicalReport{rep}, 1, 1, 0))
	}

	pg := pagination.FromContext(c)

	items, total, err := h.svc.List(c.Request().Context(), ownerID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rep, err := h.svc.Get(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	return c.JSON(http.StatusOK, rep)
}

type shareRequest struct {
	CaregiverID string `json:"caregiverId"`
}

func (h *Handler) ShareReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req shareRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.CaregiverID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "caregiverId is required")
	}

	err = h.svc.Share(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id, req.CaregiverID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrForbidden):
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		case errors.Is(err, ErrNotCompleted):
			return echo.NewHTTPError(http.StatusBadRequest, "report is not completed")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) DeleteReport(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusNotFound, "report not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
