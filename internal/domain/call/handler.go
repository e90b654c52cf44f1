package call

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carevisit/carevisit/internal/clients/vapi"
	"github.com/carevisit/carevisit/internal/platform/auth"
	"github.com/carevisit/carevisit/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the authenticated call endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/call-status", h.CallStatus)
	api.POST("/demo-call", h.DemoCall)
	api.POST("/demo-call-simulate", h.DemoCallSimulate)
	api.GET("/scheduled-calls", h.ListScheduledCalls)
	api.DELETE("/scheduled-calls", h.DeleteScheduledCall)
}

// RegisterWebhookRoutes mounts the provider-facing endpoint. It lives on a
// separate unauthenticated group because the provider cannot present a user
// token.
func (h *Handler) RegisterWebhookRoutes(g *echo.Group) {
	g.POST("/vapi-webhook", h.VapiWebhook)
}

// VapiWebhook acknowledges every structurally valid event with 200 so the
// provider stops redelivering. Only a body that fails to decode is an
// error.
func (h *Handler) VapiWebhook(c echo.Context) error {
	var event WebhookEvent
	if err := json.NewDecoder(c.Request().Body).Decode(&event); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "malformed webhook payload")
	}
	result := h.svc.HandleWebhook(c.Request().Context(), &event)
	return c.JSON(http.StatusOK, result)
}

func (h *Handler) CallStatus(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	result, err := h.svc.Status(c.Request().Context(), userID,
		c.QueryParam("scheduled_call_id"), c.QueryParam("vapi_call_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

type demoCallRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	PatientName string `json:"patientName"`
}

func (h *Handler) DemoCall(c echo.Context) error {
	var req demoCallRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.PhoneNumber == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "phoneNumber is required")
	}

	rec, err := h.svc.PlaceDemoCall(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()),
		req.PhoneNumber, req.PatientName)
	if err != nil {
		if errors.Is(err, vapi.ErrNotConfigured) {
			return echo.NewHTTPError(http.StatusInternalServerError, "call service not configured")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"scheduledCallId": rec.ID,
		"vapiCallId":      rec.VapiCallID,
		"status":          rec.Status,
	})
}

func (h *Handler) DemoCallSimulate(c echo.Context) error {
	rec, err := h.svc.SimulateDemoCall(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"scheduledCallId": rec.ID,
		"status":          rec.Status,
	})
}

func (h *Handler) ListScheduledCalls(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	items, total, err := h.svc.List(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) DeleteScheduledCall(c echo.Context) error {
	id, err := uuid.Parse(c.QueryParam("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusNotFound, "scheduled call not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
