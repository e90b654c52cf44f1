package caregiver

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
	api.GET("/caregivers", h.ListRelationships)
	api.POST("/caregivers", h.CreateRelationship)
	api.PUT("/caregivers/:id", h.UpdateRelationship)
	api.DELETE("/caregivers/:id", h.DeleteRelationship)
	api.GET("/profile", h.GetProfile)
	api.PUT("/profile", h.SaveProfile)
}

type relationshipRequest struct {
	CaregiverID  string   `json:"caregiverId"`
	Relationship string   `json:"relationship"`
	Permissions  []string `json:"permissions"`
}

func (h *Handler) CreateRelationship(c echo.Context) error {
	var req relationshipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rel, err := h.svc.CreateRelationship(c.Request().Context(),
		auth.UserIDFromContext(c.Request().Context()), req.CaregiverID, req.Relationship, req.Permissions)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicate):
			return echo.NewHTTPError(http.StatusConflict, "relationship already exists")
		case errors.Is(err, ErrSelfLink):
			return echo.NewHTTPError(http.StatusBadRequest, "caregiver and patient must differ")
		default:
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	return c.JSON(http.StatusCreated, rel)
}

func (h *Handler) UpdateRelationship(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req relationshipRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	rel, err := h.svc.UpdateRelationship(c.Request().Context(),
		auth.UserIDFromContext(c.Request().Context()), id, req.Relationship, req.Permissions)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusNotFound, "relationship not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, rel)
}

func (h *Handler) DeleteRelationship(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteRelationship(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()), id); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) {
			return echo.NewHTTPError(http.StatusNotFound, "relationship not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListRelationships(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	pg := pagination.FromContext(c)

	items, total, err := h.svc.ListRelationships(c.Request().Context(), userID, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) GetProfile(c echo.Context) error {
	p, err := h.svc.GetProfile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
	PhoneNumber string `json:"phoneNumber"`
}

func (h *Handler) SaveProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.svc.SaveProfile(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()),
		req.DisplayName, req.PhoneNumber)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
