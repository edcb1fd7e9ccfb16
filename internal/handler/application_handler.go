package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/placement-cell/internship-portal-api/internal/dto"
	"github.com/placement-cell/internship-portal-api/internal/models"
	"github.com/placement-cell/internship-portal-api/internal/service"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
	"github.com/placement-cell/internship-portal-api/pkg/response"
)

// ApplicationHandler wires HTTP endpoints to the application service.
type ApplicationHandler struct {
	service   *service.ApplicationService
	dashboard summaryInvalidator
}

// NewApplicationHandler creates a new handler. The dashboard invalidator is
// optional.
func NewApplicationHandler(svc *service.ApplicationService, dashboard summaryInvalidator) *ApplicationHandler {
	return &ApplicationHandler{service: svc, dashboard: dashboard}
}

// Submit godoc
// @Summary Submit internship application
// @Description Create the student's internship application. Each student may hold only one.
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	app, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}

	response.Created(c, dto.NewApplicationResponse(*app))
}

// Get godoc
// @Summary Get application by id
// @Description Fetch one application. Students see only their own; department reviewers only their department.
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(*app), nil)
}

// GetMine godoc
// @Summary Get own application
// @Description Fetch the authenticated student's application
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/mine [get]
func (h *ApplicationHandler) GetMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.service.GetMine(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(*app), nil)
}

// Delete godoc
// @Summary Delete application
// @Description Remove an application and its review history
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}

	response.NoContent(c)
}

// List godoc
// @Summary List applications
// @Description Paginated application listing for administrators
// @Tags Applications
// @Produce json
// @Param department query string false "Department code"
// @Param search query string false "Search by name or register number"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	filter := models.ApplicationFilter{
		Search: c.Query("search"),
	}
	if dept := c.Query("department"); dept != "" {
		d := models.Department(dept)
		if !d.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown department code"))
			return
		}
		filter.Department = &d
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}

	apps, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, dto.NewApplicationResponses(apps), pagination)
}
