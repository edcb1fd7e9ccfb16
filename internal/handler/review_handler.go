package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/placement-cell/internship-portal-api/internal/dto"
	"github.com/placement-cell/internship-portal-api/internal/service"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
	"github.com/placement-cell/internship-portal-api/pkg/response"
)

type summaryInvalidator interface {
	Invalidate(ctx context.Context)
}

// ReviewHandler wires HTTP endpoints to the review pipeline service.
type ReviewHandler struct {
	service   *service.ReviewService
	metrics   *service.MetricsService
	dashboard summaryInvalidator
}

// NewReviewHandler creates a new handler. The dashboard invalidator is
// optional.
func NewReviewHandler(svc *service.ReviewService, metrics *service.MetricsService, dashboard summaryInvalidator) *ReviewHandler {
	return &ReviewHandler{service: svc, metrics: metrics, dashboard: dashboard}
}

// Queue godoc
// @Summary Pending review queue
// @Description Applications awaiting the authenticated reviewer's decision
// @Tags Reviews
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Security BearerAuth
// @Router /reviews/queue [get]
func (h *ReviewHandler) Queue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	apps, err := h.service.Queue(c.Request.Context(), claims.Role, claims.Department)
	if err != nil {
		response.Error(c, err)
		return
	}

	reworked := 0
	for _, app := range apps {
		if service.IsReworkCandidate(app) {
			reworked++
		}
	}

	response.JSON(c, http.StatusOK, dto.NewApplicationResponses(apps), nil, map[string]interface{}{
		"count":    len(apps),
		"reworked": reworked,
	})
}

type reviewRequest struct {
	Action  string `json:"action" binding:"required"`
	Comment string `json:"comment"`
}

// Submit godoc
// @Summary Submit review decision
// @Description Approve or reject an application at the reviewer's stage
// @Tags Reviews
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body reviewRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /reviews/{id} [post]
func (h *ReviewHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid review payload"))
		return
	}

	app, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims.Role, claims.Department, service.ReviewAction(req.Action), req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordReviewDecision(string(claims.Role), req.Action)
	if h.dashboard != nil {
		h.dashboard.Invalidate(c.Request.Context())
	}

	response.JSON(c, http.StatusOK, dto.NewApplicationResponse(*app), nil)
}
