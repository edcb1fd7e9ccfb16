package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/placement-cell/internship-portal-api/internal/service"
	appErrors "github.com/placement-cell/internship-portal-api/pkg/errors"
	"github.com/placement-cell/internship-portal-api/pkg/response"
)

// LetterHandler wires HTTP endpoints to the letter service.
type LetterHandler struct {
	service *service.LetterService
}

// NewLetterHandler creates a new handler.
func NewLetterHandler(svc *service.LetterService) *LetterHandler {
	return &LetterHandler{service: svc}
}

// Request godoc
// @Summary Request internship letter
// @Description Queue PDF letter generation for a fully approved application
// @Tags Letters
// @Produce json
// @Param id path string true "Application ID"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Security BearerAuth
// @Router /applications/{id}/letter [post]
func (h *LetterHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	job, err := h.service.Request(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, job, nil)
}

// Status godoc
// @Summary Letter job status
// @Description Poll letter generation progress and obtain the download URL
// @Tags Letters
// @Produce json
// @Param id path string true "Letter job ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /letters/{id}/status [get]
func (h *LetterHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.Status(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download letter
// @Description Stream the generated letter using a signed token
// @Tags Letters
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /letters/download [get]
func (h *LetterHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	download, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close()

	stat, err := download.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat letter file"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", download.Filename))
	c.DataFromReader(http.StatusOK, stat.Size(), "application/pdf", download.File, nil)
}
