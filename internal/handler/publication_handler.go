package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// PublicationHandler exposes publication window endpoints.
type PublicationHandler struct {
	publications *service.PublicationService
}

// NewPublicationHandler constructs handler.
func NewPublicationHandler(publications *service.PublicationService) *PublicationHandler {
	return &PublicationHandler{publications: publications}
}

type rescheduleRequest struct {
	PublicationDate time.Time `json:"publication_date" binding:"required"`
}

// Create godoc
// @Summary Open a publication window for an exam
// @Tags Publications
// @Accept json
// @Produce json
// @Param payload body service.CreatePublicationRequest true "Publication payload"
// @Success 201 {object} response.Envelope
// @Router /publications [post]
func (h *PublicationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreatePublicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SchoolID = claims.SchoolID
	pub, err := h.publications.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pub)
}

// Get godoc
// @Summary Get the publication window for an exam
// @Tags Publications
// @Produce json
// @Param examId path string true "Exam"
// @Success 200 {object} response.Envelope
// @Router /publications/{examId} [get]
func (h *PublicationHandler) Get(c *gin.Context) {
	pub, err := h.publications.Get(c.Request.Context(), c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pub, nil)
}

// Show godoc
// @Summary Re-activate a hidden publication
// @Tags Publications
// @Param examId path string true "Exam"
// @Success 204
// @Router /publications/{examId}/show [post]
func (h *PublicationHandler) Show(c *gin.Context) {
	if err := h.publications.Show(c.Request.Context(), c.Param("examId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Hide godoc
// @Summary Hide a publication without deleting it
// @Tags Publications
// @Param examId path string true "Exam"
// @Success 204
// @Router /publications/{examId}/hide [post]
func (h *PublicationHandler) Hide(c *gin.Context) {
	if err := h.publications.Hide(c.Request.Context(), c.Param("examId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reschedule godoc
// @Summary Change a publication date
// @Tags Publications
// @Accept json
// @Param examId path string true "Exam"
// @Param payload body rescheduleRequest true "New date"
// @Success 204
// @Router /publications/{examId}/reschedule [post]
func (h *PublicationHandler) Reschedule(c *gin.Context) {
	var req rescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.publications.Reschedule(c.Request.Context(), c.Param("examId"), req.PublicationDate); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RefreshCounters godoc
// @Summary Re-snapshot approval counters onto the publication
// @Tags Publications
// @Param examId path string true "Exam"
// @Success 204
// @Router /publications/{examId}/refresh [post]
func (h *PublicationHandler) RefreshCounters(c *gin.Context) {
	if err := h.publications.RefreshCounters(c.Request.Context(), c.Param("examId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
