package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/models"
	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// CorrectionHandler exposes grade correction endpoints.
type CorrectionHandler struct {
	corrections *service.CorrectionService
}

// NewCorrectionHandler constructs handler.
func NewCorrectionHandler(corrections *service.CorrectionService) *CorrectionHandler {
	return &CorrectionHandler{corrections: corrections}
}

type reviewNoteRequest struct {
	Note *string `json:"note,omitempty"`
}

// Request godoc
// @Summary File a grade correction against an approved result
// @Tags Corrections
// @Accept json
// @Produce json
// @Param payload body service.RequestCorrectionRequest true "Correction payload"
// @Success 201 {object} response.Envelope
// @Router /corrections [post]
func (h *CorrectionHandler) Request(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RequestCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SchoolID = claims.SchoolID
	req.RequestedBy = claims.UserID
	request, err := h.corrections.Request(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Approve godoc
// @Summary Approve a correction and re-derive downstream data
// @Tags Corrections
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body reviewNoteRequest false "Review note"
// @Success 200 {object} response.Envelope
// @Router /corrections/{id}/approve [post]
func (h *CorrectionHandler) Approve(c *gin.Context) {
	h.review(c, h.corrections.Approve)
}

// Reject godoc
// @Summary Reject a correction with a mandatory note
// @Tags Corrections
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body reviewNoteRequest true "Review note"
// @Success 200 {object} response.Envelope
// @Router /corrections/{id}/reject [post]
func (h *CorrectionHandler) Reject(c *gin.Context) {
	h.review(c, h.corrections.Reject)
}

// Get godoc
// @Summary Get one correction request
// @Tags Corrections
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Router /corrections/{id} [get]
func (h *CorrectionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	request, err := h.corrections.Get(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}

// ListPending godoc
// @Summary List unresolved correction requests
// @Tags Corrections
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /corrections/pending [get]
func (h *CorrectionHandler) ListPending(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.corrections.ListPending(c.Request.Context(), claims.SchoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// ListByResult godoc
// @Summary List every correction filed against a result
// @Tags Corrections
// @Produce json
// @Param resultId path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Router /corrections/result/{resultId} [get]
func (h *CorrectionHandler) ListByResult(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	requests, err := h.corrections.ListByResult(c.Request.Context(), claims.SchoolID, c.Param("resultId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

func (h *CorrectionHandler) review(c *gin.Context, fn func(ctx context.Context, req service.ReviewCorrectionRequest) (*models.GradeUpdateRequest, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var body reviewNoteRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	request, err := fn(c.Request.Context(), service.ReviewCorrectionRequest{
		SchoolID:   claims.SchoolID,
		ReviewedBy: claims.UserID,
		RequestID:  c.Param("id"),
		Note:       body.Note,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, request, nil)
}
