package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// PinHandler exposes result-check pin endpoints.
type PinHandler struct {
	pins *service.PinService
}

// NewPinHandler constructs handler.
func NewPinHandler(pins *service.PinService) *PinHandler {
	return &PinHandler{pins: pins}
}

type batchPinRequest struct {
	ClassID   string     `json:"class_id"`
	MaxChecks int        `json:"max_checks"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type pinStatusRequest struct {
	StudentID string `json:"student_id" binding:"required"`
	PinCode   string `json:"pin_code" binding:"required"`
}

// Issue godoc
// @Summary Issue a pin for one student
// @Tags Pins
// @Accept json
// @Produce json
// @Param payload body service.IssuePinRequest true "Pin payload"
// @Success 201 {object} response.Envelope
// @Router /pins [post]
func (h *PinHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.IssuePinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SchoolID = claims.SchoolID
	pin, err := h.pins.Issue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, pin)
}

// Batch godoc
// @Summary Issue pins for a class, or queue a school-wide fan-out
// @Tags Pins
// @Accept json
// @Produce json
// @Param payload body batchPinRequest true "Batch payload"
// @Success 200 {object} response.Envelope
// @Router /pins/batch [post]
func (h *PinHandler) Batch(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req batchPinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.ClassID != "" {
		pins, err := h.pins.IssueForClass(c.Request.Context(), claims.SchoolID, req.ClassID, req.MaxChecks, req.ExpiresAt)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, pins, nil)
		return
	}
	report, err := h.pins.IssueForAllStudents(c.Request.Context(), claims.SchoolID, req.MaxChecks, req.ExpiresAt)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, report, nil)
}

// Status godoc
// @Summary Check a pin's state without spending a check
// @Tags Pins
// @Accept json
// @Produce json
// @Param payload body pinStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /pins/status [post]
func (h *PinHandler) Status(c *gin.Context) {
	var req pinStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.pins.CheckStatus(c.Request.Context(), req.PinCode, req.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Deactivate godoc
// @Summary Revoke a pin
// @Tags Pins
// @Param id path string true "Pin ID"
// @Success 204
// @Router /pins/{id} [delete]
func (h *PinHandler) Deactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.pins.Deactivate(c.Request.Context(), claims.SchoolID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListByStudent godoc
// @Summary List a student's pins
// @Tags Pins
// @Produce json
// @Param studentId path string true "Student"
// @Success 200 {object} response.Envelope
// @Router /pins/student/{studentId} [get]
func (h *PinHandler) ListByStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	pins, err := h.pins.ListByStudent(c.Request.Context(), claims.SchoolID, c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, pins, nil)
}
