package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/models"
	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// ResultHandler exposes exam result endpoints.
type ResultHandler struct {
	results *service.ResultService
}

// NewResultHandler constructs handler.
func NewResultHandler(results *service.ResultService) *ResultHandler {
	return &ResultHandler{results: results}
}

// Submit godoc
// @Summary Submit or resubmit a subject mark
// @Tags Results
// @Accept json
// @Produce json
// @Param payload body service.SubmitMarkRequest true "Mark payload"
// @Success 201 {object} response.Envelope
// @Router /results [post]
func (h *ResultHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SchoolID = claims.SchoolID
	req.TeacherID = claims.UserID
	result, err := h.results.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// List godoc
// @Summary List exam results
// @Tags Results
// @Produce json
// @Param examId query string false "Filter by exam"
// @Param studentId query string false "Filter by student"
// @Param subjectId query string false "Filter by subject"
// @Param classId query string false "Filter by class"
// @Param status query string false "Filter by approval status"
// @Success 200 {object} response.Envelope
// @Router /results [get]
func (h *ResultHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	filter := models.ResultFilter{
		SchoolID:  claims.SchoolID,
		ExamID:    c.Query("examId"),
		StudentID: c.Query("studentId"),
		SubjectID: c.Query("subjectId"),
		ClassID:   c.Query("classId"),
		Status:    models.ApprovalStatus(c.Query("status")),
	}
	results, err := h.results.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// Get godoc
// @Summary Get one exam result
// @Tags Results
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Router /results/{id} [get]
func (h *ResultHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.results.Get(c.Request.Context(), claims.SchoolID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Approve godoc
// @Summary Approve a pending result
// @Tags Results
// @Produce json
// @Param id path string true "Result ID"
// @Success 200 {object} response.Envelope
// @Router /results/{id}/approve [post]
func (h *ResultHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.results.Approve(c.Request.Context(), claims.SchoolID, c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a pending result
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Result ID"
// @Param payload body service.RejectResultRequest true "Rejection payload"
// @Success 200 {object} response.Envelope
// @Router /results/{id}/reject [post]
func (h *ResultHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.RejectResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.results.Reject(c.Request.Context(), claims.SchoolID, c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
