package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// SummaryHandler exposes result summary endpoints.
type SummaryHandler struct {
	summaries *service.SummaryService
}

// NewSummaryHandler constructs handler.
func NewSummaryHandler(summaries *service.SummaryService) *SummaryHandler {
	return &SummaryHandler{summaries: summaries}
}

// Build godoc
// @Summary Build or rebuild a student's result summary
// @Tags Summaries
// @Accept json
// @Produce json
// @Param payload body service.BuildSummaryRequest true "Scope payload"
// @Success 200 {object} response.Envelope
// @Router /summaries/build [post]
func (h *SummaryHandler) Build(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.BuildSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	req.SchoolID = claims.SchoolID
	summary, err := h.summaries.BuildSummary(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// Get godoc
// @Summary Get a student's summary for an exam
// @Tags Summaries
// @Produce json
// @Param examId path string true "Exam"
// @Param studentId path string true "Student"
// @Success 200 {object} response.Envelope
// @Router /summaries/{examId}/{studentId} [get]
func (h *SummaryHandler) Get(c *gin.Context) {
	summary, err := h.summaries.GetSummary(c.Request.Context(), c.Param("examId"), c.Param("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// ClassStandings godoc
// @Summary List class standings for an exam
// @Tags Summaries
// @Produce json
// @Param examId query string true "Exam"
// @Param classId query string true "Class"
// @Success 200 {object} response.Envelope
// @Router /summaries/standings [get]
func (h *SummaryHandler) ClassStandings(c *gin.Context) {
	examID, classID := c.Query("examId"), c.Query("classId")
	if examID == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId and classId are required"))
		return
	}
	standings, err := h.summaries.ClassStandingsList(c.Request.Context(), examID, classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, standings, nil)
}

// Publish godoc
// @Summary Flip an exam's summaries and results to published
// @Tags Summaries
// @Produce json
// @Param examId path string true "Exam"
// @Success 200 {object} response.Envelope
// @Router /summaries/{examId}/publish [post]
func (h *SummaryHandler) Publish(c *gin.Context) {
	count, err := h.summaries.PublishResults(c.Request.Context(), c.Param("examId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"published_summaries": count}, nil)
}
