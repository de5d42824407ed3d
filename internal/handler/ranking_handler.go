package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// RankingHandler exposes ranking recompute and read endpoints.
type RankingHandler struct {
	rankings *service.RankingService
}

// NewRankingHandler constructs handler.
func NewRankingHandler(rankings *service.RankingService) *RankingHandler {
	return &RankingHandler{rankings: rankings}
}

type rankSubjectRequest struct {
	ExamID    string `json:"exam_id" binding:"required"`
	SubjectID string `json:"subject_id" binding:"required"`
	ClassID   string `json:"class_id" binding:"required"`
}

type rankClassRequest struct {
	ExamID  string `json:"exam_id" binding:"required"`
	ClassID string `json:"class_id"`
}

// RankSubject godoc
// @Summary Recompute subject rankings for a class
// @Tags Rankings
// @Accept json
// @Produce json
// @Param payload body rankSubjectRequest true "Scope payload"
// @Success 200 {object} response.Envelope
// @Router /rankings/subject [post]
func (h *RankingHandler) RankSubject(c *gin.Context) {
	var req rankSubjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	ranked, err := h.rankings.RankSubject(c.Request.Context(), req.ExamID, req.SubjectID, req.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"students_ranked": ranked}, nil)
}

// RankClass godoc
// @Summary Recompute class standings, or all classes when no class is given
// @Tags Rankings
// @Accept json
// @Produce json
// @Param payload body rankClassRequest true "Scope payload"
// @Success 200 {object} response.Envelope
// @Router /rankings/class [post]
func (h *RankingHandler) RankClass(c *gin.Context) {
	var req rankClassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.ClassID == "" {
		report, err := h.rankings.RankAllClasses(c.Request.Context(), req.ExamID)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, report, nil)
		return
	}
	ranked, err := h.rankings.RankClass(c.Request.Context(), req.ExamID, req.ClassID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"students_ranked": ranked}, nil)
}

// SubjectRankings godoc
// @Summary List stored subject rankings for a scope
// @Tags Rankings
// @Produce json
// @Param examId query string true "Exam"
// @Param subjectId query string true "Subject"
// @Param classId query string true "Class"
// @Success 200 {object} response.Envelope
// @Router /rankings/subject [get]
func (h *RankingHandler) SubjectRankings(c *gin.Context) {
	examID, subjectID, classID := c.Query("examId"), c.Query("subjectId"), c.Query("classId")
	if examID == "" || subjectID == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId, subjectId and classId are required"))
		return
	}
	rankings, err := h.rankings.SubjectRankingList(c.Request.Context(), examID, subjectID, classID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rankings, nil)
}
