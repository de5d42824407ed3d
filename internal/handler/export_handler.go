package handler

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/Emino08/school-results-api/internal/service"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/response"
)

// ExportHandler exposes result sheet and slip export endpoints.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs handler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// ClassSheet godoc
// @Summary Export a class standings sheet as CSV or PDF
// @Tags Exports
// @Produce json
// @Param examId query string true "Exam"
// @Param classId query string true "Class"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {object} response.Envelope
// @Router /exports/class-sheet [post]
func (h *ExportHandler) ClassSheet(c *gin.Context) {
	examID, classID := c.Query("examId"), c.Query("classId")
	if examID == "" || classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId and classId are required"))
		return
	}
	file, err := h.exports.ClassSheet(c.Request.Context(), examID, classID, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// StudentSlip godoc
// @Summary Export a student's result slip as PDF
// @Tags Exports
// @Produce json
// @Param examId query string true "Exam"
// @Param studentId query string true "Student"
// @Success 200 {object} response.Envelope
// @Router /exports/student-slip [post]
func (h *ExportHandler) StudentSlip(c *gin.Context) {
	examID, studentID := c.Query("examId"), c.Query("studentId")
	if examID == "" || studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "examId and studentId are required"))
		return
	}
	file, err := h.exports.StudentSlip(c.Request.Context(), examID, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, file, nil)
}

// Download godoc
// @Summary Download a rendered export via its signed token
// @Tags Exports
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	file, relPath, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	filename := filepath.Base(relPath)
	c.FileAttachment(file.Name(), filename)
}
