package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emino08/school-results-api/internal/models"
	"github.com/Emino08/school-results-api/internal/service"
)

type lookupGateMock struct {
	open bool
}

func (m *lookupGateMock) IsResultPublished(ctx context.Context, examID string) (bool, error) {
	return m.open, nil
}

type lookupPinsMock struct{}

func (m *lookupPinsMock) ValidateAndConsume(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error) {
	return &models.ResultPin{PinCode: pinCode, StudentID: studentID, MaxChecks: 5, UsedChecks: 1, IsActive: true}, nil
}

type lookupSummariesMock struct {
	summary *models.ResultSummary
}

func (m *lookupSummariesMock) FindByStudentExam(ctx context.Context, examID, studentID string) (*models.ResultSummary, error) {
	if m.summary == nil {
		return nil, sql.ErrNoRows
	}
	return m.summary, nil
}

type lookupResultsMock struct {
	results []models.ExamResult
}

func (m *lookupResultsMock) List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error) {
	return m.results, nil
}

type lookupGradesMock struct{}

func (m *lookupGradesMock) Resolve(ctx context.Context, score float64, schoolID string, yearID *string) (models.ResolvedGrade, error) {
	return models.ResolvedGrade{Label: "A", Point: 4, IsPassing: true}, nil
}

func newLookupHandler(open bool, summary *models.ResultSummary, results []models.ExamResult) *LookupHandler {
	svc := service.NewLookupService(
		&lookupGateMock{open: open},
		&lookupPinsMock{},
		&lookupSummariesMock{summary: summary},
		&lookupResultsMock{results: results},
		&lookupGradesMock{},
		nil, nil,
	)
	return NewLookupHandler(svc)
}

func performLookup(t *testing.T, handler *LookupHandler, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/lookup", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Check(c)
	return w
}

func TestLookupHandlerSuccess(t *testing.T) {
	result := models.ExamResult{
		StudentID: "stu1", SubjectID: "math", ClassID: "c1",
		TestScore: 80, ExamScore: 90, TotalScore: 170, AverageScore: 85,
		ApprovalStatus: models.ApprovalApproved, IsPublished: true,
	}
	summary := &models.ResultSummary{ExamID: "e1", StudentID: "stu1", IsPublished: true}
	handler := newLookupHandler(true, summary, []models.ExamResult{result})

	w := performLookup(t, handler, service.LookupRequest{StudentID: "stu1", ExamID: "e1", PinCode: "ACDE2346"})
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.ResultCheckView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.Subjects, 1)
	assert.Equal(t, "A", envelope.Data.Subjects[0].Grade)
	assert.Equal(t, 4, envelope.Data.RemainingChecks)
}

func TestLookupHandlerClosedGate(t *testing.T) {
	summary := &models.ResultSummary{ExamID: "e1", StudentID: "stu1", IsPublished: true}
	handler := newLookupHandler(false, summary, nil)

	w := performLookup(t, handler, service.LookupRequest{StudentID: "stu1", ExamID: "e1", PinCode: "ACDE2346"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLookupHandlerUnknownStudent(t *testing.T) {
	handler := newLookupHandler(true, nil, nil)

	w := performLookup(t, handler, service.LookupRequest{StudentID: "ghost", ExamID: "e1", PinCode: "ACDE2346"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLookupHandlerInvalidBody(t *testing.T) {
	handler := newLookupHandler(true, nil, nil)
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/lookup", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Check(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
