package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
)

type mockSummaryResults struct {
	results       []models.ExamResult
	higherCounts  map[float64]int
	classStudents int
	published     []string
}

func (m *mockSummaryResults) List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error) {
	var out []models.ExamResult
	for _, r := range m.results {
		if filter.StudentID != "" && r.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && r.ApprovalStatus != filter.Status {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockSummaryResults) CountStudentsWithHigherAverage(ctx context.Context, examID, classID string, average float64) (int, error) {
	return m.higherCounts[average], nil
}

func (m *mockSummaryResults) ApprovedStudentCount(ctx context.Context, examID, classID string) (int, error) {
	return m.classStudents, nil
}

func (m *mockSummaryResults) PublishByExam(ctx context.Context, examID string) error {
	m.published = append(m.published, examID)
	return nil
}

type mockSummaryRepo struct {
	stored         map[string]models.ResultSummary
	publishedCount int
}

func (m *mockSummaryRepo) Upsert(ctx context.Context, summary *models.ResultSummary) error {
	if m.stored == nil {
		m.stored = make(map[string]models.ResultSummary)
	}
	m.stored[summary.ExamID+"|"+summary.StudentID] = *summary
	return nil
}

func (m *mockSummaryRepo) FindByStudentExam(ctx context.Context, examID, studentID string) (*models.ResultSummary, error) {
	if s, ok := m.stored[examID+"|"+studentID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSummaryRepo) ListByClass(ctx context.Context, examID, classID string) ([]models.ResultSummary, error) {
	var out []models.ResultSummary
	for _, s := range m.stored {
		if s.ExamID == examID && s.ClassID == classID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSummaryRepo) PublishByExam(ctx context.Context, examID string) (int, error) {
	m.publishedCount = len(m.stored)
	for key, s := range m.stored {
		s.IsPublished = true
		m.stored[key] = s
	}
	return m.publishedCount, nil
}

type mockRankingPublisher struct {
	published []string
}

func (m *mockRankingPublisher) PublishByExam(ctx context.Context, examID string) error {
	m.published = append(m.published, examID)
	return nil
}

type stubGradeResolver struct {
	grade models.ResolvedGrade
}

func (s *stubGradeResolver) Resolve(ctx context.Context, score float64, schoolID string, yearID *string) (models.ResolvedGrade, error) {
	return s.grade, nil
}

func TestBuildSummaryAggregatesApprovedResults(t *testing.T) {
	results := &mockSummaryResults{
		results: []models.ExamResult{
			approvedResult("stu1", "math", "c1", 45), // total 90
			approvedResult("stu1", "bio", "c1", 35),  // total 70
		},
		higherCounts:  map[float64]int{40: 2},
		classStudents: 30,
	}
	summaries := &mockSummaryRepo{}
	resolver := &stubGradeResolver{grade: models.ResolvedGrade{Label: "B", Point: 3, IsPassing: true}}
	svc := NewSummaryService(results, summaries, &mockRankingPublisher{}, resolver, nil, validator.New(), zap.NewNop())

	summary, err := svc.BuildSummary(context.Background(), BuildSummaryRequest{
		SchoolID: "school", ExamID: "exam", StudentID: "stu1", ClassID: "c1",
	})
	require.NoError(t, err)

	assert.Equal(t, 160.0, summary.TotalMarksObtained)
	assert.Equal(t, 200.0, summary.TotalPossibleMarks)
	assert.Equal(t, 2, summary.SubjectCount)
	// average_score drives the grade; percentage is informational.
	assert.Equal(t, 40.0, summary.AverageScore)
	assert.InDelta(t, 80.0, summary.Percentage, 0.001)
	assert.Equal(t, "B", summary.Grade)
	assert.Equal(t, "Passed", summary.Remarks)
	require.NotNil(t, summary.ClassPosition)
	assert.Equal(t, 3, *summary.ClassPosition)
	require.NotNil(t, summary.ClassTotalStudents)
	assert.Equal(t, 30, *summary.ClassTotalStudents)
	assert.Len(t, summaries.stored, 1)
}

func TestBuildSummaryFailingGrade(t *testing.T) {
	results := &mockSummaryResults{
		results:      []models.ExamResult{approvedResult("stu1", "math", "c1", 20)},
		higherCounts: map[float64]int{},
	}
	resolver := &stubGradeResolver{grade: models.FallbackGrade}
	svc := NewSummaryService(results, &mockSummaryRepo{}, &mockRankingPublisher{}, resolver, nil, validator.New(), zap.NewNop())

	summary, err := svc.BuildSummary(context.Background(), BuildSummaryRequest{
		SchoolID: "school", ExamID: "exam", StudentID: "stu1", ClassID: "c1",
	})
	require.NoError(t, err)
	assert.Equal(t, "F", summary.Grade)
	assert.Equal(t, "Failed", summary.Remarks)
}

func TestBuildSummaryNoApprovedResults(t *testing.T) {
	svc := NewSummaryService(&mockSummaryResults{}, &mockSummaryRepo{}, &mockRankingPublisher{}, &stubGradeResolver{}, nil, validator.New(), zap.NewNop())

	_, err := svc.BuildSummary(context.Background(), BuildSummaryRequest{
		SchoolID: "school", ExamID: "exam", StudentID: "stu1", ClassID: "c1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoApprovedResults.Code, appErrors.FromError(err).Code)
}

func TestPublishResultsFlipsAllStores(t *testing.T) {
	results := &mockSummaryResults{}
	summaries := &mockSummaryRepo{stored: map[string]models.ResultSummary{
		"exam|stu1": {ExamID: "exam", StudentID: "stu1"},
		"exam|stu2": {ExamID: "exam", StudentID: "stu2"},
	}}
	rankings := &mockRankingPublisher{}
	svc := NewSummaryService(results, summaries, rankings, &stubGradeResolver{}, nil, validator.New(), zap.NewNop())

	count, err := svc.PublishResults(context.Background(), "exam")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"exam"}, results.published)
	assert.Equal(t, []string{"exam"}, rankings.published)
	for _, s := range summaries.stored {
		assert.True(t, s.IsPublished)
	}
}
