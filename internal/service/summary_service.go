package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
)

type summaryResultReader interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error)
	CountStudentsWithHigherAverage(ctx context.Context, examID, classID string, average float64) (int, error)
	ApprovedStudentCount(ctx context.Context, examID, classID string) (int, error)
	PublishByExam(ctx context.Context, examID string) error
}

type summaryRepo interface {
	Upsert(ctx context.Context, summary *models.ResultSummary) error
	FindByStudentExam(ctx context.Context, examID, studentID string) (*models.ResultSummary, error)
	ListByClass(ctx context.Context, examID, classID string) ([]models.ResultSummary, error)
	PublishByExam(ctx context.Context, examID string) (int, error)
}

type rankingPublisher interface {
	PublishByExam(ctx context.Context, examID string) error
}

type gradeResolver interface {
	Resolve(ctx context.Context, score float64, schoolID string, yearID *string) (models.ResolvedGrade, error)
}

// BuildSummaryRequest identifies the student roll-up to rebuild.
type BuildSummaryRequest struct {
	SchoolID       string  `json:"-"`
	ExamID         string  `json:"exam_id" validate:"required"`
	StudentID      string  `json:"student_id" validate:"required"`
	ClassID        string  `json:"class_id" validate:"required"`
	AcademicYearID *string `json:"academic_year_id,omitempty"`
}

// Each subject result is capped at a fixed maximum of 100 marks.
const marksPerSubject = 100

// SummaryService builds the per-student roll-up that is the unit of
// publication.
type SummaryService struct {
	results         summaryResultReader
	summaries       summaryRepo
	subjectRankings rankingPublisher
	grading         gradeResolver
	metrics         *MetricsService
	validator       *validator.Validate
	logger          *zap.Logger
}

// NewSummaryService constructs SummaryService.
func NewSummaryService(results summaryResultReader, summaries summaryRepo, subjectRankings rankingPublisher, grading gradeResolver, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *SummaryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummaryService{
		results:         results,
		summaries:       summaries,
		subjectRankings: subjectRankings,
		grading:         grading,
		metrics:         metrics,
		validator:       validate,
		logger:          logger,
	}
}

// BuildSummary rebuilds every field of one student's summary from approved
// results. The grade comes from average_score (mean of subject averages);
// percentage is computed independently and is informational only.
func (s *SummaryService) BuildSummary(ctx context.Context, req BuildSummaryRequest) (*models.ResultSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid summary payload")
	}

	approved, err := s.results.List(ctx, models.ResultFilter{
		ExamID: req.ExamID, StudentID: req.StudentID, Status: models.ApprovalApproved,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load approved results")
	}
	if len(approved) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoApprovedResults, "")
	}

	var totalObtained, sumAverages float64
	for _, result := range approved {
		totalObtained += result.TotalScore
		sumAverages += result.AverageScore
	}
	subjectCount := len(approved)
	totalPossible := float64(marksPerSubject * subjectCount)
	percentage := totalObtained / totalPossible * 100
	averageScore := sumAverages / float64(subjectCount)

	grade, err := s.grading.Resolve(ctx, averageScore, req.SchoolID, req.AcademicYearID)
	if err != nil {
		return nil, err
	}

	higher, err := s.results.CountStudentsWithHigherAverage(ctx, req.ExamID, req.ClassID, averageScore)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute class position")
	}
	classTotal, err := s.results.ApprovedStudentCount(ctx, req.ExamID, req.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classmates")
	}
	position := higher + 1

	remarks := "Passed"
	if !grade.IsPassing {
		remarks = "Failed"
	}

	summary := &models.ResultSummary{
		SchoolID:           req.SchoolID,
		ExamID:             req.ExamID,
		StudentID:          req.StudentID,
		ClassID:            req.ClassID,
		AcademicYearID:     req.AcademicYearID,
		TotalMarksObtained: totalObtained,
		TotalPossibleMarks: totalPossible,
		Percentage:         percentage,
		AverageScore:       averageScore,
		SubjectCount:       subjectCount,
		ClassPosition:      &position,
		ClassTotalStudents: &classTotal,
		Grade:              grade.Label,
		Remarks:            remarks,
	}
	if err := s.summaries.Upsert(ctx, summary); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store summary")
	}
	return summary, nil
}

// PublishResults flips is_published on every summary, result and ranking row
// of the exam. This is one half of the AND-gate; the exam's publication
// window is the other.
func (s *SummaryService) PublishResults(ctx context.Context, examID string) (int, error) {
	published, err := s.summaries.PublishByExam(ctx, examID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish summaries")
	}
	if err := s.results.PublishByExam(ctx, examID); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish results")
	}
	if err := s.subjectRankings.PublishByExam(ctx, examID); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish rankings")
	}
	s.metrics.AddPublishedSummaries(published)
	s.logger.Info("exam results published", zap.String("exam_id", examID), zap.Int("summaries", published))
	return published, nil
}

// GetSummary returns one student's summary for staff consumption; it does not
// apply the publication gate.
func (s *SummaryService) GetSummary(ctx context.Context, examID, studentID string) (*models.ResultSummary, error) {
	summary, err := s.summaries.FindByStudentExam(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "summary not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load summary")
	}
	return summary, nil
}

// ClassStandingsList returns a class's summaries ordered by position.
func (s *SummaryService) ClassStandingsList(ctx context.Context, examID, classID string) ([]models.ResultSummary, error) {
	summaries, err := s.summaries.ListByClass(ctx, examID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class standings")
	}
	return summaries, nil
}
