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

type examGate interface {
	IsResultPublished(ctx context.Context, examID string) (bool, error)
}

type pinSpender interface {
	ValidateAndConsume(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error)
}

type lookupSummaryReader interface {
	FindByStudentExam(ctx context.Context, examID, studentID string) (*models.ResultSummary, error)
}

type lookupResultReader interface {
	List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error)
}

type lookupGradeResolver interface {
	Resolve(ctx context.Context, score float64, schoolID string, yearID *string) (models.ResolvedGrade, error)
}

// LookupRequest is the anonymous result-check payload.
type LookupRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ExamID    string `json:"exam_id" validate:"required"`
	PinCode   string `json:"pin_code" validate:"required"`
}

// SubjectLine is one subject row on the checked result.
type SubjectLine struct {
	SubjectID       string  `json:"subject_id"`
	TestScore       float64 `json:"test_score"`
	ExamScore       float64 `json:"exam_score"`
	TotalScore      float64 `json:"total_score"`
	AverageScore    float64 `json:"average_score"`
	Grade           string  `json:"grade"`
	GradePoint      float64 `json:"grade_point"`
	SubjectPosition *int    `json:"subject_position,omitempty"`
	TotalStudents   *int    `json:"total_students,omitempty"`
}

// ResultCheckView is the full answer to a successful lookup.
type ResultCheckView struct {
	Summary         *models.ResultSummary `json:"summary"`
	Subjects        []SubjectLine         `json:"subjects"`
	RemainingChecks int                   `json:"remaining_checks"`
}

// LookupService serves anonymous pin-gated result checks. Both halves of the
// visibility gate are verified before a pin check is spent, so a failed gate
// never costs the student part of their budget.
type LookupService struct {
	gate      examGate
	pins      pinSpender
	summaries lookupSummaryReader
	results   lookupResultReader
	grades    lookupGradeResolver
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLookupService constructs LookupService.
func NewLookupService(gate examGate, pins pinSpender, summaries lookupSummaryReader, results lookupResultReader, grades lookupGradeResolver, validate *validator.Validate, logger *zap.Logger) *LookupService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LookupService{
		gate:      gate,
		pins:      pins,
		summaries: summaries,
		results:   results,
		grades:    grades,
		validator: validate,
		logger:    logger,
	}
}

// Check answers one anonymous result lookup.
func (s *LookupService) Check(ctx context.Context, req LookupRequest) (*ResultCheckView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lookup payload")
	}

	open, err := s.gate.IsResultPublished(ctx, req.ExamID)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, appErrors.Clone(appErrors.ErrResultNotPublished, "results are not published for this exam")
	}

	summary, err := s.summaries.FindByStudentExam(ctx, req.ExamID, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no result found for this student and exam")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load summary")
	}
	if !summary.IsPublished {
		return nil, appErrors.Clone(appErrors.ErrResultNotPublished, "this result has not been published")
	}

	pin, err := s.pins.ValidateAndConsume(ctx, req.PinCode, req.StudentID)
	if err != nil {
		return nil, err
	}

	subjects, err := s.subjectLines(ctx, summary, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("result checked",
		zap.String("exam_id", req.ExamID),
		zap.String("student_id", req.StudentID),
		zap.Int("remaining_checks", pin.RemainingChecks()))

	return &ResultCheckView{
		Summary:         summary,
		Subjects:        subjects,
		RemainingChecks: pin.RemainingChecks(),
	}, nil
}

func (s *LookupService) subjectLines(ctx context.Context, summary *models.ResultSummary, req LookupRequest) ([]SubjectLine, error) {
	results, err := s.results.List(ctx, models.ResultFilter{
		ExamID:    req.ExamID,
		StudentID: req.StudentID,
		Status:    models.ApprovalApproved,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject results")
	}
	lines := make([]SubjectLine, 0, len(results))
	for _, result := range results {
		if !result.IsPublished {
			continue
		}
		grade, err := s.grades.Resolve(ctx, result.AverageScore, summary.SchoolID, summary.AcademicYearID)
		if err != nil {
			return nil, err
		}
		lines = append(lines, SubjectLine{
			SubjectID:       result.SubjectID,
			TestScore:       result.TestScore,
			ExamScore:       result.ExamScore,
			TotalScore:      result.TotalScore,
			AverageScore:    result.AverageScore,
			Grade:           grade.Label,
			GradePoint:      grade.Point,
			SubjectPosition: result.SubjectPosition,
			TotalStudents:   result.SubjectTotalStudents,
		})
	}
	return lines, nil
}
