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

type resultRepo interface {
	Upsert(ctx context.Context, result *models.ExamResult) (bool, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.ExamResult, error)
	FindByKey(ctx context.Context, schoolID, examID, studentID, subjectID string) (*models.ExamResult, error)
	List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error)
	Approve(ctx context.Context, schoolID, id, officerID string) (bool, error)
	Reject(ctx context.Context, schoolID, id, officerID, reason string) (bool, error)
}

// SubmitMarkRequest is a teacher's per-subject mark upload.
type SubmitMarkRequest struct {
	SchoolID  string  `json:"-"`
	TeacherID string  `json:"-"`
	ExamID    string  `json:"exam_id" validate:"required"`
	StudentID string  `json:"student_id" validate:"required"`
	SubjectID string  `json:"subject_id" validate:"required"`
	ClassID   string  `json:"class_id" validate:"required"`
	TestScore float64 `json:"test_score" validate:"gte=0,lte=100"`
	ExamScore float64 `json:"exam_score" validate:"gte=0,lte=100"`
}

// RejectResultRequest carries the mandatory rejection reason.
type RejectResultRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// ResultService owns the mark store and its approval state machine.
type ResultService struct {
	results   resultRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResultService constructs ResultService.
func NewResultService(results resultRepo, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{results: results, validator: validate, logger: logger}
}

// Submit creates or overwrites a pending result. Total and average are always
// derived here; submitted totals are never trusted. Re-submission before
// approval overwrites the scores; a rejected result returns to pending; an
// approved result can only change through the correction workflow.
func (s *ResultService) Submit(ctx context.Context, req SubmitMarkRequest) (*models.ExamResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid mark payload")
	}

	existing, err := s.results.FindByKey(ctx, req.SchoolID, req.ExamID, req.StudentID, req.SubjectID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing result")
	}
	if existing != nil && existing.ApprovalStatus == models.ApprovalApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "approved results can only change through an update request")
	}

	result := &models.ExamResult{
		SchoolID:       req.SchoolID,
		ExamID:         req.ExamID,
		StudentID:      req.StudentID,
		SubjectID:      req.SubjectID,
		ClassID:        req.ClassID,
		TestScore:      req.TestScore,
		ExamScore:      req.ExamScore,
		TotalScore:     req.TestScore + req.ExamScore,
		AverageScore:   (req.TestScore + req.ExamScore) / 2,
		ApprovalStatus: models.ApprovalPending,
		UploadedBy:     req.TeacherID,
	}
	if existing != nil {
		result.ID = existing.ID
		result.CreatedAt = existing.CreatedAt
	}
	ok, err := s.results.Upsert(ctx, result)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store result")
	}
	if !ok {
		// Approval landed between the lookup above and the write. The guarded
		// conflict arm refuses to touch an approved row.
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "approved results can only change through an update request")
	}
	return result, nil
}

// Approve transitions a pending result to approved. The result must belong
// to the officer's school; a foreign ID reads as not found.
func (s *ResultService) Approve(ctx context.Context, schoolID, resultID, officerID string) (*models.ExamResult, error) {
	ok, err := s.results.Approve(ctx, schoolID, resultID, officerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve result")
	}
	if !ok {
		return nil, s.transitionError(ctx, schoolID, resultID)
	}
	result, err := s.results.FindByID(ctx, schoolID, resultID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	s.logger.Info("result approved",
		zap.String("result_id", resultID), zap.String("officer_id", officerID))
	return result, nil
}

// Reject transitions a pending result to rejected with the given reason.
// Rejected results are excluded from ranking and grading until re-submitted.
func (s *ResultService) Reject(ctx context.Context, schoolID, resultID, officerID string, req RejectResultRequest) (*models.ExamResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason required")
	}
	ok, err := s.results.Reject(ctx, schoolID, resultID, officerID, req.Reason)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject result")
	}
	if !ok {
		return nil, s.transitionError(ctx, schoolID, resultID)
	}
	result, err := s.results.FindByID(ctx, schoolID, resultID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	s.logger.Info("result rejected",
		zap.String("result_id", resultID), zap.String("officer_id", officerID), zap.String("reason", req.Reason))
	return result, nil
}

// List returns results matching the filter.
func (s *ResultService) List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error) {
	results, err := s.results.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list results")
	}
	return results, nil
}

// Get returns one result by ID within the school.
func (s *ResultService) Get(ctx context.Context, schoolID, id string) (*models.ExamResult, error) {
	result, err := s.results.FindByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	return result, nil
}

// transitionError distinguishes a missing row from a state machine violation
// after a guarded update matched nothing.
func (s *ResultService) transitionError(ctx context.Context, schoolID, resultID string) error {
	if _, err := s.results.FindByID(ctx, schoolID, resultID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	return appErrors.Clone(appErrors.ErrInvalidTransition, "result is not pending")
}
