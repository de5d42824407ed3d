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

type correctionRepo interface {
	Create(ctx context.Context, req *models.GradeUpdateRequest) error
	FindByID(ctx context.Context, schoolID, id string) (*models.GradeUpdateRequest, error)
	HasPending(ctx context.Context, resultID string) (bool, error)
	Review(ctx context.Context, schoolID, id string, status models.CorrectionStatus, officerID string, note *string) (bool, error)
	ApproveAndApplyScores(ctx context.Context, schoolID, id, officerID string, note *string) (bool, error)
	ListPending(ctx context.Context, schoolID string) ([]models.GradeUpdateRequest, error)
	ListByResult(ctx context.Context, schoolID, resultID string) ([]models.GradeUpdateRequest, error)
}

type correctionResultStore interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.ExamResult, error)
}

type correctionReranker interface {
	RankSubject(ctx context.Context, examID, subjectID, classID string) (int, error)
	RankClass(ctx context.Context, examID, classID string) (int, error)
}

type correctionSummarizer interface {
	BuildSummary(ctx context.Context, req BuildSummaryRequest) (*models.ResultSummary, error)
}

// RequestCorrectionRequest files a grade update against an approved result.
type RequestCorrectionRequest struct {
	SchoolID          string  `json:"-"`
	RequestedBy       string  `json:"-"`
	ResultID          string  `json:"result_id" validate:"required"`
	ProposedTestScore float64 `json:"proposed_test_score" validate:"gte=0,lte=100"`
	ProposedExamScore float64 `json:"proposed_exam_score" validate:"gte=0,lte=100"`
	Reason            string  `json:"reason" validate:"required,min=5"`
}

// ReviewCorrectionRequest resolves a pending grade update request.
type ReviewCorrectionRequest struct {
	SchoolID   string  `json:"-"`
	ReviewedBy string  `json:"-"`
	RequestID  string  `json:"request_id" validate:"required"`
	Note       *string `json:"note,omitempty"`
}

// CorrectionService runs the post-approval grade correction workflow.
// Approving a request rewrites the result's scores and re-derives every
// artifact downstream of them.
type CorrectionService struct {
	corrections correctionRepo
	results     correctionResultStore
	rankings    correctionReranker
	summaries   correctionSummarizer
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCorrectionService constructs CorrectionService.
func NewCorrectionService(corrections correctionRepo, results correctionResultStore, rankings correctionReranker, summaries correctionSummarizer, validate *validator.Validate, logger *zap.Logger) *CorrectionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CorrectionService{
		corrections: corrections,
		results:     results,
		rankings:    rankings,
		summaries:   summaries,
		validator:   validate,
		logger:      logger,
	}
}

// Request files a correction. The target result must already be approved,
// and at most one pending request may exist per result.
func (s *CorrectionService) Request(ctx context.Context, req RequestCorrectionRequest) (*models.GradeUpdateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid correction payload")
	}
	result, err := s.loadResult(ctx, req.SchoolID, req.ResultID)
	if err != nil {
		return nil, err
	}
	if result.ApprovalStatus != models.ApprovalApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "only approved results can be corrected")
	}
	pending, err := s.corrections.HasPending(ctx, req.ResultID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrDuplicatePendingRequest, "a pending update request already exists for this result")
	}
	request := &models.GradeUpdateRequest{
		SchoolID:          req.SchoolID,
		ResultID:          req.ResultID,
		ProposedTestScore: req.ProposedTestScore,
		ProposedExamScore: req.ProposedExamScore,
		Reason:            req.Reason,
		Status:            models.CorrectionPending,
		RequestedBy:       req.RequestedBy,
	}
	if err := s.corrections.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create correction request")
	}
	s.logger.Info("correction requested",
		zap.String("request_id", request.ID),
		zap.String("result_id", req.ResultID))
	return request, nil
}

// Approve applies the proposed scores to the result and re-runs the subject
// ranking, class standings, and the student's summary so the published view
// never shows stale derived data. The status flip and the score write commit
// in one transaction; a failure on either side leaves the request pending
// and the result untouched.
func (s *CorrectionService) Approve(ctx context.Context, req ReviewCorrectionRequest) (*models.GradeUpdateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	request, err := s.loadRequest(ctx, req.SchoolID, req.RequestID)
	if err != nil {
		return nil, err
	}
	result, err := s.loadResult(ctx, req.SchoolID, request.ResultID)
	if err != nil {
		return nil, err
	}

	ok, err := s.corrections.ApproveAndApplyScores(ctx, req.SchoolID, req.RequestID, req.ReviewedBy, req.Note)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply correction")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request has already been reviewed")
	}
	s.recompute(ctx, result)

	return s.loadRequest(ctx, req.SchoolID, req.RequestID)
}

// Reject declines a pending request. A note explaining the rejection is
// required.
func (s *CorrectionService) Reject(ctx context.Context, req ReviewCorrectionRequest) (*models.GradeUpdateRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}
	if req.Note == nil || *req.Note == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a rejection note is required")
	}
	ok, err := s.corrections.Review(ctx, req.SchoolID, req.RequestID, models.CorrectionRejected, req.ReviewedBy, req.Note)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to review request")
	}
	if !ok {
		if _, err := s.loadRequest(ctx, req.SchoolID, req.RequestID); err != nil {
			return nil, err
		}
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "request has already been reviewed")
	}
	return s.loadRequest(ctx, req.SchoolID, req.RequestID)
}

// Get returns one request within the school.
func (s *CorrectionService) Get(ctx context.Context, schoolID, id string) (*models.GradeUpdateRequest, error) {
	return s.loadRequest(ctx, schoolID, id)
}

// ListPending returns a school's unresolved requests, oldest first.
func (s *CorrectionService) ListPending(ctx context.Context, schoolID string) ([]models.GradeUpdateRequest, error) {
	requests, err := s.corrections.ListPending(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending requests")
	}
	return requests, nil
}

// ListByResult returns every request filed against a result.
func (s *CorrectionService) ListByResult(ctx context.Context, schoolID, resultID string) ([]models.GradeUpdateRequest, error) {
	requests, err := s.corrections.ListByResult(ctx, schoolID, resultID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list result requests")
	}
	return requests, nil
}

// recompute re-derives rankings and the student's summary after a score
// change. Failures are logged, not returned; the correction itself has
// already been applied and the derived data can be rebuilt on demand.
func (s *CorrectionService) recompute(ctx context.Context, result *models.ExamResult) {
	if s.rankings != nil {
		if _, err := s.rankings.RankSubject(ctx, result.ExamID, result.SubjectID, result.ClassID); err != nil {
			s.logger.Error("failed to re-rank subject after correction",
				zap.String("result_id", result.ID), zap.Error(err))
		}
		if _, err := s.rankings.RankClass(ctx, result.ExamID, result.ClassID); err != nil {
			s.logger.Error("failed to re-rank class after correction",
				zap.String("result_id", result.ID), zap.Error(err))
		}
	}
	if s.summaries != nil {
		if _, err := s.summaries.BuildSummary(ctx, BuildSummaryRequest{
			SchoolID:  result.SchoolID,
			ExamID:    result.ExamID,
			StudentID: result.StudentID,
			ClassID:   result.ClassID,
		}); err != nil {
			s.logger.Error("failed to rebuild summary after correction",
				zap.String("result_id", result.ID), zap.Error(err))
		}
	}
}

func (s *CorrectionService) loadRequest(ctx context.Context, schoolID, id string) (*models.GradeUpdateRequest, error) {
	request, err := s.corrections.FindByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "correction request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *CorrectionService) loadResult(ctx context.Context, schoolID, id string) (*models.ExamResult, error) {
	result, err := s.results.FindByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "result not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	return result, nil
}
