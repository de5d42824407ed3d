package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
)

type publicationRepo interface {
	Create(ctx context.Context, pub *models.ResultPublication) error
	FindByExam(ctx context.Context, examID string) (*models.ResultPublication, error)
	SetActive(ctx context.Context, examID string, active bool) (bool, error)
	UpdateDate(ctx context.Context, examID string, date time.Time) error
	UpdateCounters(ctx context.Context, examID string, total, approved, pending int) error
}

type approvalCounter interface {
	ApprovalCounts(ctx context.Context, examID string) (total, approved, pending int, err error)
}

type gateCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreatePublicationRequest opens a publication window for an exam.
type CreatePublicationRequest struct {
	SchoolID        string    `json:"-"`
	ExamID          string    `json:"exam_id" validate:"required"`
	PublicationDate time.Time `json:"publication_date" validate:"required"`
}

// PublicationService controls the per-exam half of the visibility AND-gate.
type PublicationService struct {
	publications publicationRepo
	results      approvalCounter
	cache        gateCache
	cacheTTL     time.Duration
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// NewPublicationService constructs PublicationService. The cache may be nil.
func NewPublicationService(publications publicationRepo, results approvalCounter, cache gateCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *PublicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &PublicationService{
		publications: publications,
		results:      results,
		cache:        cache,
		cacheTTL:     cacheTTL,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create opens the window for an exam, snapshotting the approval counters.
// One publication row per exam.
func (s *PublicationService) Create(ctx context.Context, req CreatePublicationRequest) (*models.ResultPublication, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid publication payload")
	}
	total, approved, pending, err := s.results.ApprovalCounts(ctx, req.ExamID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot approval counts")
	}
	pub := &models.ResultPublication{
		SchoolID:        req.SchoolID,
		ExamID:          req.ExamID,
		PublicationDate: req.PublicationDate,
		IsActive:        true,
		TotalStudents:   total,
		ApprovedResults: approved,
		PendingResults:  pending,
	}
	if err := s.publications.Create(ctx, pub); err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create publication")
	}
	s.invalidateGate(ctx, req.ExamID)
	return pub, nil
}

// IsResultPublished answers the exam-level gate: an active row exists and
// today is on or after the publication date. Answers are cached briefly.
func (s *PublicationService) IsResultPublished(ctx context.Context, examID string) (bool, error) {
	key := gateCacheKey(examID)
	if s.cache != nil {
		var cached bool
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}
	pub, err := s.publications.FindByExam(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	open := pub.IsActive && !s.now().Before(pub.PublicationDate)
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, open, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache publication gate", zap.Error(err))
		}
	}
	return open, nil
}

// Show re-activates a hidden publication, preserving its original date.
func (s *PublicationService) Show(ctx context.Context, examID string) error {
	return s.toggle(ctx, examID, true)
}

// Hide deactivates the window without deleting history.
func (s *PublicationService) Hide(ctx context.Context, examID string) error {
	return s.toggle(ctx, examID, false)
}

func (s *PublicationService) toggle(ctx context.Context, examID string, active bool) error {
	ok, err := s.publications.SetActive(ctx, examID, active)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to toggle publication")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "publication not found")
	}
	s.invalidateGate(ctx, examID)
	s.logger.Info("publication toggled", zap.String("exam_id", examID), zap.Bool("active", active))
	return nil
}

// Reschedule changes the publication date.
func (s *PublicationService) Reschedule(ctx context.Context, examID string, date time.Time) error {
	if _, err := s.Get(ctx, examID); err != nil {
		return err
	}
	if err := s.publications.UpdateDate(ctx, examID, date); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule publication")
	}
	s.invalidateGate(ctx, examID)
	return nil
}

// Get returns the publication row for an exam.
func (s *PublicationService) Get(ctx context.Context, examID string) (*models.ResultPublication, error) {
	pub, err := s.publications.FindByExam(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "publication not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load publication")
	}
	return pub, nil
}

// RefreshCounters re-snapshots approval counts onto the publication row,
// typically after an approval batch.
func (s *PublicationService) RefreshCounters(ctx context.Context, examID string) error {
	total, approved, pending, err := s.results.ApprovalCounts(ctx, examID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count results")
	}
	if err := s.publications.UpdateCounters(ctx, examID, total, approved, pending); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update counters")
	}
	return nil
}

func (s *PublicationService) invalidateGate(ctx context.Context, examID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, gateCacheKey(examID)); err != nil {
		s.logger.Warn("failed to invalidate publication gate cache", zap.Error(err))
	}
}

func gateCacheKey(examID string) string {
	return "results:pubgate:" + examID
}
