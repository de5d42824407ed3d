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

type gradingRepo interface {
	ListActive(ctx context.Context, schoolID string, yearID *string) ([]models.GradingRange, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.GradingRange, error)
	Create(ctx context.Context, rng *models.GradingRange) error
	Update(ctx context.Context, rng *models.GradingRange) error
	Deactivate(ctx context.Context, schoolID, id string) (bool, error)
}

// CreateRangeRequest defines a new grading range.
type CreateRangeRequest struct {
	SchoolID       string  `json:"-"`
	AcademicYearID *string `json:"academic_year_id,omitempty"`
	GradeLabel     string  `json:"grade_label" validate:"required"`
	MinScore       float64 `json:"min_score" validate:"gte=0,lte=100"`
	MaxScore       float64 `json:"max_score" validate:"gte=0,lte=100"`
	GradePoint     float64 `json:"grade_point" validate:"gte=0"`
	Description    string  `json:"description"`
	IsPassing      bool    `json:"is_passing"`
}

// UpdateRangeRequest rewrites an existing range's definition.
type UpdateRangeRequest struct {
	GradeLabel  string  `json:"grade_label" validate:"required"`
	MinScore    float64 `json:"min_score" validate:"gte=0,lte=100"`
	MaxScore    float64 `json:"max_score" validate:"gte=0,lte=100"`
	GradePoint  float64 `json:"grade_point" validate:"gte=0"`
	Description string  `json:"description"`
	IsPassing   bool    `json:"is_passing"`
}

// GradingService resolves scores to grades and manages the range table.
type GradingService struct {
	ranges    gradingRepo
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradingService constructs GradingService.
func NewGradingService(ranges gradingRepo, validate *validator.Validate, logger *zap.Logger) *GradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradingService{ranges: ranges, validator: validate, logger: logger}
}

// Resolve maps a score through the most specific applicable range set: the
// year-specific set overrides the school's year-agnostic default. A score no
// active range covers resolves to the fallback F grade, never to an error.
func (s *GradingService) Resolve(ctx context.Context, score float64, schoolID string, yearID *string) (models.ResolvedGrade, error) {
	ranges, err := s.loadScope(ctx, schoolID, yearID)
	if err != nil {
		return models.ResolvedGrade{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading ranges")
	}
	for _, rng := range ranges {
		if score >= rng.MinScore && score <= rng.MaxScore {
			return models.ResolvedGrade{
				Label:       rng.GradeLabel,
				Point:       rng.GradePoint,
				Description: rng.Description,
				IsPassing:   rng.IsPassing,
			}, nil
		}
	}
	s.logger.Warn("grading configuration gap, using fallback grade",
		zap.Float64("score", score), zap.String("school_id", schoolID))
	return models.FallbackGrade, nil
}

func (s *GradingService) loadScope(ctx context.Context, schoolID string, yearID *string) ([]models.GradingRange, error) {
	if yearID != nil {
		ranges, err := s.ranges.ListActive(ctx, schoolID, yearID)
		if err != nil {
			return nil, err
		}
		if len(ranges) > 0 {
			return ranges, nil
		}
	}
	return s.ranges.ListActive(ctx, schoolID, nil)
}

// ListRanges returns the active ranges for a scope.
func (s *GradingService) ListRanges(ctx context.Context, schoolID string, yearID *string) ([]models.GradingRange, error) {
	ranges, err := s.ranges.ListActive(ctx, schoolID, yearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grading ranges")
	}
	return ranges, nil
}

// CreateRange persists a new range after the overlap check.
func (s *GradingService) CreateRange(ctx context.Context, req CreateRangeRequest) (*models.GradingRange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading range payload")
	}
	if req.MinScore > req.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "min_score must not exceed max_score")
	}
	if err := s.checkOverlap(ctx, req.SchoolID, req.AcademicYearID, req.MinScore, req.MaxScore, ""); err != nil {
		return nil, err
	}
	rng := &models.GradingRange{
		SchoolID:       req.SchoolID,
		AcademicYearID: req.AcademicYearID,
		GradeLabel:     req.GradeLabel,
		MinScore:       req.MinScore,
		MaxScore:       req.MaxScore,
		GradePoint:     req.GradePoint,
		Description:    req.Description,
		IsPassing:      req.IsPassing,
		IsActive:       true,
	}
	if err := s.ranges.Create(ctx, rng); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grading range")
	}
	return rng, nil
}

// UpdateRange rewrites a range after re-running the overlap check against the
// other active ranges in its scope. Ranges outside the caller's school read
// as not found.
func (s *GradingService) UpdateRange(ctx context.Context, schoolID, id string, req UpdateRangeRequest) (*models.GradingRange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading range payload")
	}
	if req.MinScore > req.MaxScore {
		return nil, appErrors.Clone(appErrors.ErrValidation, "min_score must not exceed max_score")
	}
	rng, err := s.ranges.FindByID(ctx, schoolID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grading range not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading range")
	}
	if err := s.checkOverlap(ctx, rng.SchoolID, rng.AcademicYearID, req.MinScore, req.MaxScore, id); err != nil {
		return nil, err
	}
	rng.GradeLabel = req.GradeLabel
	rng.MinScore = req.MinScore
	rng.MaxScore = req.MaxScore
	rng.GradePoint = req.GradePoint
	rng.Description = req.Description
	rng.IsPassing = req.IsPassing
	if err := s.ranges.Update(ctx, rng); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grading range")
	}
	return rng, nil
}

// DeactivateRange soft-deletes a range within the caller's school.
func (s *GradingService) DeactivateRange(ctx context.Context, schoolID, id string) error {
	ok, err := s.ranges.Deactivate(ctx, schoolID, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate grading range")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "grading range not found")
	}
	return nil
}

// checkOverlap rejects a candidate interval when either bound falls inside an
// existing active range in the same scope, or vice versa.
func (s *GradingService) checkOverlap(ctx context.Context, schoolID string, yearID *string, minScore, maxScore float64, excludeID string) error {
	existing, err := s.ranges.ListActive(ctx, schoolID, yearID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grading ranges")
	}
	for _, rng := range existing {
		if rng.ID == excludeID {
			continue
		}
		if minScore <= rng.MaxScore && rng.MinScore <= maxScore {
			return appErrors.Clone(appErrors.ErrOverlappingGradeRange,
				"range overlaps active grade "+rng.GradeLabel)
		}
	}
	return nil
}
