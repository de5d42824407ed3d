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

type mockGradingRepo struct {
	ranges map[string]models.GradingRange
}

func (m *mockGradingRepo) ListActive(ctx context.Context, schoolID string, yearID *string) ([]models.GradingRange, error) {
	var out []models.GradingRange
	for _, rng := range m.ranges {
		if rng.SchoolID != schoolID || !rng.IsActive {
			continue
		}
		if yearID == nil && rng.AcademicYearID != nil {
			continue
		}
		if yearID != nil && (rng.AcademicYearID == nil || *rng.AcademicYearID != *yearID) {
			continue
		}
		out = append(out, rng)
	}
	return out, nil
}

func (m *mockGradingRepo) FindByID(ctx context.Context, schoolID, id string) (*models.GradingRange, error) {
	if rng, ok := m.ranges[id]; ok && rng.SchoolID == schoolID {
		return &rng, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradingRepo) Create(ctx context.Context, rng *models.GradingRange) error {
	if m.ranges == nil {
		m.ranges = make(map[string]models.GradingRange)
	}
	if rng.ID == "" {
		rng.ID = "rng-" + rng.GradeLabel
	}
	m.ranges[rng.ID] = *rng
	return nil
}

func (m *mockGradingRepo) Update(ctx context.Context, rng *models.GradingRange) error {
	m.ranges[rng.ID] = *rng
	return nil
}

func (m *mockGradingRepo) Deactivate(ctx context.Context, schoolID, id string) (bool, error) {
	rng, ok := m.ranges[id]
	if !ok || rng.SchoolID != schoolID {
		return false, nil
	}
	rng.IsActive = false
	m.ranges[id] = rng
	return true, nil
}

func activeRange(id, label string, min, max float64, passing bool, yearID *string) models.GradingRange {
	return models.GradingRange{
		ID: id, SchoolID: "school", AcademicYearID: yearID,
		GradeLabel: label, MinScore: min, MaxScore: max,
		GradePoint: 1, IsPassing: passing, IsActive: true,
	}
}

func TestResolveMatchesRange(t *testing.T) {
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"a": activeRange("a", "A", 85, 100, true, nil),
		"b": activeRange("b", "B", 70, 84.99, true, nil),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	grade, err := svc.Resolve(context.Background(), 85, "school", nil)
	require.NoError(t, err)
	assert.Equal(t, "A", grade.Label)
	assert.True(t, grade.IsPassing)
	assert.False(t, grade.Fallback)
}

func TestResolveYearOverridesDefault(t *testing.T) {
	year := "2026"
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"default": activeRange("default", "A", 0, 100, true, nil),
		"year":    activeRange("year", "DIST", 0, 100, true, &year),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	grade, err := svc.Resolve(context.Background(), 50, "school", &year)
	require.NoError(t, err)
	assert.Equal(t, "DIST", grade.Label)

	// A year with no configured set falls back to the default set.
	other := "2027"
	grade, err = svc.Resolve(context.Background(), 50, "school", &other)
	require.NoError(t, err)
	assert.Equal(t, "A", grade.Label)
}

func TestResolveGapUsesFallback(t *testing.T) {
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"a": activeRange("a", "A", 85, 100, true, nil),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	grade, err := svc.Resolve(context.Background(), 50, "school", nil)
	require.NoError(t, err)
	assert.Equal(t, models.FallbackGrade, grade)
	assert.True(t, grade.Fallback)
	assert.False(t, grade.IsPassing)
}

func TestCreateRangeRejectsOverlap(t *testing.T) {
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"b": activeRange("b", "B", 80, 90, true, nil),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	_, err := svc.CreateRange(context.Background(), CreateRangeRequest{
		SchoolID: "school", GradeLabel: "A", MinScore: 85, MaxScore: 100, IsPassing: true,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrOverlappingGradeRange.Code, appErr.Code)
}

func TestCreateRangeAllowsAdjacentAndOtherScope(t *testing.T) {
	year := "2026"
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"b": activeRange("b", "B", 80, 89.99, true, nil),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	_, err := svc.CreateRange(context.Background(), CreateRangeRequest{
		SchoolID: "school", GradeLabel: "A", MinScore: 90, MaxScore: 100, IsPassing: true,
	})
	require.NoError(t, err)

	// The same interval in a year-specific scope does not collide with the
	// default set.
	_, err = svc.CreateRange(context.Background(), CreateRangeRequest{
		SchoolID: "school", AcademicYearID: &year,
		GradeLabel: "B", MinScore: 80, MaxScore: 89.99, IsPassing: true,
	})
	require.NoError(t, err)
}

func TestCreateRangeRejectsInvertedBounds(t *testing.T) {
	svc := NewGradingService(&mockGradingRepo{}, validator.New(), zap.NewNop())

	_, err := svc.CreateRange(context.Background(), CreateRangeRequest{
		SchoolID: "school", GradeLabel: "A", MinScore: 90, MaxScore: 80,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateRangeExcludesSelfFromOverlapCheck(t *testing.T) {
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"a": activeRange("a", "A", 85, 100, true, nil),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	rng, err := svc.UpdateRange(context.Background(), "school", "a", UpdateRangeRequest{
		GradeLabel: "A+", MinScore: 88, MaxScore: 100, GradePoint: 5, IsPassing: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "A+", rng.GradeLabel)
	assert.Equal(t, 88.0, rng.MinScore)
}

func TestUpdateRangeForeignSchoolIsNotFound(t *testing.T) {
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"a": activeRange("a", "A", 85, 100, true, nil),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	_, err := svc.UpdateRange(context.Background(), "other-school", "a", UpdateRangeRequest{
		GradeLabel: "A", MinScore: 85, MaxScore: 100, GradePoint: 5, IsPassing: true,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	err = svc.DeactivateRange(context.Background(), "other-school", "a")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.True(t, repo.ranges["a"].IsActive)
}

func TestDeactivateRangeSoftDeletes(t *testing.T) {
	repo := &mockGradingRepo{ranges: map[string]models.GradingRange{
		"a": activeRange("a", "A", 85, 100, true, nil),
	}}
	svc := NewGradingService(repo, validator.New(), zap.NewNop())

	require.NoError(t, svc.DeactivateRange(context.Background(), "school", "a"))
	assert.False(t, repo.ranges["a"].IsActive)
}
