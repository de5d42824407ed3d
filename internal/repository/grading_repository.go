package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Emino08/school-results-api/internal/models"
)

const gradingColumns = `id, school_id, academic_year_id, grade_label, min_score, max_score,
        grade_point, description, is_passing, is_active, created_at, updated_at`

// GradingRepository manages grading range persistence.
type GradingRepository struct {
	db *sqlx.DB
}

// NewGradingRepository creates a new grading repository.
func NewGradingRepository(db *sqlx.DB) *GradingRepository {
	return &GradingRepository{db: db}
}

// ListActive returns the active ranges for one (school, year) scope. A nil
// yearID selects the school's year-agnostic default set.
func (r *GradingRepository) ListActive(ctx context.Context, schoolID string, yearID *string) ([]models.GradingRange, error) {
	query := fmt.Sprintf("SELECT %s FROM grading_ranges WHERE school_id = $1 AND is_active = TRUE", gradingColumns)
	args := []interface{}{schoolID}
	if yearID != nil {
		query += " AND academic_year_id = $2"
		args = append(args, *yearID)
	} else {
		query += " AND academic_year_id IS NULL"
	}
	query += " ORDER BY min_score"
	var ranges []models.GradingRange
	if err := r.db.SelectContext(ctx, &ranges, query, args...); err != nil {
		return nil, fmt.Errorf("list grading ranges: %w", err)
	}
	return ranges, nil
}

// FindByID returns one grading range within the school.
func (r *GradingRepository) FindByID(ctx context.Context, schoolID, id string) (*models.GradingRange, error) {
	query := fmt.Sprintf("SELECT %s FROM grading_ranges WHERE id = $1 AND school_id = $2", gradingColumns)
	var rng models.GradingRange
	if err := r.db.GetContext(ctx, &rng, query, id, schoolID); err != nil {
		return nil, err
	}
	return &rng, nil
}

// Create inserts a new grading range.
func (r *GradingRepository) Create(ctx context.Context, rng *models.GradingRange) error {
	if rng.ID == "" {
		rng.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	rng.CreatedAt = now
	rng.UpdatedAt = now
	const query = `INSERT INTO grading_ranges (id, school_id, academic_year_id, grade_label, min_score, max_score,
            grade_point, description, is_passing, is_active, created_at, updated_at)
        VALUES (:id, :school_id, :academic_year_id, :grade_label, :min_score, :max_score,
            :grade_point, :description, :is_passing, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rng); err != nil {
		return fmt.Errorf("insert grading range: %w", err)
	}
	return nil
}

// Update rewrites a grading range's definition.
func (r *GradingRepository) Update(ctx context.Context, rng *models.GradingRange) error {
	rng.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grading_ranges SET grade_label = :grade_label, min_score = :min_score,
            max_score = :max_score, grade_point = :grade_point, description = :description,
            is_passing = :is_passing, is_active = :is_active, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	if _, err := r.db.NamedExecContext(ctx, query, rng); err != nil {
		return fmt.Errorf("update grading range: %w", err)
	}
	return nil
}

// Deactivate soft-deletes a range; history is never physically removed.
// Returns false when the range does not exist in the school.
func (r *GradingRepository) Deactivate(ctx context.Context, schoolID, id string) (bool, error) {
	const query = `UPDATE grading_ranges SET is_active = FALSE, updated_at = $2 WHERE id = $1 AND school_id = $3`
	res, err := r.db.ExecContext(ctx, query, id, time.Now().UTC(), schoolID)
	if err != nil {
		return false, fmt.Errorf("deactivate grading range: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate grading range: %w", err)
	}
	return affected > 0, nil
}
