package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Emino08/school-results-api/internal/models"
)

const correctionColumns = `id, school_id, result_id, proposed_test_score, proposed_exam_score,
        reason, status, requested_by, reviewed_by, review_note, requested_at, reviewed_at`

// CorrectionRepository persists grade update requests.
type CorrectionRepository struct {
	db *sqlx.DB
}

// NewCorrectionRepository creates a new correction repository.
func NewCorrectionRepository(db *sqlx.DB) *CorrectionRepository {
	return &CorrectionRepository{db: db}
}

// Create inserts a new pending request.
func (r *CorrectionRepository) Create(ctx context.Context, req *models.GradeUpdateRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grade_update_requests (id, school_id, result_id, proposed_test_score,
            proposed_exam_score, reason, status, requested_by, requested_at)
        VALUES (:id, :school_id, :result_id, :proposed_test_score,
            :proposed_exam_score, :reason, :status, :requested_by, :requested_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("insert grade update request: %w", err)
	}
	return nil
}

// FindByID returns one request within the school.
func (r *CorrectionRepository) FindByID(ctx context.Context, schoolID, id string) (*models.GradeUpdateRequest, error) {
	query := fmt.Sprintf("SELECT %s FROM grade_update_requests WHERE id = $1 AND school_id = $2", correctionColumns)
	var req models.GradeUpdateRequest
	if err := r.db.GetContext(ctx, &req, query, id, schoolID); err != nil {
		return nil, err
	}
	return &req, nil
}

// HasPending reports whether an unresolved request exists for the result.
func (r *CorrectionRepository) HasPending(ctx context.Context, resultID string) (bool, error) {
	const query = `SELECT 1 FROM grade_update_requests WHERE result_id = $1 AND status = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, resultID, models.CorrectionPending); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check pending request: %w", err)
	}
	return true, nil
}

// Review resolves a pending request. Returns false when the request was not
// pending, does not exist, or belongs to another school.
func (r *CorrectionRepository) Review(ctx context.Context, schoolID, id string, status models.CorrectionStatus, officerID string, note *string) (bool, error) {
	const query = `UPDATE grade_update_requests SET status = $2, reviewed_by = $3, review_note = $4,
            reviewed_at = $5 WHERE id = $1 AND school_id = $7 AND status = $6`
	res, err := r.db.ExecContext(ctx, query, id, status, officerID, note, time.Now().UTC(), models.CorrectionPending, schoolID)
	if err != nil {
		return false, fmt.Errorf("review grade update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("review grade update request: %w", err)
	}
	return affected > 0, nil
}

// ApproveAndApplyScores resolves a pending request and rewrites its target
// result's scores in one transaction, so the request can never be observed as
// approved while the result still carries the old marks. The result's derived
// total and average are recomputed in the same statement; its approval status
// is untouched. Returns false when the request was not pending in the school.
func (r *CorrectionRepository) ApproveAndApplyScores(ctx context.Context, schoolID, id, officerID string, note *string) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	now := time.Now().UTC()
	const reviewQuery = `UPDATE grade_update_requests SET status = $2, reviewed_by = $3, review_note = $4,
            reviewed_at = $5 WHERE id = $1 AND school_id = $6 AND status = $7
        RETURNING result_id, proposed_test_score, proposed_exam_score`
	var (
		resultID             string
		testScore, examScore float64
	)
	err = tx.QueryRowxContext(ctx, reviewQuery, id, models.CorrectionApproved, officerID, note, now,
		schoolID, models.CorrectionPending).Scan(&resultID, &testScore, &examScore)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("approve grade update request: %w", err)
	}
	const applyQuery = `UPDATE exam_results SET test_score = $2, exam_score = $3,
            total_score = $2 + $3, average_score = ($2 + $3) / 2, updated_at = $4
        WHERE id = $1 AND school_id = $5`
	if _, err := tx.ExecContext(ctx, applyQuery, resultID, testScore, examScore, now, schoolID); err != nil {
		tx.Rollback() //nolint:errcheck
		return false, fmt.Errorf("apply corrected scores: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit grade correction: %w", err)
	}
	return true, nil
}

// ListPending returns unresolved requests for a school, oldest first.
func (r *CorrectionRepository) ListPending(ctx context.Context, schoolID string) ([]models.GradeUpdateRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM grade_update_requests WHERE school_id = $1 AND status = $2
        ORDER BY requested_at`, correctionColumns)
	var requests []models.GradeUpdateRequest
	if err := r.db.SelectContext(ctx, &requests, query, schoolID, models.CorrectionPending); err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}
	return requests, nil
}

// ListByResult returns every request ever filed against a result in the
// school.
func (r *CorrectionRepository) ListByResult(ctx context.Context, schoolID, resultID string) ([]models.GradeUpdateRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM grade_update_requests WHERE result_id = $1 AND school_id = $2
        ORDER BY requested_at DESC`, correctionColumns)
	var requests []models.GradeUpdateRequest
	if err := r.db.SelectContext(ctx, &requests, query, resultID, schoolID); err != nil {
		return nil, fmt.Errorf("list result requests: %w", err)
	}
	return requests, nil
}
