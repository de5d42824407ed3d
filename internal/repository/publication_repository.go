package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Emino08/school-results-api/internal/models"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
)

const publicationColumns = `id, school_id, exam_id, publication_date, is_active,
        total_students, approved_results, pending_results, created_at, updated_at`

// PublicationRepository persists per-exam publication windows.
type PublicationRepository struct {
	db *sqlx.DB
}

// NewPublicationRepository creates a new publication repository.
func NewPublicationRepository(db *sqlx.DB) *PublicationRepository {
	return &PublicationRepository{db: db}
}

// Create inserts the publication row for an exam; one row per exam.
func (r *PublicationRepository) Create(ctx context.Context, pub *models.ResultPublication) error {
	if pub.ID == "" {
		pub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	pub.CreatedAt = now
	pub.UpdatedAt = now
	const query = `INSERT INTO result_publications (id, school_id, exam_id, publication_date, is_active,
            total_students, approved_results, pending_results, created_at, updated_at)
        VALUES (:id, :school_id, :exam_id, :publication_date, :is_active,
            :total_students, :approved_results, :pending_results, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, pub); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return appErrors.Clone(appErrors.ErrConflict, "publication already exists for this exam")
		}
		return fmt.Errorf("insert result publication: %w", err)
	}
	return nil
}

// FindByExam returns the publication row governing an exam.
func (r *PublicationRepository) FindByExam(ctx context.Context, examID string) (*models.ResultPublication, error) {
	query := fmt.Sprintf("SELECT %s FROM result_publications WHERE exam_id = $1", publicationColumns)
	var pub models.ResultPublication
	if err := r.db.GetContext(ctx, &pub, query, examID); err != nil {
		return nil, err
	}
	return &pub, nil
}

// SetActive toggles the window without deleting history; publication_date is
// preserved so re-activation keeps the original schedule.
func (r *PublicationRepository) SetActive(ctx context.Context, examID string, active bool) (bool, error) {
	const query = `UPDATE result_publications SET is_active = $2, updated_at = $3 WHERE exam_id = $1`
	res, err := r.db.ExecContext(ctx, query, examID, active, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("toggle result publication: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("toggle result publication: %w", err)
	}
	return affected > 0, nil
}

// UpdateDate reschedules the publication window.
func (r *PublicationRepository) UpdateDate(ctx context.Context, examID string, date time.Time) error {
	const query = `UPDATE result_publications SET publication_date = $2, updated_at = $3 WHERE exam_id = $1`
	if _, err := r.db.ExecContext(ctx, query, examID, date, time.Now().UTC()); err != nil {
		return fmt.Errorf("reschedule result publication: %w", err)
	}
	return nil
}

// UpdateCounters refreshes the approval snapshot on the publication row.
func (r *PublicationRepository) UpdateCounters(ctx context.Context, examID string, total, approved, pending int) error {
	const query = `UPDATE result_publications SET total_students = $2, approved_results = $3,
            pending_results = $4, updated_at = $5 WHERE exam_id = $1`
	if _, err := r.db.ExecContext(ctx, query, examID, total, approved, pending, time.Now().UTC()); err != nil {
		return fmt.Errorf("update publication counters: %w", err)
	}
	return nil
}
