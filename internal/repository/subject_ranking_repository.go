package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Emino08/school-results-api/internal/models"
)

// SubjectRankingRepository persists intra-subject ranking sets.
type SubjectRankingRepository struct {
	db *sqlx.DB
}

// NewSubjectRankingRepository creates a new subject ranking repository.
func NewSubjectRankingRepository(db *sqlx.DB) *SubjectRankingRepository {
	return &SubjectRankingRepository{db: db}
}

// ReplaceForScope deletes and rewrites the entire ranking set for one
// (exam, subject, class) triple and mirrors position/total back onto the
// matching exam_results rows, all inside a single transaction. Partial
// ranking writes are worse than a clean failure.
func (r *SubjectRankingRepository) ReplaceForScope(ctx context.Context, examID, subjectID, classID string, rankings []models.SubjectRanking) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM subject_rankings WHERE exam_id = $1 AND subject_id = $2 AND class_id = $3",
		examID, subjectID, classID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("clear subject rankings: %w", err)
	}
	now := time.Now().UTC()
	const insertQuery = `INSERT INTO subject_rankings (id, school_id, exam_id, subject_id, class_id, student_id,
            score, position, total_students, is_published, computed_at)
        VALUES (:id, :school_id, :exam_id, :subject_id, :class_id, :student_id,
            :score, :position, :total_students, :is_published, :computed_at)`
	const mirrorQuery = `UPDATE exam_results SET subject_position = $4, subject_total_students = $5, updated_at = $6
        WHERE exam_id = $1 AND subject_id = $2 AND student_id = $3`
	for i := range rankings {
		if rankings[i].ID == "" {
			rankings[i].ID = uuid.NewString()
		}
		rankings[i].ComputedAt = now
		if _, err := tx.NamedExecContext(ctx, insertQuery, rankings[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("insert subject ranking: %w", err)
		}
		if _, err := tx.ExecContext(ctx, mirrorQuery,
			examID, subjectID, rankings[i].StudentID, rankings[i].Position, rankings[i].TotalStudents, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("mirror subject position: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit subject rankings: %w", err)
	}
	return nil
}

// ListByScope returns the stored ranking for one (exam, subject, class)
// ordered by position.
func (r *SubjectRankingRepository) ListByScope(ctx context.Context, examID, subjectID, classID string) ([]models.SubjectRanking, error) {
	const query = `SELECT id, school_id, exam_id, subject_id, class_id, student_id, score, position,
            total_students, is_published, computed_at
        FROM subject_rankings
        WHERE exam_id = $1 AND subject_id = $2 AND class_id = $3
        ORDER BY position, student_id`
	var rankings []models.SubjectRanking
	if err := r.db.SelectContext(ctx, &rankings, query, examID, subjectID, classID); err != nil {
		return nil, fmt.Errorf("list subject rankings: %w", err)
	}
	return rankings, nil
}

// PublishByExam flips is_published on every ranking row of the exam.
func (r *SubjectRankingRepository) PublishByExam(ctx context.Context, examID string) error {
	const query = `UPDATE subject_rankings SET is_published = TRUE WHERE exam_id = $1`
	if _, err := r.db.ExecContext(ctx, query, examID); err != nil {
		return fmt.Errorf("publish subject rankings: %w", err)
	}
	return nil
}
