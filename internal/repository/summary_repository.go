package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Emino08/school-results-api/internal/models"
)

const summaryColumns = `id, school_id, exam_id, student_id, class_id, academic_year_id,
        total_marks_obtained, total_possible_marks, percentage, average_score, subject_count,
        class_position, class_total_students, grade, remarks, is_published, published_at,
        created_at, updated_at`

// SummaryRepository persists per-student result summaries and their class
// standings.
type SummaryRepository struct {
	db *sqlx.DB
}

// NewSummaryRepository creates a new summary repository.
func NewSummaryRepository(db *sqlx.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

// Upsert rebuilds the full summary row keyed by (exam, student). Every field
// is rewritten; summaries are never patched incrementally.
func (r *SummaryRepository) Upsert(ctx context.Context, summary *models.ResultSummary) error {
	if summary.ID == "" {
		summary.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = now
	}
	summary.UpdatedAt = now
	const query = `INSERT INTO result_summaries (id, school_id, exam_id, student_id, class_id, academic_year_id,
            total_marks_obtained, total_possible_marks, percentage, average_score, subject_count,
            class_position, class_total_students, grade, remarks, is_published, published_at, created_at, updated_at)
        VALUES (:id, :school_id, :exam_id, :student_id, :class_id, :academic_year_id,
            :total_marks_obtained, :total_possible_marks, :percentage, :average_score, :subject_count,
            :class_position, :class_total_students, :grade, :remarks, :is_published, :published_at, :created_at, :updated_at)
        ON CONFLICT (exam_id, student_id)
        DO UPDATE SET class_id = EXCLUDED.class_id, academic_year_id = EXCLUDED.academic_year_id,
            total_marks_obtained = EXCLUDED.total_marks_obtained,
            total_possible_marks = EXCLUDED.total_possible_marks,
            percentage = EXCLUDED.percentage, average_score = EXCLUDED.average_score,
            subject_count = EXCLUDED.subject_count, class_position = EXCLUDED.class_position,
            class_total_students = EXCLUDED.class_total_students, grade = EXCLUDED.grade,
            remarks = EXCLUDED.remarks, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, summary); err != nil {
		return fmt.Errorf("upsert result summary: %w", err)
	}
	return nil
}

// ApplyStandings writes class positions for one (exam, class) as a single
// transaction. Rows missing a summary receive a minimal one carrying the
// standing aggregates; BuildSummary fills in grades later.
func (r *SummaryRepository) ApplyStandings(ctx context.Context, schoolID, examID, classID string, standings []models.ClassStanding) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	const query = `INSERT INTO result_summaries (id, school_id, exam_id, student_id, class_id,
            total_marks_obtained, total_possible_marks, percentage, average_score, subject_count,
            class_position, class_total_students, grade, remarks, is_published, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, '', '', FALSE, $13, $13)
        ON CONFLICT (exam_id, student_id)
        DO UPDATE SET class_position = EXCLUDED.class_position,
            class_total_students = EXCLUDED.class_total_students,
            average_score = EXCLUDED.average_score,
            total_marks_obtained = EXCLUDED.total_marks_obtained,
            subject_count = EXCLUDED.subject_count,
            updated_at = EXCLUDED.updated_at`
	for _, standing := range standings {
		possible := 100 * float64(standing.SubjectCount)
		percentage := 0.0
		if possible > 0 {
			percentage = standing.TotalObtained / possible * 100
		}
		if _, err := tx.ExecContext(ctx, query,
			uuid.NewString(), schoolID, examID, standing.StudentID, classID,
			standing.TotalObtained, possible, percentage, standing.OverallAverage, standing.SubjectCount,
			standing.Position, standing.TotalStudents, now); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("apply class standing: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit class standings: %w", err)
	}
	return nil
}

// FindByStudentExam returns one student's summary for an exam.
func (r *SummaryRepository) FindByStudentExam(ctx context.Context, examID, studentID string) (*models.ResultSummary, error) {
	query := fmt.Sprintf("SELECT %s FROM result_summaries WHERE exam_id = $1 AND student_id = $2", summaryColumns)
	var summary models.ResultSummary
	if err := r.db.GetContext(ctx, &summary, query, examID, studentID); err != nil {
		return nil, err
	}
	return &summary, nil
}

// ListByClass returns the class standings for an exam ordered by position.
func (r *SummaryRepository) ListByClass(ctx context.Context, examID, classID string) ([]models.ResultSummary, error) {
	query := fmt.Sprintf(`SELECT %s FROM result_summaries WHERE exam_id = $1 AND class_id = $2
        ORDER BY class_position NULLS LAST, student_id`, summaryColumns)
	var summaries []models.ResultSummary
	if err := r.db.SelectContext(ctx, &summaries, query, examID, classID); err != nil {
		return nil, fmt.Errorf("list class summaries: %w", err)
	}
	return summaries, nil
}

// PublishByExam stamps is_published and published_at on every summary of the
// exam. This is the per-summary half of the publication AND-gate.
func (r *SummaryRepository) PublishByExam(ctx context.Context, examID string) (int, error) {
	const query = `UPDATE result_summaries SET is_published = TRUE, published_at = $2, updated_at = $2
        WHERE exam_id = $1 AND is_published = FALSE`
	res, err := r.db.ExecContext(ctx, query, examID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("publish result summaries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("publish result summaries: %w", err)
	}
	return int(affected), nil
}
