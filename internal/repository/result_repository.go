package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Emino08/school-results-api/internal/models"
)

const resultColumns = `id, school_id, exam_id, student_id, subject_id, class_id, test_score, exam_score,
        total_score, average_score, approval_status, uploaded_by, approved_by, approved_at,
        rejected_by, rejected_at, rejection_reason, subject_position, subject_total_students,
        is_published, created_at, updated_at`

// ResultRepository handles exam result persistence.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository creates a new result repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Upsert inserts or overwrites a mark submission keyed by
// (school, exam, student, subject). Re-submission resets the row to PENDING
// and clears any previous approval or rejection stamps. The conflict arm is
// guarded so an approval that landed after the caller's status check can
// never be overwritten: in that case no row is touched and false is returned.
func (r *ResultRepository) Upsert(ctx context.Context, result *models.ExamResult) (bool, error) {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	const query = `INSERT INTO exam_results (id, school_id, exam_id, student_id, subject_id, class_id,
            test_score, exam_score, total_score, average_score, approval_status, uploaded_by, created_at, updated_at)
        VALUES (:id, :school_id, :exam_id, :student_id, :subject_id, :class_id,
            :test_score, :exam_score, :total_score, :average_score, :approval_status, :uploaded_by, :created_at, :updated_at)
        ON CONFLICT (school_id, exam_id, student_id, subject_id)
        DO UPDATE SET class_id = EXCLUDED.class_id, test_score = EXCLUDED.test_score,
            exam_score = EXCLUDED.exam_score, total_score = EXCLUDED.total_score,
            average_score = EXCLUDED.average_score, approval_status = EXCLUDED.approval_status,
            uploaded_by = EXCLUDED.uploaded_by, approved_by = NULL, approved_at = NULL,
            rejected_by = NULL, rejected_at = NULL, rejection_reason = NULL,
            updated_at = EXCLUDED.updated_at
        WHERE exam_results.approval_status <> 'APPROVED'`
	res, err := r.db.NamedExecContext(ctx, query, result)
	if err != nil {
		return false, fmt.Errorf("upsert exam result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert exam result: %w", err)
	}
	return affected > 0, nil
}

// FindByID returns a single result row within the school. The school
// predicate makes a foreign UUID indistinguishable from a missing row.
func (r *ResultRepository) FindByID(ctx context.Context, schoolID, id string) (*models.ExamResult, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_results WHERE id = $1 AND school_id = $2", resultColumns)
	var result models.ExamResult
	if err := r.db.GetContext(ctx, &result, query, id, schoolID); err != nil {
		return nil, err
	}
	return &result, nil
}

// FindByKey returns the result for the unique (exam, student, subject) key.
func (r *ResultRepository) FindByKey(ctx context.Context, schoolID, examID, studentID, subjectID string) (*models.ExamResult, error) {
	query := fmt.Sprintf(`SELECT %s FROM exam_results
        WHERE school_id = $1 AND exam_id = $2 AND student_id = $3 AND subject_id = $4`, resultColumns)
	var result models.ExamResult
	if err := r.db.GetContext(ctx, &result, query, schoolID, examID, studentID, subjectID); err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns result rows matching the filter ordered by subject.
func (r *ResultRepository) List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error) {
	query := fmt.Sprintf("SELECT %s FROM exam_results WHERE 1=1", resultColumns)
	var args []interface{}
	if filter.SchoolID != "" {
		query += fmt.Sprintf(" AND school_id = $%d", len(args)+1)
		args = append(args, filter.SchoolID)
	}
	if filter.ExamID != "" {
		query += fmt.Sprintf(" AND exam_id = $%d", len(args)+1)
		args = append(args, filter.ExamID)
	}
	if filter.StudentID != "" {
		query += fmt.Sprintf(" AND student_id = $%d", len(args)+1)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		query += fmt.Sprintf(" AND subject_id = $%d", len(args)+1)
		args = append(args, filter.SubjectID)
	}
	if filter.ClassID != "" {
		query += fmt.Sprintf(" AND class_id = $%d", len(args)+1)
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		query += fmt.Sprintf(" AND approval_status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY subject_id, student_id"
	var results []models.ExamResult
	if err := r.db.SelectContext(ctx, &results, query, args...); err != nil {
		return nil, fmt.Errorf("list exam results: %w", err)
	}
	return results, nil
}

// Approve transitions a pending result to approved. Returns false when the
// row was not pending, does not exist, or belongs to another school.
func (r *ResultRepository) Approve(ctx context.Context, schoolID, id, officerID string) (bool, error) {
	const query = `UPDATE exam_results SET approval_status = $2, approved_by = $3, approved_at = $4,
            rejected_by = NULL, rejected_at = NULL, rejection_reason = NULL, updated_at = $4
        WHERE id = $1 AND school_id = $6 AND approval_status = $5`
	res, err := r.db.ExecContext(ctx, query, id, models.ApprovalApproved, officerID, time.Now().UTC(), models.ApprovalPending, schoolID)
	if err != nil {
		return false, fmt.Errorf("approve exam result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("approve exam result: %w", err)
	}
	return affected > 0, nil
}

// Reject transitions a pending result to rejected with a reason. Returns
// false when the row was not pending or not in the school.
func (r *ResultRepository) Reject(ctx context.Context, schoolID, id, officerID, reason string) (bool, error) {
	const query = `UPDATE exam_results SET approval_status = $2, rejected_by = $3, rejected_at = $4,
            rejection_reason = $5, approved_by = NULL, approved_at = NULL, updated_at = $4
        WHERE id = $1 AND school_id = $7 AND approval_status = $6`
	res, err := r.db.ExecContext(ctx, query, id, models.ApprovalRejected, officerID, time.Now().UTC(), reason, models.ApprovalPending, schoolID)
	if err != nil {
		return false, fmt.Errorf("reject exam result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reject exam result: %w", err)
	}
	return affected > 0, nil
}

// DistinctApprovedClasses returns every class that has at least one approved
// result for the exam.
func (r *ResultRepository) DistinctApprovedClasses(ctx context.Context, examID string) ([]string, error) {
	const query = `SELECT DISTINCT class_id FROM exam_results WHERE exam_id = $1 AND approval_status = $2 ORDER BY class_id`
	var classes []string
	if err := r.db.SelectContext(ctx, &classes, query, examID, models.ApprovalApproved); err != nil {
		return nil, fmt.Errorf("distinct approved classes: %w", err)
	}
	return classes, nil
}

// ApprovalCounts reports total/approved/pending row counts for an exam,
// snapshotted onto the exam's publication row.
func (r *ResultRepository) ApprovalCounts(ctx context.Context, examID string) (total, approved, pending int, err error) {
	const query = `SELECT COUNT(*) AS total,
            COUNT(*) FILTER (WHERE approval_status = $2) AS approved,
            COUNT(*) FILTER (WHERE approval_status = $3) AS pending
        FROM exam_results WHERE exam_id = $1`
	row := r.db.QueryRowxContext(ctx, query, examID, models.ApprovalApproved, models.ApprovalPending)
	if err = row.Scan(&total, &approved, &pending); err != nil {
		return 0, 0, 0, fmt.Errorf("count exam results: %w", err)
	}
	return total, approved, pending, nil
}

// CountStudentsWithHigherAverage counts classmates whose mean approved
// average beats the given one, computed from the canonical store in the same
// pass. Competition position = this count + 1.
func (r *ResultRepository) CountStudentsWithHigherAverage(ctx context.Context, examID, classID string, average float64) (int, error) {
	const query = `SELECT COUNT(*) FROM (
            SELECT student_id FROM exam_results
            WHERE exam_id = $1 AND class_id = $2 AND approval_status = $3
            GROUP BY student_id HAVING AVG(average_score) > $4
        ) better`
	var count int
	if err := r.db.GetContext(ctx, &count, query, examID, classID, models.ApprovalApproved, average); err != nil {
		return 0, fmt.Errorf("count higher averages: %w", err)
	}
	return count, nil
}

// ApprovedStudentCount counts students with at least one approved result in
// the class for the exam.
func (r *ResultRepository) ApprovedStudentCount(ctx context.Context, examID, classID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_id) FROM exam_results
        WHERE exam_id = $1 AND class_id = $2 AND approval_status = $3`
	var count int
	if err := r.db.GetContext(ctx, &count, query, examID, classID, models.ApprovalApproved); err != nil {
		return 0, fmt.Errorf("count approved students: %w", err)
	}
	return count, nil
}

// PublishByExam flips is_published on every approved result of the exam.
func (r *ResultRepository) PublishByExam(ctx context.Context, examID string) error {
	const query = `UPDATE exam_results SET is_published = TRUE, updated_at = $2
        WHERE exam_id = $1 AND approval_status = $3`
	if _, err := r.db.ExecContext(ctx, query, examID, time.Now().UTC(), models.ApprovalApproved); err != nil {
		return fmt.Errorf("publish exam results: %w", err)
	}
	return nil
}
