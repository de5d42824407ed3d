package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Emino08/school-results-api/internal/models"
)

const studentColumns = `id, school_id, class_id, full_name, admission_no, active, created_at`

// StudentRepository reads the student roster for pin fan-out and exports.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new student repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID returns a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ListByClass returns active students in one class.
func (r *StudentRepository) ListByClass(ctx context.Context, schoolID, classID string) ([]models.Student, error) {
	query := fmt.Sprintf(`SELECT %s FROM students WHERE school_id = $1 AND class_id = $2 AND active = TRUE
        ORDER BY full_name`, studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, schoolID, classID); err != nil {
		return nil, fmt.Errorf("list students by class: %w", err)
	}
	return students, nil
}

// ListClassIDs returns every class that has active students in the school.
func (r *StudentRepository) ListClassIDs(ctx context.Context, schoolID string) ([]string, error) {
	const query = `SELECT DISTINCT class_id FROM students WHERE school_id = $1 AND active = TRUE ORDER BY class_id`
	var classIDs []string
	if err := r.db.SelectContext(ctx, &classIDs, query, schoolID); err != nil {
		return nil, fmt.Errorf("list class ids: %w", err)
	}
	return classIDs, nil
}
