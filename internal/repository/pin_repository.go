package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Emino08/school-results-api/internal/models"
)

const pinColumns = `id, school_id, student_id, pin_code, max_checks, used_checks,
        is_active, expires_at, last_used_at, created_at`

// ErrPinCodeTaken signals an admin-scoped pin code collision; the issuer
// retries with a fresh code.
var ErrPinCodeTaken = fmt.Errorf("pin code already taken")

// PinRepository persists result-check pins.
type PinRepository struct {
	db *sqlx.DB
}

// NewPinRepository creates a new pin repository.
func NewPinRepository(db *sqlx.DB) *PinRepository {
	return &PinRepository{db: db}
}

// Create inserts a new pin. A unique violation on (school_id, pin_code) is
// reported as ErrPinCodeTaken so the caller can regenerate.
func (r *PinRepository) Create(ctx context.Context, pin *models.ResultPin) error {
	if pin.ID == "" {
		pin.ID = uuid.NewString()
	}
	if pin.CreatedAt.IsZero() {
		pin.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO result_pins (id, school_id, student_id, pin_code, max_checks, used_checks,
            is_active, expires_at, created_at)
        VALUES (:id, :school_id, :student_id, :pin_code, :max_checks, :used_checks,
            :is_active, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, pin); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrPinCodeTaken
		}
		return fmt.Errorf("insert result pin: %w", err)
	}
	return nil
}

// FindByCodeAndStudent returns the pin matching a code+student pair.
func (r *PinRepository) FindByCodeAndStudent(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error) {
	query := fmt.Sprintf("SELECT %s FROM result_pins WHERE pin_code = $1 AND student_id = $2", pinColumns)
	var pin models.ResultPin
	if err := r.db.GetContext(ctx, &pin, query, pinCode, studentID); err != nil {
		return nil, err
	}
	return &pin, nil
}

// Consume atomically spends one check. The guarded UPDATE enforces the whole
// budget in a single statement so two concurrent uses of a near-exhausted pin
// can never both succeed; reaching the budget deactivates the pin in the same
// update. Returns the post-consumption row, or sql.ErrNoRows when no
// consumable pin matched.
func (r *PinRepository) Consume(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error) {
	query := fmt.Sprintf(`UPDATE result_pins
        SET used_checks = used_checks + 1,
            is_active = CASE WHEN used_checks + 1 >= max_checks THEN FALSE ELSE is_active END,
            last_used_at = $3
        WHERE pin_code = $1 AND student_id = $2
            AND is_active = TRUE
            AND used_checks < max_checks
            AND (expires_at IS NULL OR expires_at > $3)
        RETURNING %s`, pinColumns)
	var pin models.ResultPin
	if err := r.db.GetContext(ctx, &pin, query, pinCode, studentID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &pin, nil
}

// Deactivate revokes a pin administratively. Returns false when no pin with
// that ID exists in the school.
func (r *PinRepository) Deactivate(ctx context.Context, schoolID, id string) (bool, error) {
	const query = `UPDATE result_pins SET is_active = FALSE WHERE id = $1 AND school_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, schoolID)
	if err != nil {
		return false, fmt.Errorf("deactivate result pin: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate result pin: %w", err)
	}
	return affected > 0, nil
}

// ListByStudent returns a student's pins, newest first.
func (r *PinRepository) ListByStudent(ctx context.Context, schoolID, studentID string) ([]models.ResultPin, error) {
	query := fmt.Sprintf(`SELECT %s FROM result_pins WHERE school_id = $1 AND student_id = $2
        ORDER BY created_at DESC`, pinColumns)
	var pins []models.ResultPin
	if err := r.db.SelectContext(ctx, &pins, query, schoolID, studentID); err != nil {
		return nil, fmt.Errorf("list result pins: %w", err)
	}
	return pins, nil
}
