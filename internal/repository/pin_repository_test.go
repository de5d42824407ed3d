package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Emino08/school-results-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func pinRows(usedChecks int, active bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "school_id", "student_id", "pin_code", "max_checks", "used_checks",
		"is_active", "expires_at", "last_used_at", "created_at"}).
		AddRow("p1", "s1", "stu1", "ACDE2346", 5, usedChecks, active, nil, now, now)
}

func TestPinCreateReportsCodeCollision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPinRepository(db)

	mock.ExpectExec("INSERT INTO result_pins").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.ResultPin{
		SchoolID: "s1", StudentID: "stu1", PinCode: "ACDE2346", MaxChecks: 5, IsActive: true,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPinCodeTaken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinConsumeReturnsUpdatedRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPinRepository(db)

	mock.ExpectQuery("UPDATE result_pins").
		WillReturnRows(pinRows(3, true))

	pin, err := repo.Consume(context.Background(), "ACDE2346", "stu1")
	require.NoError(t, err)
	assert.Equal(t, 3, pin.UsedChecks)
	assert.Equal(t, 2, pin.RemainingChecks())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinConsumeNoConsumableRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPinRepository(db)

	mock.ExpectQuery("UPDATE result_pins").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Consume(context.Background(), "ACDE2346", "stu1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPinFindByCodeAndStudent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPinRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM result_pins WHERE pin_code").
		WithArgs("ACDE2346", "stu1").
		WillReturnRows(pinRows(5, false))

	pin, err := repo.FindByCodeAndStudent(context.Background(), "ACDE2346", "stu1")
	require.NoError(t, err)
	assert.Equal(t, models.PinStatusExhausted, pin.Status(time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
