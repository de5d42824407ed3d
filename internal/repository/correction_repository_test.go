package repository

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectionApproveCommitsStatusAndScoresTogether(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE grade_update_requests SET status").
		WillReturnRows(sqlmock.NewRows([]string{"result_id", "proposed_test_score", "proposed_exam_score"}).
			AddRow("r1", 70.0, 80.0))
	mock.ExpectExec("UPDATE exam_results SET test_score").
		WithArgs("r1", 70.0, 80.0, sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ok, err := repo.ApproveAndApplyScores(context.Background(), "s1", "req-1", "officer-1", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionApproveRollsBackOnFailedScoreWrite(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE grade_update_requests SET status").
		WillReturnRows(sqlmock.NewRows([]string{"result_id", "proposed_test_score", "proposed_exam_score"}).
			AddRow("r1", 70.0, 80.0))
	mock.ExpectExec("UPDATE exam_results SET test_score").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	ok, err := repo.ApproveAndApplyScores(context.Background(), "s1", "req-1", "officer-1", nil)
	require.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCorrectionApproveAlreadyReviewedMatchesNothing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCorrectionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE grade_update_requests SET status").
		WillReturnRows(sqlmock.NewRows([]string{"result_id", "proposed_test_score", "proposed_exam_score"}))
	mock.ExpectRollback()

	ok, err := repo.ApproveAndApplyScores(context.Background(), "s1", "req-1", "officer-1", nil)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}
