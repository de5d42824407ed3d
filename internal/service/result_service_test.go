package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
)

type mockResultRepo struct {
	byID map[string]models.ExamResult
}

func (m *mockResultRepo) key(schoolID, examID, studentID, subjectID string) string {
	return schoolID + "|" + examID + "|" + studentID + "|" + subjectID
}

func (m *mockResultRepo) Upsert(ctx context.Context, result *models.ExamResult) (bool, error) {
	if m.byID == nil {
		m.byID = make(map[string]models.ExamResult)
	}
	if result.ID == "" {
		result.ID = m.key(result.SchoolID, result.ExamID, result.StudentID, result.SubjectID)
	}
	if existing, ok := m.byID[result.ID]; ok && existing.ApprovalStatus == models.ApprovalApproved {
		return false, nil
	}
	result.ApprovedBy = nil
	result.ApprovedAt = nil
	result.RejectedBy = nil
	result.RejectionReason = nil
	m.byID[result.ID] = *result
	return true, nil
}

func (m *mockResultRepo) FindByID(ctx context.Context, schoolID, id string) (*models.ExamResult, error) {
	if r, ok := m.byID[id]; ok && r.SchoolID == schoolID {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockResultRepo) FindByKey(ctx context.Context, schoolID, examID, studentID, subjectID string) (*models.ExamResult, error) {
	return m.FindByID(ctx, schoolID, m.key(schoolID, examID, studentID, subjectID))
}

func (m *mockResultRepo) List(ctx context.Context, filter models.ResultFilter) ([]models.ExamResult, error) {
	var out []models.ExamResult
	for _, r := range m.byID {
		if filter.SchoolID != "" && r.SchoolID != filter.SchoolID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockResultRepo) Approve(ctx context.Context, schoolID, id, officerID string) (bool, error) {
	r, ok := m.byID[id]
	if !ok || r.SchoolID != schoolID || r.ApprovalStatus != models.ApprovalPending {
		return false, nil
	}
	now := time.Now().UTC()
	r.ApprovalStatus = models.ApprovalApproved
	r.ApprovedBy = &officerID
	r.ApprovedAt = &now
	m.byID[id] = r
	return true, nil
}

func (m *mockResultRepo) Reject(ctx context.Context, schoolID, id, officerID, reason string) (bool, error) {
	r, ok := m.byID[id]
	if !ok || r.SchoolID != schoolID || r.ApprovalStatus != models.ApprovalPending {
		return false, nil
	}
	now := time.Now().UTC()
	r.ApprovalStatus = models.ApprovalRejected
	r.RejectedBy = &officerID
	r.RejectedAt = &now
	r.RejectionReason = &reason
	m.byID[id] = r
	return true, nil
}

// staleResultRepo serves a stale pending snapshot from FindByKey while the
// backing store already holds the current row. It reproduces an approval
// landing between the submit pre-check and the write.
type staleResultRepo struct {
	*mockResultRepo
	stale *models.ExamResult
}

func (m *staleResultRepo) FindByKey(ctx context.Context, schoolID, examID, studentID, subjectID string) (*models.ExamResult, error) {
	return m.stale, nil
}

func submitReq(testScore, examScore float64) SubmitMarkRequest {
	return SubmitMarkRequest{
		SchoolID: "school", TeacherID: "teacher",
		ExamID: "exam", StudentID: "stu", SubjectID: "math", ClassID: "c1",
		TestScore: testScore, ExamScore: examScore,
	}
}

func TestSubmitDerivesTotals(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	result, err := svc.Submit(context.Background(), submitReq(80, 90))
	require.NoError(t, err)
	assert.Equal(t, 170.0, result.TotalScore)
	assert.Equal(t, 85.0, result.AverageScore)
	assert.Equal(t, models.ApprovalPending, result.ApprovalStatus)
	assert.Equal(t, "teacher", result.UploadedBy)
}

func TestSubmitRejectsOutOfRangeScores(t *testing.T) {
	svc := NewResultService(&mockResultRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Submit(context.Background(), submitReq(120, 50))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmitOverwritesPending(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	first, err := svc.Submit(context.Background(), submitReq(50, 60))
	require.NoError(t, err)
	second, err := svc.Submit(context.Background(), submitReq(70, 80))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 75.0, second.AverageScore)
	assert.Len(t, repo.byID, 1)
}

func TestSubmitBlockedOnApproved(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	result, err := svc.Submit(context.Background(), submitReq(50, 60))
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), "school", result.ID, "officer")
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), submitReq(90, 90))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestSubmitBlockedWhenApprovalRacesPrecheck(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	result, err := svc.Submit(context.Background(), submitReq(50, 60))
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), "school", result.ID, "officer")
	require.NoError(t, err)

	// The pre-check saw the row while it was still pending, the write lands
	// after the approval. The guarded upsert must refuse it.
	stale := repo.byID[result.ID]
	stale.ApprovalStatus = models.ApprovalPending
	racing := NewResultService(&staleResultRepo{mockResultRepo: repo, stale: &stale}, validator.New(), zap.NewNop())

	_, err = racing.Submit(context.Background(), submitReq(90, 90))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.ApprovalApproved, repo.byID[result.ID].ApprovalStatus)
	assert.Equal(t, 110.0, repo.byID[result.ID].TotalScore)
}

func TestResubmitAfterRejectionReturnsToPending(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	result, err := svc.Submit(context.Background(), submitReq(50, 60))
	require.NoError(t, err)
	rejected, err := svc.Reject(context.Background(), "school", result.ID, "officer", RejectResultRequest{Reason: "wrong sheet"})
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalRejected, rejected.ApprovalStatus)

	resubmitted, err := svc.Submit(context.Background(), submitReq(70, 70))
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalPending, resubmitted.ApprovalStatus)
	assert.Nil(t, repo.byID[result.ID].RejectionReason)
}

func TestApproveNonPendingIsConflict(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	result, err := svc.Submit(context.Background(), submitReq(50, 60))
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), "school", result.ID, "officer")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), "school", result.ID, "officer")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestApproveMissingResultIsNotFound(t *testing.T) {
	svc := NewResultService(&mockResultRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Approve(context.Background(), "school", "missing", "officer")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApproveForeignSchoolResultIsNotFound(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	result, err := svc.Submit(context.Background(), submitReq(50, 60))
	require.NoError(t, err)

	// An officer from another school holds a valid result ID. The row must
	// read as missing, never as a reviewable result.
	_, err = svc.Approve(context.Background(), "other-school", result.ID, "officer")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.ApprovalPending, repo.byID[result.ID].ApprovalStatus)

	_, err = svc.Get(context.Background(), "other-school", result.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListScopedToSchool(t *testing.T) {
	repo := &mockResultRepo{}
	svc := NewResultService(repo, validator.New(), zap.NewNop())

	_, err := svc.Submit(context.Background(), submitReq(50, 60))
	require.NoError(t, err)
	foreign := submitReq(40, 40)
	foreign.SchoolID = "other-school"
	_, err = svc.Submit(context.Background(), foreign)
	require.NoError(t, err)

	results, err := svc.List(context.Background(), models.ResultFilter{SchoolID: "school"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "school", results[0].SchoolID)
}

func TestRejectRequiresReason(t *testing.T) {
	svc := NewResultService(&mockResultRepo{}, validator.New(), zap.NewNop())

	_, err := svc.Reject(context.Background(), "school", "any", "officer", RejectResultRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
