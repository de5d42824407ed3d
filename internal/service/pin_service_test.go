package service

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	"github.com/Emino08/school-results-api/internal/repository"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/jobs"
)

// mockPinRepo reproduces the guarded-update budget semantics in memory.
type mockPinRepo struct {
	mu          sync.Mutex
	pins        map[string]models.ResultPin
	failCreates int
}

func (m *mockPinRepo) Create(ctx context.Context, pin *models.ResultPin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreates > 0 {
		m.failCreates--
		return repository.ErrPinCodeTaken
	}
	if m.pins == nil {
		m.pins = make(map[string]models.ResultPin)
	}
	pin.ID = pin.PinCode
	m.pins[pin.PinCode+"|"+pin.StudentID] = *pin
	return nil
}

func (m *mockPinRepo) FindByCodeAndStudent(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pin, ok := m.pins[pinCode+"|"+studentID]; ok {
		return &pin, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPinRepo) Consume(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pin, ok := m.pins[pinCode+"|"+studentID]
	now := time.Now().UTC()
	if !ok || !pin.IsActive || pin.UsedChecks >= pin.MaxChecks ||
		(pin.ExpiresAt != nil && !pin.ExpiresAt.After(now)) {
		return nil, sql.ErrNoRows
	}
	pin.UsedChecks++
	if pin.UsedChecks >= pin.MaxChecks {
		pin.IsActive = false
	}
	pin.LastUsedAt = &now
	m.pins[pinCode+"|"+studentID] = pin
	return &pin, nil
}

func (m *mockPinRepo) Deactivate(ctx context.Context, schoolID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, pin := range m.pins {
		if pin.ID == id && pin.SchoolID == schoolID {
			pin.IsActive = false
			m.pins[key] = pin
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPinRepo) ListByStudent(ctx context.Context, schoolID, studentID string) ([]models.ResultPin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ResultPin
	for _, pin := range m.pins {
		if pin.SchoolID == schoolID && pin.StudentID == studentID {
			out = append(out, pin)
		}
	}
	return out, nil
}

type mockStudentReader struct {
	students map[string]models.Student
	classes  map[string][]string
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := m.students[id]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentReader) ListByClass(ctx context.Context, schoolID, classID string) ([]models.Student, error) {
	var out []models.Student
	for _, id := range m.classes[classID] {
		out = append(out, m.students[id])
	}
	return out, nil
}

func (m *mockStudentReader) ListClassIDs(ctx context.Context, schoolID string) ([]string, error) {
	var out []string
	for classID := range m.classes {
		out = append(out, classID)
	}
	return out, nil
}

type mockEnqueuer struct {
	jobs []jobs.Job
}

func (m *mockEnqueuer) Enqueue(job jobs.Job) error {
	m.jobs = append(m.jobs, job)
	return nil
}

func newPinFixture(t *testing.T) (*PinService, *mockPinRepo, *mockStudentReader) {
	t.Helper()
	pins := &mockPinRepo{}
	students := &mockStudentReader{
		students: map[string]models.Student{
			"stu1": {ID: "stu1", SchoolID: "school", ClassID: "c1", FullName: "Ada"},
			"stu2": {ID: "stu2", SchoolID: "school", ClassID: "c1", FullName: "Ben"},
		},
		classes: map[string][]string{"c1": {"stu1", "stu2"}},
	}
	svc := NewPinService(pins, students, nil, nil, 8, 3, 0, validator.New(), zap.NewNop())
	return svc, pins, students
}

func TestIssueGeneratesValidCode(t *testing.T) {
	svc, _, _ := newPinFixture(t)

	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)
	assert.Len(t, pin.PinCode, 8)
	assert.Equal(t, 3, pin.MaxChecks)
	assert.True(t, pin.IsActive)
	assert.Nil(t, pin.ExpiresAt)
}

func TestIssueRetriesOnCodeCollision(t *testing.T) {
	svc, pins, _ := newPinFixture(t)
	pins.failCreates = 2

	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)
	assert.NotEmpty(t, pin.PinCode)
	assert.Zero(t, pins.failCreates)
}

func TestIssueUnknownStudent(t *testing.T) {
	svc, _, _ := newPinFixture(t)

	_, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConsumeSpendsExactBudget(t *testing.T) {
	svc, _, _ := newPinFixture(t)
	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)

	for i := 1; i <= pin.MaxChecks; i++ {
		consumed, err := svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu1")
		require.NoError(t, err, "check %d should succeed", i)
		assert.Equal(t, pin.MaxChecks-i, consumed.RemainingChecks())
	}

	// The spend that reached the budget deactivated the pin in the same
	// update; the next attempt is classified as exhausted.
	_, err = svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExhausted.Code, appErrors.FromError(err).Code)
}

func TestConsumeConcurrentSpendsExactBudget(t *testing.T) {
	svc, _, _ := newPinFixture(t)
	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)

	// Far more callers than the budget. The guarded consume must admit
	// exactly max_checks of them, never one more.
	const callers = 20
	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu1"); err == nil {
				atomic.AddInt64(&successes, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(pin.MaxChecks), successes)
	_, err = svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExhausted.Code, appErrors.FromError(err).Code)
}

func TestConsumeExpiredPin(t *testing.T) {
	svc, pins, _ := newPinFixture(t)
	past := time.Now().UTC().Add(-time.Hour)
	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1", ExpiresAt: &past})
	require.NoError(t, err)
	require.NotNil(t, pins.pins)

	_, err = svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErrors.FromError(err).Code)
}

func TestConsumeDeactivatedPin(t *testing.T) {
	svc, _, _ := newPinFixture(t)
	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(context.Background(), "school", pin.ID))

	_, err = svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTokenInactive.Code, appErrors.FromError(err).Code)
}

func TestDeactivateForeignSchoolPinIsNotFound(t *testing.T) {
	svc, _, _ := newPinFixture(t)
	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)

	err = svc.Deactivate(context.Background(), "other-school", pin.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// The pin still works for its own school.
	_, err = svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu1")
	require.NoError(t, err)
}

func TestConsumeWrongStudentIsNotFound(t *testing.T) {
	svc, _, _ := newPinFixture(t)
	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)

	_, err = svc.ValidateAndConsume(context.Background(), pin.PinCode, "stu2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConsumeMalformedCode(t *testing.T) {
	svc, _, _ := newPinFixture(t)

	_, err := svc.ValidateAndConsume(context.Background(), "bad-code!", "stu1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCheckStatusDoesNotSpend(t *testing.T) {
	svc, _, _ := newPinFixture(t)
	pin, err := svc.Issue(context.Background(), IssuePinRequest{SchoolID: "school", StudentID: "stu1"})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		report, err := svc.CheckStatus(context.Background(), pin.PinCode, "stu1")
		require.NoError(t, err)
		assert.Equal(t, models.PinStatusActive, report.Status)
		assert.Equal(t, pin.MaxChecks, report.RemainingChecks)
	}
}

func TestIssueForClass(t *testing.T) {
	svc, _, _ := newPinFixture(t)

	issued, err := svc.IssueForClass(context.Background(), "school", "c1", 0, nil)
	require.NoError(t, err)
	assert.Len(t, issued, 2)
}

func TestIssueForAllStudentsEnqueuesPerClass(t *testing.T) {
	svc, _, students := newPinFixture(t)
	students.classes["c2"] = []string{"stu2"}
	queue := &mockEnqueuer{}
	svc.SetQueue(queue)

	report, err := svc.IssueForAllStudents(context.Background(), "school", 10, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.ClassesQueued)
	assert.Empty(t, report.FailedClasses)
	require.Len(t, queue.jobs, 2)
	payload, ok := queue.jobs[0].Payload.(PinBatchPayload)
	require.True(t, ok)
	assert.Equal(t, 10, payload.MaxChecks)
}
