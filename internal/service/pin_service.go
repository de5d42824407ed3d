package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Emino08/school-results-api/internal/models"
	"github.com/Emino08/school-results-api/internal/repository"
	appErrors "github.com/Emino08/school-results-api/pkg/errors"
	"github.com/Emino08/school-results-api/pkg/jobs"
	"github.com/Emino08/school-results-api/pkg/pincode"
)

// maxCodeRetries bounds how many fresh codes the issuer tries on collision.
const maxCodeRetries = 5

// JobTypePinBatch identifies a queued per-class pin issuance job.
const JobTypePinBatch = "pin_batch_issue"

type pinRepo interface {
	Create(ctx context.Context, pin *models.ResultPin) error
	FindByCodeAndStudent(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error)
	Consume(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error)
	Deactivate(ctx context.Context, schoolID, id string) (bool, error)
	ListByStudent(ctx context.Context, schoolID, studentID string) ([]models.ResultPin, error)
}

type pinStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByClass(ctx context.Context, schoolID, classID string) ([]models.Student, error)
	ListClassIDs(ctx context.Context, schoolID string) ([]string, error)
}

type pinMetrics interface {
	IncPinCheck(outcome string)
}

type batchEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// IssuePinRequest creates one pin for one student.
type IssuePinRequest struct {
	SchoolID   string     `json:"-"`
	StudentID  string     `json:"student_id" validate:"required"`
	MaxChecks  int        `json:"max_checks" validate:"omitempty,gte=1,lte=100"`
	ExpiresAt  *time.Time `json:"expires_at"`
	ExpiryDays int        `json:"expiry_days" validate:"omitempty,gte=1"`
}

// PinBatchPayload is the queue payload for one class worth of pins.
type PinBatchPayload struct {
	SchoolID  string     `json:"school_id"`
	ClassID   string     `json:"class_id"`
	MaxChecks int        `json:"max_checks"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// BatchIssueReport summarises a fan-out over classes.
type BatchIssueReport struct {
	ClassesQueued int      `json:"classes_queued"`
	FailedClasses []string `json:"failed_classes,omitempty"`
}

// PinService issues and spends result-check pins.
type PinService struct {
	pins       pinRepo
	students   pinStudentReader
	queue      batchEnqueuer
	metrics    pinMetrics
	codeLength int
	maxChecks  int
	expiryDays int
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewPinService constructs PinService. Queue and metrics may be nil.
func NewPinService(pins pinRepo, students pinStudentReader, queue batchEnqueuer, metrics pinMetrics, codeLength, maxChecks, expiryDays int, validate *validator.Validate, logger *zap.Logger) *PinService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if codeLength <= 0 {
		codeLength = pincode.DefaultLength
	}
	if maxChecks <= 0 {
		maxChecks = 5
	}
	return &PinService{
		pins:       pins,
		students:   students,
		queue:      queue,
		metrics:    metrics,
		codeLength: codeLength,
		maxChecks:  maxChecks,
		expiryDays: expiryDays,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetQueue attaches the batch queue after construction. The queue's handler
// is this service, so the two cannot be built in one step.
func (s *PinService) SetQueue(queue batchEnqueuer) {
	s.queue = queue
}

// Issue creates a pin for a single student, retrying code generation on a
// school-scoped collision.
func (s *PinService) Issue(ctx context.Context, req IssuePinRequest) (*models.ResultPin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid pin payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return s.issueOne(ctx, req.SchoolID, req.StudentID, s.resolveMaxChecks(req.MaxChecks), s.resolveExpiry(req.ExpiresAt, req.ExpiryDays))
}

// IssueForClass creates pins for every student in a class synchronously.
func (s *PinService) IssueForClass(ctx context.Context, schoolID, classID string, maxChecks int, expiresAt *time.Time) ([]models.ResultPin, error) {
	students, err := s.students.ListByClass(ctx, schoolID, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	checks := s.resolveMaxChecks(maxChecks)
	expiry := s.resolveExpiry(expiresAt, 0)
	issued := make([]models.ResultPin, 0, len(students))
	for _, st := range students {
		pin, err := s.issueOne(ctx, schoolID, st.ID, checks, expiry)
		if err != nil {
			return issued, err
		}
		issued = append(issued, *pin)
	}
	s.logger.Info("issued class pins",
		zap.String("class_id", classID),
		zap.Int("count", len(issued)))
	return issued, nil
}

// IssueForAllStudents fans out one background job per class so a school-wide
// issuance does not block the request.
func (s *PinService) IssueForAllStudents(ctx context.Context, schoolID string, maxChecks int, expiresAt *time.Time) (*BatchIssueReport, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "pin batch queue is not configured")
	}
	classIDs, err := s.students.ListClassIDs(ctx, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	report := &BatchIssueReport{}
	payloadChecks := s.resolveMaxChecks(maxChecks)
	for _, classID := range classIDs {
		job := jobs.Job{
			ID:   uuid.NewString(),
			Type: JobTypePinBatch,
			Payload: PinBatchPayload{
				SchoolID:  schoolID,
				ClassID:   classID,
				MaxChecks: payloadChecks,
				ExpiresAt: expiresAt,
			},
		}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Error("failed to enqueue pin batch",
				zap.String("class_id", classID), zap.Error(err))
			report.FailedClasses = append(report.FailedClasses, classID)
			continue
		}
		report.ClassesQueued++
	}
	return report, nil
}

// HandleBatchJob is the queue handler for JobTypePinBatch jobs.
func (s *PinService) HandleBatchJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(PinBatchPayload)
	if !ok {
		s.logger.Error("unexpected pin batch payload", zap.String("job_id", job.ID))
		return nil
	}
	if _, err := s.IssueForClass(ctx, payload.SchoolID, payload.ClassID, payload.MaxChecks, payload.ExpiresAt); err != nil {
		return err
	}
	return nil
}

// ValidateAndConsume spends one check from the pin, classifying a miss so the
// caller can tell an exhausted pin from an expired or revoked one. Lookup
// callers must pass all visibility gates before calling this.
func (s *PinService) ValidateAndConsume(ctx context.Context, pinCode, studentID string) (*models.ResultPin, error) {
	if !pincode.Valid(pinCode, s.codeLength) {
		s.incCheck("invalid")
		return nil, appErrors.Clone(appErrors.ErrValidation, "malformed pin code")
	}
	pin, err := s.pins.Consume(ctx, pinCode, studentID)
	if err == nil {
		s.incCheck("consumed")
		return pin, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		s.incCheck("error")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume pin")
	}
	return nil, s.classifyMiss(ctx, pinCode, studentID)
}

// classifyMiss distinguishes why the guarded consume matched nothing.
func (s *PinService) classifyMiss(ctx context.Context, pinCode, studentID string) error {
	existing, err := s.pins.FindByCodeAndStudent(ctx, pinCode, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.incCheck("not_found")
			return appErrors.Clone(appErrors.ErrNotFound, "pin not found")
		}
		s.incCheck("error")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect pin")
	}
	switch existing.Status(s.now()) {
	case models.PinStatusExhausted:
		s.incCheck("exhausted")
		return appErrors.Clone(appErrors.ErrTokenExhausted, "pin has no remaining checks")
	case models.PinStatusExpired:
		s.incCheck("expired")
		return appErrors.Clone(appErrors.ErrTokenExpired, "pin has expired")
	default:
		s.incCheck("inactive")
		return appErrors.Clone(appErrors.ErrTokenInactive, "pin is inactive")
	}
}

// CheckStatus reports a pin's state without spending a check.
func (s *PinService) CheckStatus(ctx context.Context, pinCode, studentID string) (*models.PinStatusReport, error) {
	pin, err := s.pins.FindByCodeAndStudent(ctx, pinCode, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "pin not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pin")
	}
	return &models.PinStatusReport{
		Status:          pin.Status(s.now()),
		RemainingChecks: pin.RemainingChecks(),
		MaxChecks:       pin.MaxChecks,
		ExpiresAt:       pin.ExpiresAt,
		LastUsedAt:      pin.LastUsedAt,
	}, nil
}

// Deactivate revokes a pin before its budget or expiry runs out. A pin
// outside the caller's school reads as not found.
func (s *PinService) Deactivate(ctx context.Context, schoolID, pinID string) error {
	ok, err := s.pins.Deactivate(ctx, schoolID, pinID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate pin")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "pin not found")
	}
	return nil
}

// ListByStudent returns a student's pins for administrative review.
func (s *PinService) ListByStudent(ctx context.Context, schoolID, studentID string) ([]models.ResultPin, error) {
	pins, err := s.pins.ListByStudent(ctx, schoolID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pins")
	}
	return pins, nil
}

func (s *PinService) issueOne(ctx context.Context, schoolID, studentID string, maxChecks int, expiresAt *time.Time) (*models.ResultPin, error) {
	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		code, err := pincode.Generate(s.codeLength)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate pin code")
		}
		pin := &models.ResultPin{
			SchoolID:  schoolID,
			StudentID: studentID,
			PinCode:   code,
			MaxChecks: maxChecks,
			IsActive:  true,
			ExpiresAt: expiresAt,
		}
		err = s.pins.Create(ctx, pin)
		if err == nil {
			return pin, nil
		}
		if errors.Is(err, repository.ErrPinCodeTaken) {
			continue
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create pin")
	}
	return nil, appErrors.Clone(appErrors.ErrInternal, "pin code space exhausted, retry")
}

func (s *PinService) resolveMaxChecks(requested int) int {
	if requested > 0 {
		return requested
	}
	return s.maxChecks
}

func (s *PinService) resolveExpiry(explicit *time.Time, days int) *time.Time {
	if explicit != nil {
		return explicit
	}
	if days <= 0 {
		days = s.expiryDays
	}
	if days <= 0 {
		return nil
	}
	t := s.now().AddDate(0, 0, days)
	return &t
}

func (s *PinService) incCheck(outcome string) {
	if s.metrics != nil {
		s.metrics.IncPinCheck(outcome)
	}
}
