package models

import "time"

// ApprovalStatus tracks the officer gate on an uploaded result.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
	ApprovalRejected ApprovalStatus = "REJECTED"
)

// ExamResult is the canonical per-(exam, student, subject) mark record.
// TotalScore and AverageScore are always derived from the two components,
// never accepted as input.
type ExamResult struct {
	ID                   string         `db:"id" json:"id"`
	SchoolID             string         `db:"school_id" json:"school_id"`
	ExamID               string         `db:"exam_id" json:"exam_id"`
	StudentID            string         `db:"student_id" json:"student_id"`
	SubjectID            string         `db:"subject_id" json:"subject_id"`
	ClassID              string         `db:"class_id" json:"class_id"`
	TestScore            float64        `db:"test_score" json:"test_score"`
	ExamScore            float64        `db:"exam_score" json:"exam_score"`
	TotalScore           float64        `db:"total_score" json:"total_score"`
	AverageScore         float64        `db:"average_score" json:"average_score"`
	ApprovalStatus       ApprovalStatus `db:"approval_status" json:"approval_status"`
	UploadedBy           string         `db:"uploaded_by" json:"uploaded_by"`
	ApprovedBy           *string        `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt           *time.Time     `db:"approved_at" json:"approved_at,omitempty"`
	RejectedBy           *string        `db:"rejected_by" json:"rejected_by,omitempty"`
	RejectedAt           *time.Time     `db:"rejected_at" json:"rejected_at,omitempty"`
	RejectionReason      *string        `db:"rejection_reason" json:"rejection_reason,omitempty"`
	SubjectPosition      *int           `db:"subject_position" json:"subject_position,omitempty"`
	SubjectTotalStudents *int           `db:"subject_total_students" json:"subject_total_students,omitempty"`
	IsPublished          bool           `db:"is_published" json:"is_published"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// ResultFilter narrows result queries. SchoolID is mandatory on
// staff-facing lists; rows never cross the school boundary.
type ResultFilter struct {
	SchoolID  string
	ExamID    string
	StudentID string
	SubjectID string
	ClassID   string
	Status    ApprovalStatus
}
