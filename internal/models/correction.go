package models

import "time"

// CorrectionStatus is the review state of a grade update request. It is
// orthogonal to the result's own approval status: an approved correction
// rewrites an approved result's scores without re-opening its approval.
type CorrectionStatus string

const (
	CorrectionPending  CorrectionStatus = "PENDING"
	CorrectionApproved CorrectionStatus = "APPROVED"
	CorrectionRejected CorrectionStatus = "REJECTED"
)

// GradeUpdateRequest proposes new scores for an already-approved result. At
// most one pending request may exist per result.
type GradeUpdateRequest struct {
	ID                string           `db:"id" json:"id"`
	SchoolID          string           `db:"school_id" json:"school_id"`
	ResultID          string           `db:"result_id" json:"result_id"`
	ProposedTestScore float64          `db:"proposed_test_score" json:"proposed_test_score"`
	ProposedExamScore float64          `db:"proposed_exam_score" json:"proposed_exam_score"`
	Reason            string           `db:"reason" json:"reason"`
	Status            CorrectionStatus `db:"status" json:"status"`
	RequestedBy       string           `db:"requested_by" json:"requested_by"`
	ReviewedBy        *string          `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote        *string          `db:"review_note" json:"review_note,omitempty"`
	RequestedAt       time.Time        `db:"requested_at" json:"requested_at"`
	ReviewedAt        *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
}
