package models

import "time"

// ResultPublication is the per-exam half of the publication AND-gate. A
// summary is visible only when its own is_published flag is set AND the
// exam's publication row is active with publication_date in the past.
type ResultPublication struct {
	ID              string    `db:"id" json:"id"`
	SchoolID        string    `db:"school_id" json:"school_id"`
	ExamID          string    `db:"exam_id" json:"exam_id"`
	PublicationDate time.Time `db:"publication_date" json:"publication_date"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	TotalStudents   int       `db:"total_students" json:"total_students"`
	ApprovedResults int       `db:"approved_results" json:"approved_results"`
	PendingResults  int       `db:"pending_results" json:"pending_results"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
