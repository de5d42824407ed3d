package models

import "time"

// Student is the minimal roster projection this core needs: pin fan-out and
// export rendering. Full student management lives outside this service.
type Student struct {
	ID          string    `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	FullName    string    `db:"full_name" json:"full_name"`
	AdmissionNo string    `db:"admission_no" json:"admission_no"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
