package models

import "time"

// SubjectRanking is one student's position within a subject for a class and
// exam. The whole (exam, subject, class) set is replaced on recompute.
type SubjectRanking struct {
	ID            string    `db:"id" json:"id"`
	SchoolID      string    `db:"school_id" json:"school_id"`
	ExamID        string    `db:"exam_id" json:"exam_id"`
	SubjectID     string    `db:"subject_id" json:"subject_id"`
	ClassID       string    `db:"class_id" json:"class_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	Score         float64   `db:"score" json:"score"`
	Position      int       `db:"position" json:"position"`
	TotalStudents int       `db:"total_students" json:"total_students"`
	IsPublished   bool      `db:"is_published" json:"is_published"`
	ComputedAt    time.Time `db:"computed_at" json:"computed_at"`
}

// ClassStanding is the computed cross-subject standing of one student, the
// input to class position assignment. It is persisted onto the student's
// ResultSummary rather than in its own table.
type ClassStanding struct {
	StudentID      string  `json:"student_id"`
	OverallAverage float64 `json:"overall_average"`
	TotalObtained  float64 `json:"total_obtained"`
	SubjectCount   int     `json:"subject_count"`
	Position       int     `json:"position"`
	TotalStudents  int     `json:"total_students"`
}
