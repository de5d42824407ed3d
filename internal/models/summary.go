package models

import "time"

// ResultSummary is the per-(exam, student) roll-up and the unit of
// publication. AverageScore drives grading and ranking; Percentage is
// informational only and must never be conflated with it.
type ResultSummary struct {
	ID                 string     `db:"id" json:"id"`
	SchoolID           string     `db:"school_id" json:"school_id"`
	ExamID             string     `db:"exam_id" json:"exam_id"`
	StudentID          string     `db:"student_id" json:"student_id"`
	ClassID            string     `db:"class_id" json:"class_id"`
	AcademicYearID     *string    `db:"academic_year_id" json:"academic_year_id,omitempty"`
	TotalMarksObtained float64    `db:"total_marks_obtained" json:"total_marks_obtained"`
	TotalPossibleMarks float64    `db:"total_possible_marks" json:"total_possible_marks"`
	Percentage         float64    `db:"percentage" json:"percentage"`
	AverageScore       float64    `db:"average_score" json:"average_score"`
	SubjectCount       int        `db:"subject_count" json:"subject_count"`
	ClassPosition      *int       `db:"class_position" json:"class_position,omitempty"`
	ClassTotalStudents *int       `db:"class_total_students" json:"class_total_students,omitempty"`
	Grade              string     `db:"grade" json:"grade"`
	Remarks            string     `db:"remarks" json:"remarks"`
	IsPublished        bool       `db:"is_published" json:"is_published"`
	PublishedAt        *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}
