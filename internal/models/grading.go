package models

import "time"

// GradingRange maps an inclusive score interval to a grade. Ranges are scoped
// to a school and optionally to one academic year; a NULL year is the default
// set for all years. Active ranges in one scope must not overlap.
type GradingRange struct {
	ID             string    `db:"id" json:"id"`
	SchoolID       string    `db:"school_id" json:"school_id"`
	AcademicYearID *string   `db:"academic_year_id" json:"academic_year_id,omitempty"`
	GradeLabel     string    `db:"grade_label" json:"grade_label"`
	MinScore       float64   `db:"min_score" json:"min_score"`
	MaxScore       float64   `db:"max_score" json:"max_score"`
	GradePoint     float64   `db:"grade_point" json:"grade_point"`
	Description    string    `db:"description" json:"description"`
	IsPassing      bool      `db:"is_passing" json:"is_passing"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ResolvedGrade is the outcome of mapping a score through the range table.
type ResolvedGrade struct {
	Label       string  `json:"label"`
	Point       float64 `json:"point"`
	Description string  `json:"description"`
	IsPassing   bool    `json:"is_passing"`
	Fallback    bool    `json:"fallback,omitempty"`
}

// FallbackGrade is returned when no active range matches a score. Every score
// must resolve to some grade; a configuration gap fails closed.
var FallbackGrade = ResolvedGrade{Label: "F", Point: 0, Description: "Fail", IsPassing: false, Fallback: true}
