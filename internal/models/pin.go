package models

import "time"

// PinStatus is the derived state reported by status checks.
type PinStatus string

const (
	PinStatusActive    PinStatus = "ACTIVE"
	PinStatusExhausted PinStatus = "EXHAUSTED"
	PinStatusExpired   PinStatus = "EXPIRED"
	PinStatusInactive  PinStatus = "INACTIVE"
)

// ResultPin is a budgeted, student-scoped token for anonymous result lookups.
// used_checks never exceeds max_checks; reaching the budget deactivates the
// pin in the same update that consumed the final check.
type ResultPin struct {
	ID         string     `db:"id" json:"id"`
	SchoolID   string     `db:"school_id" json:"school_id"`
	StudentID  string     `db:"student_id" json:"student_id"`
	PinCode    string     `db:"pin_code" json:"pin_code"`
	MaxChecks  int        `db:"max_checks" json:"max_checks"`
	UsedChecks int        `db:"used_checks" json:"used_checks"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Status derives the pin state at the given instant without mutating it.
func (p *ResultPin) Status(now time.Time) PinStatus {
	if !p.IsActive {
		if p.UsedChecks >= p.MaxChecks {
			return PinStatusExhausted
		}
		return PinStatusInactive
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return PinStatusExpired
	}
	if p.UsedChecks >= p.MaxChecks {
		return PinStatusExhausted
	}
	return PinStatusActive
}

// RemainingChecks reports how many lookups the pin still allows.
func (p *ResultPin) RemainingChecks() int {
	remaining := p.MaxChecks - p.UsedChecks
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PinStatusReport is the read-only answer to a status check.
type PinStatusReport struct {
	Status          PinStatus  `json:"status"`
	RemainingChecks int        `json:"remaining_checks"`
	MaxChecks       int        `json:"max_checks"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
}
