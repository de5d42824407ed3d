package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleTeacher     UserRole = "TEACHER"
	RoleExamOfficer UserRole = "EXAM_OFFICER"
	RoleHeadOfExams UserRole = "HEAD_OF_EXAMS"
	RoleStudent     UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
// SchoolID scopes every user to one tenant; cross-school access is never
// permitted.
type User struct {
	ID           string     `db:"id" json:"id"`
	SchoolID     string     `db:"school_id" json:"school_id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	User        UserInfo  `json:"user"`
}

// UserInfo is the public projection of a user.
type UserInfo struct {
	ID       string   `json:"id"`
	SchoolID string   `json:"school_id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	SchoolID string   `json:"school_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
