// Package model defines domain entities shared by the session, gateway and routing layers.
package model

import "time"

// Role is the account role returned by the backend.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleScholar Role = "SCHOLAR"
)

// User is the "who am I" record.
type User struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	SchoolID     int64  `json:"school_id"`
	TenantID     string `json:"tenant_id"`
	TeacherID    *int64 `json:"teacher_id,omitempty"`
	ClassGroupID *int64 `json:"class_group_id,omitempty"`
}

// Credentials is the login request body.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the login endpoint payload: a token pair plus tenant scoping.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
	TenantSlug   string `json:"tenant_slug"`
	SchoolID     int64  `json:"school_id"`
	SchoolName   string `json:"school_name,omitempty"`
}

// Tokens collects issued access/refresh tokens (refresh optional).
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type,omitempty"`
}

// AlertType classifies a notification.
type AlertType string

const (
	AlertSuccess AlertType = "success"
	AlertError   AlertType = "error"
	AlertWarning AlertType = "warning"
	AlertInfo    AlertType = "info"
)

// Alert is a transient user-facing notification.
type Alert struct {
	ID        string
	Type      AlertType
	Message   string
	Duration  time.Duration // zero: stays until dismissed
	CreatedAt time.Time
}

// RouteMeta is the static access policy of a navigable path.
type RouteMeta struct {
	RequiresAuth bool
	RequiresRole Role // empty: any role
}

// Persisted key-value entries.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyTenantSlug   = "tenant_slug"
	KeySchoolID     = "school_id"
	KeySchoolName   = "school_name"
	KeyLanguage     = "language"
)

// SessionKeys lists every entry owned by the session; language is a
// preference and survives logout.
var SessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyTenantSlug, KeySchoolID, KeySchoolName}
