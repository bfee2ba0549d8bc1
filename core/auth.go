package core

import (
	"errors"
	"strings"
	"time"
)

// Role is the privilege level carried by a user.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole accepts a role name in any case.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleAdmin:
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Principal is the verified identity bound to a request.
// It is rebuilt from the credential store on every request and never stored.
type Principal struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// UserRecord represents a user row as stored in the persistence layer.
type UserRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Principal projects the record onto the identity attached to requests.
func (u *UserRecord) Principal() Principal {
	return Principal{ID: u.ID, Username: u.Username, Role: u.Role}
}

var (
	// ErrMalformedToken is returned when a token cannot be decoded.
	ErrMalformedToken = errors.New("malformed token")
	// ErrInvalidSignature is returned for tampered tokens or tokens signed with another key.
	ErrInvalidSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned when the token lifetime has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrUnknownSubject is returned when the token subject no longer exists.
	ErrUnknownSubject = errors.New("unknown token subject")

	// ErrUnauthenticated is returned when a protected operation runs without a principal.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrAccessDenied is returned when neither the ownership nor the role rule holds.
	ErrAccessDenied = errors.New("access denied")
	// ErrResourceNotFound is returned when the target of an operation does not exist.
	ErrResourceNotFound = errors.New("resource not found")

	// ErrInvalidCredentials is returned when username/password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict is returned when a unique field is already taken.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned when input fails a business rule.
	ErrValidation = errors.New("validation error")
)
