// Package user models principals and admin user management.
package user

import (
	"errors"
	"fmt"
	"regexp"
	"time"
	"unicode"

	"github.com/google/uuid"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")

	// ErrInvalid marks validation failures; wrap it with the specific reason.
	ErrInvalid = errors.New("invalid input")

	ErrCannotDeleteSelf = errors.New("cannot delete yourself")
)

// Role gates the admin-only surface (user management).
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is a principal that can hold tenant memberships and a subscription.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateUsername enforces 3-32 characters from [A-Za-z0-9_-], not starting
// or ending with an underscore or hyphen.
func ValidateUsername(username string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalid)
	case len(username) < 3:
		return fmt.Errorf("%w: username must be at least 3 characters", ErrInvalid)
	case len(username) > 32:
		return fmt.Errorf("%w: username must be 32 characters or less", ErrInvalid)
	case !usernameRe.MatchString(username):
		return fmt.Errorf("%w: username may only contain letters, numbers, underscores, and hyphens", ErrInvalid)
	}

	if first, last := username[0], username[len(username)-1]; first == '_' || first == '-' || last == '_' || last == '-' {
		return fmt.Errorf("%w: username cannot start or end with special characters", ErrInvalid)
	}

	return nil
}

// ValidatePassword enforces at least 8 characters with an uppercase letter, a
// lowercase letter, and a digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrInvalid)
	}

	if len(password) > 128 {
		return fmt.Errorf("%w: password must be 128 characters or less", ErrInvalid)
	}

	var hasUpper, hasLower, hasDigit bool

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("%w: password must contain an uppercase letter, a lowercase letter, and a number", ErrInvalid)
	}

	return nil
}
