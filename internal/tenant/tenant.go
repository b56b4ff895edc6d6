// Package tenant models bill groups and the membership relation that scopes
// every other read and write in the system.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("bill group not found")
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalid marks validation failures; wrap it with the specific reason.
	ErrInvalid = errors.New("invalid input")

	ErrCannotRevokeOwner      = errors.New("cannot revoke the owner's access to their own bill group")
	ErrCannotRevokeLastAccess = errors.New("cannot revoke your own last bill group access")
)

// Tenant is one isolated ledger of bills (a "bill group"). Name is a unique
// slug; DisplayName is free text. OwnerID is set in SaaS deployments and nil
// when self-hosted.
type Tenant struct {
	ID          uuid.UUID
	Name        string
	DisplayName string
	Description string
	OwnerID     *uuid.UUID
	CreatedAt   time.Time
}

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateName enforces the bill group slug rules: 2-50 characters from
// [A-Za-z0-9_-].
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: bill group name is required", ErrInvalid)
	case len(name) < 2:
		return fmt.Errorf("%w: bill group name must be at least 2 characters", ErrInvalid)
	case len(name) > 50:
		return fmt.Errorf("%w: bill group name must be 50 characters or less", ErrInvalid)
	case !nameRe.MatchString(name):
		return fmt.Errorf("%w: bill group name may only contain letters, numbers, underscores, and hyphens", ErrInvalid)
	}

	return nil
}
