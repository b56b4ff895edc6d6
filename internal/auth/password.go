package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/duetrack/duetrack/internal/user"
)

var ErrInvalidCredentials = errors.New("invalid username or password")

// UserStorage is the slice of the user store the authenticator needs.
type UserStorage interface {
	CreateUser(ctx context.Context, u *user.User) error
	GetUserByUsername(ctx context.Context, username string) (*user.User, error)
}

// PasswordAuthenticator implements password-based authentication using bcrypt.
type PasswordAuthenticator struct {
	storage UserStorage
}

func NewPasswordAuthenticator(storage UserStorage) *PasswordAuthenticator {
	return &PasswordAuthenticator{storage: storage}
}

// Register creates a new account with a hashed password.
func (a *PasswordAuthenticator) Register(ctx context.Context, username, password string, role user.Role) (*user.User, error) {
	if err := user.ValidateUsername(username); err != nil {
		return nil, err
	}

	if err := user.ValidatePassword(password); err != nil {
		return nil, err
	}

	if role == "" {
		role = user.RoleUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &user.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
	}
	if err := a.storage.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	return u, nil
}

// Authenticate verifies the username and password, returning the user when
// valid. Unknown users and wrong passwords are indistinguishable to callers.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	u, err := a.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}
