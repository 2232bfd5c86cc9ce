package auth

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/havaian/gossip/domain"
	"github.com/havaian/gossip/errors"
)

var validate = validator.New()

const MinPasswordLength = 6

// IdentityRequest is the admin form used to create an operator account.
type IdentityRequest struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=6,max=72"`
	Role     string `validate:"omitempty,oneof=admin moderator presenter"`
}

// RoomRequest is the admin form used to create a room.
type RoomRequest struct {
	Name        string `validate:"required,max=100"`
	Description string `validate:"max=1000"`
}

func ValidateIdentity(req IdentityRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}

func ValidateRoom(req RoomRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}

func ValidateRole(role string) error {
	if !domain.Role(role).IsValid() {
		return fmt.Errorf("%w: unknown role %q", errors.ErrInvalidInput, role)
	}
	return nil
}

func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidInput, err)
	}
	return nil
}

func ValidatePassword(password string) error {
	if err := validate.Var(password, fmt.Sprintf("required,min=%d,max=72", MinPasswordLength)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}
	return nil
}

// ValidateContent checks a submission after trimming. Length is counted in runes.
func ValidateContent(content string, maxLength int) error {
	trimmed := strings.TrimSpace(content)
	if err := validate.Var(trimmed, fmt.Sprintf("required,max=%d", maxLength)); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidContent, err)
	}
	return nil
}

// NormalizeEmail lowercases and trims, emails are stored that way.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
