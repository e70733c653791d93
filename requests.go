package credkit

import (
	"fmt"
	"net/mail"
	"strings"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Profile
}

// LoginRequest authenticates with email and password.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest replaces the password of an authenticated subject.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ForgotPasswordRequest asks for a reset code.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest redeems a reset code.
type ResetPasswordRequest struct {
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (r RegisterRequest) Validate() error {
	if err := validateEmail(r.Email); err != nil {
		return err
	}
	return requireField("password", r.Password)
}

func (r LoginRequest) Validate() error {
	if err := requireField("email", r.Email); err != nil {
		return err
	}
	return requireField("password", r.Password)
}

func (r ChangePasswordRequest) Validate() error {
	if err := requireField("current_password", r.CurrentPassword); err != nil {
		return err
	}
	return requireField("new_password", r.NewPassword)
}

func (r ForgotPasswordRequest) Validate() error {
	return validateEmail(r.Email)
}

func (r ResetPasswordRequest) Validate() error {
	if err := requireField("code", strings.TrimSpace(r.Code)); err != nil {
		return err
	}
	return requireField("new_password", r.NewPassword)
}

func requireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, name)
	}
	return nil
}

// validateEmail accepts a bare address only, no display name.
func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is malformed", ErrInvalidInput)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
