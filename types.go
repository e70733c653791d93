package credkit

import (
	"context"
	"time"
)

// UserProvider is the user-record collaborator. It owns credential
// persistence; the engine only computes and verifies hash values.
//
// Lookups return ErrUserNotFound (or an error wrapping it) for absent users.
// CreateUser returns ErrEmailTaken (or an error wrapping it) for duplicates.
// Emails arrive already normalized to lower case.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID string, newHash string) error
}

// ResetCodeSender is the out-of-band transport for reset codes, usually email.
type ResetCodeSender interface {
	SendResetCode(ctx context.Context, email string, code string, ttl time.Duration) error
}

// ResetCodeSenderFunc adapts a function to ResetCodeSender.
type ResetCodeSenderFunc func(ctx context.Context, email, code string, ttl time.Duration) error

func (f ResetCodeSenderFunc) SendResetCode(ctx context.Context, email, code string, ttl time.Duration) error {
	return f(ctx, email, code, ttl)
}

// Profile holds the optional display attributes captured at registration.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// UserRecord is the stored user as seen by a UserProvider.
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Profile      Profile
	CreatedAt    time.Time
}

// CreateUserInput is what Register asks the provider to persist.
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Profile      Profile
}

// Subject is the public view of an authenticated user. It never carries the
// password hash.
type Subject struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	Subject     Subject   `json:"user"`
}

// ForgotPasswordResponse is the fixed acknowledgment returned by
// ForgotPassword.
type ForgotPasswordResponse struct {
	Message string `json:"message"`
}

// OAuthRedirect is the authorize URL and the state bound to it.
type OAuthRedirect struct {
	URL   string `json:"url"`
	State string `json:"state"`
}

const (
	// TokenTypeBearer is the AuthResult token type.
	TokenTypeBearer = "bearer"
	// ForgotPasswordMessage is returned for every ForgotPassword request.
	ForgotPasswordMessage = "If an account with this email exists, a password reset code has been sent."
)

func subjectFromRecord(user UserRecord) Subject {
	return Subject{
		ID:        user.UserID,
		Email:     user.Email,
		Profile:   user.Profile,
		CreatedAt: user.CreatedAt,
	}
}
