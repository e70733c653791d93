// Package postgres is a credkit.UserProvider backed by PostgreSQL through
// the pgx stdlib driver. Schema migrations are embedded and applied with
// goose.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/credkit"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	uniqueViolation   = "23505"
	invalidTextFormat = "22P02"
)

// DBTX is the subset of *sql.DB and *sql.Tx the store needs.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements credkit.UserProvider.
type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

const selectColumns = `id, email, password_hash, first_name, last_name, created_at`

func (s *Store) GetUserByEmail(ctx context.Context, email string) (credkit.UserRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE lower(email) = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, strings.ToLower(email)))
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (credkit.UserRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM users WHERE id = $1`
	return s.scanOne(s.db.QueryRowContext(ctx, query, userID))
}

// CreateUser lets the database assign the id and creation time. A unique
// violation on the email index maps to credkit.ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, input credkit.CreateUserInput) (credkit.UserRecord, error) {
	query := `INSERT INTO users (email, password_hash, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	user := credkit.UserRecord{
		Email:        strings.ToLower(input.Email),
		PasswordHash: input.PasswordHash,
		Profile:      input.Profile,
	}

	err := s.db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Profile.FirstName, user.Profile.LastName,
	).Scan(&user.UserID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return credkit.UserRecord{}, credkit.ErrEmailTaken
		}
		return credkit.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID string, newHash string) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`

	res, err := s.db.ExecContext(ctx, query, newHash, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return credkit.ErrUserNotFound
	}
	return nil
}

func (s *Store) scanOne(row *sql.Row) (credkit.UserRecord, error) {
	var (
		user      credkit.UserRecord
		createdAt time.Time
	)
	err := row.Scan(
		&user.UserID, &user.Email, &user.PasswordHash,
		&user.Profile.FirstName, &user.Profile.LastName, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return credkit.UserRecord{}, credkit.ErrUserNotFound
		}
		// ids that are not UUIDs cannot match a row
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == invalidTextFormat {
			return credkit.UserRecord{}, credkit.ErrUserNotFound
		}
		return credkit.UserRecord{}, fmt.Errorf("db error: %w", err)
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}

var _ credkit.UserProvider = (*Store)(nil)
