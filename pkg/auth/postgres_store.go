package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCredentialStore implements CredentialStore over the users table
type PostgresCredentialStore struct {
	pool *pgxpool.Pool
}

func NewPostgresCredentialStore(pool *pgxpool.Pool) *PostgresCredentialStore {
	return &PostgresCredentialStore{pool: pool}
}

func (s *PostgresCredentialStore) FindLoginByEmail(ctx context.Context, email string) (*Login, error) {
	query := `
		SELECT id, email, password
		FROM users
		WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL
	`

	var login Login
	var password []byte
	err := s.pool.QueryRow(ctx, query, strings.TrimSpace(email)).Scan(
		&login.UserID,
		&login.Email,
		&password,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find login by email: %w", err)
	}
	login.PasswordHash = string(password)
	return &login, nil
}
