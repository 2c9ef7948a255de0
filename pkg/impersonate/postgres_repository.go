package impersonate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tenantops/admin-idm/pkg/utils"
)

// uniqueViolation is the PostgreSQL error code for a unique index conflict
const uniqueViolation = "23505"

// PostgresRepository implements SessionRepository backed by PostgreSQL.
// The single-active-session rule lives in a partial unique index on
// (impersonator_id) WHERE status = 'active'.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const sessionColumns = `id, impersonator_id, target_id, organization_id, reason, status, started_at, expires_at, ended_at, ended_by, COALESCE(user_agent, ''), COALESCE(ip_address, '')`

func scanSession(row pgx.Row) (*Session, error) {
	var session Session
	err := row.Scan(
		&session.ID,
		&session.ImpersonatorID,
		&session.TargetID,
		&session.OrganizationID,
		&session.Reason,
		&session.Status,
		&session.StartedAt,
		&session.ExpiresAt,
		&session.EndedAt,
		&session.EndedBy,
		&session.UserAgent,
		&session.IPAddress,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, session Session) error {
	query := `
		INSERT INTO impersonation_session (id, impersonator_id, target_id, organization_id, reason, status, started_at, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.ImpersonatorID,
		session.TargetID,
		session.OrganizationID,
		session.Reason,
		session.Status,
		session.StartedAt,
		session.ExpiresAt,
		utils.ToNullString(session.UserAgent),
		utils.ToNullString(session.IPAddress),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrAlreadyImpersonating
		}
		return fmt.Errorf("failed to insert impersonation session: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, sessionID uuid.UUID) (*Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM impersonation_session WHERE id = $1`

	session, err := scanSession(r.pool.QueryRow(ctx, query, sessionID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find impersonation session: %w", err)
	}
	return session, nil
}

func (r *PostgresRepository) FindActiveByImpersonator(ctx context.Context, impersonatorID uuid.UUID) (*Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM impersonation_session
		WHERE impersonator_id = $1 AND status = 'active'
	`

	session, err := scanSession(r.pool.QueryRow(ctx, query, impersonatorID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active impersonation session: %w", err)
	}
	return session, nil
}

// UpdateStatus is the terminal-status compare-and-swap. The WHERE clause
// only matches an active session, so of several racing terminations exactly
// one observes an affected row.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, sessionID uuid.UUID, status string, endedAt time.Time, endedBy *uuid.UUID) (bool, error) {
	query := `
		UPDATE impersonation_session
		SET status = $1, ended_at = $2, ended_by = $3
		WHERE id = $4 AND status = 'active'
	`

	result, err := r.pool.Exec(ctx, query, status, endedAt, endedBy, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to update impersonation session status: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *PostgresRepository) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE impersonation_session
		SET status = 'expired', ended_at = $1
		WHERE status = 'active' AND expires_at <= $1
	`

	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired impersonation sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresRepository) List(ctx context.Context, params ListParams) (SessionPage, error) {
	params.Normalize()

	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if params.ImpersonatorID != nil {
		conditions = append(conditions, "impersonator_id = "+arg(*params.ImpersonatorID))
	}
	if params.TargetID != nil {
		conditions = append(conditions, "target_id = "+arg(*params.TargetID))
	}
	if params.Status != "" {
		conditions = append(conditions, "status = "+arg(params.Status))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := SessionPage{
		Sessions: []Session{},
		Limit:    params.Limit,
		Offset:   params.Offset,
	}

	countQuery := `SELECT COUNT(*) FROM impersonation_session` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&page.Total); err != nil {
		return SessionPage{}, fmt.Errorf("failed to count impersonation sessions: %w", err)
	}

	query := `SELECT ` + sessionColumns + ` FROM impersonation_session` + where +
		` ORDER BY started_at DESC LIMIT ` + arg(params.Limit) + ` OFFSET ` + arg(params.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return SessionPage{}, fmt.Errorf("failed to list impersonation sessions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return SessionPage{}, fmt.Errorf("failed to scan impersonation session: %w", err)
		}
		page.Sessions = append(page.Sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return SessionPage{}, fmt.Errorf("failed to read impersonation sessions: %w", err)
	}
	return page, nil
}
