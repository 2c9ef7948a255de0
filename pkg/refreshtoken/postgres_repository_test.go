package refreshtoken

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tenantops/admin-idm/pkg/utils"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/exp/slog"
)

func setupTestDatabase(t *testing.T) (*pgxpool.Pool, func()) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithInitScripts(filepath.Join("../../migrations", "idm_db.sql")),
		postgres.WithDatabase("idm_db"),
		postgres.WithUsername("idm"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
	)
	require.NoError(t, err)
	if err != nil {
		slog.Error("Failed to start container:", "err", err)
	}

	connString, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

func insertTestUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, email, password, created_at, last_modified_at)
		VALUES ($1, $2, $3, NOW(), NOW())
	`, userID, userID.String()+"@example.com", []byte("x"))
	require.NoError(t, err)
	return userID
}

func newTestToken(userID uuid.UUID) RefreshToken {
	now := time.Now().UTC()
	return RefreshToken{
		ID:        uuid.New(),
		TokenHash: utils.HashToken(uuid.NewString()),
		UserID:    userID,
		FamilyID:  uuid.New(),
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
}

func TestPostgresMarkRotatedSingleWinner(t *testing.T) {
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresRepository(pool)
	ctx := context.Background()
	userID := insertTestUser(t, pool)

	token := newTestToken(userID)
	require.NoError(t, repo.Insert(ctx, token))

	// Many concurrent rotations of the same token, exactly one may win
	const attempts = 10
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := repo.MarkRotated(ctx, token.ID, time.Now().UTC())
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestPostgresMarkRotatedRevokedToken(t *testing.T) {
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresRepository(pool)
	ctx := context.Background()
	userID := insertTestUser(t, pool)

	token := newTestToken(userID)
	require.NoError(t, repo.Insert(ctx, token))
	require.NoError(t, repo.RevokeByID(ctx, token.ID, time.Now().UTC()))

	won, err := repo.MarkRotated(ctx, token.ID, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, won)
}

func TestPostgresRevokeFamily(t *testing.T) {
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresRepository(pool)
	ctx := context.Background()
	userID := insertTestUser(t, pool)

	familyID := uuid.New()
	var hashes []string
	for i := 0; i < 3; i++ {
		token := newTestToken(userID)
		token.FamilyID = familyID
		require.NoError(t, repo.Insert(ctx, token))
		hashes = append(hashes, token.TokenHash)
	}
	other := newTestToken(userID)
	require.NoError(t, repo.Insert(ctx, other))

	count, err := repo.RevokeFamily(ctx, familyID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	for _, hash := range hashes {
		stored, err := repo.FindByHash(ctx, hash)
		require.NoError(t, err)
		assert.True(t, stored.IsRevoked())
	}

	// Tokens in other families are untouched
	storedOther, err := repo.FindByHash(ctx, other.TokenHash)
	require.NoError(t, err)
	assert.False(t, storedOther.IsRevoked())

	// Revoking again affects nothing
	count, err = repo.RevokeFamily(ctx, familyID, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestPostgresFindByHashNotFound(t *testing.T) {
	pool, cleanup := setupTestDatabase(t)
	defer cleanup()

	repo := NewPostgresRepository(pool)

	token, err := repo.FindByHash(context.Background(), utils.HashToken("missing"))
	require.NoError(t, err)
	assert.Nil(t, token)
}
