// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/internal/auth/postgres"
	"github.com/gatehouse/gatehouse/internal/store"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("gatehouse_test"),
		tcpostgres.WithUsername("gatehouse"),
		tcpostgres.WithPassword("gatehouse"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start postgres container: %v\n", err)
		return 1
	}
	defer func() {
		if err := container.Terminate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to terminate container: %v\n", err)
		}
	}()

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get connection string: %v\n", err)
		return 1
	}

	migrator, err := store.NewMigrator(connStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create migrator: %v\n", err)
		return 1
	}
	if err := migrator.Up(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = migrator.Close() //nolint:errcheck // exiting anyway
		return 1
	}
	_ = migrator.Close() //nolint:errcheck // schema is in place

	testPool, err = store.Connect(ctx, connStr, store.ConnectOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		return 1
	}
	defer testPool.Close()

	return m.Run()
}

func createUser(t *testing.T, repo *postgres.UserRepository, username string) *auth.User {
	t.Helper()
	user, err := auth.NewUser(username, "$argon2id$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA")
	require.NoError(t, err)
	user.CreatedAt = user.CreatedAt.Truncate(time.Microsecond)
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func TestUserRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := postgres.NewUserRepository(testPool)

	t.Run("create and fetch", func(t *testing.T) {
		user := createUser(t, repo, "integration_alice")

		byName, err := repo.GetByUsername(ctx, "INTEGRATION_ALICE")
		require.NoError(t, err)
		assert.Equal(t, user.ID, byName.ID)
		assert.True(t, user.CreatedAt.Equal(byName.CreatedAt))

		byID, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "integration_alice", byID.Username)
	})

	t.Run("duplicate differing in case", func(t *testing.T) {
		createUser(t, repo, "integration_bob")
		dup, err := auth.NewUser("Integration_Bob", "hash")
		require.NoError(t, err)

		err = repo.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, auth.ErrDuplicateUsername))
	})

	t.Run("concurrent creates of one name", func(t *testing.T) {
		const workers = 16
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				user, err := auth.NewUser("integration_race", "hash")
				if err != nil {
					return
				}
				if repo.Create(ctx, user) == nil {
					mu.Lock()
					successes++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, successes)
	})

	t.Run("login state round trip", func(t *testing.T) {
		user := createUser(t, repo, "integration_carol")
		until := time.Now().Add(time.Minute).UTC().Truncate(time.Microsecond)

		require.NoError(t, repo.UpdateLoginState(ctx, user.ID, 4, &until))
		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, 4, got.FailedAttempts)
		require.NotNil(t, got.LockedUntil)
		assert.True(t, until.Equal(*got.LockedUntil))

		require.NoError(t, repo.UpdateLoginState(ctx, user.ID, 0, nil))
		got, err = repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, got.LockedUntil)
	})

	t.Run("updates of missing user", func(t *testing.T) {
		err := repo.UpdateLastLogin(ctx, ulid.Make(), time.Now())
		assert.True(t, errors.Is(err, auth.ErrNotFound))
	})
}

func TestRevocationRepository_Integration(t *testing.T) {
	ctx := context.Background()
	users := postgres.NewUserRepository(testPool)
	revocations := postgres.NewRevocationRepository(testPool)
	user := createUser(t, users, "integration_dave")

	live := ulid.Make().String()
	expired := ulid.Make().String()

	require.NoError(t, revocations.Revoke(ctx, live, user.ID, time.Now().Add(time.Hour)))
	require.NoError(t, revocations.Revoke(ctx, live, user.ID, time.Now().Add(time.Hour)), "idempotent")
	require.NoError(t, revocations.Revoke(ctx, expired, user.ID, time.Now().Add(-time.Minute)))

	revoked, err := revocations.IsRevoked(ctx, live)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = revocations.IsRevoked(ctx, ulid.Make().String())
	require.NoError(t, err)
	assert.False(t, revoked)

	n, err := revocations.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	revoked, err = revocations.IsRevoked(ctx, expired)
	require.NoError(t, err)
	assert.False(t, revoked)
}
