// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/emoji-auth/internal/auth"
	"github.com/taibuivan/emoji-auth/internal/platform/migration"
	"github.com/taibuivan/emoji-auth/internal/platform/postgres"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
	"github.com/taibuivan/emoji-auth/pkg/uuidv7"
)

// Integration tests are opt-in and require TEST_DATABASE_URL. Every test
// uses random names so runs against a shared database do not collide.

func mustOpenTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping postgres integration test")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	migrations, err := filepath.Abs(filepath.Join("..", "..", "data", "migrations"))
	require.NoError(t, err)
	require.NoError(t, migration.RunUp(dsn, migrations, logger))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.NewPool(ctx, dsn, postgres.DefaultPoolOptions(), logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func newPostgresService(t *testing.T) (*auth.Service, *auth.PostgresRepository, *sec.TokenService) {
	t.Helper()

	repository := auth.NewPostgresRepository(mustOpenTestPool(t))
	hasher, err := sec.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := sec.NewTokenService(testSecret, testIssuer, testTTL)
	require.NoError(t, err)

	return auth.NewService(auth.NewLifecycle(repository, hasher), tokens, nil), repository, tokens
}

func randomName(prefix string) string {
	return prefix + "-" + uuidv7.Must()[24:]
}

func TestPostgresRepository_Lifecycle(t *testing.T) {
	service, repository, tokens := newPostgresService(t)
	ctx := t.Context()
	name := randomName("Alice")

	anonymous, err := service.Init(ctx, nil, auth.Meta{"device": "ios"})
	require.NoError(t, err)

	stored, err := repository.FindByID(ctx, anonymous.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.StatusUnregistered, stored.Status)
	assert.Equal(t, "ios", stored.Meta["device"])
	assert.Empty(t, stored.PasswordHash)

	anonymousClaims, err := tokens.VerifyToken(anonymous.Token)
	require.NoError(t, err)

	registered, err := service.Register(ctx, anonymousClaims, name, "pw1234")
	require.NoError(t, err)
	assert.Greater(t, registered.Identity.Version, anonymous.Identity.Version)
	assert.Equal(t, auth.NormalizeName(name), registered.Identity.UniqueName)

	_, err = service.Register(ctx, anonymousClaims, name+"x", "pw1234")
	assert.ErrorIs(t, err, auth.ErrNotFound)

	loggedIn, err := service.Login(ctx, name, "pw1234", auth.Meta{"theme": "dark"})
	require.NoError(t, err)
	assert.Equal(t, registered.Identity.Version, loggedIn.Identity.Version)
	assert.Equal(t, auth.Meta{"device": "ios", "theme": "dark"}, loggedIn.Identity.Meta)
	assert.NotNil(t, loggedIn.Identity.LastLoginAt)

	registeredClaims, err := tokens.VerifyToken(registered.Token)
	require.NoError(t, err)

	_, err = service.Change(ctx, registeredClaims, name, "pw1234", " pw1234 ")
	assert.ErrorIs(t, err, auth.ErrSamePassword)

	changed, err := service.Change(ctx, registeredClaims, name, "pw1234", "newpw99")
	require.NoError(t, err)
	assert.Greater(t, changed.Identity.Version, registered.Identity.Version)

	_, err = service.Refresh(ctx, registered.Token, nil)
	assert.ErrorIs(t, err, auth.ErrStaleToken)

	_, err = repository.RecordLogin(ctx, auth.LoginParams{
		ID: registered.Identity.ID, ExpectedVersion: registered.Identity.Version, At: time.Now().UTC(),
	})
	assert.ErrorIs(t, err, auth.ErrWrongCredentials)

	_, err = service.Change(ctx, registeredClaims, name, "newpw99", "other99")
	assert.ErrorIs(t, err, auth.ErrVersionConflict)

	refreshed, err := service.Refresh(ctx, changed.Token, nil)
	require.NoError(t, err)
	assert.Equal(t, changed.Identity.Version, refreshed.Identity.Version)
	assert.NotNil(t, refreshed.Identity.LastRefreshAt)
}

func TestPostgresRepository_NameUniqueness(t *testing.T) {
	service, _, tokens := newPostgresService(t)
	ctx := t.Context()
	name := randomName("bob")

	claims := make([]*sec.AuthClaims, 4)
	for i := range claims {
		anonymous, err := service.Init(ctx, nil, nil)
		require.NoError(t, err)
		claims[i], err = tokens.VerifyToken(anonymous.Token)
		require.NoError(t, err)
	}

	errs := make([]error, len(claims))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range claims {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = service.Register(ctx, claims[i], name, "pw1234")
		}()
	}
	close(start)
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, auth.ErrNameConflict)
	}
	assert.Equal(t, 1, successes)
}

func TestPostgresRepository_ConcurrentChange(t *testing.T) {
	service, repository, tokens := newPostgresService(t)
	ctx := t.Context()
	name := randomName("carol")

	anonymous, err := service.Init(ctx, nil, nil)
	require.NoError(t, err)
	anonymousClaims, err := tokens.VerifyToken(anonymous.Token)
	require.NoError(t, err)
	registered, err := service.Register(ctx, anonymousClaims, name, "pw1234")
	require.NoError(t, err)
	claims, err := tokens.VerifyToken(registered.Token)
	require.NoError(t, err)

	passwords := []string{"newpw-a", "newpw-b", "newpw-c"}
	sessions := make([]*auth.Session, len(passwords))
	errs := make([]error, len(passwords))

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range passwords {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			sessions[i], errs[i] = service.Change(ctx, claims, name, "pw1234", passwords[i])
		}()
	}
	close(start)
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one change won")
			winner = i
			continue
		}
		assert.ErrorIs(t, err, auth.ErrVersionConflict)
	}
	require.NotEqual(t, -1, winner)

	stored, err := repository.FindByID(ctx, registered.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, sessions[winner].Identity.Version, stored.Version)

	_, err = service.Login(ctx, name, passwords[winner], nil)
	assert.NoError(t, err)
}
