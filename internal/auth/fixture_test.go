// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/taibuivan/emoji-auth/internal/auth"
	"github.com/taibuivan/emoji-auth/internal/platform/metrics"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

const (
	testIssuer = "emoji-auth-test"
	testTTL    = time.Hour
)

var testSecret = []byte("test-secret-for-hs256-signing-32b")

// fixture is a fully wired service over an in-process Redis.
type fixture struct {
	redis      *miniredis.Miniredis
	repository *auth.RedisRepository
	lifecycle  *auth.Lifecycle
	tokens     *sec.TokenService
	metrics    *metrics.Recorder
	service    *auth.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hasher, err := sec.NewPasswordHasher(bcrypt.MinCost)
	require.NoError(t, err)

	tokens, err := sec.NewTokenService(testSecret, testIssuer, testTTL)
	require.NoError(t, err)

	repository := auth.NewRedisRepository(client)
	lifecycle := auth.NewLifecycle(repository, hasher)
	recorder := metrics.NewRecorder()

	return &fixture{
		redis:      server,
		repository: repository,
		lifecycle:  lifecycle,
		tokens:     tokens,
		metrics:    recorder,
		service:    auth.NewService(lifecycle, tokens, recorder),
	}
}

// claims verifies a session token the way the HTTP middleware does.
func (f *fixture) claims(t *testing.T, session *auth.Session) *sec.AuthClaims {
	t.Helper()
	claims, err := f.tokens.VerifyToken(session.Token)
	require.NoError(t, err)
	return claims
}

// registered returns a session for a freshly registered identity.
func (f *fixture) registered(t *testing.T, name, password string) *auth.Session {
	t.Helper()
	ctx := t.Context()

	anonymous, err := f.service.Init(ctx, nil, nil)
	require.NoError(t, err)

	session, err := f.service.Register(ctx, f.claims(t, anonymous), name, password)
	require.NoError(t, err)
	return session
}

// fakeHasher is a transparent PasswordHasher that counts dummy comparisons.
type fakeHasher struct {
	dummyCalls atomic.Int32
}

func (h *fakeHasher) Hash(plain string) (string, error) { return "hashed:" + plain, nil }

func (h *fakeHasher) Compare(plain, hash string) bool {
	return hash != "" && hash == "hashed:"+plain
}

func (h *fakeHasher) CompareDummy(string) { h.dummyCalls.Add(1) }

// newRedisRepository returns a repository over a fresh in-process Redis.
func newRedisRepository(t *testing.T) (*auth.RedisRepository, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return auth.NewRedisRepository(client), server
}
