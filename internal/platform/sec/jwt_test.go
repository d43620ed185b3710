// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

const testIssuer = "emoji-auth.test"

// testClock is a settable time source shared by a TokenService under test.
type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTokenService(t *testing.T, secret string, clock *testClock) *sec.TokenService {
	t.Helper()
	service, err := sec.NewTokenService([]byte(secret), testIssuer, time.Hour, sec.WithClock(clock.Now))
	require.NoError(t, err)
	return service
}

func testSubject() sec.TokenSubject {
	return sec.TokenSubject{
		ID:        "0190c6a4-7b1e-7c3e-9a51-3f1d2b4c5d6e",
		Version:   1_722_000_000_123_456_789,
		Status:    "REGISTERED",
		Name:      "alice",
		CreatedAt: time.UnixMilli(1_722_000_000_000),
	}
}

/*
TestTokenService_IssueVerify round-trips the identity snapshot.
*/
func TestTokenService_IssueVerify(t *testing.T) {
	clock := &testClock{now: time.Now()}
	service := newTokenService(t, "top-secret", clock)

	token, err := service.Issue(testSubject())
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := service.Verify(token, sec.VerifyOptions{})
	require.NoError(t, err)

	// The nanosecond version must survive JSON encoding exactly.
	assert.Equal(t, testSubject().Version, claims.Version)
	assert.Equal(t, testSubject().ID, claims.IdentityID)
	assert.Equal(t, testSubject().ID, claims.Subject)
	assert.Equal(t, "REGISTERED", claims.Status)
	assert.Equal(t, "alice", claims.Name)
	assert.Equal(t, int64(1_722_000_000_000), claims.CreatedAt)
}

/*
TestTokenService_Expiration checks that expiry is enforced unless explicitly ignored.
*/
func TestTokenService_Expiration(t *testing.T) {
	clock := &testClock{now: time.Now()}
	service := newTokenService(t, "top-secret", clock)

	token, err := service.Issue(testSubject())
	require.NoError(t, err)

	// 1. Move past the TTL
	clock.now = clock.now.Add(2 * time.Hour)

	_, err = service.Verify(token, sec.VerifyOptions{})
	assert.ErrorIs(t, err, sec.ErrExpiredToken)

	_, err = service.VerifyToken(token)
	assert.ErrorIs(t, err, sec.ErrExpiredToken)

	// 2. Refresh path accepts the expired but correctly signed token
	claims, err := service.Verify(token, sec.VerifyOptions{IgnoreExpiration: true})
	require.NoError(t, err)
	assert.Equal(t, testSubject().Version, claims.Version)
}

/*
TestTokenService_RejectsForeignTokens covers bad signatures, algorithms, and issuers.
*/
func TestTokenService_RejectsForeignTokens(t *testing.T) {
	clock := &testClock{now: time.Now()}
	service := newTokenService(t, "top-secret", clock)
	other := newTokenService(t, "other-secret", clock)

	foreign, err := other.Issue(testSubject())
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, sec.AuthClaims{IdentityID: "x"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sec.AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(clock.now.Add(time.Hour)),
		},
		IdentityID: "x",
	}).SignedString([]byte("top-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"wrong_secret", foreign},
		{"alg_none", noneToken},
		{"wrong_issuer", wrongIssuer},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Verify(tt.token, sec.VerifyOptions{})
			assert.ErrorIs(t, err, sec.ErrInvalidToken)

			_, err = service.Verify(tt.token, sec.VerifyOptions{IgnoreExpiration: true})
			assert.ErrorIs(t, err, sec.ErrInvalidToken)
		})
	}
}

/*
TestNewTokenService_Validation rejects unusable configuration.
*/
func TestNewTokenService_Validation(t *testing.T) {
	_, err := sec.NewTokenService(nil, testIssuer, time.Hour)
	assert.Error(t, err)

	_, err = sec.NewTokenService([]byte("s"), testIssuer, 0)
	assert.Error(t, err)

	service, err := sec.NewTokenService([]byte("s"), testIssuer, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, service.TimeToLive())
}
