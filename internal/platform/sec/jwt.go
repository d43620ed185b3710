// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer through the auth.TokenIssuer interface.
package sec

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/taibuivan/emoji-auth/internal/platform/apperr"
)

var (
	// ErrInvalidToken is returned when a token is malformed, carries a bad
	// signature, or was issued by someone else.
	ErrInvalidToken = apperr.New("INVALID_TOKEN", "Invalid token", http.StatusUnauthorized)

	// ErrExpiredToken is returned when a correctly signed token is past its expiry.
	ErrExpiredToken = apperr.New("EXPIRED_TOKEN", "Token has expired", http.StatusUnauthorized)
)

// AuthClaims represents the payload embedded inside a bearer token.
//
// # Why a storage snapshot?
//
// The token pins the identity's (ID, Version, Status) at signing time. The
// store compares them with the current record, so any credential change
// (which bumps Version) turns every older token stale.
type AuthClaims struct {
	jwt.RegisteredClaims

	IdentityID string `json:"id"`
	Version    int64  `json:"version"`
	Status     string `json:"status"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at"`
}

// TokenSubject is the identity snapshot signed into a token.
type TokenSubject struct {
	ID        string
	Version   int64
	Status    string
	Name      string
	CreatedAt time.Time
}

// VerifyOptions tunes [TokenService.Verify].
type VerifyOptions struct {
	// IgnoreExpiration accepts a correctly signed token past its expiry.
	// Only the refresh flow sets it; the version check remains the real guard.
	IgnoreExpiration bool
}

// TokenOption customizes a [TokenService].
type TokenOption func(*TokenService)

// WithClock injects the time source used for issuing and validating tokens.
func WithClock(clock func() time.Time) TokenOption {
	return func(service *TokenService) {
		if clock != nil {
			service.now = clock
		}
	}
}

// TokenService handles generation and verification of HS256 JWT tokens.
type TokenService struct {
	secret     []byte
	issuer     string
	timeToLive time.Duration
	now        func() time.Time
}

// NewTokenService creates a new TokenService signing with a shared secret.
func NewTokenService(secret []byte, issuer string, timeToLive time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("sec: empty signing secret")
	}
	if timeToLive <= 0 {
		return nil, fmt.Errorf("sec: token ttl must be positive, got %s", timeToLive)
	}

	service := &TokenService{
		secret:     secret,
		issuer:     issuer,
		timeToLive: timeToLive,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}

	return service, nil
}

// TimeToLive returns the lifetime of issued tokens.
func (service *TokenService) TimeToLive() time.Duration {
	return service.timeToLive
}

// Issue signs subject into a new bearer token.
func (service *TokenService) Issue(subject TokenSubject) (string, error) {
	currentTime := service.now()
	claims := AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject.ID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(service.timeToLive)),
		},
		IdentityID: subject.ID,
		Version:    subject.Version,
		Status:     subject.Status,
		Name:       subject.Name,
		CreatedAt:  subject.CreatedAt.UnixMilli(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(service.secret)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign token: %w", err)
	}

	return signedToken, nil
}

// Verify checks the signature and, unless told otherwise, the expiry of a token.
//
// # Returns
//   - The decoded claims on success.
//   - [ErrExpiredToken] when only the expiry check failed.
//   - [ErrInvalidToken] for every other failure.
func (service *TokenService) Verify(tokenString string, options VerifyOptions) (*AuthClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(service.now),
	}
	if options.IgnoreExpiration {
		parserOptions = append(parserOptions, jwt.WithoutClaimsValidation())
	} else {
		parserOptions = append(parserOptions, jwt.WithExpirationRequired(), jwt.WithIssuer(service.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(token *jwt.Token) (interface{}, error) {
		return service.secret, nil
	}, parserOptions...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken.WithCause(err)
		}
		return nil, ErrInvalidToken.WithCause(err)
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	// Claims validation is skipped above when expiry is ignored, so the
	// issuer is checked by hand.
	if claims.Issuer != service.issuer || claims.IdentityID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyToken verifies a token including its expiry.
// It satisfies [middleware.TokenVerifier].
func (service *TokenService) VerifyToken(tokenString string) (*AuthClaims, error) {
	return service.Verify(tokenString, VerifyOptions{})
}
