// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxutil reads and writes the request-scoped values defined in ctxkey.
//
// The authentication middleware never rejects a request by itself. It stores
// either the verified claims or the rejection reason, and the handlers that
// require a caller decide what to do with them.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/taibuivan/emoji-auth/internal/platform/ctxkey"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

// # Request Tracing

// WithRequestID attaches the correlation ID of the current request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxkey.KeyRequestID, id)
}

// GetRequestID returns the correlation ID, or "" outside a request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxkey.KeyRequestID).(string)
	return id
}

// # Structured Logging

// WithLogger attaches a request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxkey.KeyLogger, logger)
}

// GetLogger returns the request-scoped logger, falling back to [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.KeyLogger).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return slog.Default()
}

// # Caller Identity

// WithClaims attaches the claims of a bearer token that passed verification.
func WithClaims(ctx context.Context, claims *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, ctxkey.KeyClaims, claims)
}

// GetClaims returns the verified claims, or nil for an anonymous caller.
func GetClaims(ctx context.Context) *sec.AuthClaims {
	claims, _ := ctx.Value(ctxkey.KeyClaims).(*sec.AuthClaims)
	return claims
}

// IdentityID returns the caller's identity ID, or "" for an anonymous caller.
func IdentityID(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.IdentityID
	}
	return ""
}

// WithTokenRejection records why a presented bearer token was refused.
func WithTokenRejection(ctx context.Context, reason error) context.Context {
	return context.WithValue(ctx, ctxkey.KeyTokenRejection, reason)
}

// GetTokenRejection returns the reason stored by [WithTokenRejection], if any.
func GetTokenRejection(ctx context.Context) error {
	reason, _ := ctx.Value(ctxkey.KeyTokenRejection).(error)
	return reason
}
