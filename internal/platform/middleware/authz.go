// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"

	"github.com/taibuivan/emoji-auth/internal/platform/ctxutil"
	requestutil "github.com/taibuivan/emoji-auth/internal/platform/request"
	"github.com/taibuivan/emoji-auth/internal/platform/respond"
	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

// TokenVerifier defines the interface needed to verify tokens in middleware.
//
// # Why an interface?
//
// Defining TokenVerifier here decouples the middleware from the token service
// implementation, allowing us to easily inject fakes during unit testing.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// Authenticate extracts and verifies the JWT from the Authorization header.
//
// # Flow
//  1. Check for 'Authorization: Bearer <token>' header.
//  2. If absent, request proceeds as anonymous.
//  3. If present, verify it (signature and expiry) via [TokenVerifier].
//  4. On success inject [*sec.AuthClaims] into the request context.
//  5. On failure record the reason with [ctxutil.WithTokenRejection] and proceed.
//
// The middleware never rejects on its own: init treats a bad token as
// anonymous, refresh re-reads the raw header, and routes that need a caller
// use [RequireAuth].
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

			// ── 1. Anonymous Access ───────────────────────────────────────────
			tokenStr, err := requestutil.BearerToken(request)
			if err != nil {
				ctx := ctxutil.WithTokenRejection(request.Context(), err)
				next.ServeHTTP(writer, request.WithContext(ctx))
				return
			}
			if tokenStr == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Token Verification ─────────────────────────────────────────
			claims, err := verifier.VerifyToken(tokenStr)
			if err != nil {
				ctx := ctxutil.WithTokenRejection(request.Context(), err)
				next.ServeHTTP(writer, request.WithContext(ctx))
				return
			}

			// ── 3. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithClaims(request.Context(), claims)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// # Usage
//
// Must be registered in the router AFTER [Authenticate]. The response carries
// the recorded rejection reason (INVALID_TOKEN, EXPIRED_TOKEN) when a token
// was presented, or UNAUTHORIZED when none was.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if _, err := requestutil.RequiredClaims(request); err != nil {
			respond.Error(writer, request, err)
			return
		}
		next.ServeHTTP(writer, request)
	})
}
