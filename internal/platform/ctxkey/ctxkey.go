// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package ctxkey defines the typed context keys shared by middleware,
// handlers, and the auth service.
package ctxkey

// key is unexported so no other package can forge an entry.
type key string

const (
	// KeyRequestID carries the X-Request-ID correlation value.
	KeyRequestID key = "request_id"

	// KeyLogger carries the per-request [*log/slog.Logger].
	KeyLogger key = "logger"

	// KeyClaims carries the verified, non-expired token claims ([*sec.AuthClaims]).
	KeyClaims key = "claims"

	// KeyTokenRejection carries the reason a presented bearer token was refused.
	KeyTokenRejection key = "token_rejection"
)
