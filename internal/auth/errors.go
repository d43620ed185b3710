// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/taibuivan/emoji-auth/internal/platform/apperr"
)

// Domain errors. Each carries a stable code so the transport maps it to one
// status without inspecting messages.
var (
	// ErrUnauthorized is returned when an operation needs a valid token and none was usable.
	ErrUnauthorized = apperr.Unauthorized("Authentication required")

	// ErrNoToken is returned by refresh when no bearer token was presented.
	ErrNoToken = apperr.New("NO_TOKEN", "No token provided", http.StatusUnauthorized)

	// ErrNotFound is returned when the identity is missing or not in the state
	// the transition requires.
	ErrNotFound = apperr.NotFound("Identity")

	// ErrNameConflict is returned when another registered identity holds the name.
	ErrNameConflict = apperr.New("NAME_CONFLICT", "Name is already taken", http.StatusConflict)

	// ErrWrongCredentials covers both an unknown name and a wrong password.
	ErrWrongCredentials = apperr.New("WRONG_CREDENTIALS", "Invalid name or password", http.StatusUnauthorized)

	// ErrSamePassword is returned when the new password equals the current one.
	ErrSamePassword = apperr.New("SAME_PASSWORD", "New password must differ from the current password", http.StatusUnprocessableEntity)

	// ErrVersionConflict is returned when a concurrent change committed first.
	ErrVersionConflict = apperr.New("VERSION_CONFLICT", "Identity was modified concurrently", http.StatusConflict)

	// ErrStaleToken is returned when a token no longer matches the stored identity.
	ErrStaleToken = apperr.New("STALE_TOKEN", "Token is no longer current", http.StatusUnauthorized)
)
