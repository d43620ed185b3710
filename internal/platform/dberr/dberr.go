// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taibuivan/emoji-auth/internal/platform/apperr"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// IsNoRows reports whether err means the statement matched no row.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// UniqueViolation reports whether err is a PostgreSQL unique_violation and,
// if so, which constraint or index raised it.
func UniqueViolation(err error) (constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", false
	}
	if pgErr.Code != pgerrcode.UniqueViolation {
		return "", false
	}
	return pgErr.ConstraintName, true
}

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if IsNoRows(err) {
		return ErrNotFound
	}

	// 2. Unique violations surface as conflicts; callers needing a more
	// specific code check UniqueViolation first.
	if _, ok := UniqueViolation(err); ok {
		return apperr.Conflict(action + ": duplicate value").WithCause(err)
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(err)
}
