// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package uuidv7 wraps google/uuid to generate time-ordered UUIDv7 values.
//
// # Why UUIDv7?
//
// Identity IDs are UUIDv7 strings. Because they sort by creation time, the
// auth.identity primary key stays append-mostly in PostgreSQL.
package uuidv7

import (
	"fmt"

	"github.com/google/uuid"
)

// New generates a new UUIDv7 string.
//
// It fails only if the OS random source is unavailable.
func New() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("uuidv7: failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

// Must generates a new UUIDv7 or panics. Reserve it for tests and fixtures.
func Must() string {
	id, err := New()
	if err != nil {
		panic(err)
	}
	return id
}

// Valid reports whether s parses as a version 7 UUID.
func Valid(s string) bool {
	id, err := uuid.Parse(s)
	return err == nil && id.Version() == 7
}
