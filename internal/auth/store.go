// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// Repository defines the data access contract for identities.
//
// # Atomicity
//
// Every mutating method is a single conditional write: the predicate named in
// its doc is evaluated and the new state applied in one indivisible step. A
// write whose predicate no longer holds fails with the documented error and is
// never retried against a different predicate.
//
// # Implementations
//
// [PostgresRepository] (canonical) and [RedisRepository].
type Repository interface {
	// Create persists a brand-new identity.
	Create(ctx context.Context, identity *Identity) error

	// FindByID returns the identity with the given ID.
	//
	// Returns [ErrNotFound] if it does not exist.
	FindByID(ctx context.Context, id string) (*Identity, error)

	// FindRegisteredByUniqueName returns the REGISTERED identity holding uniqueName.
	//
	// Returns [ErrNotFound] if there is none.
	FindRegisteredByUniqueName(ctx context.Context, uniqueName string) (*Identity, error)

	// IsNameTaken reports whether a REGISTERED identity other than exceptID
	// holds uniqueName. It is an early exit only; uniqueness is enforced by
	// [Repository.Register] and [Repository.UpdateCredentials].
	IsNameTaken(ctx context.Context, uniqueName, exceptID string) (bool, error)

	// Register moves an identity from UNREGISTERED to REGISTERED.
	//
	// Predicate: id matches and status is UNREGISTERED, else [ErrNotFound].
	// A registered identity already holding the name yields [ErrNameConflict].
	Register(ctx context.Context, params RegisterParams) (*Identity, error)

	// RecordLogin merges meta and stamps last_login_at on a REGISTERED
	// identity. The version is left unchanged.
	//
	// Predicate: id matches, status is REGISTERED and version equals
	// ExpectedVersion, else [ErrWrongCredentials].
	RecordLogin(ctx context.Context, params LoginParams) (*Identity, error)

	// Refresh merges meta and stamps last_refresh_at.
	//
	// Predicate: id, status and version all match, else [ErrStaleToken].
	// The version is left unchanged.
	Refresh(ctx context.Context, params RefreshParams) (*Identity, error)

	// UpdateCredentials replaces the name and password hash and bumps the version.
	//
	// Predicate: id matches, status is REGISTERED and version equals
	// ExpectedVersion, else [ErrVersionConflict]. A different registered
	// identity holding the name yields [ErrNameConflict].
	UpdateCredentials(ctx context.Context, params CredentialsParams) (*Identity, error)
}

// RegisterParams describes a register transition.
type RegisterParams struct {
	ID           string
	Name         string
	UniqueName   string
	PasswordHash string
	At           time.Time
}

// LoginParams describes a successful login.
type LoginParams struct {
	ID string

	// ExpectedVersion is the version whose password hash was verified.
	ExpectedVersion int64

	Meta Meta
	At   time.Time
}

// RefreshParams pins the snapshot a token carries.
type RefreshParams struct {
	ID      string
	Status  Status
	Version int64
	Meta    Meta
	At      time.Time
}

// CredentialsParams describes a credential change.
type CredentialsParams struct {
	ID              string
	ExpectedVersion int64
	Name            string
	UniqueName      string
	PasswordHash    string
	At              time.Time
}
