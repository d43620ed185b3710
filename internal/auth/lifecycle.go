// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/taibuivan/emoji-auth/pkg/uuidv7"
)

// PasswordHasher is the credential primitive the lifecycle depends on.
// [sec.PasswordHasher] implements it.
type PasswordHasher interface {
	Hash(plainTextPassword string) (string, error)
	Compare(plainTextPassword, existingHash string) bool
	CompareDummy(plainTextPassword string)
}

// Lifecycle applies the identity transitions on top of a [Repository].
//
// # Concurrency
//
// Lifecycle holds no mutable state. Every transition ends in exactly one
// conditional repository write; the reads before it are early exits only.
type Lifecycle struct {
	repository Repository
	hasher     PasswordHasher
	now        func() time.Time
	newID      func() (string, error)
}

// LifecycleOption customizes a [Lifecycle].
type LifecycleOption func(*Lifecycle)

// WithLifecycleClock injects the time source used for versions and timestamps.
func WithLifecycleClock(clock func() time.Time) LifecycleOption {
	return func(lifecycle *Lifecycle) {
		if clock != nil {
			lifecycle.now = clock
		}
	}
}

// NewLifecycle constructs a [Lifecycle].
func NewLifecycle(repository Repository, hasher PasswordHasher, opts ...LifecycleOption) *Lifecycle {
	lifecycle := &Lifecycle{
		repository: repository,
		hasher:     hasher,
		now:        time.Now,
		newID:      uuidv7.New,
	}
	for _, opt := range opts {
		opt(lifecycle)
	}
	return lifecycle
}

// CreateAnonymous stores a new UNREGISTERED identity with a placeholder name.
func (lifecycle *Lifecycle) CreateAnonymous(ctx context.Context, meta Meta) (*Identity, error) {
	id, err := lifecycle.newID()
	if err != nil {
		return nil, err
	}

	now := lifecycle.now().UTC()
	name := PlaceholderName()
	identity := &Identity{
		ID:         id,
		Name:       name,
		UniqueName: NormalizeName(name),
		Status:     StatusUnregistered,
		Version:    now.UnixNano(),
		Meta:       Meta{}.Merge(meta),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := lifecycle.repository.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("auth_lifecycle_create_failed: %w", err)
	}
	return identity, nil
}

// RegisterIdentity gives an anonymous identity a name and password.
//
// # Returns
//   - [ErrNameConflict] if another registered identity holds the name.
//   - [ErrNotFound] if id is unknown or already registered.
func (lifecycle *Lifecycle) RegisterIdentity(ctx context.Context, id, name, password string) (*Identity, error) {
	uniqueName := NormalizeName(name)

	// ── 1. Early Name Check ───────────────────────────────────────────────
	if err := lifecycle.ensureNameFree(ctx, uniqueName, id); err != nil {
		return nil, err
	}

	// ── 2. Security ───────────────────────────────────────────────────────
	passwordHash, err := lifecycle.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("auth_lifecycle_hash_failed: %w", err)
	}

	// ── 3. Conditional Write ──────────────────────────────────────────────
	return lifecycle.repository.Register(ctx, RegisterParams{
		ID:           id,
		Name:         strings.TrimSpace(name),
		UniqueName:   uniqueName,
		PasswordHash: passwordHash,
		At:           lifecycle.now().UTC(),
	})
}

// LoginByName authenticates a registered identity by name.
//
// An unknown name and a wrong password both return [ErrWrongCredentials], and
// the unknown-name path still pays for one bcrypt comparison.
func (lifecycle *Lifecycle) LoginByName(ctx context.Context, name, password string, meta Meta) (*Identity, error) {
	identity, err := lifecycle.repository.FindRegisteredByUniqueName(ctx, NormalizeName(name))
	if errors.Is(err, ErrNotFound) {
		lifecycle.hasher.CompareDummy(password)
		return nil, ErrWrongCredentials
	}
	if err != nil {
		return nil, err
	}

	if !lifecycle.hasher.Compare(password, identity.PasswordHash) {
		return nil, ErrWrongCredentials
	}

	// The write is pinned to the version the password was checked against,
	// so a change committed in between turns this login away.
	return lifecycle.repository.RecordLogin(ctx, LoginParams{
		ID:              identity.ID,
		ExpectedVersion: identity.Version,
		Meta:            meta,
		At:              lifecycle.now().UTC(),
	})
}

// RefreshIdentity honors a token snapshot while it still matches the record.
// It never bumps the version.
func (lifecycle *Lifecycle) RefreshIdentity(ctx context.Context, id string, status Status, version int64, meta Meta) (*Identity, error) {
	return lifecycle.repository.Refresh(ctx, RefreshParams{
		ID:      id,
		Status:  status,
		Version: version,
		Meta:    meta,
		At:      lifecycle.now().UTC(),
	})
}

// ChangeCredentials rotates the name and password of a registered identity.
//
// version is the version the caller's token was issued at. It is checked
// against the record before the password and again by the final write.
//
// # Returns
//   - [ErrNotFound], [ErrVersionConflict], [ErrWrongCredentials],
//     [ErrSamePassword] or [ErrNameConflict], in that order of checking.
//   - [ErrVersionConflict] from the write if a concurrent change won.
func (lifecycle *Lifecycle) ChangeCredentials(ctx context.Context, id string, version int64, name, password, newPassword string) (*Identity, error) {

	// ── 1. Credential Check ───────────────────────────────────────────────
	current, err := lifecycle.repository.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsRegistered() || current.Version != version {
		return nil, ErrVersionConflict
	}
	if !lifecycle.hasher.Compare(password, current.PasswordHash) {
		return nil, ErrWrongCredentials
	}

	// ── 2. Rotation Rules ─────────────────────────────────────────────────
	if strings.TrimSpace(newPassword) == password {
		return nil, ErrSamePassword
	}

	uniqueName := NormalizeName(name)
	if err := lifecycle.ensureNameFree(ctx, uniqueName, id); err != nil {
		return nil, err
	}

	passwordHash, err := lifecycle.hasher.Hash(newPassword)
	if err != nil {
		return nil, fmt.Errorf("auth_lifecycle_hash_failed: %w", err)
	}

	// ── 3. Conditional Write ──────────────────────────────────────────────
	return lifecycle.repository.UpdateCredentials(ctx, CredentialsParams{
		ID:              id,
		ExpectedVersion: version,
		Name:            strings.TrimSpace(name),
		UniqueName:      uniqueName,
		PasswordHash:    passwordHash,
		At:              lifecycle.now().UTC(),
	})
}

func (lifecycle *Lifecycle) ensureNameFree(ctx context.Context, uniqueName, exceptID string) error {
	taken, err := lifecycle.repository.IsNameTaken(ctx, uniqueName, exceptID)
	if err != nil {
		return err
	}
	if taken {
		return ErrNameConflict
	}
	return nil
}
