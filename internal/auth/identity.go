// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package auth implements the identity lifecycle: anonymous identities created
// by init, registered once, then authenticated and rotated by login, refresh
// and change.
//
// # Architecture
//
//   - [Identity] is the stored record; its Version doubles as an optimistic
//     lock and as the token-invalidation marker.
//   - [Repository] performs every transition as one atomic conditional write.
//   - [Lifecycle] enforces credential rules on top of a Repository.
//   - [Service] turns lifecycle results into signed sessions.
//   - [Handler] is the HTTP delivery layer.
package auth

import (
	"maps"
	"time"

	"github.com/taibuivan/emoji-auth/internal/platform/sec"
)

// Status is the registration state of an identity.
type Status string

const (
	StatusUnregistered Status = "UNREGISTERED" // Created by init, no credentials.
	StatusRegistered   Status = "REGISTERED"   // Holds a name and password hash.
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusUnregistered || s == StatusRegistered
}

// Meta holds caller-supplied attributes. The core never interprets it.
type Meta map[string]any

// MetaParent links an identity created by init to the identity whose token
// the caller was still holding. Only the server sets it.
const MetaParent = "parent"

// FromClient returns m without the keys reserved for the server.
func (m Meta) FromClient() Meta {
	if _, ok := m[MetaParent]; !ok {
		return m
	}
	cleaned := maps.Clone(m)
	delete(cleaned, MetaParent)
	return cleaned
}

// Merge returns a new Meta with patch applied over m. Keys are only ever
// added or overwritten, never removed.
func (m Meta) Merge(patch Meta) Meta {
	merged := make(Meta, len(m)+len(patch))
	maps.Copy(merged, m)
	maps.Copy(merged, patch)
	return merged
}

// Identity is one auth record.
//
// # Rules
//   - UniqueName is always NormalizeName(Name).
//   - PasswordHash is non-empty exactly when Status is REGISTERED.
//   - Version strictly increases on register and change.
type Identity struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	UniqueName    string     `json:"-"`
	PasswordHash  string     `json:"-"` // Never leaves the service.
	Status        Status     `json:"status"`
	Version       int64      `json:"version"`
	Meta          Meta       `json:"meta"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"-"`
	LastRefreshAt *time.Time `json:"-"`
}

// IsRegistered reports whether the identity has completed registration.
func (identity *Identity) IsRegistered() bool {
	return identity.Status == StatusRegistered
}

// Subject is the snapshot signed into a token for this identity.
func (identity *Identity) Subject() sec.TokenSubject {
	return sec.TokenSubject{
		ID:        identity.ID,
		Version:   identity.Version,
		Status:    string(identity.Status),
		Name:      identity.Name,
		CreatedAt: identity.CreatedAt,
	}
}

// Session is the result of every public operation.
type Session struct {
	Token    string    `json:"token"`
	Identity *Identity `json:"identity"`
}

// NextVersion returns the version following previous when written at now.
//
// Versions are UnixNano timestamps, but a clock that stalls or steps back must
// still produce a strictly larger value.
func NextVersion(previous int64, now time.Time) int64 {
	return max(now.UnixNano(), previous+1)
}
