// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taibuivan/emoji-auth/internal/platform/constants"
)

// maxTxAttempts bounds how often a transaction aborted by a concurrent write
// is re-evaluated. Each attempt re-reads state and re-checks the predicate.
const maxTxAttempts = 4

// Hash fields of an identity record.
const (
	fieldID            = "id"
	fieldName          = "name"
	fieldUniqueName    = "unique_name"
	fieldPasswordHash  = "password_hash"
	fieldStatus        = "status"
	fieldVersion       = "version"
	fieldMeta          = "meta"
	fieldCreatedAt     = "created_at"
	fieldUpdatedAt     = "updated_at"
	fieldLastLoginAt   = "last_login_at"
	fieldLastRefreshAt = "last_refresh_at"
)

// RedisRepository implements [Repository] on Redis.
//
// # Layout
//
//   - auth:identity:<id>   hash holding the record, meta JSON-encoded.
//   - auth:name:<unique>   string holding the ID of the REGISTERED owner.
//
// # Concurrency
//
// Transitions WATCH the record and the name key, check the predicate, then
// write both in one MULTI/EXEC. An EXEC aborted by a concurrent writer is
// re-evaluated from a fresh read, so the loser surfaces the predicate's own
// error (ErrVersionConflict, ErrNameConflict, ...) rather than a generic one.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository creates a Redis implementation of [Repository].
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func identityKey(id string) string { return constants.RedisPrefixIdentity + id }

func nameKey(uniqueName string) string { return constants.RedisPrefixName + uniqueName }

// Create stores a new record.
func (repository *RedisRepository) Create(ctx context.Context, identity *Identity) error {
	fields, err := encodeIdentity(identity)
	if err != nil {
		return err
	}

	if err := repository.client.HSet(ctx, identityKey(identity.ID), fields).Err(); err != nil {
		return fmt.Errorf("redis_identity_repo_create_failed: %w", err)
	}
	return nil
}

// FindByID loads a record, or returns [ErrNotFound].
func (repository *RedisRepository) FindByID(ctx context.Context, id string) (*Identity, error) {
	identity, err := readIdentity(ctx, repository.client, id)
	if err != nil {
		return nil, fmt.Errorf("redis_identity_repo_find_by_id_failed: %w", err)
	}
	if identity == nil {
		return nil, ErrNotFound
	}
	return identity, nil
}

// FindRegisteredByUniqueName follows the name index to its owner.
func (repository *RedisRepository) FindRegisteredByUniqueName(ctx context.Context, uniqueName string) (*Identity, error) {
	ownerID, err := repository.client.Get(ctx, nameKey(uniqueName)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis_identity_repo_find_by_name_failed: %w", err)
	}

	identity, err := repository.FindByID(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !identity.IsRegistered() || identity.UniqueName != uniqueName {
		return nil, ErrNotFound
	}
	return identity, nil
}

// IsNameTaken reports whether the name index points at an identity other than exceptID.
func (repository *RedisRepository) IsNameTaken(ctx context.Context, uniqueName, exceptID string) (bool, error) {
	ownerID, err := repository.client.Get(ctx, nameKey(uniqueName)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis_identity_repo_name_taken_failed: %w", err)
	}
	return ownerID != exceptID, nil
}

// Register claims the name index and flips the record to REGISTERED in one EXEC.
func (repository *RedisRepository) Register(ctx context.Context, params RegisterParams) (*Identity, error) {
	recordKey, claimKey := identityKey(params.ID), nameKey(params.UniqueName)

	return repository.transact(ctx, ErrNotFound, func(tx *redis.Tx) (*Identity, error) {
		current, err := readIdentity(ctx, tx, params.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.Status != StatusUnregistered {
			return nil, ErrNotFound
		}
		if err := checkNameOwner(ctx, tx, claimKey, params.ID); err != nil {
			return nil, err
		}

		next := *current
		next.Name = params.Name
		next.UniqueName = params.UniqueName
		next.PasswordHash = params.PasswordHash
		next.Status = StatusRegistered
		next.Version = NextVersion(current.Version, params.At)
		next.UpdatedAt = params.At

		fields, err := encodeIdentity(&next)
		if err != nil {
			return nil, err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, recordKey, fields)
			pipe.Set(ctx, claimKey, params.ID, 0)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &next, nil
	}, recordKey, claimKey)
}

// RecordLogin merges meta and stamps last_login_at without touching the
// version, provided the version is still the one the password was checked at.
func (repository *RedisRepository) RecordLogin(ctx context.Context, params LoginParams) (*Identity, error) {
	recordKey := identityKey(params.ID)

	return repository.transact(ctx, ErrWrongCredentials, func(tx *redis.Tx) (*Identity, error) {
		current, err := readIdentity(ctx, tx, params.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || !current.IsRegistered() || current.Version != params.ExpectedVersion {
			return nil, ErrWrongCredentials
		}

		next := *current
		next.Meta = current.Meta.Merge(params.Meta)
		next.LastLoginAt = &params.At
		next.UpdatedAt = params.At

		return &next, writeRecord(ctx, tx, &next)
	}, recordKey)
}

// Refresh honors a token snapshot only while id, status and version all match.
func (repository *RedisRepository) Refresh(ctx context.Context, params RefreshParams) (*Identity, error) {
	recordKey := identityKey(params.ID)

	return repository.transact(ctx, ErrStaleToken, func(tx *redis.Tx) (*Identity, error) {
		current, err := readIdentity(ctx, tx, params.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || current.Status != params.Status || current.Version != params.Version {
			return nil, ErrStaleToken
		}

		next := *current
		next.Meta = current.Meta.Merge(params.Meta)
		next.LastRefreshAt = &params.At
		next.UpdatedAt = params.At

		return &next, writeRecord(ctx, tx, &next)
	}, recordKey)
}

// UpdateCredentials rotates name and password under the version lock and
// moves the name index when the unique name changes.
func (repository *RedisRepository) UpdateCredentials(ctx context.Context, params CredentialsParams) (*Identity, error) {
	recordKey, claimKey := identityKey(params.ID), nameKey(params.UniqueName)

	return repository.transact(ctx, ErrVersionConflict, func(tx *redis.Tx) (*Identity, error) {
		current, err := readIdentity(ctx, tx, params.ID)
		if err != nil {
			return nil, err
		}
		if current == nil || !current.IsRegistered() || current.Version != params.ExpectedVersion {
			return nil, ErrVersionConflict
		}
		if err := checkNameOwner(ctx, tx, claimKey, params.ID); err != nil {
			return nil, err
		}

		next := *current
		next.Name = params.Name
		next.UniqueName = params.UniqueName
		next.PasswordHash = params.PasswordHash
		next.Version = NextVersion(current.Version, params.At)
		next.UpdatedAt = params.At

		fields, err := encodeIdentity(&next)
		if err != nil {
			return nil, err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, recordKey, fields)
			if current.UniqueName != next.UniqueName {
				pipe.Del(ctx, nameKey(current.UniqueName))
			}
			pipe.Set(ctx, claimKey, params.ID, 0)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return &next, nil
	}, recordKey, claimKey)
}

// transact runs fn under WATCH keys. An EXEC aborted by a concurrent write
// re-runs fn so the predicate is judged on fresh state; exhaustedErr is
// returned if every attempt was aborted.
func (repository *RedisRepository) transact(ctx context.Context, exhaustedErr error, fn func(tx *redis.Tx) (*Identity, error), keys ...string) (*Identity, error) {
	for range maxTxAttempts {
		var result *Identity

		err := repository.client.Watch(ctx, func(tx *redis.Tx) error {
			identity, err := fn(tx)
			if err != nil {
				return err
			}
			result = identity
			return nil
		}, keys...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, classifyRedisError(err)
		}
		return result, nil
	}

	return nil, exhaustedErr
}

// classifyRedisError passes domain errors through and wraps transport failures.
func classifyRedisError(err error) error {
	for _, domainErr := range []error{ErrNotFound, ErrNameConflict, ErrStaleToken, ErrVersionConflict, ErrWrongCredentials} {
		if errors.Is(err, domainErr) {
			return err
		}
	}
	return fmt.Errorf("redis_identity_repo_tx_failed: %w", err)
}

// checkNameOwner fails with [ErrNameConflict] when the name index points at
// an identity other than id.
func checkNameOwner(ctx context.Context, tx *redis.Tx, claimKey, id string) error {
	ownerID, err := tx.Get(ctx, claimKey).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return err
	case ownerID != id:
		return ErrNameConflict
	}
	return nil
}

// writeRecord replaces the record hash inside MULTI/EXEC.
func writeRecord(ctx context.Context, tx *redis.Tx, identity *Identity) error {
	fields, err := encodeIdentity(identity)
	if err != nil {
		return err
	}
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, identityKey(identity.ID), fields)
		return nil
	})
	return err
}

// # Record Encoding

// hashReader is satisfied by both *redis.Client and *redis.Tx.
type hashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// readIdentity loads and decodes a record; a missing key yields (nil, nil).
func readIdentity(ctx context.Context, reader hashReader, id string) (*Identity, error) {
	fields, err := reader.HGetAll(ctx, identityKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return decodeIdentity(fields)
}

func encodeIdentity(identity *Identity) (map[string]any, error) {
	meta := identity.Meta
	if meta == nil {
		meta = Meta{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to encode meta: %w", err)
	}

	return map[string]any{
		fieldID:            identity.ID,
		fieldName:          identity.Name,
		fieldUniqueName:    identity.UniqueName,
		fieldPasswordHash:  identity.PasswordHash,
		fieldStatus:        string(identity.Status),
		fieldVersion:       identity.Version,
		fieldMeta:          string(metaJSON),
		fieldCreatedAt:     identity.CreatedAt.UnixNano(),
		fieldUpdatedAt:     identity.UpdatedAt.UnixNano(),
		fieldLastLoginAt:   optionalNanos(identity.LastLoginAt),
		fieldLastRefreshAt: optionalNanos(identity.LastRefreshAt),
	}, nil
}

func decodeIdentity(fields map[string]string) (*Identity, error) {
	identity := &Identity{
		ID:           fields[fieldID],
		Name:         fields[fieldName],
		UniqueName:   fields[fieldUniqueName],
		PasswordHash: fields[fieldPasswordHash],
		Status:       Status(fields[fieldStatus]),
		Meta:         Meta{},
	}

	var err error
	if identity.Version, err = strconv.ParseInt(fields[fieldVersion], 10, 64); err != nil {
		return nil, fmt.Errorf("auth: corrupt version on identity %s: %w", identity.ID, err)
	}
	if identity.CreatedAt, err = parseNanos(fields[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("auth: corrupt created_at on identity %s: %w", identity.ID, err)
	}
	if identity.UpdatedAt, err = parseNanos(fields[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("auth: corrupt updated_at on identity %s: %w", identity.ID, err)
	}
	if identity.LastLoginAt, err = parseOptionalNanos(fields[fieldLastLoginAt]); err != nil {
		return nil, fmt.Errorf("auth: corrupt last_login_at on identity %s: %w", identity.ID, err)
	}
	if identity.LastRefreshAt, err = parseOptionalNanos(fields[fieldLastRefreshAt]); err != nil {
		return nil, fmt.Errorf("auth: corrupt last_refresh_at on identity %s: %w", identity.ID, err)
	}
	if raw := fields[fieldMeta]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &identity.Meta); err != nil {
			return nil, fmt.Errorf("auth: corrupt meta on identity %s: %w", identity.ID, err)
		}
	}

	return identity, nil
}

// optionalNanos encodes a missing timestamp as 0.
func optionalNanos(at *time.Time) int64 {
	if at == nil {
		return 0
	}
	return at.UnixNano()
}

func parseNanos(raw string) (time.Time, error) {
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, nanos).UTC(), nil
}

func parseOptionalNanos(raw string) (*time.Time, error) {
	if raw == "" || raw == "0" {
		return nil, nil
	}
	at, err := parseNanos(raw)
	if err != nil {
		return nil, err
	}
	return &at, nil
}
