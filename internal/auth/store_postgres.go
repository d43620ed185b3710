// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taibuivan/emoji-auth/internal/platform/database/schema"
	"github.com/taibuivan/emoji-auth/internal/platform/dberr"
)

// PostgresRepository implements [Repository] on the auth.identity table.
//
// # Concurrency
//
// Each transition is one UPDATE ... WHERE <predicate> RETURNING statement, so
// the predicate check and the write share a single row lock. Registered-name
// uniqueness is enforced by the partial unique index, not by the pre-check.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL implementation of [Repository].
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

var identityTable = schema.AuthIdentity

/*
Create inserts a new identity row.

Parameters:
  - context: context.Context
  - identity: *Identity, fully populated by the caller

Returns:
  - error: Execution failures
*/
func (repository *PostgresRepository) Create(context context.Context, identity *Identity) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10, $11)`,
		identityTable.Table, identityTable.ColumnList(),
	)

	metaJSON, err := encodeMeta(identity.Meta)
	if err != nil {
		return err
	}

	_, err = repository.pool.Exec(context, query,
		identity.ID,
		identity.Name,
		identity.UniqueName,
		nullableString(identity.PasswordHash),
		string(identity.Status),
		identity.Version,
		metaJSON,
		identity.CreatedAt,
		identity.UpdatedAt,
		identity.LastLoginAt,
		identity.LastRefreshAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_identity_repo_create_failed: %w", dberr.Wrap(err, "create_identity"))
	}

	return nil
}

/*
FindByID retrieves an identity by primary key.

Returns:
  - *Identity: Hydrated identity
  - error: ErrNotFound or database execution failure
*/
func (repository *PostgresRepository) FindByID(context context.Context, id string) (*Identity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`,
		identityTable.ColumnList(), identityTable.Table, identityTable.ID)

	identity, err := scanIdentity(repository.pool.QueryRow(context, query, id))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres_identity_repo_find_by_id_failed: %w", dberr.Wrap(err, "find_identity"))
	}

	return identity, nil
}

/*
FindRegisteredByUniqueName retrieves the registered identity holding a name.

Returns:
  - *Identity: Hydrated identity
  - error: ErrNotFound or database execution failure
*/
func (repository *PostgresRepository) FindRegisteredByUniqueName(context context.Context, uniqueName string) (*Identity, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 AND %s = $2`,
		identityTable.ColumnList(), identityTable.Table, identityTable.UniqueName, identityTable.Status)

	identity, err := scanIdentity(repository.pool.QueryRow(context, query, uniqueName, string(StatusRegistered)))
	if err != nil {
		if dberr.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("postgres_identity_repo_find_by_name_failed: %w", dberr.Wrap(err, "find_identity_by_name"))
	}

	return identity, nil
}

// IsNameTaken reports whether another registered identity holds uniqueName.
func (repository *PostgresRepository) IsNameTaken(context context.Context, uniqueName, exceptID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND %s = $2 AND %s <> $3)`,
		identityTable.Table, identityTable.UniqueName, identityTable.Status, identityTable.ID)

	var taken bool
	if err := repository.pool.QueryRow(context, query, uniqueName, string(StatusRegistered), exceptID).Scan(&taken); err != nil {
		return false, fmt.Errorf("postgres_identity_repo_name_taken_failed: %w", dberr.Wrap(err, "check_name"))
	}

	return taken, nil
}

/*
Register completes registration of an anonymous identity.

Description: The WHERE clause pins status = UNREGISTERED, so of two
concurrent registrations of the same ID exactly one matches a row.

Returns:
  - *Identity: The registered identity with its bumped version
  - error: ErrNotFound, ErrNameConflict or database execution failure
*/
func (repository *PostgresRepository) Register(context context.Context, params RegisterParams) (*Identity, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = GREATEST($6, %s + 1), %s = $7
		WHERE %s = $1 AND %s = $8
		RETURNING %s`,
		identityTable.Table,
		identityTable.Name, identityTable.UniqueName, identityTable.PasswordHash, identityTable.Status,
		identityTable.Version, identityTable.Version, identityTable.UpdatedAt,
		identityTable.ID, identityTable.Status,
		identityTable.ColumnList(),
	)

	identity, err := scanIdentity(repository.pool.QueryRow(context, query,
		params.ID,
		params.Name,
		params.UniqueName,
		params.PasswordHash,
		string(StatusRegistered),
		params.At.UnixNano(),
		params.At,
		string(StatusUnregistered),
	))
	if err != nil {
		return nil, repository.classifyWrite(err, ErrNotFound, "register_identity")
	}

	return identity, nil
}

/*
RecordLogin stamps a successful login.

Description: meta is merged with the jsonb || operator; version is untouched
so tokens held by other devices stay valid. The row must still carry the
version whose password hash was verified, else ErrWrongCredentials.
*/
func (repository *PostgresRepository) RecordLogin(context context.Context, params LoginParams) (*Identity, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = %s || $2::jsonb, %s = $3, %s = $3
		WHERE %s = $1 AND %s = $4 AND %s = $5
		RETURNING %s`,
		identityTable.Table,
		identityTable.Meta, identityTable.Meta, identityTable.LastLoginAt, identityTable.UpdatedAt,
		identityTable.ID, identityTable.Status, identityTable.Version,
		identityTable.ColumnList(),
	)

	metaJSON, err := encodeMeta(params.Meta)
	if err != nil {
		return nil, err
	}

	identity, err := scanIdentity(repository.pool.QueryRow(context, query,
		params.ID, metaJSON, params.At, string(StatusRegistered), params.ExpectedVersion))
	if err != nil {
		return nil, repository.classifyWrite(err, ErrWrongCredentials, "record_login")
	}

	return identity, nil
}

/*
Refresh re-validates a token snapshot against the stored row.

Returns:
  - *Identity: The identity, version unchanged
  - error: ErrStaleToken when id, status or version diverged
*/
func (repository *PostgresRepository) Refresh(context context.Context, params RefreshParams) (*Identity, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = %s || $4::jsonb, %s = $5, %s = $5
		WHERE %s = $1 AND %s = $2 AND %s = $3
		RETURNING %s`,
		identityTable.Table,
		identityTable.Meta, identityTable.Meta, identityTable.LastRefreshAt, identityTable.UpdatedAt,
		identityTable.ID, identityTable.Status, identityTable.Version,
		identityTable.ColumnList(),
	)

	metaJSON, err := encodeMeta(params.Meta)
	if err != nil {
		return nil, err
	}

	identity, err := scanIdentity(repository.pool.QueryRow(context, query,
		params.ID, string(params.Status), params.Version, metaJSON, params.At))
	if err != nil {
		return nil, repository.classifyWrite(err, ErrStaleToken, "refresh_identity")
	}

	return identity, nil
}

/*
UpdateCredentials rotates name and password under the version lock.

Returns:
  - *Identity: The identity with its bumped version
  - error: ErrVersionConflict, ErrNameConflict or database execution failure
*/
func (repository *PostgresRepository) UpdateCredentials(context context.Context, params CredentialsParams) (*Identity, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $3, %s = $4, %s = $5, %s = GREATEST($6, %s + 1), %s = $7
		WHERE %s = $1 AND %s = $2 AND %s = $8
		RETURNING %s`,
		identityTable.Table,
		identityTable.Name, identityTable.UniqueName, identityTable.PasswordHash,
		identityTable.Version, identityTable.Version, identityTable.UpdatedAt,
		identityTable.ID, identityTable.Version, identityTable.Status,
		identityTable.ColumnList(),
	)

	identity, err := scanIdentity(repository.pool.QueryRow(context, query,
		params.ID,
		params.ExpectedVersion,
		params.Name,
		params.UniqueName,
		params.PasswordHash,
		params.At.UnixNano(),
		params.At,
		string(StatusRegistered),
	))
	if err != nil {
		return nil, repository.classifyWrite(err, ErrVersionConflict, "update_credentials")
	}

	return identity, nil
}

// classifyWrite maps a failed conditional UPDATE: no matching row becomes
// missErr, a hit on the registered-name index becomes [ErrNameConflict].
func (repository *PostgresRepository) classifyWrite(err error, missErr error, action string) error {
	if dberr.IsNoRows(err) {
		return missErr
	}
	if constraint, ok := dberr.UniqueViolation(err); ok && constraint == identityTable.UniqueNameIndex {
		return ErrNameConflict.WithCause(err)
	}
	return fmt.Errorf("postgres_identity_repo_%s_failed: %w", action, dberr.Wrap(err, action))
}

// # Row Mapping

// scanIdentity reads one row in [schema.AuthIdentityTable.Columns] order.
func scanIdentity(row pgx.Row) (*Identity, error) {
	var (
		identity     Identity
		passwordHash *string
		status       string
		metaJSON     []byte
		lastLogin    *time.Time
		lastRefresh  *time.Time
	)

	err := row.Scan(
		&identity.ID,
		&identity.Name,
		&identity.UniqueName,
		&passwordHash,
		&status,
		&identity.Version,
		&metaJSON,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&lastLogin,
		&lastRefresh,
	)
	if err != nil {
		return nil, err
	}

	if passwordHash != nil {
		identity.PasswordHash = *passwordHash
	}
	identity.Status = Status(status)
	identity.LastLoginAt = lastLogin
	identity.LastRefreshAt = lastRefresh

	identity.Meta = Meta{}
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &identity.Meta); err != nil {
			return nil, fmt.Errorf("postgres_identity_repo_decode_meta_failed: %w", err)
		}
	}

	return &identity, nil
}

// encodeMeta renders meta for a jsonb parameter. nil encodes as an empty object
// so the || merge is a no-op.
func encodeMeta(meta Meta) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("auth: failed to encode meta: %w", err)
	}
	return string(encoded), nil
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
