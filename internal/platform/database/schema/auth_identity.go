// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package schema holds the physical table and column names used by the
// PostgreSQL repositories, so SQL text and migrations share one vocabulary.
package schema

import "strings"

// AuthIdentityTable represents the 'auth.identity' table
type AuthIdentityTable struct {
	Table         string
	ID            string
	Name          string
	UniqueName    string
	PasswordHash  string
	Status        string
	Version       string
	Meta          string
	CreatedAt     string
	UpdatedAt     string
	LastLoginAt   string
	LastRefreshAt string

	// UniqueNameIndex is the partial unique index guarding registered names.
	UniqueNameIndex string
}

// AuthIdentity is the schema definition for auth.identity
var AuthIdentity = AuthIdentityTable{
	Table:         "auth.identity",
	ID:            "id",
	Name:          "name",
	UniqueName:    "uniquename",
	PasswordHash:  "passwordhash",
	Status:        "status",
	Version:       "version",
	Meta:          "meta",
	CreatedAt:     "createdat",
	UpdatedAt:     "updatedat",
	LastLoginAt:   "lastloginat",
	LastRefreshAt: "lastrefreshat",

	UniqueNameIndex: "uq_identity_uniquename",
}

// Columns returns all standard column names in scan order.
func (t AuthIdentityTable) Columns() []string {
	return []string{
		t.ID, t.Name, t.UniqueName, t.PasswordHash, t.Status, t.Version,
		t.Meta, t.CreatedAt, t.UpdatedAt, t.LastLoginAt, t.LastRefreshAt,
	}
}

// ColumnList returns the columns joined for SELECT and RETURNING clauses.
func (t AuthIdentityTable) ColumnList() string {
	return strings.Join(t.Columns(), ", ")
}
