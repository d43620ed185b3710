// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package sec

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// dummyPassword seeds the hash used to equalize login timing for unknown names.
const dummyPassword = "emoji-auth-timing-equalizer"

// PasswordHasher performs one-way password hashing with a fixed bcrypt cost.
//
// # Concurrency
//
// A PasswordHasher is immutable after construction and safe for concurrent use.
type PasswordHasher struct {
	cost      int
	dummyHash []byte
}

// NewPasswordHasher creates a [PasswordHasher] using the given bcrypt work factor.
func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("sec: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to prepare dummy hash: %w", err)
	}

	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

// Cost returns the configured bcrypt work factor.
func (hasher *PasswordHasher) Cost() int {
	return hasher.cost
}

// Hash hashes a plain-text password. Each call draws a fresh random salt,
// so hashing the same password twice yields different strings.
func (hasher *PasswordHasher) Hash(plainTextPassword string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(plainTextPassword), hasher.cost)
	if err != nil {
		return "", fmt.Errorf("sec: failed to hash password: %w", err)
	}
	return string(hashedBytes), nil
}

// Compare reports whether plainTextPassword matches existingHash.
// A malformed or empty hash never matches.
func (hasher *PasswordHasher) Compare(plainTextPassword, existingHash string) bool {
	if existingHash == "" {
		hasher.CompareDummy(plainTextPassword)
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(existingHash), []byte(plainTextPassword))
	return err == nil
}

// CompareDummy spends the same work as a real comparison and always fails.
// Callers use it when no stored hash exists so the response time does not
// reveal whether an account exists.
func (hasher *PasswordHasher) CompareDummy(plainTextPassword string) {
	_ = bcrypt.CompareHashAndPassword(hasher.dummyHash, []byte(plainTextPassword))
}
