// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"runtime"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

const (
	// DefaultBcryptCost is the work factor for new hashes.
	DefaultBcryptCost = 12

	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72

	// maxArgon2Memory caps the KiB a stored legacy hash may ask for.
	maxArgon2Memory = 256 * 1024
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// ErrPasswordTooLong is returned when a password exceeds MaxPasswordBytes.
var ErrPasswordTooLong = oops.Code(CodePasswordTooLong).
	With("max_bytes", MaxPasswordBytes).
	Errorf("password cannot exceed %d bytes", MaxPasswordBytes)

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces a salted one-way hash of the password.
	Hash(ctx context.Context, password string) (string, error)

	// Verify checks if the password matches the hash.
	// A malformed hash is a mismatch, not an error. Errors are reserved for
	// the call itself failing, e.g. a cancelled context.
	Verify(ctx context.Context, password, hash string) (bool, error)

	// NeedsUpgrade returns true if the hash should be recomputed.
	NeedsUpgrade(hash string) bool
}

// BcryptHasher implements PasswordHasher using bcrypt. It also verifies
// legacy argon2id PHC strings so they can be upgraded on login.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a BcryptHasher with DefaultBcryptCost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{cost: DefaultBcryptCost}
}

// NewBcryptHasherWithCost creates a BcryptHasher with a custom cost.
func NewBcryptHasherWithCost(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, oops.Code("AUTH_INVALID_COST").
			With("cost", cost).
			Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash produces a bcrypt hash of the password.
func (h *BcryptHasher) Hash(_ context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", oops.Code("AUTH_HASH_FAILED").Wrap(err)
	}
	return string(hash), nil
}

// Verify checks if the password matches a bcrypt or argon2id hash.
func (h *BcryptHasher) Verify(_ context.Context, password, encodedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(encodedHash, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil, nil
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return verifyArgon2id(password, encodedHash), nil
	default:
		return false, nil
	}
}

// NeedsUpgrade returns true for non-bcrypt hashes and bcrypt hashes below the configured cost.
func (h *BcryptHasher) NeedsUpgrade(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < h.cost
}

// verifyArgon2id checks a PHC string of the form
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>.
func verifyArgon2id(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	if threads == 0 || threads > 255 || time == 0 || memory == 0 || memory > maxArgon2Memory {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}
	keyLen := len(expected)
	if keyLen == 0 || keyLen > 1024 {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}

// BoundedHasher limits how many hash and verify calls run at once so bursts
// of logins cannot occupy every CPU.
type BoundedHasher struct {
	inner PasswordHasher
	sem   *semaphore.Weighted
}

// NewBoundedHasher wraps inner. A limit of zero or less uses GOMAXPROCS.
func NewBoundedHasher(inner PasswordHasher, limit int) *BoundedHasher {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	return &BoundedHasher{inner: inner, sem: semaphore.NewWeighted(int64(limit))}
}

// Hash waits for a slot and delegates.
func (b *BoundedHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", oops.Code("AUTH_HASHER_BUSY").Wrap(err)
	}
	defer b.sem.Release(1)
	return b.inner.Hash(ctx, password)
}

// Verify waits for a slot and delegates.
func (b *BoundedHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return false, oops.Code("AUTH_HASHER_BUSY").Wrap(err)
	}
	defer b.sem.Release(1)
	return b.inner.Verify(ctx, password, hash)
}

// NeedsUpgrade delegates without waiting.
func (b *BoundedHasher) NeedsUpgrade(hash string) bool {
	return b.inner.NeedsUpgrade(hash)
}
