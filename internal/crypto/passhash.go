// Package crypto implements server-side password hashing and verification.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

const saltLen = 16

// Params are Argon2id cost parameters.
type Params struct {
	Time      uint32 // iterations
	MemoryKiB uint32
	Threads   uint8
	KeyLen    uint32
}

// DefaultParams are tuned for server-side hashing.
var DefaultParams = Params{Time: 3, MemoryKiB: 64 * 1024, Threads: 1, KeyLen: 32}

// Hasher hashes principal credentials with fixed Argon2id parameters.
type Hasher struct{ p Params }

// NewHasher returns a Hasher; zero fields fall back to DefaultParams.
func NewHasher(p Params) Hasher {
	if p.Time == 0 {
		p.Time = DefaultParams.Time
	}
	if p.MemoryKiB == 0 {
		p.MemoryKiB = DefaultParams.MemoryKiB
	}
	if p.Threads == 0 {
		p.Threads = DefaultParams.Threads
	}
	if p.KeyLen == 0 {
		p.KeyLen = DefaultParams.KeyLen
	}
	return Hasher{p: p}
}

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Hash derives a fresh salt and returns (hash, salt).
func (h Hasher) Hash(password string) ([]byte, []byte, error) {
	salt, err := RandBytes(saltLen)
	if err != nil {
		return nil, nil, err
	}
	return h.derive([]byte(password), salt), salt, nil
}

// Verify reports whether password matches the stored hash and salt.
func (h Hasher) Verify(password string, salt, expected []byte) bool {
	if len(expected) == 0 {
		return false
	}
	got := h.derive([]byte(password), salt)
	return subtle.ConstantTimeCompare(got, expected) == 1
}

func (h Hasher) derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, h.p.Time, h.p.MemoryKiB, h.p.Threads, h.p.KeyLen)
}
