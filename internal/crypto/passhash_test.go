package crypto

import (
	"bytes"
	"testing"
)

var cheap = Params{Time: 1, MemoryKiB: 1024, Threads: 1, KeyLen: 32}

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 64
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes(2): %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatalf("two subsequent RandBytes(%d) are equal, looks non-random", n)
	}
}

func TestNewHasher_Defaults(t *testing.T) {
	t.Parallel()
	h := NewHasher(Params{})
	if h.p != DefaultParams {
		t.Fatalf("zero params must fall back to defaults, got %+v", h.p)
	}
	h = NewHasher(Params{Time: 1})
	if h.p.Time != 1 || h.p.MemoryKiB != DefaultParams.MemoryKiB {
		t.Fatalf("partial override: %+v", h.p)
	}
}

func TestHash_FreshSaltPerCall(t *testing.T) {
	t.Parallel()
	h := NewHasher(cheap)

	h1, s1, err := h.Hash("p@ssw0rd")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	h2, s2, err := h.Hash("p@ssw0rd")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if len(s1) != saltLen || bytes.Equal(s1, s2) {
		t.Fatalf("salts must be random and %d bytes", saltLen)
	}
	if bytes.Equal(h1, h2) {
		t.Fatalf("hashes with different salts must differ")
	}
	if len(h1) != int(cheap.KeyLen) {
		t.Fatalf("key len %d", len(h1))
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()
	h := NewHasher(cheap)

	hash, salt, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !h.Verify("correct horse battery staple", salt, hash) {
		t.Fatalf("expected true for correct password")
	}
	if h.Verify("wrong", salt, hash) {
		t.Fatalf("expected false for wrong password")
	}
	if h.Verify("correct horse battery staple", []byte("wrong-salt"), hash) {
		t.Fatalf("expected false for wrong salt")
	}
	if h.Verify("", salt, nil) {
		t.Fatalf("expected false for empty stored hash")
	}
}
