// Package hashing provides the content-addressing and Merkle DAG primitives
// shared by the chunk store, index layer, and manifest packages.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Size is the length in bytes of a Hash.
const Size = sha256.Size

// Hash is a SHA-256 digest used throughout the engine as a content address.
type Hash [Size]byte

// Zero is the all-zero hash, never a valid content address.
var Zero Hash

// Sum computes the SHA-256 hash of data.
func Sum(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// SumAll computes the SHA-256 hash over the concatenation of parts, without
// allocating an intermediate buffer.
func SumAll(parts ...[]byte) Hash {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out Hash
	h.Sum(out[:0])
	return out
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// MarshalText implements encoding.TextMarshaler so a Hash can be embedded
// directly in YAML/JSON configuration and manifest structures.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := ParseHash(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash decodes a hex-encoded hash string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if len(s) != Size*2 {
		return h, fmt.Errorf("hashing: invalid hash length %d, want %d", len(s), Size*2)
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("hashing: invalid hex: %w", err)
	}
	copy(h[:], decoded)
	return h, nil
}

// FanoutPath returns the two-level fan-out directory path for a hash,
// e.g. "a1/b2c3...". The first byte becomes the directory, the remainder
// the filename, keeping any one directory from holding more than ~256th
// of the total chunk population.
func (h Hash) FanoutPath() (dir, name string) {
	s := h.String()
	return s[:2], s[2:]
}
