package crypto

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// HashSize is the size of a SecureHash in bytes.
const HashSize = 32

// SecureHash is a 32-byte blake3 digest identifying transactions and attachments.
type SecureHash [HashSize]byte

// ZeroHash is the all-zero hash.
var ZeroHash SecureHash

// HashOf computes the blake3 hash of data.
func HashOf(data []byte) SecureHash {
	return blake3.Sum256(data)
}

// HashConcat hashes the concatenation of the given parts without copying them.
func HashConcat(parts ...[]byte) SecureHash {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}

	var out SecureHash
	h.Sum(out[:0])

	return out
}

// ParseHash decodes a 64-character hex string.
func ParseHash(s string) (SecureHash, error) {
	var h SecureHash

	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hash:\n%w", err)
	}

	if len(b) != HashSize {
		return h, fmt.Errorf("invalid hash size: got %d, want %d", len(b), HashSize)
	}

	copy(h[:], b)

	return h, nil
}

// HashFromBytes copies b into a SecureHash. Returns false if b has the wrong size.
func HashFromBytes(b []byte) (SecureHash, bool) {
	var h SecureHash
	if len(b) != HashSize {
		return h, false
	}

	copy(h[:], b)

	return h, true
}

// String returns the full hex encoding.
func (h SecureHash) String() string {
	return hex.EncodeToString(h[:])
}

// Prefix returns the first 8 hex characters, for logs.
func (h SecureHash) Prefix() string {
	return hex.EncodeToString(h[:4])
}

// IsZero reports whether h is the zero hash.
func (h SecureHash) IsZero() bool {
	return h == ZeroHash
}
