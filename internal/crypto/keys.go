package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Scheme identifies a signature algorithm.
type Scheme uint8

const (
	// SchemeEd25519 is used for party and command signing keys.
	SchemeEd25519 Scheme = 1

	// SchemeBLS is BLS12-381 (min-pk), used for notary keys.
	SchemeBLS Scheme = 2
)

// ErrInvalidSignature is returned when a signature does not verify.
var ErrInvalidSignature = errors.New("invalid signature")

// String returns the scheme name.
func (s Scheme) String() string {
	switch s {
	case SchemeEd25519:
		return "ed25519"
	case SchemeBLS:
		return "bls"
	default:
		return fmt.Sprintf("scheme(%d)", uint8(s))
	}
}

// PublicKey is a scheme-tagged public key.
// The key bytes are held in a string so the type is comparable and usable as a map key.
type PublicKey struct {
	Scheme Scheme
	key    string
}

// NewPublicKey builds a public key from raw bytes.
func NewPublicKey(scheme Scheme, key []byte) PublicKey {
	return PublicKey{Scheme: scheme, key: string(key)}
}

// Bytes returns a copy of the raw key bytes.
func (k PublicKey) Bytes() []byte {
	return []byte(k.key)
}

// ParsePublicKey decodes "<scheme>:<hex key>", with scheme "ed25519" or "bls".
func ParsePublicKey(s string) (PublicKey, error) {
	name, encoded, ok := strings.Cut(s, ":")
	if !ok {
		return PublicKey{}, fmt.Errorf("invalid public key %q: want <scheme>:<hex>", s)
	}

	var scheme Scheme
	switch name {
	case SchemeEd25519.String():
		scheme = SchemeEd25519
	case SchemeBLS.String():
		scheme = SchemeBLS
	default:
		return PublicKey{}, fmt.Errorf("unknown scheme %q", name)
	}

	key, err := hex.DecodeString(encoded)
	if err != nil {
		return PublicKey{}, fmt.Errorf("decode public key:\n%w", err)
	}
	if len(key) == 0 {
		return PublicKey{}, fmt.Errorf("empty public key")
	}

	return NewPublicKey(scheme, key), nil
}

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool {
	return k.Scheme == 0 && k.key == ""
}

// String returns a short printable form: scheme and the first 8 bytes in hex.
func (k PublicKey) String() string {
	b := []byte(k.key)
	if len(b) > 8 {
		b = b[:8]
	}

	return k.Scheme.String() + ":" + hex.EncodeToString(b)
}

// Signature is a signature together with the key that produced it.
type Signature struct {
	By    PublicKey
	Bytes []byte
}

// Verify checks the signature over content.
func (s Signature) Verify(content []byte) error {
	var ok bool

	switch s.By.Scheme {
	case SchemeEd25519:
		ok = verifyEd25519(s.By.Bytes(), content, s.Bytes)
	case SchemeBLS:
		ok = verifyBLS(s.Bytes, content, s.By.Bytes())
	default:
		return fmt.Errorf("unsupported scheme %s", s.By.Scheme)
	}

	if !ok {
		return fmt.Errorf("%w by %s", ErrInvalidSignature, s.By)
	}

	return nil
}

// Signer produces signatures for a single key.
type Signer interface {
	// Public returns the verification key.
	Public() PublicKey

	// Sign signs content.
	Sign(content []byte) (Signature, error)
}
