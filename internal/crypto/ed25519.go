package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Ed25519Signer signs with an Ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  PublicKey
}

// NewEd25519Signer wraps an existing private key.
func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid key size: got %d, want %d", len(priv), ed25519.PrivateKeySize)
	}

	pub := priv.Public().(ed25519.PublicKey)

	return &Ed25519Signer{
		priv: priv,
		pub:  NewPublicKey(SchemeEd25519, pub),
	}, nil
}

// GenerateEd25519 creates a signer with a fresh random key.
func GenerateEd25519() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key:\n%w", err)
	}

	return NewEd25519Signer(priv)
}

// Public returns the verification key.
func (s *Ed25519Signer) Public() PublicKey {
	return s.pub
}

// Sign signs content.
func (s *Ed25519Signer) Sign(content []byte) (Signature, error) {
	return Signature{By: s.pub, Bytes: ed25519.Sign(s.priv, content)}, nil
}

// verifyEd25519 checks an Ed25519 signature.
func verifyEd25519(pub, content, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(pub, content, sig)
}
