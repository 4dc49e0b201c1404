package crypto

import (
	"crypto/rand"
	"fmt"

	blst "github.com/supranational/blst/bindings/go"
)

const (
	// BLSPublicKeySize is the size of a compressed BLS public key in bytes.
	BLSPublicKeySize = 48

	// BLSSignatureSize is the size of a compressed BLS signature in bytes.
	BLSSignatureSize = 96
)

// blsDST is the domain separation tag for BLS signatures.
var blsDST = []byte("BLS_SIG_BLS12381G2_XMD:SHA-256_SSWU_RO_NUL_")

// BLSSigner holds a BLS private/public key pair.
type BLSSigner struct {
	secret *blst.SecretKey
	public PublicKey
}

// GenerateBLS creates a BLS signer from a random seed.
func GenerateBLS() (*BLSSigner, error) {
	var ikm [32]byte
	if _, err := rand.Read(ikm[:]); err != nil {
		return nil, fmt.Errorf("generate random seed:\n%w", err)
	}

	return NewBLSFromSeed(ikm[:])
}

// NewBLSFromSeed creates a BLS signer from a deterministic seed of at least 32 bytes.
func NewBLSFromSeed(seed []byte) (*BLSSigner, error) {
	if len(seed) < 32 {
		return nil, fmt.Errorf("seed must be at least 32 bytes")
	}

	secret := blst.KeyGen(seed)
	if secret == nil {
		return nil, fmt.Errorf("failed to generate BLS key")
	}

	pk := new(blst.P1Affine).From(secret)

	return &BLSSigner{
		secret: secret,
		public: NewPublicKey(SchemeBLS, pk.Compress()),
	}, nil
}

// Public returns the compressed verification key.
func (s *BLSSigner) Public() PublicKey {
	return s.public
}

// Sign creates a BLS signature over content.
func (s *BLSSigner) Sign(content []byte) (Signature, error) {
	sig := new(blst.P2Affine).Sign(s.secret, content, blsDST)

	return Signature{By: s.public, Bytes: sig.Compress()}, nil
}

// verifyBLS checks a BLS signature against a message and public key.
func verifyBLS(signature, message, publicKey []byte) bool {
	if len(signature) != BLSSignatureSize || len(publicKey) != BLSPublicKeySize {
		return false
	}

	sig := new(blst.P2Affine).Uncompress(signature)
	if sig == nil {
		return false
	}

	pk := new(blst.P1Affine).Uncompress(publicKey)
	if pk == nil {
		return false
	}

	return sig.Verify(true, pk, true, message, blsDST)
}
