package crypto

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestHashRoundTrip tests hex parsing of a computed hash.
func TestHashRoundTrip(t *testing.T) {
	h := HashOf([]byte("ledger"))

	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
	assert.Len(t, h.Prefix(), 8)
	assert.False(t, h.IsZero())
}

func TestParseHashInvalid(t *testing.T) {
	_, err := ParseHash("zz")
	assert.Error(t, err)

	_, err = ParseHash("abcd")
	assert.Error(t, err)
}

// TestHashConcat tests that streaming parts matches hashing the joined bytes.
func TestHashConcat(t *testing.T) {
	assert.Equal(t, HashOf([]byte("helloworld")), HashConcat([]byte("hello"), []byte("world")))
}

func TestEd25519SignVerify(t *testing.T) {
	s, err := GenerateEd25519()
	require.NoError(t, err)

	sig, err := s.Sign([]byte("content"))
	require.NoError(t, err)

	assert.Equal(t, s.Public(), sig.By)
	assert.NoError(t, sig.Verify([]byte("content")))
	assert.ErrorIs(t, sig.Verify([]byte("other")), ErrInvalidSignature)
}

// TestBLSSignVerify tests BLS signing and rejection with the wrong key.
func TestBLSSignVerify(t *testing.T) {
	s1, err := GenerateBLS()
	require.NoError(t, err)
	s2, err := GenerateBLS()
	require.NoError(t, err)

	sig, err := s1.Sign([]byte("timestamp"))
	require.NoError(t, err)
	assert.Len(t, sig.Bytes, BLSSignatureSize)
	assert.NoError(t, sig.Verify([]byte("timestamp")))

	sig.By = s2.Public()
	assert.ErrorIs(t, sig.Verify([]byte("timestamp")), ErrInvalidSignature)
}

// TestBLSDeterministicKey tests that a seed produces the same key.
func TestBLSDeterministicKey(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	k1, err := NewBLSFromSeed(seed)
	require.NoError(t, err)
	k2, err := NewBLSFromSeed(seed)
	require.NoError(t, err)

	assert.Equal(t, k1.Public(), k2.Public())

	_, err = NewBLSFromSeed(seed[:16])
	assert.Error(t, err)
}

// TestPublicKeyComparable tests that keys with equal bytes compare equal.
func TestPublicKeyComparable(t *testing.T) {
	a := NewPublicKey(SchemeEd25519, []byte{1, 2, 3})
	b := NewPublicKey(SchemeEd25519, []byte{1, 2, 3})
	c := NewPublicKey(SchemeBLS, []byte{1, 2, 3})

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	set := map[PublicKey]bool{a: true}
	assert.True(t, set[b])
	assert.False(t, set[c])
}

// TestParsePublicKey tests the textual key form used in configuration.
func TestParsePublicKey(t *testing.T) {
	signer, err := GenerateEd25519()
	require.NoError(t, err)

	key, err := ParsePublicKey("ed25519:" + hex.EncodeToString(signer.Public().Bytes()))
	require.NoError(t, err)
	assert.Equal(t, signer.Public(), key)

	key, err = ParsePublicKey("bls:0a0b")
	require.NoError(t, err)
	assert.Equal(t, NewPublicKey(SchemeBLS, []byte{0x0a, 0x0b}), key)

	for _, bad := range []string{"", "ed25519", "rsa:00", "ed25519:zz", "bls:"} {
		_, err := ParsePublicKey(bad)
		assert.Error(t, err, bad)
	}
}
