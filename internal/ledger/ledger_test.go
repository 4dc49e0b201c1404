package ledger

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

const noteContract contracts.ContractID = "test.note"

var testNotary = contracts.Party{Name: "Notary", Key: crypto.NewPublicKey(crypto.SchemeBLS, []byte("notary"))}

// note is a minimal state: an amount held by an owner.
type note struct {
	Owner  string
	Amount uint64
}

func (note) Contract() contracts.ContractID { return noteContract }
func (note) Notary() contracts.Party        { return testNotary }

func (n note) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8, 8+len(n.Owner))
	binary.LittleEndian.PutUint64(buf, n.Amount)
	return append(buf, n.Owner...), nil
}

func decodeNote(data []byte) (contracts.ContractState, error) {
	if len(data) < 8 {
		return nil, errors.New("short note")
	}
	return note{Amount: binary.LittleEndian.Uint64(data), Owner: string(data[8:])}, nil
}

type moveNote struct{}

func (moveNote) CommandType() contracts.CommandType { return "test.note.move" }
func (moveNote) MarshalBinary() ([]byte, error)     { return nil, nil }

func testCodecs() *contracts.Codecs {
	c := contracts.NewCodecs()
	c.RegisterState(noteContract, decodeNote)
	c.RegisterCommand("test.note.move", func([]byte) (contracts.CommandData, error) { return moveNote{}, nil })
	return c
}

func newSigner(t *testing.T) *crypto.Ed25519Signer {
	t.Helper()

	s, err := crypto.GenerateEd25519()
	require.NoError(t, err)

	return s
}

// TestSignedTransactionRoundTrip tests building, signing, encoding and decoding.
func TestSignedTransactionRoundTrip(t *testing.T) {
	codecs := testCodecs()
	alice := newSigner(t)
	prev := crypto.HashOf([]byte("prev"))
	attachment := crypto.HashOf([]byte("attachment"))

	stx, err := NewTransactionBuilder(codecs).
		AddInput(contracts.StateRef{Hash: prev, Index: 3}).
		AddOutput(note{Owner: "bob", Amount: 7}).
		AddCommand(moveNote{}, alice.Public()).
		AddCommand(contracts.TimestampCommand{}, testNotary.Key).
		AddAttachment(attachment).
		Sign(alice)
	require.NoError(t, err)

	decoded, err := DecodeSignedTransaction(EncodeSignedTransaction(stx), codecs)
	require.NoError(t, err)

	assert.Equal(t, stx.ID(), decoded.ID())
	assert.Equal(t, crypto.HashOf(decoded.TxBits), decoded.ID())

	wtx := decoded.Tx()
	assert.Equal(t, []contracts.StateRef{{Hash: prev, Index: 3}}, wtx.Inputs)
	assert.Equal(t, []contracts.ContractState{note{Owner: "bob", Amount: 7}}, wtx.Outputs)
	assert.Equal(t, []crypto.SecureHash{attachment}, wtx.Attachments)
	require.Len(t, wtx.Commands, 2)
	assert.Equal(t, moveNote{}, wtx.Commands[0].Value)
	assert.Equal(t, []crypto.PublicKey{alice.Public()}, wtx.Commands[0].Signers)
	assert.Equal(t, []crypto.PublicKey{alice.Public(), testNotary.Key}, wtx.RequiredKeys())

	missing, err := decoded.Verify(true)
	require.NoError(t, err)
	assert.Equal(t, []crypto.PublicKey{testNotary.Key}, missing)
}

// TestSignedTransactionMissingSignature tests that unsigned command keys are reported.
func TestSignedTransactionMissingSignature(t *testing.T) {
	alice, bob := newSigner(t), newSigner(t)

	stx, err := NewTransactionBuilder(testCodecs()).
		AddOutput(note{Owner: "alice", Amount: 1}).
		AddCommand(moveNote{}, alice.Public(), bob.Public()).
		Sign(alice)
	require.NoError(t, err)

	_, err = stx.Verify(false)
	var missingErr *SignaturesMissingError
	require.ErrorAs(t, err, &missingErr)
	assert.Equal(t, []crypto.PublicKey{bob.Public()}, missingErr.Missing)
	assert.ErrorIs(t, err, ErrSignaturesMissing)

	id := stx.ID()
	sig, err := bob.Sign(id[:])
	require.NoError(t, err)

	missing, err := stx.WithSignature(sig).Verify(false)
	require.NoError(t, err)
	assert.Empty(t, missing)
	assert.Len(t, stx.Sigs, 1)
}

// TestSignedTransactionBadSignature tests that a signature over other content is rejected.
func TestSignedTransactionBadSignature(t *testing.T) {
	alice := newSigner(t)

	stx, err := NewTransactionBuilder(testCodecs()).AddCommand(moveNote{}, alice.Public()).Sign()
	require.NoError(t, err)

	sig, err := alice.Sign([]byte("something else"))
	require.NoError(t, err)

	assert.ErrorIs(t, stx.WithSignature(sig).VerifySignatures(), crypto.ErrInvalidSignature)
}

// TestDecodeMalformed tests that truncated or foreign input is rejected without panicking.
func TestDecodeMalformed(t *testing.T) {
	codecs := testCodecs()

	_, err := DecodeWireTransaction([]byte{1, 2}, codecs)
	assert.Error(t, err)

	_, err = DecodeSignedTransaction([]byte{0xff, 0xff, 0xff, 0x7f}, codecs)
	assert.Error(t, err)
}

// TestEncodeUnknownCodec tests that states without a registered decoder cannot round-trip.
func TestEncodeUnknownCodec(t *testing.T) {
	_, err := NewTransactionBuilder(contracts.NewCodecs()).AddOutput(note{Owner: "x"}).Sign()
	assert.ErrorIs(t, err, contracts.ErrNoCodec)
}

// TestToLedgerTransaction tests that signers and known parties reach the commands.
func TestToLedgerTransaction(t *testing.T) {
	alice := newSigner(t)
	aliceParty := contracts.Party{Name: "Alice", Key: alice.Public()}

	stx, err := NewTransactionBuilder(testCodecs()).
		AddOutput(note{Owner: "alice", Amount: 2}).
		AddCommand(moveNote{}, alice.Public(), testNotary.Key).
		Sign(alice)
	require.NoError(t, err)

	ltx := stx.ToLedgerTransaction(NewStaticIdentities(aliceParty))

	assert.Equal(t, stx.ID(), ltx.Hash)
	require.Len(t, ltx.Commands, 1)
	assert.True(t, ltx.Commands[0].SignedBy(testNotary.Key))
	assert.Equal(t, []contracts.Party{aliceParty}, ltx.Commands[0].SigningParties())

	out, err := ltx.OutRef(0)
	require.NoError(t, err)
	assert.Equal(t, contracts.StateRef{Hash: ltx.Hash, Index: 0}, out.Ref)

	_, err = ltx.OutRef(1)
	assert.ErrorIs(t, err, ErrOutputIndex)
}
