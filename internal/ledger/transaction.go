package ledger

import (
	"errors"
	"fmt"
	"strings"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

var (
	// ErrSignaturesMissing is matched by every SignaturesMissingError.
	ErrSignaturesMissing = errors.New("signatures missing")

	// ErrOutputIndex is returned when an output index is out of range.
	ErrOutputIndex = errors.New("output index out of range")
)

// WireTransaction is a transaction as it is signed and stored: inputs are still references.
type WireTransaction struct {
	Inputs      []contracts.StateRef
	Attachments []crypto.SecureHash
	Outputs     []contracts.ContractState
	Commands    []contracts.Command
}

// RequiredKeys returns every key that must sign, in first-seen order.
func (wtx *WireTransaction) RequiredKeys() []crypto.PublicKey {
	seen := make(map[crypto.PublicKey]struct{})
	var keys []crypto.PublicKey

	for _, cmd := range wtx.Commands {
		for _, k := range cmd.Signers {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}

	return keys
}

// SignaturesMissingError lists the command signers with no signature on the transaction.
type SignaturesMissingError struct {
	Tx      crypto.SecureHash
	Missing []crypto.PublicKey
}

// Error implements error.
func (e *SignaturesMissingError) Error() string {
	keys := make([]string, len(e.Missing))
	for i, k := range e.Missing {
		keys[i] = k.String()
	}

	return fmt.Sprintf("transaction %s is missing signatures from %s", e.Tx.Prefix(), strings.Join(keys, ", "))
}

// Is matches ErrSignaturesMissing.
func (e *SignaturesMissingError) Is(target error) bool {
	return target == ErrSignaturesMissing
}

// SignedTransaction is the serialized wire transaction plus the signatures over its id.
// The id is the hash of TxBits.
type SignedTransaction struct {
	TxBits []byte
	Sigs   []crypto.Signature

	id crypto.SecureHash
	tx *WireTransaction
}

// NewSignedTransaction decodes txBits and pairs it with sigs.
func NewSignedTransaction(txBits []byte, sigs []crypto.Signature, codecs *contracts.Codecs) (*SignedTransaction, error) {
	wtx, err := DecodeWireTransaction(txBits, codecs)
	if err != nil {
		return nil, fmt.Errorf("decode transaction bits:\n%w", err)
	}

	return &SignedTransaction{
		TxBits: txBits,
		Sigs:   sigs,
		id:     crypto.HashOf(txBits),
		tx:     wtx,
	}, nil
}

// ID returns the transaction id.
func (stx *SignedTransaction) ID() crypto.SecureHash {
	return stx.id
}

// Tx returns the decoded wire transaction.
func (stx *SignedTransaction) Tx() *WireTransaction {
	return stx.tx
}

// WithSignature returns a copy with sig appended.
func (stx *SignedTransaction) WithSignature(sig crypto.Signature) *SignedTransaction {
	cp := *stx
	cp.Sigs = append(append([]crypto.Signature(nil), stx.Sigs...), sig)

	return &cp
}

// VerifySignatures checks that every attached signature is valid over the id.
func (stx *SignedTransaction) VerifySignatures() error {
	for i, sig := range stx.Sigs {
		if err := sig.Verify(stx.id[:]); err != nil {
			return fmt.Errorf("signature %d of %s:\n%w", i, stx.id.Prefix(), err)
		}
	}

	return nil
}

// MissingSignatures returns the command signers that have not signed.
func (stx *SignedTransaction) MissingSignatures() []crypto.PublicKey {
	signed := make(map[crypto.PublicKey]struct{}, len(stx.Sigs))
	for _, sig := range stx.Sigs {
		signed[sig.By] = struct{}{}
	}

	var missing []crypto.PublicKey
	for _, k := range stx.tx.RequiredKeys() {
		if _, ok := signed[k]; !ok {
			missing = append(missing, k)
		}
	}

	return missing
}

// Verify checks the signatures and, when allowMissing is false, that every command
// signer has signed. It returns the keys still missing.
func (stx *SignedTransaction) Verify(allowMissing bool) ([]crypto.PublicKey, error) {
	if err := stx.VerifySignatures(); err != nil {
		return nil, err
	}

	missing := stx.MissingSignatures()
	if len(missing) > 0 && !allowMissing {
		return missing, &SignaturesMissingError{Tx: stx.id, Missing: missing}
	}

	return missing, nil
}

// ToLedgerTransaction attaches the signer sets to each command and resolves the
// signing parties through identities. Inputs stay as references.
func (stx *SignedTransaction) ToLedgerTransaction(identities IdentityService) *LedgerTransaction {
	commands := make([]contracts.AuthenticatedObject[contracts.CommandData], len(stx.tx.Commands))

	for i, cmd := range stx.tx.Commands {
		var parties []contracts.Party
		for _, k := range cmd.Signers {
			if p, ok := identities.PartyFromKey(k); ok {
				parties = append(parties, p)
			}
		}

		commands[i] = contracts.NewAuthenticatedObject(cmd.Signers, parties, cmd.Value)
	}

	return &LedgerTransaction{
		Inputs:      append([]contracts.StateRef(nil), stx.tx.Inputs...),
		Outputs:     append([]contracts.ContractState(nil), stx.tx.Outputs...),
		Commands:    commands,
		Attachments: append([]crypto.SecureHash(nil), stx.tx.Attachments...),
		Hash:        stx.id,
	}
}

// LedgerTransaction is a signed transaction with authenticated commands whose inputs
// are not yet resolved.
type LedgerTransaction struct {
	Inputs      []contracts.StateRef
	Outputs     []contracts.ContractState
	Commands    []contracts.AuthenticatedObject[contracts.CommandData]
	Attachments []crypto.SecureHash
	Hash        crypto.SecureHash
}

// OutRef returns output index together with its reference.
func (ltx *LedgerTransaction) OutRef(index int) (contracts.StateAndRef, error) {
	if index < 0 || index >= len(ltx.Outputs) {
		return contracts.StateAndRef{}, fmt.Errorf("%w: %d of %d in %s", ErrOutputIndex, index, len(ltx.Outputs), ltx.Hash.Prefix())
	}

	return contracts.StateAndRef{
		State: ltx.Outputs[index],
		Ref:   contracts.StateRef{Hash: ltx.Hash, Index: index},
	}, nil
}

// IdentityService maps keys to well-known parties.
type IdentityService interface {
	PartyFromKey(key crypto.PublicKey) (contracts.Party, bool)
}

// StaticIdentities is a fixed key to party map.
type StaticIdentities map[crypto.PublicKey]contracts.Party

// NewStaticIdentities indexes parties by key.
func NewStaticIdentities(parties ...contracts.Party) StaticIdentities {
	ids := make(StaticIdentities, len(parties))
	for _, p := range parties {
		ids[p.Key] = p
	}

	return ids
}

// PartyFromKey implements IdentityService.
func (s StaticIdentities) PartyFromKey(key crypto.PublicKey) (contracts.Party, bool) {
	p, ok := s[key]
	return p, ok
}
