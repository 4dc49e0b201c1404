package contracts

import (
	"fmt"

	"Verity/internal/crypto"
)

// ContractID names the contract code that governs a state.
type ContractID string

// CommandType names the kind of a command, used for clause matching.
type CommandType string

// StateRef points at output Index of the transaction with the given Hash.
// It is only ever resolved through a transaction index, never dereferenced directly.
type StateRef struct {
	Hash  crypto.SecureHash
	Index int
}

// String returns "hashprefix(index)".
func (r StateRef) String() string {
	return fmt.Sprintf("%s(%d)", r.Hash.Prefix(), r.Index)
}

// Party is a named identity with its owning key.
type Party struct {
	Name string
	Key  crypto.PublicKey
}

// String returns the party name.
func (p Party) String() string {
	return p.Name
}

// ContractState is an immutable ledger fact.
type ContractState interface {
	// Contract returns the contract that verifies transactions touching this state.
	Contract() ContractID

	// Notary returns the notary that must witness the consumption of this state.
	Notary() Party
}

// StateAndRef pairs a state with the reference it was produced at.
type StateAndRef struct {
	State ContractState
	Ref   StateRef
}

// CommandData is the payload of a command.
// Implementations must be comparable: consumed-command sets are value sets.
type CommandData interface {
	CommandType() CommandType
}

// Command is command data with the keys that must sign for it.
type Command struct {
	Value   CommandData
	Signers []crypto.PublicKey
}

// AuthenticatedObject is a command value with the keys that signed the enclosing transaction.
// The signer set is fixed at construction.
type AuthenticatedObject[C any] struct {
	signers []crypto.PublicKey
	parties []Party
	Value   C
}

// NewAuthenticatedObject copies signers and parties and pairs them with value.
func NewAuthenticatedObject[C any](signers []crypto.PublicKey, parties []Party, value C) AuthenticatedObject[C] {
	return AuthenticatedObject[C]{
		signers: append([]crypto.PublicKey(nil), signers...),
		parties: append([]Party(nil), parties...),
		Value:   value,
	}
}

// Signers returns a copy of the signing keys.
func (a AuthenticatedObject[C]) Signers() []crypto.PublicKey {
	return append([]crypto.PublicKey(nil), a.signers...)
}

// SigningParties returns a copy of the parties recognised among the signers.
func (a AuthenticatedObject[C]) SigningParties() []Party {
	return append([]Party(nil), a.parties...)
}

// SignedBy reports whether key is among the signers.
func (a AuthenticatedObject[C]) SignedBy(key crypto.PublicKey) bool {
	for _, s := range a.signers {
		if s == key {
			return true
		}
	}

	return false
}

// withValue rebinds the same signer set to another value.
func withValue[C, D any](a AuthenticatedObject[C], value D) AuthenticatedObject[D] {
	return AuthenticatedObject[D]{signers: a.signers, parties: a.parties, Value: value}
}
