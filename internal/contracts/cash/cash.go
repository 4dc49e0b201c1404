// Package cash implements a fungible issued-currency contract on top of the clause engine.
//
// States are grouped by their Issued token. Within a group either the transaction issues
// (no inputs, an Issue command signed by the issuer) or it moves value, in which case the
// amounts are conserved up to the Exit commands for that token.
package cash

import (
	"fmt"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

// ContractID identifies cash states and the cash contract.
const ContractID contracts.ContractID = "verity.cash"

// Command types.
const (
	IssueType contracts.CommandType = "verity.cash.issue"
	MoveType  contracts.CommandType = "verity.cash.move"
	ExitType  contracts.CommandType = "verity.cash.exit"
)

// Issued is a currency as issued by one party. Amounts of different Issued values never mix.
type Issued struct {
	Issuer   contracts.Party
	Currency string
}

// String returns "currency@issuer".
func (i Issued) String() string {
	return i.Currency + "@" + i.Issuer.Name
}

// State is an amount of an issued currency held by an owner.
type State struct {
	Amount      uint64
	Token       Issued
	Owner       crypto.PublicKey
	NotaryParty contracts.Party
}

// Contract implements contracts.ContractState.
func (State) Contract() contracts.ContractID { return ContractID }

// Notary implements contracts.ContractState.
func (s State) Notary() contracts.Party { return s.NotaryParty }

// MarshalBinary implements encoding.BinaryMarshaler.
func (s State) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(s.Amount)
	e.issued(s.Token)
	e.key(s.Owner)
	e.party(s.NotaryParty)

	return e.buf, nil
}

// String returns a short description of the state.
func (s State) String() string {
	return fmt.Sprintf("%d %s owned by %s", s.Amount, s.Token, s.Owner)
}

func decodeState(data []byte) (contracts.ContractState, error) {
	d := decoder{data: data}
	s := State{
		Amount:      d.u64(),
		Token:       d.issued(),
		Owner:       d.key(),
		NotaryParty: d.party(),
	}

	if err := d.finish(); err != nil {
		return nil, err
	}

	return s, nil
}

// Issue creates new value. The nonce keeps otherwise identical issuances distinct.
type Issue struct {
	Nonce uint64
}

// CommandType implements contracts.CommandData.
func (Issue) CommandType() contracts.CommandType { return IssueType }

// MarshalBinary implements encoding.BinaryMarshaler.
func (c Issue) MarshalBinary() ([]byte, error) {
	var e encoder
	e.u64(c.Nonce)

	return e.buf, nil
}

func decodeIssue(data []byte) (contracts.CommandData, error) {
	d := decoder{data: data}
	c := Issue{Nonce: d.u64()}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// Move transfers value. The owners of all inputs must sign it.
type Move struct{}

// CommandType implements contracts.CommandData.
func (Move) CommandType() contracts.CommandType { return MoveType }

// MarshalBinary implements encoding.BinaryMarshaler.
func (Move) MarshalBinary() ([]byte, error) { return nil, nil }

func decodeMove(data []byte) (contracts.CommandData, error) {
	if len(data) != 0 {
		return nil, fmt.Errorf("move command carries %d bytes", len(data))
	}
	return Move{}, nil
}

// Exit destroys Amount of Token. The issuer must sign it.
type Exit struct {
	Token  Issued
	Amount uint64
}

// CommandType implements contracts.CommandData.
func (Exit) CommandType() contracts.CommandType { return ExitType }

// MarshalBinary implements encoding.BinaryMarshaler.
func (c Exit) MarshalBinary() ([]byte, error) {
	var e encoder
	e.issued(c.Token)
	e.u64(c.Amount)

	return e.buf, nil
}

func decodeExit(data []byte) (contracts.CommandData, error) {
	d := decoder{data: data}
	c := Exit{Token: d.issued(), Amount: d.u64()}

	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// Register adds the cash contract to registry and its codecs to codecs.
func Register(registry *contracts.ContractRegistry, codecs *contracts.Codecs) {
	registry.Register(ContractID, New())

	codecs.RegisterState(ContractID, decodeState)
	codecs.RegisterCommand(IssueType, decodeIssue)
	codecs.RegisterCommand(MoveType, decodeMove)
	codecs.RegisterCommand(ExitType, decodeExit)
}
