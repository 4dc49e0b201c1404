package contracts

import (
	"fmt"

	"Verity/internal/crypto"
	"Verity/internal/logger"
)

// TransactionForVerification is a transaction whose inputs have been resolved to states.
// Two values are the same transaction iff their OrigHash matches.
type TransactionForVerification struct {
	InStates    []ContractState
	OutStates   []ContractState
	Attachments []crypto.SecureHash
	Commands    []AuthenticatedObject[CommandData]
	OrigHash    crypto.SecureHash
}

// Equal reports whether both values describe the same original transaction.
func (tx *TransactionForVerification) Equal(other *TransactionForVerification) bool {
	if tx == nil || other == nil {
		return tx == other
	}
	return tx.OrigHash == other.OrigHash
}

// Contracts returns the distinct contracts referenced by inputs then outputs, in first-seen order.
func (tx *TransactionForVerification) Contracts() []ContractID {
	seen := make(map[ContractID]struct{})
	var ids []ContractID

	for _, states := range [][]ContractState{tx.InStates, tx.OutStates} {
		for _, s := range states {
			id := s.Contract()
			if _, ok := seen[id]; ok {
				continue
			}

			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	return ids
}

// Verify checks the single-notary rule and then runs every referenced contract.
// The first contract failure stops verification.
func (tx *TransactionForVerification) Verify(registry Registry) error {
	if err := tx.verifySingleNotary(); err != nil {
		return err
	}

	for _, id := range tx.Contracts() {
		contract, ok := registry.Lookup(id)
		if !ok {
			return &ContractRejectionError{Tx: tx.OrigHash, Contract: id, Cause: ErrUnknownContract}
		}

		if err := runContract(contract, tx); err != nil {
			logger.Debug("contract rejected transaction", "tx", tx.OrigHash.Prefix(), "contract", id, "error", err)
			return &ContractRejectionError{Tx: tx.OrigHash, Contract: id, Cause: err}
		}
	}

	return nil
}

// verifySingleNotary requires all inputs to share a notary, unless a timestamp
// command is signed by every notary the inputs reference.
func (tx *TransactionForVerification) verifySingleNotary() error {
	if len(tx.InStates) == 0 {
		return nil
	}

	notaries := tx.inputNotaries()
	if len(notaries) == 1 {
		return nil
	}

	for _, cmd := range tx.Commands {
		if _, ok := cmd.Value.(TimestampCommand); !ok {
			continue
		}

		if signedByAll(cmd, notaries) {
			return nil
		}
	}

	return &MoreThanOneNotaryError{Tx: tx.OrigHash, Notaries: notaries}
}

// inputNotaries returns the distinct input notaries in first-seen order.
func (tx *TransactionForVerification) inputNotaries() []Party {
	var notaries []Party

	for _, s := range tx.InStates {
		n := s.Notary()
		if !containsParty(notaries, n) {
			notaries = append(notaries, n)
		}
	}

	return notaries
}

func signedByAll(cmd AuthenticatedObject[CommandData], parties []Party) bool {
	for _, p := range parties {
		if !cmd.SignedBy(p.Key) {
			return false
		}
	}
	return true
}

func containsParty(parties []Party, p Party) bool {
	for _, q := range parties {
		if q == p {
			return true
		}
	}
	return false
}

// runContract calls the contract and turns a panic into an error.
func runContract(c Contract, tx *TransactionForVerification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("contract panicked: %v", r)
		}
	}()

	return c.Verify(tx)
}
