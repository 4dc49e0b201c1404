package ledger

import (
	"fmt"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
)

// TransactionBuilder assembles a wire transaction and signs it.
type TransactionBuilder struct {
	codecs *contracts.Codecs
	wtx    WireTransaction
}

// NewTransactionBuilder creates an empty builder encoding through codecs.
func NewTransactionBuilder(codecs *contracts.Codecs) *TransactionBuilder {
	return &TransactionBuilder{codecs: codecs}
}

// AddInput consumes the state at ref.
func (b *TransactionBuilder) AddInput(ref contracts.StateRef) *TransactionBuilder {
	b.wtx.Inputs = append(b.wtx.Inputs, ref)
	return b
}

// AddOutput appends an output state.
func (b *TransactionBuilder) AddOutput(state contracts.ContractState) *TransactionBuilder {
	b.wtx.Outputs = append(b.wtx.Outputs, state)
	return b
}

// AddCommand appends a command that signers must sign for.
func (b *TransactionBuilder) AddCommand(value contracts.CommandData, signers ...crypto.PublicKey) *TransactionBuilder {
	b.wtx.Commands = append(b.wtx.Commands, contracts.Command{Value: value, Signers: signers})
	return b
}

// AddAttachment references an attachment by hash.
func (b *TransactionBuilder) AddAttachment(hash crypto.SecureHash) *TransactionBuilder {
	b.wtx.Attachments = append(b.wtx.Attachments, hash)
	return b
}

// Sign encodes the transaction and signs its id with every signer.
// Signing with no signers yields an unsigned transaction.
func (b *TransactionBuilder) Sign(signers ...crypto.Signer) (*SignedTransaction, error) {
	bits, err := EncodeWireTransaction(&b.wtx, b.codecs)
	if err != nil {
		return nil, fmt.Errorf("encode transaction:\n%w", err)
	}

	stx, err := NewSignedTransaction(bits, nil, b.codecs)
	if err != nil {
		return nil, err
	}

	id := stx.ID()
	for _, s := range signers {
		sig, err := s.Sign(id[:])
		if err != nil {
			return nil, fmt.Errorf("sign %s:\n%w", id.Prefix(), err)
		}

		stx.Sigs = append(stx.Sigs, sig)
	}

	return stx, nil
}
