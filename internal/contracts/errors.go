package contracts

import (
	"errors"
	"fmt"
	"strings"

	"Verity/internal/crypto"
)

var (
	// ErrUnknownContract is the rejection cause when no contract is registered for a state.
	ErrUnknownContract = errors.New("unknown contract")

	// ErrNoCodec is returned when no decoder is registered for a state or command.
	ErrNoCodec = errors.New("no codec registered")

	// ErrMissingCommand is returned when a required command is absent.
	ErrMissingCommand = errors.New("required command missing")

	// ErrMultipleCommands is returned when a single command was expected but several were found.
	ErrMultipleCommands = errors.New("more than one matching command")
)

// ContractRejectionError reports that a contract refused a transaction.
type ContractRejectionError struct {
	Tx       crypto.SecureHash
	Contract ContractID
	Cause    error
}

// Error implements error.
func (e *ContractRejectionError) Error() string {
	return fmt.Sprintf("contract %s rejected transaction %s:\n%v", e.Contract, e.Tx.Prefix(), e.Cause)
}

// Unwrap returns the contract's own error.
func (e *ContractRejectionError) Unwrap() error {
	return e.Cause
}

// MoreThanOneNotaryError reports inputs governed by several notaries
// without a timestamp command signed by all of them.
type MoreThanOneNotaryError struct {
	Tx       crypto.SecureHash
	Notaries []Party
}

// Error implements error.
func (e *MoreThanOneNotaryError) Error() string {
	names := make([]string, len(e.Notaries))
	for i, n := range e.Notaries {
		names[i] = n.Name
	}

	return fmt.Sprintf("transaction %s has inputs from more than one notary: %s",
		e.Tx.Prefix(), strings.Join(names, ", "))
}
