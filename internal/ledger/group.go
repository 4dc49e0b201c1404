package ledger

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
	"Verity/internal/logger"
)

// ErrOverlappingRoots is returned when a transaction is both to be verified and a trusted root.
var ErrOverlappingRoots = errors.New("transactions to verify overlap trusted roots")

// ResolutionError reports an input whose origin transaction or output cannot be found.
type ResolutionError struct {
	Hash   crypto.SecureHash
	Reason string
}

// Error implements error.
func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve transaction %s: %s", e.Hash, e.Reason)
}

// ConflictError reports two transactions consuming the same state.
type ConflictError struct {
	Ref contracts.StateRef
	Tx1 crypto.SecureHash
	Tx2 crypto.SecureHash
}

// Error implements error.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("transactions %s and %s both consume %s", e.Tx1.Prefix(), e.Tx2.Prefix(), e.Ref)
}

// TransactionGroup is a set of transactions to verify together with the trusted
// transactions their inputs may point into. Roots are never verified themselves.
type TransactionGroup struct {
	toVerify []*LedgerTransaction
	roots    []*LedgerTransaction
	registry contracts.Registry
}

// NewTransactionGroup creates a group. A transaction listed twice in one set is kept once;
// distinct transactions sharing a hash are kept and make references to that hash ambiguous.
func NewTransactionGroup(toVerify, roots []*LedgerTransaction, registry contracts.Registry) *TransactionGroup {
	return &TransactionGroup{
		toVerify: dedup(toVerify),
		roots:    dedup(roots),
		registry: registry,
	}
}

// Resolve indexes the group, detects double spends and resolves every input of the
// transactions to verify into the state it references. No contract is run.
func (g *TransactionGroup) Resolve() ([]*contracts.TransactionForVerification, error) {
	hashIndex := make(map[crypto.SecureHash][]*LedgerTransaction, len(g.toVerify)+len(g.roots))
	for _, tx := range g.roots {
		hashIndex[tx.Hash] = append(hashIndex[tx.Hash], tx)
	}
	for _, tx := range g.toVerify {
		if _, ok := hashIndex[tx.Hash]; ok {
			return nil, fmt.Errorf("%w: %s", ErrOverlappingRoots, tx.Hash)
		}
	}
	for _, tx := range g.toVerify {
		hashIndex[tx.Hash] = append(hashIndex[tx.Hash], tx)
	}

	consumers := make(map[contracts.StateRef]crypto.SecureHash)
	resolved := make([]*contracts.TransactionForVerification, 0, len(g.toVerify))

	for _, tx := range g.toVerify {
		inputs := make([]contracts.ContractState, 0, len(tx.Inputs))

		for _, ref := range tx.Inputs {
			if other, ok := consumers[ref]; ok && other != tx.Hash {
				logger.Debug("double spend detected", "ref", ref, "tx1", other.Prefix(), "tx2", tx.Hash.Prefix())
				return nil, &ConflictError{Ref: ref, Tx1: other, Tx2: tx.Hash}
			}
			consumers[ref] = tx.Hash

			state, err := resolveRef(hashIndex, ref)
			if err != nil {
				return nil, err
			}

			inputs = append(inputs, state)
		}

		resolved = append(resolved, &contracts.TransactionForVerification{
			InStates:    inputs,
			OutStates:   tx.Outputs,
			Attachments: tx.Attachments,
			Commands:    tx.Commands,
			OrigHash:    tx.Hash,
		})
	}

	return resolved, nil
}

// Verify resolves the group and verifies every resolved transaction.
// The first contract failure fails the whole group.
func (g *TransactionGroup) Verify() ([]*contracts.TransactionForVerification, error) {
	resolved, err := g.Resolve()
	if err != nil {
		return nil, err
	}

	for _, tx := range resolved {
		if err := tx.Verify(g.registry); err != nil {
			return nil, err
		}
	}

	return resolved, nil
}

// VerifyEach resolves the group and verifies every transaction, collecting all
// contract failures. It returns the transactions that passed; resolution and
// conflict failures still abort the group.
func (g *TransactionGroup) VerifyEach() ([]*contracts.TransactionForVerification, error) {
	resolved, err := g.Resolve()
	if err != nil {
		return nil, err
	}

	var (
		passed []*contracts.TransactionForVerification
		result *multierror.Error
	)

	for _, tx := range resolved {
		if err := tx.Verify(g.registry); err != nil {
			result = multierror.Append(result, fmt.Errorf("transaction %s:\n%w", tx.OrigHash.Prefix(), err))
			continue
		}

		passed = append(passed, tx)
	}

	return passed, result.ErrorOrNil()
}

// resolveRef returns the output ref points at. The hash must identify exactly one transaction.
func resolveRef(index map[crypto.SecureHash][]*LedgerTransaction, ref contracts.StateRef) (contracts.ContractState, error) {
	txs := index[ref.Hash]

	switch len(txs) {
	case 0:
		return nil, &ResolutionError{Hash: ref.Hash, Reason: "unknown transaction"}
	case 1:
	default:
		return nil, &ResolutionError{Hash: ref.Hash, Reason: "ambiguous transaction"}
	}

	out, err := txs[0].OutRef(ref.Index)
	if err != nil {
		return nil, &ResolutionError{Hash: ref.Hash, Reason: err.Error()}
	}

	return out.State, nil
}

func dedup(txs []*LedgerTransaction) []*LedgerTransaction {
	seen := make(map[*LedgerTransaction]struct{}, len(txs))
	out := make([]*LedgerTransaction, 0, len(txs))

	for _, tx := range txs {
		if _, ok := seen[tx]; ok {
			continue
		}
		seen[tx] = struct{}{}
		out = append(out, tx)
	}

	return out
}
