package contracts

import "sync"

// Contract verifies transactions that touch its states.
type Contract interface {
	Verify(tx *TransactionForVerification) error
}

// ContractFunc adapts a function to Contract.
type ContractFunc func(tx *TransactionForVerification) error

// Verify calls f.
func (f ContractFunc) Verify(tx *TransactionForVerification) error {
	return f(tx)
}

// Registry supplies the contract implementation for a contract id.
type Registry interface {
	Lookup(id ContractID) (Contract, bool)
}

// ContractRegistry is an in-memory Registry.
// It is safe for concurrent access.
type ContractRegistry struct {
	mu        sync.RWMutex
	contracts map[ContractID]Contract
}

// NewContractRegistry creates an empty registry.
func NewContractRegistry() *ContractRegistry {
	return &ContractRegistry{contracts: make(map[ContractID]Contract)}
}

// Register binds id to c, replacing any previous binding.
func (r *ContractRegistry) Register(id ContractID, c Contract) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.contracts[id] = c
}

// Lookup returns the contract bound to id.
func (r *ContractRegistry) Lookup(id ContractID) (Contract, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.contracts[id]
	return c, ok
}

// Len returns the number of registered contracts.
func (r *ContractRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.contracts)
}
