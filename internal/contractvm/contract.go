package contractvm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Verity/internal/contracts"
	"Verity/internal/crypto"
	"Verity/internal/logger"
)

// ErrRejected wraps the message a guest contract wrote as its output.
var ErrRejected = errors.New("rejected by contract")

// DefaultGasLimit is the gas granted to one verification.
const DefaultGasLimit = 10_000_000

// Contract runs a loaded wasm module as a contracts.Contract.
// The guest accepts a transaction by returning without writing any output.
type Contract struct {
	pool     *Pool
	id       crypto.SecureHash
	codecs   *contracts.Codecs
	gasLimit uint64
}

// NewContract binds module id of pool. States and commands are encoded through codecs.
func NewContract(pool *Pool, id crypto.SecureHash, codecs *contracts.Codecs, gasLimit uint64) *Contract {
	return &Contract{pool: pool, id: id, codecs: codecs, gasLimit: gasLimit}
}

// Verify implements contracts.Contract.
func (c *Contract) Verify(tx *contracts.TransactionForVerification) error {
	input, err := encodeInput(tx, c.codecs)
	if err != nil {
		return err
	}

	res, err := c.pool.Execute(context.Background(), c.id, input, c.gasLimit)
	if err != nil {
		return err
	}

	logger.Debug("contract executed",
		"module", c.id.Prefix(),
		"tx", tx.OrigHash.Prefix(),
		"gas", res.GasUsed,
	)

	if len(res.Output) != 0 {
		return fmt.Errorf("%w: %s", ErrRejected, res.Output)
	}

	return nil
}

// LoadDir compiles every "<contract id>.wasm" file in dir and registers it.
// It returns the registered contract ids.
func LoadDir(ctx context.Context, pool *Pool, dir string, registry *contracts.ContractRegistry, codecs *contracts.Codecs, gasLimit uint64) ([]contracts.ContractID, error) {
	start := time.Now()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read contracts dir:\n%w", err)
	}

	var ids []contracts.ContractID

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wasm" {
			continue
		}

		wasm, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s:\n%w", e.Name(), err)
		}

		module, err := pool.Load(ctx, wasm)
		if err != nil {
			return nil, fmt.Errorf("load %s:\n%w", e.Name(), err)
		}

		id := contracts.ContractID(strings.TrimSuffix(e.Name(), ".wasm"))
		registry.Register(id, NewContract(pool, module, codecs, gasLimit))
		ids = append(ids, id)

		logger.Debug("contract loaded", "contract", id, "module", module.Prefix())
	}

	logger.Info("contracts loaded", "dir", dir, "count", len(ids), logger.Timed(start))

	return ids, nil
}
