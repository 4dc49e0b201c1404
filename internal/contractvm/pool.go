package contractvm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"Verity/internal/crypto"
)

var (
	// ErrModuleNotFound is returned when a module id is not loaded in the pool.
	ErrModuleNotFound = errors.New("module not found")

	// ErrGasExhausted is returned when execution runs out of gas.
	ErrGasExhausted = errors.New("gas exhausted")

	// ErrNoEntryPoint is returned when a module does not export the entry point.
	ErrNoEntryPoint = errors.New("execute function not exported")
)

// entryPoint is the export called for every verification.
const entryPoint = "execute"

// Result is the outcome of one execution.
type Result struct {
	Output  []byte
	GasUsed uint64
}

// Pool keeps compiled contract modules, keyed by the blake3 hash of their bytes.
// Modules are compiled once; each execution runs in a fresh anonymous instance,
// so executions may run concurrently.
type Pool struct {
	runtime wazero.Runtime
	modules map[crypto.SecureHash]wazero.CompiledModule
	mu      sync.RWMutex
}

// New creates a pool and instantiates the "env" host module.
func New(ctx context.Context) (*Pool, error) {
	runtime := wazero.NewRuntime(ctx)

	if err := instantiateHost(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate host module:\n%w", err)
	}

	return &Pool{
		runtime: runtime,
		modules: make(map[crypto.SecureHash]wazero.CompiledModule),
	}, nil
}

// Load compiles a module and returns its id. Loading the same bytes twice is a no-op.
func (p *Pool) Load(ctx context.Context, wasm []byte) (crypto.SecureHash, error) {
	id := crypto.HashOf(wasm)

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.modules[id]; exists {
		return id, nil
	}

	compiled, err := p.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return crypto.SecureHash{}, fmt.Errorf("compile module:\n%w", err)
	}

	p.modules[id] = compiled

	return id, nil
}

// Execute runs module id on input with the given gas limit.
func (p *Pool) Execute(ctx context.Context, id crypto.SecureHash, input []byte, gasLimit uint64) (Result, error) {
	p.mu.RLock()
	compiled, exists := p.modules[id]
	p.mu.RUnlock()

	if !exists {
		return Result{}, fmt.Errorf("%w: %s", ErrModuleNotFound, id.Prefix())
	}

	exec := &execContext{input: input, gasLimit: gasLimit}
	ctx = withExecContext(ctx, exec)

	// an empty name lets several instances of one module coexist
	instance, err := p.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return Result{GasUsed: exec.gasUsed}, fmt.Errorf("instantiate module:\n%w", err)
	}
	defer instance.Close(ctx)

	return call(ctx, instance, exec)
}

func call(ctx context.Context, instance api.Module, exec *execContext) (Result, error) {
	fn := instance.ExportedFunction(entryPoint)
	if fn == nil {
		return Result{}, ErrNoEntryPoint
	}

	if _, err := fn.Call(ctx); err != nil {
		if exec.gasExhausted {
			return Result{GasUsed: exec.gasUsed}, ErrGasExhausted
		}

		return Result{GasUsed: exec.gasUsed}, fmt.Errorf("execute:\n%w", err)
	}

	return Result{Output: exec.output, GasUsed: exec.gasUsed}, nil
}

// Len returns the number of loaded modules.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.modules)
}

// Unload removes a module from the pool.
func (p *Pool) Unload(ctx context.Context, id crypto.SecureHash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if compiled, exists := p.modules[id]; exists {
		compiled.Close(ctx)
		delete(p.modules, id)
	}
}

// Close releases all modules and the runtime.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, compiled := range p.modules {
		compiled.Close(ctx)
		delete(p.modules, id)
	}

	return p.runtime.Close(ctx)
}
