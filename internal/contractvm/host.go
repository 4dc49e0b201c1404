package contractvm

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// execContext is the state of a single execution.
type execContext struct {
	input        []byte // flatbuffers-encoded verification input
	output       []byte // rejection message; empty means accepted
	gasLimit     uint64
	gasUsed      uint64
	gasExhausted bool
}

type execKey struct{}

func withExecContext(ctx context.Context, exec *execContext) context.Context {
	return context.WithValue(ctx, execKey{}, exec)
}

func execFrom(ctx context.Context) *execContext {
	exec, _ := ctx.Value(execKey{}).(*execContext)
	return exec
}

// instantiateHost registers the "env" module. Host functions find the running
// execution through the call context and its memory through the calling module.
func instantiateHost(ctx context.Context, runtime wazero.Runtime) error {
	_, err := runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, cost uint32) {
			hostGas(execFrom(ctx), cost)
		}).
		Export("gas").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 {
			return hostInputLen(execFrom(ctx))
		}).
		Export("input_len").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr uint32) {
			hostReadInput(execFrom(ctx), m.Memory(), ptr)
		}).
		Export("read_input").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, m api.Module, ptr, length uint32) {
			hostWriteOutput(execFrom(ctx), m.Memory(), ptr, length)
		}).
		Export("write_output").
		Instantiate(ctx)

	return err
}

// hostGas charges cost and aborts execution once the limit is passed.
func hostGas(exec *execContext, cost uint32) {
	exec.gasUsed += uint64(cost)

	if exec.gasUsed > exec.gasLimit {
		exec.gasExhausted = true
		panic("gas exhausted")
	}
}

func hostInputLen(exec *execContext) uint32 {
	return uint32(len(exec.input))
}

// hostReadInput copies the input into guest memory at ptr.
func hostReadInput(exec *execContext, memory api.Memory, ptr uint32) {
	if memory == nil || len(exec.input) == 0 {
		return
	}

	if !memory.Write(ptr, exec.input) {
		panic("read_input out of bounds")
	}
}

// hostWriteOutput copies length bytes at ptr out of guest memory.
func hostWriteOutput(exec *execContext, memory api.Memory, ptr, length uint32) {
	if memory == nil || length == 0 {
		return
	}

	data, ok := memory.Read(ptr, length)
	if !ok {
		panic("write_output out of bounds")
	}

	exec.output = append([]byte(nil), data...)
}
