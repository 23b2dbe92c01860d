package heuristicvm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// execContext holds the state of a single validate() invocation.
type execContext struct {
	input        []byte
	output       []byte
	memory       api.Memory
	gasLimit     uint64
	gasUsed      uint64
	gasExhausted bool
}

// buildHostModule builds the "env" module a plugin imports to read its
// input, report its verdict, and account for gas.
func (p *Pool) buildHostModule(ctx context.Context, execCtx *execContext) (api.Module, error) {
	return p.runtime.NewHostModuleBuilder("env").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, cost uint32) {
			hostGas(execCtx, cost)
		}).
		Export("gas").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context) uint32 {
			return hostInputLen(execCtx)
		}).
		Export("input_len").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, ptr uint32) {
			hostReadInput(execCtx, ptr)
		}).
		Export("read_input").
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, ptr, length uint32) {
			hostWriteOutput(execCtx, ptr, length)
		}).
		Export("write_output").
		Instantiate(ctx)
}

// hostGas charges cost against the run's gas limit, panicking to abort
// execution once exhausted.
func hostGas(execCtx *execContext, cost uint32) {
	execCtx.gasUsed += uint64(cost)

	if execCtx.gasUsed > execCtx.gasLimit {
		execCtx.gasExhausted = true
		panic("gas exhausted")
	}
}

func hostInputLen(execCtx *execContext) uint32 {
	return uint32(len(execCtx.input))
}

func hostReadInput(execCtx *execContext, ptr uint32) {
	if execCtx.memory == nil || len(execCtx.input) == 0 {
		return
	}

	execCtx.memory.Write(ptr, execCtx.input)
}

// hostWriteOutput stores the plugin's verdict byte. A plugin reports
// invalid by writing 0x00 and valid by writing 0x01 at a length of 1.
func hostWriteOutput(execCtx *execContext, ptr, length uint32) {
	if execCtx.memory == nil || length == 0 {
		return
	}

	data, ok := execCtx.memory.Read(ptr, length)
	if !ok {
		return
	}

	execCtx.output = make([]byte, length)
	copy(execCtx.output, data)
}
