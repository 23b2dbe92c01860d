// Package heuristicvm runs third-party CustomHeuristic validation logic
// inside a gas-metered WASM sandbox, so a new heuristic type's validation
// rule runs without trusting arbitrary native code. The packer does not
// call into this package; a caller runs Pool.Validate itself.
package heuristicvm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/zeebo/blake3"
)

// ErrModuleNotFound is returned when a module ID is not registered.
var ErrModuleNotFound = errors.New("heuristicvm: module not found")

// ErrGasExhausted is returned when a validation run exceeds its gas limit.
var ErrGasExhausted = errors.New("heuristicvm: gas exhausted")

// Pool compiles WASM validator modules once and keeps them hot-loaded for
// repeated, isolated instantiation per validation call.
type Pool struct {
	runtime wazero.Runtime
	modules map[[32]byte]wazero.CompiledModule
	mu      sync.RWMutex
}

// New creates a Pool backed by a fresh wazero runtime.
func New() *Pool {
	ctx := context.Background()

	return &Pool{
		runtime: wazero.NewRuntime(ctx),
		modules: make(map[[32]byte]wazero.CompiledModule),
	}
}

// Load compiles and registers a validator module, keyed by the blake3 hash
// of its bytes unless customID overrides the key (for a plugin registering
// under a heuristic's own minor tag).
func (p *Pool) Load(wasmBytes []byte, customID *[32]byte) ([32]byte, error) {
	var id [32]byte
	if customID != nil {
		id = *customID
	} else {
		id = blake3.Sum256(wasmBytes)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.modules[id]; exists {
		return id, nil
	}

	compiled, err := p.runtime.CompileModule(context.Background(), wasmBytes)
	if err != nil {
		return [32]byte{}, fmt.Errorf("heuristicvm: compile module: %w", err)
	}

	p.modules[id] = compiled

	return id, nil
}

// Validate runs the module's validate export against input under gasLimit,
// returning whether the input validated and the gas consumed.
func (p *Pool) Validate(id [32]byte, input []byte, gasLimit uint64) (valid bool, gasUsed uint64, err error) {
	p.mu.RLock()
	compiled, exists := p.modules[id]
	p.mu.RUnlock()

	if !exists {
		return false, 0, ErrModuleNotFound
	}

	return p.runValidate(compiled, input, gasLimit)
}

func (p *Pool) runValidate(compiled wazero.CompiledModule, input []byte, gasLimit uint64) (bool, uint64, error) {
	ctx := context.Background()

	execCtx := &execContext{input: input, gasLimit: gasLimit}

	hostModule, err := p.buildHostModule(ctx, execCtx)
	if err != nil {
		return false, 0, fmt.Errorf("heuristicvm: build host module: %w", err)
	}
	defer hostModule.Close(ctx)

	instance, err := p.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return false, execCtx.gasUsed, fmt.Errorf("heuristicvm: instantiate module: %w", err)
	}
	defer instance.Close(ctx)

	execCtx.memory = instance.Memory()

	return p.callValidate(ctx, instance, execCtx)
}

func (p *Pool) callValidate(ctx context.Context, instance api.Module, execCtx *execContext) (bool, uint64, error) {
	validateFn := instance.ExportedFunction("validate")
	if validateFn == nil {
		return false, execCtx.gasUsed, fmt.Errorf("heuristicvm: validate function not exported")
	}

	_, err := validateFn.Call(ctx)
	if err != nil {
		if execCtx.gasExhausted {
			return false, execCtx.gasUsed, ErrGasExhausted
		}

		return false, execCtx.gasUsed, fmt.Errorf("heuristicvm: validate: %w", err)
	}

	return len(execCtx.output) == 1 && execCtx.output[0] != 0, execCtx.gasUsed, nil
}

// Unload drops a compiled module from the pool.
func (p *Pool) Unload(id [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if compiled, exists := p.modules[id]; exists {
		compiled.Close(context.Background())
		delete(p.modules, id)
	}
}

// Close releases every compiled module and the underlying runtime.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, compiled := range p.modules {
		compiled.Close(context.Background())
		delete(p.modules, id)
	}

	return p.runtime.Close(context.Background())
}
