package wasm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
)

// InstanceManager creates and manages parser instances.
type InstanceManager struct {
	runtime   *Runtime
	logger    *zap.Logger
	hostFuncs *HostFunctionsImpl

	// The "mkvio" host module is instantiated once per runtime.
	hostOnce sync.Once
	hostErr  error
}

// NewInstanceManager creates a new instance manager.
func NewInstanceManager(runtime *Runtime, hostFuncs *HostFunctionsImpl, logger *zap.Logger) *InstanceManager {
	return &InstanceManager{
		runtime:   runtime,
		hostFuncs: hostFuncs,
		logger:    logger.With(zap.String("component", "wasm-instance")),
	}
}

// InstanceConfig holds configuration for creating instances.
type InstanceConfig struct {
	// Module name to instantiate.
	ModuleName string

	// Instance ID (if empty, generates UUID).
	InstanceID string

	// Skip the parser export check. Used for helper modules that only need
	// memory, such as in tests.
	SkipValidation bool
}

// Instance is an instantiated parser module.
//
// A guest has a single stack and a single allocator, so calls are serialised
// through mu. Sessions on the same instance take turns.
type Instance struct {
	module api.Module
	host   *HostFunctionsImpl
	mem    *Memory
	mu     sync.Mutex

	ID        string
	Name      string
	CreatedAt int64

	// Exported functions (cached for performance).
	exports map[string]api.Function

	onClose func()
}

// Instantiate starts a guest from a module compiled by ModuleLoader. The
// "mkvio" host module is built on first use.
func (m *InstanceManager) Instantiate(ctx context.Context, config *InstanceConfig) (*Instance, error) {
	compiled, ok := m.runtime.compiled(config.ModuleName)
	if !ok {
		return nil, &ModuleNotFoundError{ModuleName: config.ModuleName}
	}

	instanceID := config.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	if err := m.ensureHostModule(ctx); err != nil {
		return nil, err
	}

	// Reactor modules built with wasi-sdk initialise their libc in
	// _initialize. Missing start functions are skipped.
	moduleConfig := wazero.NewModuleConfig().
		WithName(instanceID).
		WithStartFunctions("_initialize")

	module, err := m.runtime.runtime.InstantiateModule(ctx, compiled.Module, moduleConfig)
	if err != nil {
		return nil, &InstantiationError{
			ModuleName: config.ModuleName,
			InstanceID: instanceID,
			Err:        err,
		}
	}

	exports := m.cacheExportedFunctions(module)
	if !config.SkipValidation {
		for _, name := range abi.RequiredExports {
			if _, ok := exports[name]; !ok {
				_ = module.Close(ctx)
				return nil, &FunctionNotFoundError{ModuleName: config.ModuleName, FunctionName: name}
			}
		}
	}

	instance := &Instance{
		module:    module,
		host:      m.hostFuncs,
		mem:       NewMemory(module),
		ID:        instanceID,
		Name:      config.ModuleName,
		CreatedAt: time.Now().Unix(),
		exports:   exports,
		onClose:   func() { m.runtime.release(instanceID) },
	}
	if err := m.runtime.admit(instance); err != nil {
		_ = module.Close(ctx)
		return nil, err
	}

	m.logger.Debug("Guest instantiated",
		zap.String("module", config.ModuleName),
		zap.String("instance_id", instanceID),
		zap.Int("exported_functions", len(exports)),
	)
	return instance, nil
}

// Close closes the instance and releases resources.
func (i *Instance) Close(ctx context.Context) error {
	if i.onClose != nil {
		i.onClose()
	}
	return i.module.Close(ctx)
}

// Module returns the underlying wazero module.
func (i *Instance) Module() api.Module {
	return i.module
}

// Memory returns the instance's memory helper.
func (i *Instance) Memory() *Memory {
	return i.mem
}

// Host returns the host functions the instance imports.
func (i *Instance) Host() *HostFunctionsImpl {
	return i.host
}

// call invokes a cached guest export. Callers serialise through i.mu.
func (i *Instance) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn, ok := i.exports[name]
	if !ok {
		return nil, &FunctionNotFoundError{ModuleName: i.Name, FunctionName: name}
	}

	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, &CallError{FunctionName: name, Err: err}
	}
	return res, nil
}

// call32 invokes name and returns its first result as a guest address or count.
func (i *Instance) call32(ctx context.Context, name string, params ...uint64) (uint32, error) {
	res, err := i.call(ctx, name, params...)
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return uint32(res[0]), nil
}

// cacheExportedFunctions caches references to exported functions.
// This improves performance by avoiding repeated lookups.
func (m *InstanceManager) cacheExportedFunctions(module api.Module) map[string]api.Function {
	exports := make(map[string]api.Function)

	for _, name := range abi.RequiredExports {
		if fn := module.ExportedFunction(name); fn != nil {
			exports[name] = fn
		}
	}

	return exports
}

// ensureHostModule instantiates the "mkvio" host module the first time a
// guest needs it.
func (m *InstanceManager) ensureHostModule(ctx context.Context) error {
	m.hostOnce.Do(func() {
		builder := m.runtime.runtime.NewHostModuleBuilder(abi.ImportModule)
		m.exportHostFunctions(builder)

		if _, err := builder.Instantiate(ctx); err != nil {
			m.hostErr = fmt.Errorf("failed to instantiate host module: %w", err)
		}
	})
	return m.hostErr
}

// exportHostFunctions registers Go functions for import by Wasm modules.
func (m *InstanceManager) exportHostFunctions(builder wazero.HostModuleBuilder) {
	impl := m.hostFuncs

	builder.NewFunctionBuilder().
		WithFunc(impl.Read).
		WithParameterNames("io", "pos", "buf", "count").
		Export(abi.ImportRead)

	builder.NewFunctionBuilder().
		WithFunc(impl.Scan).
		WithParameterNames("io", "start", "signature").
		Export(abi.ImportScan)

	builder.NewFunctionBuilder().
		WithFunc(impl.GetCacheSize).
		WithParameterNames("io").
		Export(abi.ImportGetCacheSize)

	builder.NewFunctionBuilder().
		WithFunc(impl.GetError).
		WithParameterNames("io").
		Export(abi.ImportGetError)

	builder.NewFunctionBuilder().
		WithFunc(impl.MemAlloc).
		WithParameterNames("io", "size").
		Export(abi.ImportMemAlloc)

	builder.NewFunctionBuilder().
		WithFunc(impl.MemRealloc).
		WithParameterNames("io", "mem", "size").
		Export(abi.ImportMemRealloc)

	builder.NewFunctionBuilder().
		WithFunc(impl.MemFree).
		WithParameterNames("io", "mem").
		Export(abi.ImportMemFree)

	builder.NewFunctionBuilder().
		WithFunc(impl.Progress).
		WithParameterNames("io", "cur", "max").
		Export(abi.ImportProgress)

	builder.NewFunctionBuilder().
		WithFunc(impl.GetFileSize).
		WithParameterNames("io").
		Export(abi.ImportGetFileSize)
}
