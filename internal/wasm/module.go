package wasm

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
)

// ModuleLoader compiles parser modules and caches them on the Runtime by
// name, so each parser binary is compiled once however many files it opens.
type ModuleLoader struct {
	runtime *Runtime
	logger  *zap.Logger
}

// NewModuleLoader creates a new module loader.
func NewModuleLoader(runtime *Runtime, logger *zap.Logger) *ModuleLoader {
	return &ModuleLoader{
		runtime: runtime,
		logger:  logger.With(zap.String("component", "wasm-loader")),
	}
}

// LoadFile compiles the parser at path. The path is the module name.
func (l *ModuleLoader) LoadFile(ctx context.Context, path string) (*CompiledModule, error) {
	if m, ok := l.runtime.compiled(path); ok {
		l.logger.Debug("Module cache hit", zap.String("module", path))
		return m, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read module %s: %w", path, err)
	}
	return l.compile(ctx, path, data)
}

// LoadBytes compiles an in-memory parser under name.
func (l *ModuleLoader) LoadBytes(ctx context.Context, name string, data []byte) (*CompiledModule, error) {
	if m, ok := l.runtime.compiled(name); ok {
		l.logger.Debug("Module cache hit", zap.String("module", name))
		return m, nil
	}
	return l.compile(ctx, name, data)
}

func (l *ModuleLoader) compile(ctx context.Context, name string, data []byte) (*CompiledModule, error) {
	l.logger.Info("Compiling Wasm module",
		zap.String("module", name),
		zap.Int("size_bytes", len(data)),
	)

	start := time.Now()
	compiled, err := l.runtime.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, &CompilationError{ModuleName: name, Err: err}
	}

	m := &CompiledModule{
		Module:      compiled,
		Name:        name,
		SizeBytes:   int64(len(data)),
		StreamSlots: streamSlots(compiled),
	}
	if cached := l.runtime.addCompiled(m); cached != m {
		// Lost a race with a concurrent load of the same name.
		_ = compiled.Close(ctx)
		return cached, nil
	}

	l.logger.Info("Module compiled successfully",
		zap.String("module", name),
		zap.Duration("duration", time.Since(start)),
		zap.Strings("stream_slots", m.StreamSlots),
	)
	return m, nil
}

// streamSlots lists the stream callbacks the module imports from the host.
func streamSlots(compiled wazero.CompiledModule) []string {
	var slots []string
	for _, def := range compiled.ImportedFunctions() {
		if module, name, ok := def.Import(); ok && module == abi.ImportModule {
			slots = append(slots, name)
		}
	}
	sort.Strings(slots)
	return slots
}
