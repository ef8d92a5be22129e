package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"
)

// Runtime hosts parser guests. One per process: the "mkvio" host module and
// the compiled parsers are shared by every guest it starts.
type Runtime struct {
	runtime wazero.Runtime
	config  *RuntimeConfig
	cache   wazero.CompilationCache // nil without CacheDir
	logger  *zap.Logger

	mu      sync.Mutex
	parsers map[string]*CompiledModule
	guests  map[string]*Instance
	closed  bool
}

// RuntimeConfig holds runtime configuration.
type RuntimeConfig struct {
	// Linear memory cap per guest, in 64KiB pages. Zero leaves wazero's limit.
	MemoryPages uint32

	// Keep DWARF so guest traps carry source positions.
	DebugEnabled bool

	// Directory for wazero's persistent compilation cache. Empty compiles in
	// memory only.
	CacheDir string

	// Live guests allowed at once. Zero means unlimited.
	MaxInstances int
}

// CompiledModule is a parser module ready to instantiate.
type CompiledModule struct {
	Module    wazero.CompiledModule
	Name      string
	SizeBytes int64

	// Functions imported from the "mkvio" host module, sorted.
	StreamSlots []string
}

// DefaultRuntimeConfig returns a 16MiB memory cap and 16 guests.
func DefaultRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		MemoryPages:  256,
		MaxInstances: 16,
	}
}

// NewRuntime starts a wazero runtime with WASI preview 1 instantiated, which
// parsers built against wasi-libc import.
func NewRuntime(ctx context.Context, logger *zap.Logger, config *RuntimeConfig) (*Runtime, error) {
	if config == nil {
		config = DefaultRuntimeConfig()
	}

	rc := wazero.NewRuntimeConfig().
		WithDebugInfoEnabled(config.DebugEnabled).
		WithCloseOnContextDone(true)
	if config.MemoryPages > 0 {
		rc = rc.WithMemoryLimitPages(config.MemoryPages)
	}

	var cache wazero.CompilationCache
	if config.CacheDir != "" {
		c, err := wazero.NewCompilationCacheWithDir(config.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open compilation cache %s: %w", config.CacheDir, err)
		}
		cache = c
		rc = rc.WithCompilationCache(cache)
	}

	wr := wazero.NewRuntimeWithConfig(ctx, rc)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, wr); err != nil {
		_ = wr.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	r := &Runtime{
		runtime: wr,
		config:  config,
		cache:   cache,
		logger:  logger.With(zap.String("component", "wasm-runtime")),
		parsers: make(map[string]*CompiledModule),
		guests:  make(map[string]*Instance),
	}

	r.logger.Info("Wasm runtime initialized",
		zap.Uint32("memory_pages", config.MemoryPages),
		zap.Bool("debug_enabled", config.DebugEnabled),
		zap.String("cache_dir", config.CacheDir),
		zap.Int("max_instances", config.MaxInstances),
	)
	return r, nil
}

// Close closes every live guest, then the runtime. Later calls return nil.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	guests := make([]*Instance, 0, len(r.guests))
	for _, inst := range r.guests {
		guests = append(guests, inst)
	}
	r.guests = make(map[string]*Instance)
	r.mu.Unlock()

	r.logger.Info("Shutting down Wasm runtime", zap.Int("live_guests", len(guests)))

	for _, inst := range guests {
		if err := inst.module.Close(ctx); err != nil {
			r.logger.Warn("Failed to close guest",
				zap.String("instance_id", inst.ID),
				zap.Error(err),
			)
		}
	}

	err := r.runtime.Close(ctx)
	if r.cache != nil {
		if cerr := r.cache.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Closed reports whether Close has been called.
func (r *Runtime) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Guests returns the number of live guests.
func (r *Runtime) Guests() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.guests)
}

func (r *Runtime) compiled(name string) (*CompiledModule, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.parsers[name]
	return m, ok
}

// addCompiled caches m unless another loader got there first, and returns
// the cached module.
func (r *Runtime) addCompiled(m *CompiledModule) *CompiledModule {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.parsers[m.Name]; ok {
		return prev
	}
	r.parsers[m.Name] = m
	return m
}

// admit registers a guest, enforcing MaxInstances.
func (r *Runtime) admit(inst *Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRuntimeClosed
	}
	if limit := r.config.MaxInstances; limit > 0 && len(r.guests) >= limit {
		return &InstanceLimitError{Limit: limit}
	}
	r.guests[inst.ID] = inst
	return nil
}

func (r *Runtime) release(id string) {
	r.mu.Lock()
	delete(r.guests, id)
	r.mu.Unlock()
}
