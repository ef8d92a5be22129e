package plugin

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/mkvbridge/internal/config"
	"github.com/woxQAQ/mkvbridge/internal/wasm"
	"github.com/woxQAQ/mkvbridge/pkg/matroska"
)

// Manager manages plugin lifecycle.
type Manager struct {
	cfg      *config.Config
	runtime  *wasm.Runtime
	loader   *Loader
	registry *Registry
	logger   *zap.Logger

	mu     sync.RWMutex
	loaded bool
}

// NewManager creates a new plugin manager. The runtime compiles discovered
// plugins to vet them; parsers run in runtimes of their own.
func NewManager(cfg *config.Config, runtime *wasm.Runtime, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		runtime:  runtime,
		loader:   NewLoader(runtime, logger),
		registry: NewRegistry(logger),
		logger:   logger.With(zap.String("component", "plugin-manager")),
	}
}

// LoadAll discovers and loads all plugins from configured paths.
func (m *Manager) LoadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return fmt.Errorf("plugins already loaded")
	}

	m.logger.Info("Loading plugins",
		zap.Strings("paths", m.cfg.PluginPaths),
	)

	plugins, err := m.loader.DiscoverPlugins(ctx, m.cfg.PluginPaths)
	if err != nil {
		if _, ok := err.(*NoPluginsFoundError); ok {
			m.logger.Warn("No plugins found in configured paths",
				zap.Strings("paths", m.cfg.PluginPaths),
			)
			m.loaded = true
			return nil
		}
		return err
	}

	for _, p := range plugins {
		if err := m.registry.Register(p); err != nil {
			m.logger.Error("Failed to register plugin",
				zap.String("name", p.Manifest.Name),
				zap.Error(err),
			)
			continue
		}
	}

	m.loaded = true

	m.logger.Info("Plugins loaded successfully",
		zap.Int("count", len(plugins)),
	)

	return nil
}

// Get retrieves a plugin by name.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.registry.Get(name)
	if !ok {
		return nil, &NotFoundError{PluginName: name}
	}

	return p, nil
}

// FindForFormat finds the first plugin for a container format that reports
// tracks. WebM is a Matroska profile, so a Matroska parser serves it when no
// WebM-only plugin exists.
func (m *Manager) FindForFormat(format string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := m.registry.LookupByFormat(format)
	if format == FormatWebM {
		plugins = append(plugins, m.registry.LookupByFormat(FormatMatroska)...)
	}
	for _, p := range plugins {
		if p.HasCapability(CapTracks) {
			return p, nil
		}
	}

	return nil, &NoPluginForFormatError{Format: format}
}

// Select returns the configured plugin, or the first Matroska parser when
// none is configured.
func (m *Manager) Select() (*Plugin, error) {
	if m.cfg.Wasm.Plugin != "" {
		return m.Get(m.cfg.Wasm.Plugin)
	}
	return m.FindForFormat(FormatMatroska)
}

// Parser loads the plugin's module as a matroska.Parser configured from the
// wasm settings and limited to the plugin's declared capabilities. The caller
// closes it.
func (m *Manager) Parser(ctx context.Context, p *Plugin) (*matroska.Parser, error) {
	parser, err := matroska.LoadParser(ctx, p.Manifest.WasmPath(),
		matroska.WithParserLogger(m.logger.With(zap.String("plugin", p.Name()))),
		matroska.WithMemoryPages(m.cfg.Wasm.MemoryPages),
		matroska.WithMaxGuests(m.cfg.Wasm.MaxInstances),
		matroska.WithCompilationCache(m.cfg.Wasm.CacheDir),
		matroska.WithDebugInfo(m.cfg.Wasm.Debug),
		matroska.WithCapabilities(p.Capabilities()...),
	)
	if err != nil {
		return nil, &LoadError{PluginName: p.Name(), Err: err}
	}
	return parser, nil
}

// Shutdown closes the runtime plugins were vetted in. Parsers returned by
// Parser are closed by their callers.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down plugin manager")

	if err := m.runtime.Close(ctx); err != nil {
		m.logger.Error("Failed to shutdown runtime", zap.Error(err))
		return err
	}

	m.logger.Info("Plugin manager shutdown complete")
	return nil
}
