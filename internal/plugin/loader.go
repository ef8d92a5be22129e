package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
	"github.com/woxQAQ/mkvbridge/internal/wasm"
)

// Loader handles loading plugins from disk.
type Loader struct {
	runtime      *wasm.Runtime
	moduleLoader *wasm.ModuleLoader
	logger       *zap.Logger
}

// NewLoader creates a new plugin loader.
func NewLoader(runtime *wasm.Runtime, logger *zap.Logger) *Loader {
	return &Loader{
		runtime:      runtime,
		moduleLoader: wasm.NewModuleLoader(runtime, logger),
		logger:       logger.With(zap.String("component", "plugin-loader")),
	}
}

// LoadPlugin loads a single plugin from a directory.
func (l *Loader) LoadPlugin(ctx context.Context, dir string) (*Plugin, error) {
	l.logger.Debug("Loading plugin", zap.String("dir", dir))

	manifest, err := ParseManifest(dir)
	if err != nil {
		return nil, err
	}

	l.logger.Info("Loading plugin",
		zap.String("name", manifest.Name),
		zap.String("version", manifest.Version),
		zap.String("format", manifest.Format),
	)

	// Compile Wasm module (uses internal caching)
	compiled, err := l.moduleLoader.LoadFile(ctx, manifest.WasmPath())
	if err != nil {
		return nil, &LoadError{
			PluginName: manifest.Name,
			Err:        err,
		}
	}

	if err := checkSlots(compiled.StreamSlots); err != nil {
		return nil, &LoadError{
			PluginName: manifest.Name,
			Err:        err,
		}
	}

	p := &Plugin{
		Manifest: manifest,
		Compiled: compiled,
		LoadedAt: time.Now(),
	}

	l.logger.Info("Plugin loaded successfully",
		zap.String("name", manifest.Name),
		zap.Int64("size_bytes", compiled.SizeBytes),
	)

	return p, nil
}

// checkSlots rejects modules importing stream callbacks the host does not
// provide. Wazero would fail later at instantiation with a less useful error.
func checkSlots(slots []string) error {
	known := make(map[string]bool, len(abi.Imports))
	for _, name := range abi.Imports {
		known[name] = true
	}
	for _, name := range slots {
		if !known[name] {
			return fmt.Errorf("imports unknown %s function '%s'", abi.ImportModule, name)
		}
	}
	return nil
}

// DiscoverPlugins scans directories for plugins.
func (l *Loader) DiscoverPlugins(ctx context.Context, paths []string) ([]*Plugin, error) {
	var plugins []*Plugin
	var errs []error

	for _, basePath := range paths {
		l.logger.Debug("Scanning plugin directory", zap.String("path", basePath))

		entries, err := os.ReadDir(basePath)
		if err != nil {
			if os.IsNotExist(err) {
				l.logger.Warn("Plugin path does not exist", zap.String("path", basePath))
				continue
			}
			return nil, fmt.Errorf("failed to read directory '%s': %w", basePath, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			pluginDir := filepath.Join(basePath, entry.Name())

			p, err := l.LoadPlugin(ctx, pluginDir)
			if err != nil {
				l.logger.Error("Failed to load plugin",
					zap.String("dir", pluginDir),
					zap.Error(err),
				)
				errs = append(errs, err)
				continue
			}

			plugins = append(plugins, p)
		}
	}

	if len(plugins) > 0 && len(errs) > 0 {
		l.logger.Warn("Some plugins failed to load",
			zap.Int("loaded", len(plugins)),
			zap.Int("failed", len(errs)),
		)
	}

	if len(plugins) == 0 {
		return nil, &NoPluginsFoundError{Paths: paths}
	}

	return plugins, nil
}
