package plugin

import (
	"sync"

	"go.uber.org/zap"
)

// Registry manages loaded plugins.
type Registry struct {
	sync.RWMutex
	plugins  map[string]*Plugin   // name -> plugin
	byFormat map[string][]*Plugin // format -> plugins, in registration order
	logger   *zap.Logger
}

// NewRegistry creates a new plugin registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		plugins:  make(map[string]*Plugin),
		byFormat: make(map[string][]*Plugin),
		logger:   logger.With(zap.String("component", "plugin-registry")),
	}
}

// Register adds a plugin to the registry.
func (r *Registry) Register(p *Plugin) error {
	r.Lock()
	defer r.Unlock()

	name := p.Manifest.Name

	if _, exists := r.plugins[name]; exists {
		return &AlreadyRegisteredError{PluginName: name}
	}

	r.plugins[name] = p

	format := p.Manifest.Format
	r.byFormat[format] = append(r.byFormat[format], p)

	r.logger.Info("Plugin registered",
		zap.String("name", name),
		zap.String("format", format),
	)

	return nil
}

// Get retrieves a plugin by name.
func (r *Registry) Get(name string) (*Plugin, bool) {
	r.RLock()
	defer r.RUnlock()

	p, ok := r.plugins[name]
	return p, ok
}

// LookupByFormat finds plugins for a container format.
func (r *Registry) LookupByFormat(format string) []*Plugin {
	r.RLock()
	defer r.RUnlock()

	plugins, ok := r.byFormat[format]
	if !ok || len(plugins) == 0 {
		return []*Plugin{}
	}
	// Return copy to avoid race conditions
	result := make([]*Plugin, len(plugins))
	copy(result, plugins)
	return result
}
