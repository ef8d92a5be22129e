package plugin

import (
	"time"

	"github.com/woxQAQ/mkvbridge/internal/wasm"
)

// Plugin is a parser module with its manifest and compiled code.
type Plugin struct {
	// Manifest is the parsed plugin metadata
	Manifest *Manifest

	// Compiled is the compiled Wasm module
	Compiled *wasm.CompiledModule

	// LoadedAt is the timestamp when the plugin was loaded
	LoadedAt time.Time
}

// Name returns the plugin name.
func (p *Plugin) Name() string {
	return p.Manifest.Name
}

// Format returns the container format the plugin parses.
func (p *Plugin) Format() string {
	return p.Manifest.Format
}

// Version returns the plugin version.
func (p *Plugin) Version() string {
	return p.Manifest.Version
}

// Capabilities returns the list of capabilities provided by this plugin.
func (p *Plugin) Capabilities() []string {
	return p.Manifest.Capabilities
}

// HasCapability reports whether the plugin declares capability c.
func (p *Plugin) HasCapability(c string) bool {
	for _, v := range p.Manifest.Capabilities {
		if v == c {
			return true
		}
	}
	return false
}
