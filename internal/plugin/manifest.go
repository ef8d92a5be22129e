package plugin

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
	"github.com/woxQAQ/mkvbridge/pkg/matroska"
)

// ManifestFile is the name of the manifest inside a plugin directory.
const ManifestFile = "manifest.yaml"

// Container formats a plugin may declare.
const (
	FormatMatroska = "matroska"
	FormatWebM     = "webm"
)

// Capabilities a plugin may declare.
const (
	CapTracks   = matroska.CapabilityTracks
	CapChapters = matroska.CapabilityChapters
	CapTags     = matroska.CapabilityTags
)

// Manifest represents the plugin manifest.yaml structure.
type Manifest struct {
	Name         string     `yaml:"name"`
	Version      string     `yaml:"version"`
	Format       string     `yaml:"format"`
	ABIVersion   int        `yaml:"abi_version"`
	Wasm         WasmConfig `yaml:"wasm"`
	Capabilities []string   `yaml:"capabilities"`
	Author       string     `yaml:"author"`
	License      string     `yaml:"license"`

	// Internal fields
	dir string // Directory containing manifest
}

// WasmConfig holds Wasm module configuration.
type WasmConfig struct {
	File string `yaml:"file"`
	Size int    `yaml:"size"` // KB
}

// ParseManifest reads and parses manifest.yaml from a directory.
func ParseManifest(dir string) (*Manifest, error) {
	manifestPath := filepath.Join(dir, ManifestFile)

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, &ManifestNotFoundError{
			Path: manifestPath,
			Err:  err,
		}
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &ManifestParseError{
			Path: manifestPath,
			Err:  err,
		}
	}

	m.dir = dir

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest fields.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return m.invalid("name", "name is required")
	}

	if m.Version == "" {
		return m.invalid("version", "version is required")
	}

	switch m.Format {
	case FormatMatroska, FormatWebM:
	case "":
		return m.invalid("format", "format is required")
	default:
		return m.invalid("format", fmt.Sprintf("unsupported format: %s (must be one of: %s, %s)",
			m.Format, FormatMatroska, FormatWebM))
	}

	if m.ABIVersion != abi.ABIVersion {
		return m.invalid("abi_version", fmt.Sprintf("unsupported abi_version: %d (host speaks %d)",
			m.ABIVersion, abi.ABIVersion))
	}

	if m.Wasm.File == "" {
		return m.invalid("wasm.file", "wasm.file is required")
	}

	if len(m.Capabilities) == 0 {
		return m.invalid("capabilities", "at least one capability is required")
	}

	validCaps := map[string]bool{
		CapTracks:   true,
		CapChapters: true,
		CapTags:     true,
	}
	for _, c := range m.Capabilities {
		if !validCaps[c] {
			return m.invalid("capabilities", fmt.Sprintf("unknown capability: %s (must be one of: %s, %s, %s)",
				c, CapTracks, CapChapters, CapTags))
		}
	}

	if _, err := os.Stat(m.WasmPath()); os.IsNotExist(err) {
		return &WasmNotFoundError{
			ManifestPath: m.Path(),
			WasmFile:     m.Wasm.File,
		}
	}

	return nil
}

func (m *Manifest) invalid(field, msg string) error {
	return &ManifestValidationError{Path: m.Path(), Field: field, Message: msg}
}

// Path returns the manifest file path.
func (m *Manifest) Path() string {
	return filepath.Join(m.dir, ManifestFile)
}

// WasmPath returns the path to the Wasm file.
func (m *Manifest) WasmPath() string {
	return filepath.Join(m.dir, m.Wasm.File)
}

// Dir returns the directory containing the manifest.
func (m *Manifest) Dir() string {
	return m.dir
}
