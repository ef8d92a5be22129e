package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Parser backends.
const (
	BackendEBML = "ebml"
	BackendWasm = "wasm"
)

// EnvPrefix is prepended to environment overrides, e.g. MKVBRIDGE_LOG_LEVEL.
const EnvPrefix = "MKVBRIDGE"

type Config struct {
	LogLevel    string     `mapstructure:"log_level"`
	Backend     string     `mapstructure:"backend"`
	PluginPaths []string   `mapstructure:"plugin_paths"`
	Wasm        WasmConfig `mapstructure:"wasm"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Keep DWARF info for guest stack traces.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory. Empty keeps the cache in memory.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Parser plugin to use with the wasm backend. Empty picks the first
	// plugin that handles Matroska.
	Plugin string `mapstructure:"plugin"`
}

// Load reads configuration from defaults, an optional file and the
// environment, in increasing order of precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("backend", BackendEBML)
	v.SetDefault("plugin_paths", []string{"./plugins"})

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 16)
	v.SetDefault("wasm.plugin", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendEBML, BackendWasm:
	default:
		return fmt.Errorf("unknown backend %q (must be %s or %s)", c.Backend, BackendEBML, BackendWasm)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}

	if c.Backend == BackendWasm && len(c.PluginPaths) == 0 {
		return fmt.Errorf("backend %s needs at least one plugin path", BackendWasm)
	}

	return nil
}
