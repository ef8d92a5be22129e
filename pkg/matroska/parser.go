package matroska

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/woxQAQ/mkvbridge/internal/wasm"
)

// Capabilities a Parser may be restricted to with WithCapabilities. They match
// the capability names of plugin manifests.
const (
	CapabilityTracks   = "tracks"
	CapabilityChapters = "chapters"
	CapabilityTags     = "tags"
)

// Parser is a WebAssembly build of the native Matroska parser, compiled and
// ready to open files. Every Demuxer opened WithParser runs in a guest of its
// own. A Parser is safe for concurrent use.
type Parser struct {
	name    string
	runtime *wasm.Runtime
	guests  *wasm.InstanceManager
	caps    map[string]bool
	logger  *zap.Logger
}

// ParserOption configures LoadParser.
type ParserOption func(*parserOptions)

type parserOptions struct {
	logger  *zap.Logger
	runtime wasm.RuntimeConfig
	caps    []string
}

// WithParserLogger sets the logger of the runtime and its guests.
func WithParserLogger(logger *zap.Logger) ParserOption {
	return func(o *parserOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMemoryPages caps each guest's linear memory, in 64KiB pages.
func WithMemoryPages(pages uint32) ParserOption {
	return func(o *parserOptions) {
		o.runtime.MemoryPages = pages
	}
}

// WithMaxGuests bounds the number of demuxers open on the parser at once.
// Zero means unlimited.
func WithMaxGuests(n int) ParserOption {
	return func(o *parserOptions) {
		o.runtime.MaxInstances = n
	}
}

// WithCompilationCache keeps compiled code in dir across processes.
func WithCompilationCache(dir string) ParserOption {
	return func(o *parserOptions) {
		o.runtime.CacheDir = dir
	}
}

// WithDebugInfo keeps DWARF so guest traps carry source positions.
func WithDebugInfo(enabled bool) ParserOption {
	return func(o *parserOptions) {
		o.runtime.DebugEnabled = enabled
	}
}

// WithCapabilities limits what the parser is asked for. Chapters and tags of
// a parser without the matching capability return ErrUnsupported, as do
// tracks. Without this option every capability is assumed.
func WithCapabilities(caps ...string) ParserOption {
	return func(o *parserOptions) {
		o.caps = caps
	}
}

// LoadParser compiles the parser module at path in a runtime of its own.
// Close releases the runtime and any guest still open.
func LoadParser(ctx context.Context, path string, opts ...ParserOption) (*Parser, error) {
	o := &parserOptions{
		logger:  zap.NewNop(),
		runtime: *wasm.DefaultRuntimeConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With(zap.String("parser", path))

	config := o.runtime
	runtime, err := wasm.NewRuntime(ctx, logger, &config)
	if err != nil {
		return nil, fmt.Errorf("could not start parser runtime: %w", err)
	}

	compiled, err := wasm.NewModuleLoader(runtime, logger).LoadFile(ctx, path)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("could not load parser: %w", err)
	}

	p := &Parser{
		name:    compiled.Name,
		runtime: runtime,
		guests:  wasm.NewInstanceManager(runtime, wasm.NewHostFunctions(logger), logger),
		logger:  logger,
	}
	if o.caps != nil {
		p.caps = make(map[string]bool, len(o.caps))
		for _, c := range o.caps {
			p.caps[c] = true
		}
	}

	logger.Debug("Parser loaded",
		zap.Strings("stream_slots", compiled.StreamSlots),
		zap.Strings("capabilities", o.caps),
	)
	return p, nil
}

// Close shuts the parser's runtime down. Demuxers still open on it fail from
// then on.
func (p *Parser) Close(ctx context.Context) error {
	return p.runtime.Close(ctx)
}

// supports reports whether the parser may be asked for capability c.
func (p *Parser) supports(c string) bool {
	return p.caps == nil || p.caps[c]
}

// guest starts a parser instance for one demuxer.
func (p *Parser) guest(ctx context.Context) (*wasm.Instance, error) {
	return p.guests.Instantiate(ctx, &wasm.InstanceConfig{ModuleName: p.name})
}
