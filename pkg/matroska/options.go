package matroska

import (
	"context"

	"go.uber.org/zap"
)

// Option configures a Demuxer.
//
// Example:
//
//	parser, err := matroska.LoadParser(ctx, "plugins/mkv/matroskaparser.wasm")
//	if err != nil {
//	    return err
//	}
//	defer parser.Close(ctx)
//
//	d, err := matroska.NewDemuxer(f,
//	    matroska.WithLogger(logger),
//	    matroska.WithParser(parser),
//	)
type Option func(*demuxerOptions)

type demuxerOptions struct {
	logger *zap.Logger
	parser *Parser
	ctx    context.Context
}

func defaultOptions() *demuxerOptions {
	return &demuxerOptions{
		logger: zap.NewNop(),
		ctx:    context.Background(),
	}
}

// WithLogger sets the logger used by the demuxer and its I/O callbacks.
func WithLogger(logger *zap.Logger) Option {
	return func(o *demuxerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithParser parses with a WebAssembly build of the native parser instead of
// the built-in EBML decoder. The demuxer starts a guest of its own on p and
// stops it on Close.
//
// The guest backend only reports tracks, chapters and tags. Other calls
// return ErrUnsupported.
func WithParser(p *Parser) Option {
	return func(o *demuxerOptions) {
		o.parser = p
	}
}

// WithContext sets the context passed to guest parser calls.
func WithContext(ctx context.Context) Option {
	return func(o *demuxerOptions) {
		if ctx != nil {
			o.ctx = ctx
		}
	}
}
