package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/woxQAQ/mkvbridge/internal/config"
	"github.com/woxQAQ/mkvbridge/internal/plugin"
	"github.com/woxQAQ/mkvbridge/internal/wasm"
	"github.com/woxQAQ/mkvbridge/pkg/matroska"
)

// Inspector opens files with the configured backend and summarises them.
type Inspector struct {
	cfg    *config.Config
	logger *zap.Logger

	// Set only for the wasm backend.
	plugins *plugin.Manager
	parser  *matroska.Parser
}

// Options selects what Inspect reports beyond tracks and file info.
type Options struct {
	// CountPackets reads every packet and counts them per track.
	CountPackets bool
	// Parallel bounds concurrent files in InspectAll. Values below 1 mean 1.
	Parallel int
}

// NewInspector prepares the configured backend. For the wasm backend this
// starts the runtime and loads parser plugins.
func NewInspector(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Inspector, error) {
	i := &Inspector{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "inspector")),
	}

	if cfg.Backend != config.BackendWasm {
		return i, nil
	}

	wasmConfig := &wasm.RuntimeConfig{
		MemoryPages:  cfg.Wasm.MemoryPages,
		DebugEnabled: cfg.Wasm.Debug,
		CacheDir:     cfg.Wasm.CacheDir,
		MaxInstances: cfg.Wasm.MaxInstances,
	}

	wasmRuntime, err := wasm.NewRuntime(ctx, logger, wasmConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Wasm runtime: %w", err)
	}

	plugins := plugin.NewManager(cfg, wasmRuntime, logger)
	if err := plugins.LoadAll(ctx); err != nil {
		_ = wasmRuntime.Close(ctx)
		return nil, err
	}

	selected, err := plugins.Select()
	if err != nil {
		_ = wasmRuntime.Close(ctx)
		return nil, err
	}

	parser, err := plugins.Parser(ctx, selected)
	if err != nil {
		_ = wasmRuntime.Close(ctx)
		return nil, err
	}

	i.plugins = plugins
	i.parser = parser

	i.logger.Info("Using parser plugin",
		zap.String("name", selected.Name()),
		zap.String("version", selected.Version()),
		zap.Strings("capabilities", selected.Capabilities()),
		zap.Uint32("wasm_memory_pages", cfg.Wasm.MemoryPages),
	)
	return i, nil
}

// Close shuts down the parser and the plugin runtime, if any.
func (i *Inspector) Close(ctx context.Context) error {
	if i.plugins == nil {
		return nil
	}

	err := i.parser.Close(ctx)
	if serr := i.plugins.Shutdown(ctx); err == nil {
		err = serr
	}
	if err != nil {
		i.logger.Error("Failed to shutdown plugins", zap.Error(err))
	}
	return err
}

// InspectAll summarises every path. A file that fails to open is reported
// with its error rather than failing the batch; only cancellation does that.
func (i *Inspector) InspectAll(ctx context.Context, paths []string, opts Options) ([]*File, error) {
	files := make([]*File, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))

	for n, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			f, err := i.InspectFile(ctx, path, opts)
			if err != nil {
				i.logger.Warn("Failed to inspect file", zap.String("path", path), zap.Error(err))
				f = &File{Path: path, Backend: i.cfg.Backend, Error: err.Error()}
			}
			files[n] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

// InspectFile summarises one file.
func (i *Inspector) InspectFile(ctx context.Context, path string, opts Options) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return i.Inspect(ctx, path, fh, opts)
}

// Inspect summarises the file read from r. The path is only recorded.
func (i *Inspector) Inspect(ctx context.Context, path string, r io.ReadSeeker, opts Options) (*File, error) {
	demuxOpts := []matroska.Option{
		matroska.WithLogger(i.logger.With(zap.String("path", path))),
		matroska.WithContext(ctx),
	}

	if i.parser != nil {
		// The demuxer runs its own guest, so files parse concurrently.
		demuxOpts = append(demuxOpts, matroska.WithParser(i.parser))
	}

	d, err := matroska.NewDemuxer(r, demuxOpts...)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	return i.summarise(path, d, opts)
}

func (i *Inspector) summarise(path string, d *matroska.Demuxer, opts Options) (*File, error) {
	f := &File{Path: path, Backend: i.cfg.Backend}

	n, err := d.GetNumTracks()
	if err != nil {
		return nil, err
	}
	for t := uint(0); t < n; t++ {
		ti, err := d.GetTrackInfo(t)
		if err != nil {
			return nil, err
		}
		f.Tracks = append(f.Tracks, track(ti))
	}

	if si, err := d.GetFileInfo(); err == nil {
		f.Info = info(si)
	} else {
		i.logger.Debug("File info unavailable", zap.Error(err))
	}

	if ch, err := d.GetChapters(); err == nil {
		f.Chapters = chapters(ch)
	} else {
		i.logger.Debug("Chapters unavailable", zap.Error(err))
	}
	if tg, err := d.GetTags(); err == nil {
		f.Tags = tags(tg)
	} else {
		i.logger.Debug("Tags unavailable", zap.Error(err))
	}
	if at, err := d.GetAttachments(); err == nil {
		f.Attachments = attachments(at)
	}
	if cues, err := d.GetCues(); err == nil {
		f.Cues = len(cues)
	}

	if opts.CountPackets {
		counts, err := countPackets(d)
		switch {
		case errors.Is(err, matroska.ErrUnsupported):
			i.logger.Debug("Packet reading unavailable", zap.Error(err))
		case err != nil:
			return nil, err
		default:
			f.Packets = counts
		}
	}
	return f, nil
}

func countPackets(d *matroska.Demuxer) (map[int]int, error) {
	counts := make(map[int]int)
	for {
		p, err := d.ReadPacket()
		if err == io.EOF {
			return counts, nil
		}
		if err != nil {
			return nil, err
		}
		counts[int(p.Track)]++
	}
}
