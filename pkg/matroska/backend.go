package matroska

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/woxQAQ/mkvbridge/internal/demux"
	"github.com/woxQAQ/mkvbridge/internal/mkvio"
	"github.com/woxQAQ/mkvbridge/internal/wasm"
	"github.com/woxQAQ/mkvbridge/pkg/mkv"
)

// backend is one parser implementation behind a Demuxer.
type backend interface {
	numTracks() (int, error)
	trackInfo(n int) (*mkv.TrackInfo, error)
	fileInfo() (*mkv.SegmentInfo, error)
	attachments() ([]mkv.Attachment, error)
	chapters() ([]*mkv.Chapter, error)
	tags() ([]mkv.Tag, error)
	cues() ([]mkv.Cue, error)
	layout() (segmentLayout, error)
	seek(timecode uint64, flags uint32) error
	seekCueAware(timecode uint64, flags uint32, fuzzy bool) error
	setTrackMask(mask uint64) error
	readPacket(mask uint64) (*mkv.Packet, error)
	skipToKeyframe() error
	lowestTimecode() (uint64, bool, error)
	close() error
}

// segmentLayout holds the byte offsets of the segment and the cues.
type segmentLayout struct {
	segment, segmentTop uint64
	cues, cuesTop       uint64
}

// ebmlBackend runs the built-in decoder over an IO record bound to r.
type ebmlBackend struct {
	d     *demux.Demuxer
	rec   *mkvio.IO
	table *mkvio.ReaderTable
	key   mkvio.Key
}

func openEBML(r io.ReadSeeker, logger *zap.Logger) (*ebmlBackend, error) {
	keyText := mkvio.NewKeyString()
	key, _ := mkvio.NewKey(keyText)

	table := mkvio.NewReaderTable(logger)
	if err := table.Add(key, r); err != nil {
		return nil, err
	}

	rec := mkvio.Alloc()
	rec.SetCallbacks(keyText, table)

	d, err := demux.Open(rec, logger.With(zap.String("key", keyText)))
	if err != nil {
		rec.Release()
		table.Remove(key)
		return nil, err
	}

	return &ebmlBackend{d: d, rec: rec, table: table, key: key}, nil
}

func (b *ebmlBackend) numTracks() (int, error) {
	return b.d.NumTracks(), nil
}

func (b *ebmlBackend) trackInfo(n int) (*mkv.TrackInfo, error) {
	return b.d.TrackInfo(n)
}

func (b *ebmlBackend) fileInfo() (*mkv.SegmentInfo, error) {
	return b.d.FileInfo(), nil
}

func (b *ebmlBackend) attachments() ([]mkv.Attachment, error) {
	return b.d.Attachments(), nil
}

func (b *ebmlBackend) chapters() ([]*mkv.Chapter, error) {
	return b.d.Chapters(), nil
}

func (b *ebmlBackend) tags() ([]mkv.Tag, error) {
	return b.d.Tags(), nil
}

func (b *ebmlBackend) cues() ([]mkv.Cue, error) {
	return b.d.Cues(), nil
}

func (b *ebmlBackend) layout() (segmentLayout, error) {
	return segmentLayout{
		segment:    b.d.Segment(),
		segmentTop: b.d.SegmentTop(),
		cues:       b.d.CuesPos(),
		cuesTop:    b.d.CuesTopPos(),
	}, nil
}

func (b *ebmlBackend) seek(timecode uint64, flags uint32) error {
	b.d.Seek(timecode, flags)
	return nil
}

func (b *ebmlBackend) seekCueAware(timecode uint64, flags uint32, fuzzy bool) error {
	b.d.SeekCueAware(timecode, flags, fuzzy)
	return nil
}

func (b *ebmlBackend) setTrackMask(mask uint64) error {
	b.d.SetTrackMask(mask)
	return nil
}

func (b *ebmlBackend) readPacket(mask uint64) (*mkv.Packet, error) {
	return b.d.ReadPacket(mask)
}

func (b *ebmlBackend) skipToKeyframe() error {
	b.d.SkipToKeyframe()
	return nil
}

func (b *ebmlBackend) lowestTimecode() (uint64, bool, error) {
	tc, ok := b.d.LowestTimecode()
	return tc, ok, nil
}

func (b *ebmlBackend) close() error {
	b.d.Close()
	b.rec.Release()
	b.table.Remove(b.key)
	return nil
}

// wasmBackend drives a guest parser session in a guest of its own.
type wasmBackend struct {
	s      *wasm.Session
	inst   *wasm.Instance
	parser *Parser
	ctx    context.Context
}

func openWasm(ctx context.Context, p *Parser, r io.ReadSeeker, streaming bool, logger *zap.Logger) (*wasmBackend, error) {
	inst, err := p.guest(ctx)
	if err != nil {
		return nil, err
	}

	s, err := wasm.Open(ctx, inst, r, streaming, logger)
	if err != nil {
		_ = inst.Close(ctx)
		return nil, err
	}
	return &wasmBackend{s: s, inst: inst, parser: p, ctx: ctx}, nil
}

func (b *wasmBackend) numTracks() (int, error) {
	if !b.parser.supports(CapabilityTracks) {
		return 0, ErrUnsupported
	}
	return b.s.NumTracks(b.ctx)
}

func (b *wasmBackend) trackInfo(n int) (*mkv.TrackInfo, error) {
	if !b.parser.supports(CapabilityTracks) {
		return nil, ErrUnsupported
	}
	return b.s.TrackInfo(b.ctx, n)
}

func (b *wasmBackend) chapters() ([]*mkv.Chapter, error) {
	if !b.parser.supports(CapabilityChapters) {
		return nil, ErrUnsupported
	}
	return b.s.Chapters(b.ctx)
}

func (b *wasmBackend) tags() ([]mkv.Tag, error) {
	if !b.parser.supports(CapabilityTags) {
		return nil, ErrUnsupported
	}
	return b.s.Tags(b.ctx)
}

func (b *wasmBackend) close() error {
	err := b.s.Close(b.ctx)
	if cerr := b.inst.Close(b.ctx); err == nil {
		err = cerr
	}
	return err
}

// TODO: export file info, attachments, cues, segment offsets and frame
// reading from the guest ABI so the wasm backend can serve them.
func (b *wasmBackend) fileInfo() (*mkv.SegmentInfo, error) { return nil, ErrUnsupported }
func (b *wasmBackend) attachments() ([]mkv.Attachment, error) { return nil, ErrUnsupported }
func (b *wasmBackend) cues() ([]mkv.Cue, error) { return nil, ErrUnsupported }
func (b *wasmBackend) layout() (segmentLayout, error) { return segmentLayout{}, ErrUnsupported }
func (b *wasmBackend) seek(uint64, uint32) error { return ErrUnsupported }
func (b *wasmBackend) seekCueAware(uint64, uint32, bool) error { return ErrUnsupported }
func (b *wasmBackend) setTrackMask(uint64) error { return ErrUnsupported }
func (b *wasmBackend) readPacket(uint64) (*mkv.Packet, error) { return nil, ErrUnsupported }
func (b *wasmBackend) skipToKeyframe() error { return ErrUnsupported }
func (b *wasmBackend) lowestTimecode() (uint64, bool, error) { return 0, false, ErrUnsupported }
