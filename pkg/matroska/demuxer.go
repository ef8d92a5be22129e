// Package matroska demuxes Matroska and WebM files.
//
// A Demuxer reads its input only through the mkvio callback layer. By default
// the built-in EBML decoder parses the file; WithParser hands the same
// callbacks to a WebAssembly build of the native parser instead.
package matroska

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/woxQAQ/mkvbridge/internal/mkvio"
)

// ErrUnsupported is returned for operations the selected parser backend does
// not provide.
var ErrUnsupported = errors.New("matroska: operation not supported by backend")

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("matroska: demuxer closed")

// Demuxer reads one Matroska file.
type Demuxer struct {
	b      backend
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewDemuxer opens a seekable input.
func NewDemuxer(r io.ReadSeeker, opts ...Option) (*Demuxer, error) {
	return newDemuxer(r, false, opts)
}

// NewStreamingDemuxer opens an input that cannot seek. The parser is told to
// avoid seeks, and any seek it still attempts fails.
func NewStreamingDemuxer(r io.Reader, opts ...Option) (*Demuxer, error) {
	return newDemuxer(mkvio.Streaming(r), true, opts)
}

func newDemuxer(r io.ReadSeeker, streaming bool, opts []Option) (*Demuxer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	logger := o.logger.With(zap.String("component", "matroska"))

	var (
		b   backend
		err error
	)
	if o.parser != nil {
		b, err = openWasm(o.ctx, o.parser, r, streaming, logger)
	} else {
		b, err = openEBML(r, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("could not open demuxer: %w", err)
	}

	logger.Debug("Demuxer opened",
		zap.Bool("streaming", streaming),
		zap.Bool("wasm", o.parser != nil),
	)
	return &Demuxer{b: b, logger: logger}, nil
}

// Close releases the parser and the input binding. The input itself is not
// closed.
func (d *Demuxer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.b.close()
}

// active returns the backend, or ErrClosed.
func (d *Demuxer) active() (backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	return d.b, nil
}

// GetNumTracks returns the number of tracks. A file without tracks is an
// error.
func (d *Demuxer) GetNumTracks() (uint, error) {
	b, err := d.active()
	if err != nil {
		return 0, err
	}

	n, err := b.numTracks()
	if err != nil {
		return 0, fmt.Errorf("couldn't get number of tracks: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("couldn't get number of tracks: file has none")
	}
	return uint(n), nil
}

// GetTrackInfo returns track n, where n is less than GetNumTracks.
func (d *Demuxer) GetTrackInfo(n uint) (*TrackInfo, error) {
	b, err := d.active()
	if err != nil {
		return nil, err
	}

	ti, err := b.trackInfo(int(n))
	if err != nil {
		return nil, fmt.Errorf("could not get track info: %w", err)
	}
	return ti, nil
}

// GetFileInfo returns the segment-wide information.
func (d *Demuxer) GetFileInfo() (*SegmentInfo, error) {
	b, err := d.active()
	if err != nil {
		return nil, err
	}

	si, err := b.fileInfo()
	if err != nil {
		return nil, fmt.Errorf("could not get file info: %w", err)
	}
	return si, nil
}

// GetAttachments returns the attached files. The slice may be empty.
func (d *Demuxer) GetAttachments() ([]Attachment, error) {
	b, err := d.active()
	if err != nil {
		return nil, err
	}
	return b.attachments()
}

// GetChapters returns the editions, each holding its chapter tree.
func (d *Demuxer) GetChapters() ([]*Chapter, error) {
	b, err := d.active()
	if err != nil {
		return nil, err
	}
	return b.chapters()
}

// GetTags returns all tags.
func (d *Demuxer) GetTags() ([]Tag, error) {
	b, err := d.active()
	if err != nil {
		return nil, err
	}
	return b.tags()
}

// GetCues returns the cue index.
func (d *Demuxer) GetCues() ([]Cue, error) {
	b, err := d.active()
	if err != nil {
		return nil, err
	}
	return b.cues()
}

// Seek moves to timecode, in nanoseconds. Flags may be 0,
// SeekToPrevKeyFrame or SeekToPrevKeyFrameStrict.
func (d *Demuxer) Seek(timecode uint64, flags uint32) error {
	b, err := d.active()
	if err != nil {
		return err
	}
	return b.seek(timecode, flags)
}

// SeekCueAware moves to timecode, in nanoseconds, consulting the cue index.
// Flags are those of Seek. A fuzzy seek resumes at the start of the cluster
// the nearest earlier cue points to; otherwise it behaves as Seek.
func (d *Demuxer) SeekCueAware(timecode uint64, flags uint32, fuzzy bool) error {
	b, err := d.active()
	if err != nil {
		return err
	}
	return b.seekCueAware(timecode, flags, fuzzy)
}

// GetSegment returns the file offset of the first byte of segment data.
func (d *Demuxer) GetSegment() (uint64, error) {
	l, err := d.layout()
	return l.segment, err
}

// GetSegmentTop returns the file offset of the byte after the segment.
func (d *Demuxer) GetSegmentTop() (uint64, error) {
	l, err := d.layout()
	return l.segmentTop, err
}

// GetCuesPos returns the file offset of the cues, or 0 for a file without.
func (d *Demuxer) GetCuesPos() (uint64, error) {
	l, err := d.layout()
	return l.cues, err
}

// GetCuesTopPos returns the file offset of the byte after the cues, or 0 for
// a file without.
func (d *Demuxer) GetCuesTopPos() (uint64, error) {
	l, err := d.layout()
	return l.cuesTop, err
}

func (d *Demuxer) layout() (segmentLayout, error) {
	b, err := d.active()
	if err != nil {
		return segmentLayout{}, err
	}
	return b.layout()
}

// SkipToKeyframe skips to the next keyframe.
func (d *Demuxer) SkipToKeyframe() error {
	b, err := d.active()
	if err != nil {
		return err
	}
	return b.skipToKeyframe()
}

// GetLowestQTimecode returns the start time of the next packet. It returns
// io.EOF when no packet is left.
func (d *Demuxer) GetLowestQTimecode() (uint64, error) {
	b, err := d.active()
	if err != nil {
		return 0, err
	}

	tc, ok, err := b.lowestTimecode()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, io.EOF
	}
	return tc, nil
}

// SetTrackMask sets which tracks to skip. Tracks whose bit is set are ignored.
func (d *Demuxer) SetTrackMask(mask uint64) error {
	b, err := d.active()
	if err != nil {
		return err
	}
	return b.setTrackMask(mask)
}

// ReadPacketMask is ReadPacket with an extra mask of tracks to skip.
func (d *Demuxer) ReadPacketMask(mask uint64) (*Packet, error) {
	b, err := d.active()
	if err != nil {
		return nil, err
	}

	p, err := b.readPacket(mask)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("could not read packet: %w", err)
	}
	return p, nil
}

// ReadPacket returns the next packet. It returns io.EOF at the end of the
// file.
func (d *Demuxer) ReadPacket() (*Packet, error) {
	return d.ReadPacketMask(0)
}
