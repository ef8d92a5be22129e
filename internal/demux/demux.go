// Package demux is the pure-Go parser backend. It decodes a Matroska file with
// ebml-go, reading through an mkvio.InputStream exactly as the native parser
// would.
package demux

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/at-wat/ebml-go"
	"go.uber.org/zap"

	"github.com/woxQAQ/mkvbridge/internal/mkvio"
	"github.com/woxQAQ/mkvbridge/pkg/mkv"
)

// Demuxer holds a fully decoded file and a packet cursor.
//
// The whole element tree is decoded on Open. Packet data is copied into
// buffers obtained from the stream's MemAlloc. A Demuxer is not safe for
// concurrent use.
type Demuxer struct {
	stream mkvio.InputStream
	logger *zap.Logger

	info        mkv.SegmentInfo
	tracks      []*mkv.TrackInfo
	chapters    []*mkv.Chapter
	tags        []mkv.Tag
	attachments []mkv.Attachment
	cues        []mkv.Cue
	layout      layout

	packets []*mkv.Packet
	next    int
	mask    uint64
}

// positions collects element offsets reported by ebml-go in read order.
// Segment and Cues hold the first such element's offset, 0 when absent.
type positions struct {
	simpleBlocks []uint64
	blocks       []uint64
	fileData     []uint64
	segment      uint64
	cues         uint64
}

func (p *positions) hook(e *ebml.Element) {
	switch e.Name {
	case "Segment":
		if p.segment == 0 {
			p.segment = e.Position
		}
	case "Cues":
		if p.cues == 0 {
			p.cues = e.Position
		}
	case "SimpleBlock":
		p.simpleBlocks = append(p.simpleBlocks, e.Position)
	case "Block":
		p.blocks = append(p.blocks, e.Position)
	case "FileData":
		p.fileData = append(p.fileData, e.Position)
	}
}

// Open decodes the file behind s. The stream is read from offset 0 to the end.
func Open(s mkvio.InputStream, logger *zap.Logger) (*Demuxer, error) {
	logger = logger.With(zap.String("component", "demux"))

	var (
		doc document
		pos positions
	)
	err := ebml.Unmarshal(mkvio.NewReader(s), &doc,
		ebml.WithIgnoreUnknown(true),
		ebml.WithElementReadHooks(pos.hook),
	)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, &ParseError{Err: err}
	}

	if doc.Header.EBMLDocType != "matroska" && doc.Header.EBMLDocType != "webm" {
		return nil, &ParseError{Err: fmt.Errorf("unsupported doc type '%s'", doc.Header.EBMLDocType)}
	}

	seg := &doc.Segment
	d := &Demuxer{
		stream:      s,
		logger:      logger,
		info:        segmentInfo(&seg.Info),
		chapters:    editions(seg.Chapters.EditionEntry),
		tags:        tagList(seg.Tags),
		attachments: attachmentList(seg.Attachments.AttachedFile, pos.fileData),
	}
	d.cues = cueList(seg.Cues.CuePoint, d.info.TimecodeScale)
	d.layout = locate(s, &pos, logger)

	for i := range seg.Tracks.TrackEntry {
		d.tracks = append(d.tracks, trackInfo(&seg.Tracks.TrackEntry[i]))
	}
	if len(d.tracks) == 0 {
		return nil, &ParseError{Err: fmt.Errorf("no tracks")}
	}

	if err := d.buildPackets(seg.Cluster, &pos); err != nil {
		d.Close()
		return nil, err
	}

	logger.Debug("File decoded",
		zap.String("doc_type", doc.Header.EBMLDocType),
		zap.Int("tracks", len(d.tracks)),
		zap.Int("packets", len(d.packets)),
		zap.Int("chapters", len(d.chapters)),
	)
	return d, nil
}

// Close returns packet buffers to the stream. Data of packets returned by
// ReadPacket is invalid afterwards.
func (d *Demuxer) Close() {
	for _, p := range d.packets {
		if p.Data != nil {
			d.stream.MemFree(p.Data)
		}
	}
	d.packets = nil
	d.next = 0
}

// NumTracks returns the number of tracks.
func (d *Demuxer) NumTracks() int {
	return len(d.tracks)
}

// TrackInfo returns track n, counting from 0.
func (d *Demuxer) TrackInfo(n int) (*mkv.TrackInfo, error) {
	if n < 0 || n >= len(d.tracks) {
		return nil, &TrackRangeError{Track: n, Count: len(d.tracks)}
	}
	return d.tracks[n], nil
}

// FileInfo returns the segment information.
func (d *Demuxer) FileInfo() *mkv.SegmentInfo {
	info := d.info
	return &info
}

// Attachments returns the attached files. The slice may be empty.
func (d *Demuxer) Attachments() []mkv.Attachment {
	return d.attachments
}

// Chapters returns the editions with their chapters.
func (d *Demuxer) Chapters() []*mkv.Chapter {
	return d.chapters
}

// Tags returns all tags.
func (d *Demuxer) Tags() []mkv.Tag {
	return d.tags
}

// Cues returns the cue index.
func (d *Demuxer) Cues() []mkv.Cue {
	return d.cues
}

// trackIndex maps a block's track number to the track's index.
func (d *Demuxer) trackIndex(number uint64) (int, bool) {
	for i, t := range d.tracks {
		if uint64(t.Number) == number {
			return i, true
		}
	}
	return 0, false
}

// frame is a block before it becomes packets.
type frame struct {
	block    *ebml.Block
	filePos  uint64
	duration uint64
	hasDur   bool
	keyframe bool
	discard  int64
}

// buildPackets turns every block into one packet per laced frame, ordered by
// file position within each cluster.
func (d *Demuxer) buildPackets(clusters []cluster, pos *positions) error {
	var sb, bl int

	for ci := range clusters {
		c := &clusters[ci]

		var frames []frame
		for i := range c.SimpleBlock {
			f := frame{block: &c.SimpleBlock[i], keyframe: c.SimpleBlock[i].Keyframe}
			if sb < len(pos.simpleBlocks) {
				f.filePos = pos.simpleBlocks[sb]
			}
			sb++
			frames = append(frames, f)
		}
		for i := range c.BlockGroup {
			g := &c.BlockGroup[i]
			for j := range g.Block {
				f := frame{
					block:    &g.Block[j],
					keyframe: len(g.ReferenceBlock) == 0,
					discard:  g.DiscardPadding,
				}
				if len(g.BlockDuration) > 0 {
					f.duration, f.hasDur = g.BlockDuration[0], true
				}
				if bl < len(pos.blocks) {
					f.filePos = pos.blocks[bl]
				}
				bl++
				frames = append(frames, f)
			}
		}

		sort.SliceStable(frames, func(i, j int) bool {
			return frames[i].filePos < frames[j].filePos
		})

		for i := range frames {
			if err := d.appendFrame(c.Timecode, &frames[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *Demuxer) appendFrame(clusterTime uint64, f *frame) error {
	idx, ok := d.trackIndex(f.block.TrackNumber)
	if !ok {
		d.logger.Debug("Block for unknown track", zap.Uint64("track", f.block.TrackNumber))
		return nil
	}
	track := d.tracks[idx]

	// Block timecodes and BlockDuration share the segment and track scales.
	ns := func(tc uint64) uint64 {
		return uint64(float64(tc*d.info.TimecodeScale) * track.TimecodeScale)
	}

	start := int64(clusterTime) + int64(f.block.Timecode)
	if start < 0 {
		start = 0
	}
	startNs := ns(uint64(start))

	// Laced frames after the first get times derived from DefaultDuration,
	// or no start time at all.
	for n, data := range f.block.Data {
		p := &mkv.Packet{
			Track:     uint8(idx),
			StartTime: startNs,
			FilePos:   f.filePos,
			Discard:   f.discard,
		}
		if n > 0 {
			if track.DefaultDuration > 0 {
				p.StartTime = startNs + uint64(n)*track.DefaultDuration
			} else {
				p.Flags |= mkv.UnknownStart
			}
		}

		switch {
		case f.hasDur && len(f.block.Data) == 1:
			p.EndTime = p.StartTime + ns(f.duration)
		case track.DefaultDuration > 0:
			p.EndTime = p.StartTime + track.DefaultDuration
		default:
			p.Flags |= mkv.UnknownEnd
		}

		if f.keyframe && n == 0 {
			p.Flags |= mkv.KF
		}
		p.Flags |= uint32(idx) << mkv.StreamShift & mkv.StreamMask

		buf := d.stream.MemAlloc(len(data))
		if buf == nil && len(data) > 0 {
			return &AllocError{Size: len(data)}
		}
		copy(buf, data)
		p.Data = buf

		d.packets = append(d.packets, p)
	}
	return nil
}
