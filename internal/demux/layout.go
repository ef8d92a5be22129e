package demux

import (
	"fmt"
	"math/bits"

	"go.uber.org/zap"

	"github.com/woxQAQ/mkvbridge/internal/mkvio"
)

// layout holds the byte ranges of the segment and cues. Zero values mean the
// element is absent or its header could not be decoded.
type layout struct {
	segment    uint64 // first byte of segment data
	segmentTop uint64 // byte after segment data
	cues       uint64 // first byte of the Cues element
	cuesTop    uint64 // byte after cues data
}

func locate(s mkvio.InputStream, pos *positions, logger *zap.Logger) layout {
	var l layout
	if pos.segment != 0 {
		data, end, err := elementSpan(s, pos.segment)
		if err != nil {
			logger.Debug("Segment header unreadable", zap.Error(err))
		} else {
			l.segment, l.segmentTop = data, end
		}
	}
	if pos.cues != 0 {
		_, end, err := elementSpan(s, pos.cues)
		if err != nil {
			logger.Debug("Cues header unreadable", zap.Error(err))
		} else {
			l.cues, l.cuesTop = pos.cues, end
		}
	}
	return l
}

// elementSpan decodes the element header at pos and returns where its data
// starts and ends. Data of unknown size ends at the end of input, or at 0
// when the input size is unknown too.
func elementSpan(s mkvio.InputStream, pos uint64) (data, end uint64, err error) {
	var hdr [12]byte
	n := s.Read(pos, hdr[:])
	if n <= 0 {
		return 0, 0, fmt.Errorf("no element header at %d", pos)
	}

	idLen := bits.LeadingZeros8(hdr[0]) + 1
	if idLen > 4 || idLen >= n {
		return 0, 0, fmt.Errorf("bad element ID at %d", pos)
	}
	sizeLen := bits.LeadingZeros8(hdr[idLen]) + 1
	if sizeLen > 8 || idLen+sizeLen > n {
		return 0, 0, fmt.Errorf("bad element size at %d", pos)
	}

	marker := uint64(0xff) >> sizeLen
	size := uint64(hdr[idLen]) & marker
	unknown := size == marker
	for _, b := range hdr[idLen+1 : idLen+sizeLen] {
		size = size<<8 | uint64(b)
		unknown = unknown && b == 0xff
	}

	data = pos + uint64(idLen+sizeLen)
	if !unknown {
		return data, data + size, nil
	}
	if fs := s.FileSize(); fs >= 0 {
		return data, uint64(fs), nil
	}
	return data, 0, nil
}

// Segment returns the offset of the first byte of segment data.
func (d *Demuxer) Segment() uint64 {
	return d.layout.segment
}

// SegmentTop returns the offset of the byte after the segment.
func (d *Demuxer) SegmentTop() uint64 {
	return d.layout.segmentTop
}

// CuesPos returns the offset of the Cues element, or 0 without cues.
func (d *Demuxer) CuesPos() uint64 {
	return d.layout.cues
}

// CuesTopPos returns the offset of the byte after the cues, or 0 without cues.
func (d *Demuxer) CuesTopPos() uint64 {
	return d.layout.cuesTop
}
