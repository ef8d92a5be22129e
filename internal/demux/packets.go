package demux

import (
	"io"

	"github.com/woxQAQ/mkvbridge/pkg/mkv"
)

// SetTrackMask sets which tracks ReadPacket and Seek skip. Bit n set ignores
// track n.
func (d *Demuxer) SetTrackMask(mask uint64) {
	d.mask = mask
}

// ReadPacket returns the next packet of a track that is neither in the track
// mask nor in mask. It returns io.EOF after the last packet.
func (d *Demuxer) ReadPacket(mask uint64) (*mkv.Packet, error) {
	mask |= d.mask
	for d.next < len(d.packets) {
		p := d.packets[d.next]
		d.next++
		if masked(mask, p.Track) {
			continue
		}
		out := *p
		return &out, nil
	}
	return nil, io.EOF
}

// Seek moves the cursor to timecode, in nanoseconds.
//
// With no flags the cursor lands on the first packet starting at or after
// timecode. SeekToPrevKeyFrame then backs up to the nearest keyframe.
// SeekToPrevKeyFrameStrict lands on the last keyframe starting at or before
// timecode, or the first keyframe when there is none.
func (d *Demuxer) Seek(timecode uint64, flags uint32) {
	switch {
	case flags&mkv.SeekToPrevKeyFrameStrict != 0:
		target := -1
		for i, p := range d.packets {
			if masked(d.mask, p.Track) || !p.Keyframe() {
				continue
			}
			if p.StartTime > timecode {
				if target < 0 {
					target = i
				}
				break
			}
			target = i
		}
		if target < 0 {
			target = len(d.packets)
		}
		d.next = target

	default:
		d.next = len(d.packets)
		for i, p := range d.packets {
			if !masked(d.mask, p.Track) && p.Flags&mkv.UnknownStart == 0 && p.StartTime >= timecode {
				d.next = i
				break
			}
		}
		if flags&mkv.SeekToPrevKeyFrame != 0 {
			d.backToKeyframe()
		}
	}
}

// SeekCueAware seeks with the help of the cue index.
//
// A fuzzy seek lands on the first unmasked packet of the cluster named by the
// last cue at or before timecode for an unmasked track, so reading resumes at
// a cluster boundary. Without fuzzy, or without a usable cue, it is Seek.
func (d *Demuxer) SeekCueAware(timecode uint64, flags uint32, fuzzy bool) {
	cue, ok := d.cueBefore(timecode)
	if !fuzzy || !ok || d.layout.segment == 0 {
		d.Seek(timecode, flags)
		return
	}

	at := d.layout.segment + cue.Position
	d.next = len(d.packets)
	for i, p := range d.packets {
		if !masked(d.mask, p.Track) && p.FilePos >= at {
			d.next = i
			return
		}
	}
}

// cueBefore returns the latest cue at or before timecode whose track is known
// and unmasked.
func (d *Demuxer) cueBefore(timecode uint64) (mkv.Cue, bool) {
	var (
		best  mkv.Cue
		found bool
	)
	for _, c := range d.cues {
		idx, ok := d.trackIndex(uint64(c.Track))
		if !ok || masked(d.mask, uint8(idx)) || c.Time > timecode {
			continue
		}
		if !found || c.Time >= best.Time {
			best, found = c, true
		}
	}
	return best, found
}

// backToKeyframe moves the cursor back to the nearest keyframe at or before it.
func (d *Demuxer) backToKeyframe() {
	for i := min(d.next, len(d.packets)-1); i >= 0; i-- {
		p := d.packets[i]
		if !masked(d.mask, p.Track) && p.Keyframe() {
			d.next = i
			return
		}
	}
}

// SkipToKeyframe advances the cursor to the next keyframe.
func (d *Demuxer) SkipToKeyframe() {
	for d.next < len(d.packets) {
		p := d.packets[d.next]
		if !masked(d.mask, p.Track) && p.Keyframe() {
			return
		}
		d.next++
	}
}

// LowestTimecode returns the start time of the next packet ReadPacket would
// return, and false at the end of the file.
func (d *Demuxer) LowestTimecode() (uint64, bool) {
	for _, p := range d.packets[d.next:] {
		if !masked(d.mask, p.Track) {
			return p.StartTime, true
		}
	}
	return 0, false
}

func masked(mask uint64, track uint8) bool {
	return track < 64 && mask&(1<<track) != 0
}
