package demux

import (
	"encoding/binary"
	"time"

	"github.com/woxQAQ/mkvbridge/pkg/mkv"
)

// Matroska defaults for elements that may be absent.
const (
	defaultTimecodeScale = 1000000
	defaultLanguage      = "eng"
	maxChapterDepth      = 32
)

// dateEpoch is the origin of DateUTC values.
var dateEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

func segmentInfo(in *info) mkv.SegmentInfo {
	scale := first(in.TimecodeScale, defaultTimecodeScale)

	out := mkv.SegmentInfo{
		Filename:      in.SegmentFilename,
		PrevFilename:  in.PrevFilename,
		NextFilename:  in.NextFilename,
		Title:         in.Title,
		MuxingApp:     in.MuxingApp,
		WritingApp:    in.WritingApp,
		TimecodeScale: scale,
		Duration:      uint64(in.Duration * float64(scale)),
	}
	copy(out.UID[:], in.SegmentUID)
	copy(out.PrevUID[:], in.PrevUID)
	copy(out.NextUID[:], in.NextUID)

	if len(in.DateUTC) > 0 {
		out.DateUTC = in.DateUTC[0].Sub(dateEpoch).Nanoseconds()
		out.DateUTCValid = true
	}
	return out
}

func trackInfo(e *trackEntry) *mkv.TrackInfo {
	t := &mkv.TrackInfo{
		Number:             uint8(e.TrackNumber),
		Type:               mkv.TrackType(e.TrackType),
		TrackOverlay:       uint8(first(e.TrackOverlay, 0)),
		UID:                e.TrackUID,
		MinCache:           e.MinCache,
		MaxCache:           e.MaxCache,
		DefaultDuration:    e.DefaultDuration,
		CodecDelay:         e.CodecDelay,
		SeekPreRoll:        e.SeekPreRoll,
		TimecodeScale:      first(e.TrackTimecodeScale, 1),
		CodecPrivate:       e.CodecPrivate,
		MaxBlockAdditionID: uint32(e.MaxBlockAdditionID),
		Enabled:            first(e.FlagEnabled, 1) != 0,
		Default:            first(e.FlagDefault, 1) != 0,
		Forced:             first(e.FlagForced, 0) != 0,
		Lacing:             first(e.FlagLacing, 1) != 0,
		DecodeAll:          first(e.CodecDecodeAll, 1) != 0,
		Name:               e.Name,
		Language:           first(e.Language, defaultLanguage),
		CodecID:            e.CodecID,
	}

	if len(e.ContentEncodings) > 0 {
		for _, enc := range e.ContentEncodings[0].ContentEncoding {
			if len(enc.ContentCompression) == 0 {
				continue
			}
			comp := enc.ContentCompression[0]
			t.CompEnabled = true
			t.CompMethod = uint32(comp.ContentCompAlgo)
			t.CompMethodPrivate = comp.ContentCompSettings
			break
		}
	}

	switch t.Type {
	case mkv.TypeVideo:
		if len(e.Video) > 0 {
			t.Video = videoInfo(&e.Video[0])
		}
	case mkv.TypeAudio:
		a := first(e.Audio, audio{})
		t.Audio = audioInfo(&a)
	}
	return t
}

func videoInfo(v *video) mkv.VideoInfo {
	out := mkv.VideoInfo{
		StereoMode:      uint8(v.StereoMode),
		DisplayUnit:     uint8(v.DisplayUnit),
		AspectRatioType: uint8(v.AspectRatioType),
		PixelWidth:      uint32(v.PixelWidth),
		PixelHeight:     uint32(v.PixelHeight),
		DisplayWidth:    uint32(first(v.DisplayWidth, v.PixelWidth)),
		DisplayHeight:   uint32(first(v.DisplayHeight, v.PixelHeight)),
		CropL:           uint32(v.PixelCropLeft),
		CropT:           uint32(v.PixelCropTop),
		CropR:           uint32(v.PixelCropRight),
		CropB:           uint32(v.PixelCropBottom),
		GammaValue:      v.GammaValue,
		Interlaced:      v.FlagInterlaced == 1,
	}
	if len(v.ColourSpace) >= 4 {
		out.ColourSpace = binary.LittleEndian.Uint32(v.ColourSpace)
	}

	c := first(v.Colour, colour{})
	out.Colour = mkv.ColourInfo{
		MatrixCoefficients:      uint32(first(c.MatrixCoefficients, 2)),
		BitsPerChannel:          uint32(c.BitsPerChannel),
		ChromaSubsamplingHorz:   uint32(c.ChromaSubsamplingHorz),
		ChromaSubsamplingVert:   uint32(c.ChromaSubsamplingVert),
		CbSubsamplingHorz:       uint32(c.CbSubsamplingHorz),
		CbSubsamplingVert:       uint32(c.CbSubsamplingVert),
		ChromaSitingHorz:        uint32(c.ChromaSitingHorz),
		ChromaSitingVert:        uint32(c.ChromaSitingVert),
		Range:                   uint32(c.Range),
		TransferCharacteristics: uint32(first(c.TransferCharacteristics, 2)),
		Primaries:               uint32(first(c.Primaries, 2)),
		MaxCLL:                  uint32(c.MaxCLL),
		MaxFALL:                 uint32(c.MaxFALL),
	}

	if len(c.MasteringMetadata) > 0 {
		m := &c.MasteringMetadata[0]
		out.Colour.MasteringMetadata = mkv.MasteringMetadata{
			PrimaryRChromaticityX:   float32(m.PrimaryRChromaticityX),
			PrimaryRChromaticityY:   float32(m.PrimaryRChromaticityY),
			PrimaryGChromaticityX:   float32(m.PrimaryGChromaticityX),
			PrimaryGChromaticityY:   float32(m.PrimaryGChromaticityY),
			PrimaryBChromaticityX:   float32(m.PrimaryBChromaticityX),
			PrimaryBChromaticityY:   float32(m.PrimaryBChromaticityY),
			WhitePointChromaticityX: float32(m.WhitePointChromaticityX),
			WhitePointChromaticityY: float32(m.WhitePointChromaticityY),
			LuminanceMax:            float32(m.LuminanceMax),
			LuminanceMin:            float32(m.LuminanceMin),
		}
	}
	return out
}

func audioInfo(a *audio) mkv.AudioInfo {
	freq := first(a.SamplingFrequency, 8000)
	return mkv.AudioInfo{
		SamplingFreq:       freq,
		OutputSamplingFreq: first(a.OutputSamplingFrequency, freq),
		Channels:           uint8(first(a.Channels, 1)),
		BitDepth:           uint8(a.BitDepth),
	}
}

// editions converts the edition list. Each edition becomes a top-level
// Chapter carrying the edition flags, with its atoms as children.
func editions(in []editionEntry) []*mkv.Chapter {
	out := make([]*mkv.Chapter, 0, len(in))
	for i := range in {
		e := &in[i]
		out = append(out, &mkv.Chapter{
			UID:      e.EditionUID,
			Children: chapterAtoms(e.ChapterAtom, 1),
			Hidden:   e.EditionFlagHidden != 0,
			Enabled:  true,
			Default:  e.EditionFlagDefault != 0,
			Ordered:  e.EditionFlagOrdered != 0,
		})
	}
	return out
}

func chapterAtoms(in []chapterAtom, depth int) []*mkv.Chapter {
	if len(in) == 0 || depth > maxChapterDepth {
		return nil
	}

	out := make([]*mkv.Chapter, 0, len(in))
	for i := range in {
		a := &in[i]
		ch := &mkv.Chapter{
			UID:      a.ChapterUID,
			Start:    a.ChapterTimeStart,
			End:      a.ChapterTimeEnd,
			Children: chapterAtoms(a.ChapterAtom, depth+1),
			Hidden:   a.ChapterFlagHidden != 0,
			Enabled:  first(a.ChapterFlagEnabled, 1) != 0,
		}
		copy(ch.SegmentUID[:], a.ChapterSegmentUID)

		for _, t := range a.ChapterTrack {
			ch.Tracks = append(ch.Tracks, t.ChapterTrackNumber...)
		}
		for _, d := range a.ChapterDisplay {
			ch.Display = append(ch.Display, mkv.ChapterDisplay{
				String:   d.ChapString,
				Language: first(d.ChapLanguage, defaultLanguage),
				Country:  first(d.ChapCountry, ""),
			})
		}
		for _, p := range a.ChapProcess {
			proc := mkv.ChapterProcess{
				CodecID:      uint32(p.ChapProcessCodecID),
				CodecPrivate: p.ChapProcessPrivate,
			}
			for _, c := range p.ChapProcessCommand {
				proc.Commands = append(proc.Commands, mkv.ChapterCommand{
					Time:    uint32(c.ChapProcessTime),
					Command: c.ChapProcessData,
				})
			}
			ch.Process = append(ch.Process, proc)
		}

		out = append(out, ch)
	}
	return out
}

// tagList flattens all Tags elements. Targets keep their Matroska meaning:
// one Target per UID, typed by the UID element it came from.
func tagList(in []tags) []mkv.Tag {
	var out []mkv.Tag
	for _, group := range in {
		for i := range group.Tag {
			t := &group.Tag[i]

			var tag mkv.Tag
			tag.Targets = appendTargets(tag.Targets, t.Targets.TagTrackUID, mkv.TargetTrack)
			tag.Targets = appendTargets(tag.Targets, t.Targets.TagChapterUID, mkv.TargetChapter)
			tag.Targets = appendTargets(tag.Targets, t.Targets.TagAttachmentUID, mkv.TargetAttachment)
			tag.Targets = appendTargets(tag.Targets, t.Targets.TagEditionUID, mkv.TargetEdition)

			for _, st := range t.SimpleTag {
				tag.SimpleTags = append(tag.SimpleTags, mkv.SimpleTag{
					Name:     st.TagName,
					Value:    st.TagString,
					Language: first(st.TagLanguage, "und"),
					Default:  first(st.TagDefault, 1) != 0,
				})
			}
			out = append(out, tag)
		}
	}
	return out
}

func appendTargets(dst []mkv.Target, uids []uint64, kind uint32) []mkv.Target {
	for _, uid := range uids {
		dst = append(dst, mkv.Target{UID: uid, Type: kind})
	}
	return dst
}

// attachmentList converts attached files. positions holds the offsets of the
// FileData elements in read order.
func attachmentList(in []attachedFile, positions []uint64) []mkv.Attachment {
	out := make([]mkv.Attachment, 0, len(in))
	for i := range in {
		f := &in[i]
		a := mkv.Attachment{
			Length:      uint64(len(f.FileData)),
			UID:         f.FileUID,
			Name:        f.FileName,
			Description: f.FileDescription,
			MimeType:    f.FileMimeType,
		}
		if i < len(positions) {
			a.Position = positions[i]
		}
		out = append(out, a)
	}
	return out
}

// cueList expands every cue point into one entry per track position. Times
// are scaled to nanoseconds.
func cueList(in []cuePoint, scale uint64) []mkv.Cue {
	var out []mkv.Cue
	for _, p := range in {
		for _, tp := range p.CueTrackPositions {
			out = append(out, mkv.Cue{
				Time:             p.CueTime * scale,
				Duration:         tp.CueDuration * scale,
				Position:         tp.CueClusterPosition,
				RelativePosition: tp.CueRelativePosition,
				Block:            tp.CueBlockNumber,
				Track:            uint8(tp.CueTrack),
			})
		}
	}
	return out
}
