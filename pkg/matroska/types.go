package matroska

import "github.com/woxQAQ/mkvbridge/pkg/mkv"

// Aliases so callers need only this package.
type (
	TrackInfo      = mkv.TrackInfo
	TrackType      = mkv.TrackType
	VideoInfo      = mkv.VideoInfo
	AudioInfo      = mkv.AudioInfo
	SegmentInfo    = mkv.SegmentInfo
	Attachment     = mkv.Attachment
	Chapter        = mkv.Chapter
	ChapterDisplay = mkv.ChapterDisplay
	Cue            = mkv.Cue
	Tag            = mkv.Tag
	Target         = mkv.Target
	SimpleTag      = mkv.SimpleTag
	Packet         = mkv.Packet
)

// Seek flags.
const (
	SeekToPrevKeyFrame       = mkv.SeekToPrevKeyFrame
	SeekToPrevKeyFrameStrict = mkv.SeekToPrevKeyFrameStrict
)
