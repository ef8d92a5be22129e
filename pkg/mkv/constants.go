package mkv

// Core Matroska types shared by the parser backends and the public demuxer.
// This package replaces direct access to parser-owned structs.

// Compression methods reported in TrackInfo.CompMethod.
const (
	CompZlib    = 0
	CompBzip    = 1
	CompLZO1X   = 2
	CompPrepend = 3
)

// TrackType identifies the kind of a track.
type TrackType uint8

const (
	TypeVideo    TrackType = 1
	TypeAudio    TrackType = 2
	TypeComplex  TrackType = 3
	TypeLogo     TrackType = 16
	TypeSubtitle TrackType = 17
	TypeButtons  TrackType = 18
	TypeControl  TrackType = 32
)

// String returns a short name for the track type.
func (t TrackType) String() string {
	switch t {
	case TypeVideo:
		return "video"
	case TypeAudio:
		return "audio"
	case TypeComplex:
		return "complex"
	case TypeLogo:
		return "logo"
	case TypeSubtitle:
		return "subtitle"
	case TypeButtons:
		return "buttons"
	case TypeControl:
		return "control"
	default:
		return "unknown"
	}
}

// Tag target kinds.
const (
	TargetTrack      = 0
	TargetChapter    = 1
	TargetAttachment = 2
	TargetEdition    = 3
)

// Seek flags.
const (
	SeekToPrevKeyFrame       = 1
	SeekToPrevKeyFrameStrict = 2
)

// Open flags understood by the parser.
const (
	// OpenAvoidSeeks tells the parser that the input cannot seek.
	OpenAvoidSeeks = 0x00000001
)

// Packet flags.
const (
	UnknownStart = 0x00000001
	UnknownEnd   = 0x00000002
	KF           = 0x00000004
	GAP          = 0x00800000
	StreamMask   = 0xff000000
	StreamShift  = 24
)
