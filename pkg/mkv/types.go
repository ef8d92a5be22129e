package mkv

// Packet is a single demuxed frame.
type Packet struct {
	Track     uint8
	StartTime uint64
	EndTime   uint64
	// FilePos is the offset of the containing block in the input.
	FilePos uint64
	Data    []byte
	Flags   uint32
	Discard int64
}

// Keyframe reports whether the packet carries the KF flag.
func (p *Packet) Keyframe() bool {
	return p.Flags&KF != 0
}

// VideoInfo holds the video-only part of a track.
type VideoInfo struct {
	StereoMode  uint8
	DisplayUnit uint8
	// 0 = free resizing, 1 = keep aspect ratio, 2 = fixed.
	AspectRatioType uint8
	PixelWidth      uint32
	PixelHeight     uint32
	DisplayWidth    uint32
	DisplayHeight   uint32
	CropL           uint32
	CropT           uint32
	CropR           uint32
	CropB           uint32
	ColourSpace     uint32
	GammaValue      float64
	Colour          ColourInfo
	Interlaced      bool
}

// ColourInfo describes colour properties. Values follow ISO/IEC 23091-4.
type ColourInfo struct {
	MatrixCoefficients      uint32
	BitsPerChannel          uint32
	ChromaSubsamplingHorz   uint32
	ChromaSubsamplingVert   uint32
	CbSubsamplingHorz       uint32
	CbSubsamplingVert       uint32
	ChromaSitingHorz        uint32
	ChromaSitingVert        uint32
	Range                   uint32
	TransferCharacteristics uint32
	Primaries               uint32
	MaxCLL                  uint32
	MaxFALL                 uint32
	MasteringMetadata       MasteringMetadata
}

// MasteringMetadata holds SMPTE 2086 mastering display data.
type MasteringMetadata struct {
	PrimaryRChromaticityX   float32
	PrimaryRChromaticityY   float32
	PrimaryGChromaticityX   float32
	PrimaryGChromaticityY   float32
	PrimaryBChromaticityX   float32
	PrimaryBChromaticityY   float32
	WhitePointChromaticityX float32
	WhitePointChromaticityY float32
	LuminanceMax            float32
	LuminanceMin            float32
}

// AudioInfo holds the audio-only part of a track.
type AudioInfo struct {
	SamplingFreq       float64
	OutputSamplingFreq float64
	Channels           uint8
	BitDepth           uint8
}

// TrackInfo describes one track.
type TrackInfo struct {
	Number       uint8
	Type         TrackType
	TrackOverlay uint8
	UID          uint64
	MinCache     uint64
	MaxCache     uint64
	// DefaultDuration is in nanoseconds; 0 when unknown.
	DefaultDuration uint64
	CodecDelay      uint64
	SeekPreRoll     uint64
	TimecodeScale   float64
	CodecPrivate    []byte
	CompMethod      uint32
	// CompMethodPrivate is passed to the decompressor.
	CompMethodPrivate  []byte
	MaxBlockAdditionID uint32

	Enabled     bool
	Default     bool
	Forced      bool
	Lacing      bool
	DecodeAll   bool
	CompEnabled bool

	// Video is only meaningful when Type is TypeVideo.
	Video VideoInfo
	// Audio is only meaningful when Type is TypeAudio.
	Audio AudioInfo

	Name     string
	Language string
	CodecID  string
}

// SegmentInfo holds file-wide information.
type SegmentInfo struct {
	UID           [16]byte
	PrevUID       [16]byte
	NextUID       [16]byte
	Filename      string
	PrevFilename  string
	NextFilename  string
	Title         string
	MuxingApp     string
	WritingApp    string
	TimecodeScale uint64
	// Duration in nanoseconds, may be 0.
	Duration     uint64
	DateUTC      int64
	DateUTCValid bool
}

// Attachment describes an attached file.
type Attachment struct {
	Position    uint64
	Length      uint64
	UID         uint64
	Name        string
	Description string
	MimeType    string
}

// ChapterDisplay is the localized title of a chapter.
type ChapterDisplay struct {
	String   string
	Language string
	Country  string
}

// ChapterCommand is a single chapter codec command.
type ChapterCommand struct {
	Time    uint32
	Command []byte
}

// ChapterProcess groups the commands of one chapter codec.
type ChapterProcess struct {
	CodecID      uint32
	CodecPrivate []byte
	Commands     []ChapterCommand
}

// Chapter is a chapter or, at the top level, an edition.
type Chapter struct {
	UID        uint64
	Start      uint64
	End        uint64
	Tracks     []uint64
	Display    []ChapterDisplay
	Children   []*Chapter
	Process    []ChapterProcess
	SegmentUID [16]byte

	Hidden  bool
	Enabled bool

	// Edition flags, only set on top-level entries.
	Default bool
	Ordered bool
}

// Cue is an index entry.
type Cue struct {
	Time             uint64
	Duration         uint64
	Position         uint64
	RelativePosition uint64
	Block            uint64
	Track            uint8
}

// Target binds a tag to an object. Type is one of the Target* constants.
type Target struct {
	UID  uint64
	Type uint32
}

// SimpleTag is a name/value tag.
type SimpleTag struct {
	Name     string
	Value    string
	Language string
	Default  bool
}

// Tag groups simple tags with their targets.
type Tag struct {
	Targets    []Target
	SimpleTags []SimpleTag
}
