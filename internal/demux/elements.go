package demux

import (
	"time"

	"github.com/at-wat/ebml-go"
)

// Element trees decoded by ebml-go. Field names are Matroska element names.
// Elements with a non-zero default are slices so that absence can be told
// apart from an explicit zero; first() applies the default.

type document struct {
	Header  ebmlHeader `ebml:"EBML"`
	Segment segment    `ebml:"Segment,size=unknown"`
}

type ebmlHeader struct {
	EBMLVersion        uint64
	EBMLReadVersion    uint64
	EBMLDocType        string
	EBMLDocTypeVersion uint64
}

type segment struct {
	Info        info
	Tracks      tracks
	Chapters    chapters
	Tags        []tags
	Attachments attachments
	Cues        cues
	Cluster     []cluster `ebml:",size=unknown"`
}

type info struct {
	SegmentUID      []byte
	SegmentFilename string
	PrevUID         []byte
	PrevFilename    string
	NextUID         []byte
	NextFilename    string
	TimecodeScale   []uint64
	Duration        float64
	DateUTC         []time.Time
	Title           string
	MuxingApp       string
	WritingApp      string
}

type tracks struct {
	TrackEntry []trackEntry
}

type trackEntry struct {
	TrackNumber        uint64
	TrackUID           uint64
	TrackType          uint64
	FlagEnabled        []uint64
	FlagDefault        []uint64
	FlagForced         []uint64
	FlagLacing         []uint64
	MinCache           uint64
	MaxCache           uint64
	DefaultDuration    uint64
	TrackTimecodeScale []float64
	MaxBlockAdditionID uint64
	Name               string
	Language           []string
	CodecID            string
	CodecPrivate       []byte
	CodecDecodeAll     []uint64
	TrackOverlay       []uint64
	CodecDelay         uint64
	SeekPreRoll        uint64
	Video              []video
	Audio              []audio
	ContentEncodings   []contentEncodings
}

type video struct {
	FlagInterlaced  uint64
	StereoMode      uint64
	PixelWidth      uint64
	PixelHeight     uint64
	PixelCropBottom uint64
	PixelCropTop    uint64
	PixelCropLeft   uint64
	PixelCropRight  uint64
	DisplayWidth    []uint64
	DisplayHeight   []uint64
	DisplayUnit     uint64
	AspectRatioType uint64
	ColourSpace     []byte
	GammaValue      float64
	Colour          []colour
}

type colour struct {
	MatrixCoefficients      []uint64
	BitsPerChannel          uint64
	ChromaSubsamplingHorz   uint64
	ChromaSubsamplingVert   uint64
	CbSubsamplingHorz       uint64
	CbSubsamplingVert       uint64
	ChromaSitingHorz        uint64
	ChromaSitingVert        uint64
	Range                   uint64
	TransferCharacteristics []uint64
	Primaries               []uint64
	MaxCLL                  uint64
	MaxFALL                 uint64
	MasteringMetadata       []masteringMetadata
}

type masteringMetadata struct {
	PrimaryRChromaticityX   float64
	PrimaryRChromaticityY   float64
	PrimaryGChromaticityX   float64
	PrimaryGChromaticityY   float64
	PrimaryBChromaticityX   float64
	PrimaryBChromaticityY   float64
	WhitePointChromaticityX float64
	WhitePointChromaticityY float64
	LuminanceMax            float64
	LuminanceMin            float64
}

type audio struct {
	SamplingFrequency       []float64
	OutputSamplingFrequency []float64
	Channels                []uint64
	BitDepth                uint64
}

type contentEncodings struct {
	ContentEncoding []contentEncoding
}

type contentEncoding struct {
	ContentCompression []contentCompression
}

type contentCompression struct {
	ContentCompAlgo     uint64
	ContentCompSettings []byte
}

type chapters struct {
	EditionEntry []editionEntry
}

type editionEntry struct {
	EditionUID         uint64
	EditionFlagHidden  uint64
	EditionFlagDefault uint64
	EditionFlagOrdered uint64
	ChapterAtom        []chapterAtom
}

type chapterAtom struct {
	ChapterUID         uint64
	ChapterTimeStart   uint64
	ChapterTimeEnd     uint64
	ChapterFlagHidden  uint64
	ChapterFlagEnabled []uint64
	ChapterSegmentUID  []byte
	ChapterTrack       []chapterTrack
	ChapterDisplay     []chapterDisplay
	ChapProcess        []chapProcess
	ChapterAtom        []chapterAtom
}

type chapterTrack struct {
	ChapterTrackNumber []uint64
}

type chapterDisplay struct {
	ChapString   string
	ChapLanguage []string
	ChapCountry  []string
}

type chapProcess struct {
	ChapProcessCodecID uint64
	ChapProcessPrivate []byte
	ChapProcessCommand []chapProcessCommand
}

type chapProcessCommand struct {
	ChapProcessTime uint64
	ChapProcessData []byte
}

type tags struct {
	Tag []tag
}

type tag struct {
	Targets   targets
	SimpleTag []simpleTag
}

type targets struct {
	TargetTypeValue  uint64
	TagTrackUID      []uint64
	TagEditionUID    []uint64
	TagChapterUID    []uint64
	TagAttachmentUID []uint64
}

type simpleTag struct {
	TagName     string
	TagLanguage []string
	TagDefault  []uint64
	TagString   string
}

type attachments struct {
	AttachedFile []attachedFile
}

type attachedFile struct {
	FileDescription string
	FileName        string
	FileMimeType    string
	FileData        []byte
	FileUID         uint64
}

type cues struct {
	CuePoint []cuePoint
}

type cuePoint struct {
	CueTime           uint64
	CueTrackPositions []cueTrackPositions
}

type cueTrackPositions struct {
	CueTrack            uint64
	CueClusterPosition  uint64
	CueRelativePosition uint64
	CueDuration         uint64
	CueBlockNumber      uint64
}

type cluster struct {
	Timecode    uint64
	SimpleBlock []ebml.Block
	BlockGroup  []blockGroup
}

type blockGroup struct {
	Block          []ebml.Block
	BlockDuration  []uint64
	ReferenceBlock []int64
	DiscardPadding int64
}

// first returns the first element of v, or def when the element was absent.
func first[T any](v []T, def T) T {
	if len(v) == 0 {
		return def
	}
	return v[0]
}
