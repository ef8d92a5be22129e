package fields

import "github.com/woxQAQ/mkvbridge/pkg/mkv"

// TrackInfoSize is the size of the parser's TrackInfo record.
const TrackInfoSize = 256

// Plain TrackInfo members.
var (
	TrackNumber                = Field{Name: "Number", Offset: 0, Kind: U8}
	TrackType                  = Field{Name: "Type", Offset: 1, Kind: U8}
	TrackOverlay               = Field{Name: "TrackOverlay", Offset: 2, Kind: U8}
	TrackUID                   = Field{Name: "UID", Offset: 8, Kind: U64}
	TrackMinCache              = Field{Name: "MinCache", Offset: 16, Kind: U64}
	TrackMaxCache              = Field{Name: "MaxCache", Offset: 24, Kind: U64}
	TrackDefaultDuration       = Field{Name: "DefaultDuration", Offset: 32, Kind: U64}
	TrackCodecDelay            = Field{Name: "CodecDelay", Offset: 40, Kind: U64}
	TrackSeekPreRoll           = Field{Name: "SeekPreRoll", Offset: 48, Kind: U64}
	TrackTimecodeScale         = Field{Name: "TimecodeScale", Offset: 56, Kind: F64}
	TrackCodecPrivate          = Field{Name: "CodecPrivate", Offset: 64, Kind: Ptr}
	TrackCodecPrivateSize      = Field{Name: "CodecPrivateSize", Offset: 68, Kind: U32}
	TrackCompMethod            = Field{Name: "CompMethod", Offset: 72, Kind: U32}
	TrackCompMethodPrivate     = Field{Name: "CompMethodPrivate", Offset: 76, Kind: Ptr}
	TrackCompMethodPrivateSize = Field{Name: "CompMethodPrivateSize", Offset: 80, Kind: U32}
	TrackMaxBlockAdditionID    = Field{Name: "MaxBlockAdditionID", Offset: 84, Kind: U32}
	TrackName                  = Field{Name: "Name", Offset: 240, Kind: Ptr}
	TrackLanguage              = Field{Name: "Language", Offset: 244, Kind: Chars, Len: 4}
	TrackCodecID               = Field{Name: "CodecID", Offset: 248, Kind: Ptr}
)

// Track flag bitfield, one 32-bit unit at offset 88.
var (
	TrackEnabled     = Field{Name: "Enabled", Offset: 88, Kind: Bit, Bit: 0}
	TrackDefault     = Field{Name: "Default", Offset: 88, Kind: Bit, Bit: 1}
	TrackForced      = Field{Name: "Forced", Offset: 88, Kind: Bit, Bit: 2}
	TrackLacing      = Field{Name: "Lacing", Offset: 88, Kind: Bit, Bit: 3}
	TrackDecodeAll   = Field{Name: "DecodeAll", Offset: 88, Kind: Bit, Bit: 4}
	TrackCompEnabled = Field{Name: "CompEnabled", Offset: 88, Kind: Bit, Bit: 5}
)

// The AV union starts at offset 96. Audio and Video overlap.
var (
	AudioSamplingFreq       = Field{Name: "SamplingFreq", Offset: 96, Kind: F64}
	AudioOutputSamplingFreq = Field{Name: "OutputSamplingFreq", Offset: 104, Kind: F64}
	AudioChannels           = Field{Name: "Channels", Offset: 112, Kind: U8}
	AudioBitDepth           = Field{Name: "BitDepth", Offset: 113, Kind: U8}
)

var (
	VideoStereoMode      = Field{Name: "StereoMode", Offset: 96, Kind: U8}
	VideoDisplayUnit     = Field{Name: "DisplayUnit", Offset: 97, Kind: U8}
	VideoAspectRatioType = Field{Name: "AspectRatioType", Offset: 98, Kind: U8}
	VideoPixelWidth      = Field{Name: "PixelWidth", Offset: 100, Kind: U32}
	VideoPixelHeight     = Field{Name: "PixelHeight", Offset: 104, Kind: U32}
	VideoDisplayWidth    = Field{Name: "DisplayWidth", Offset: 108, Kind: U32}
	VideoDisplayHeight   = Field{Name: "DisplayHeight", Offset: 112, Kind: U32}
	VideoCropL           = Field{Name: "CropL", Offset: 116, Kind: U32}
	VideoCropT           = Field{Name: "CropT", Offset: 120, Kind: U32}
	VideoCropR           = Field{Name: "CropR", Offset: 124, Kind: U32}
	VideoCropB           = Field{Name: "CropB", Offset: 128, Kind: U32}
	VideoColourSpace     = Field{Name: "ColourSpace", Offset: 132, Kind: U32}
	VideoGammaValue      = Field{Name: "GammaValue", Offset: 136, Kind: F64}
	VideoInterlaced      = Field{Name: "Interlaced", Offset: 236, Kind: Bit, Bit: 0}
)

var (
	ColourMatrixCoefficients      = Field{Name: "MatrixCoefficients", Offset: 144, Kind: U32}
	ColourBitsPerChannel          = Field{Name: "BitsPerChannel", Offset: 148, Kind: U32}
	ColourChromaSubsamplingHorz   = Field{Name: "ChromaSubsamplingHorz", Offset: 152, Kind: U32}
	ColourChromaSubsamplingVert   = Field{Name: "ChromaSubsamplingVert", Offset: 156, Kind: U32}
	ColourCbSubsamplingHorz       = Field{Name: "CbSubsamplingHorz", Offset: 160, Kind: U32}
	ColourCbSubsamplingVert       = Field{Name: "CbSubsamplingVert", Offset: 164, Kind: U32}
	ColourChromaSitingHorz        = Field{Name: "ChromaSitingHorz", Offset: 168, Kind: U32}
	ColourChromaSitingVert        = Field{Name: "ChromaSitingVert", Offset: 172, Kind: U32}
	ColourRange                   = Field{Name: "Range", Offset: 176, Kind: U32}
	ColourTransferCharacteristics = Field{Name: "TransferCharacteristics", Offset: 180, Kind: U32}
	ColourPrimaries               = Field{Name: "Primaries", Offset: 184, Kind: U32}
	ColourMaxCLL                  = Field{Name: "MaxCLL", Offset: 188, Kind: U32}
	ColourMaxFALL                 = Field{Name: "MaxFALL", Offset: 192, Kind: U32}
)

var (
	MasteringPrimaryRChromaticityX   = Field{Name: "PrimaryRChromaticityX", Offset: 196, Kind: F32}
	MasteringPrimaryRChromaticityY   = Field{Name: "PrimaryRChromaticityY", Offset: 200, Kind: F32}
	MasteringPrimaryGChromaticityX   = Field{Name: "PrimaryGChromaticityX", Offset: 204, Kind: F32}
	MasteringPrimaryGChromaticityY   = Field{Name: "PrimaryGChromaticityY", Offset: 208, Kind: F32}
	MasteringPrimaryBChromaticityX   = Field{Name: "PrimaryBChromaticityX", Offset: 212, Kind: F32}
	MasteringPrimaryBChromaticityY   = Field{Name: "PrimaryBChromaticityY", Offset: 216, Kind: F32}
	MasteringWhitePointChromaticityX = Field{Name: "WhitePointChromaticityX", Offset: 220, Kind: F32}
	MasteringWhitePointChromaticityY = Field{Name: "WhitePointChromaticityY", Offset: 224, Kind: F32}
	MasteringLuminanceMax            = Field{Name: "LuminanceMax", Offset: 228, Kind: F32}
	MasteringLuminanceMin            = Field{Name: "LuminanceMin", Offset: 232, Kind: F32}
)

// Accessor groups over a TrackInfo view.
var (
	TrackPlain = Group{Name: "track", Fields: []Field{
		TrackNumber, TrackType, TrackOverlay, TrackUID, TrackMinCache, TrackMaxCache,
		TrackDefaultDuration, TrackCodecDelay, TrackSeekPreRoll, TrackTimecodeScale,
		TrackCodecPrivate, TrackCodecPrivateSize, TrackCompMethod, TrackCompMethodPrivate,
		TrackCompMethodPrivateSize, TrackMaxBlockAdditionID, TrackName, TrackLanguage,
		TrackCodecID,
	}}

	Track = Group{Name: "track-flags", Fields: []Field{
		TrackEnabled, TrackDefault, TrackForced, TrackLacing, TrackDecodeAll, TrackCompEnabled,
	}}

	Audio = Group{Name: "audio", Fields: []Field{
		AudioSamplingFreq, AudioOutputSamplingFreq, AudioChannels, AudioBitDepth,
	}}

	Video = Group{Name: "video", Fields: []Field{
		VideoStereoMode, VideoDisplayUnit, VideoAspectRatioType, VideoPixelWidth,
		VideoPixelHeight, VideoDisplayWidth, VideoDisplayHeight, VideoCropL, VideoCropT,
		VideoCropR, VideoCropB, VideoColourSpace, VideoGammaValue, VideoInterlaced,
	}}

	Colour = Group{Name: "colour", Fields: []Field{
		ColourMatrixCoefficients, ColourBitsPerChannel, ColourChromaSubsamplingHorz,
		ColourChromaSubsamplingVert, ColourCbSubsamplingHorz, ColourCbSubsamplingVert,
		ColourChromaSitingHorz, ColourChromaSitingVert, ColourRange,
		ColourTransferCharacteristics, ColourPrimaries, ColourMaxCLL, ColourMaxFALL,
	}}

	Mastering = Group{Name: "mastering", Fields: []Field{
		MasteringPrimaryRChromaticityX, MasteringPrimaryRChromaticityY,
		MasteringPrimaryGChromaticityX, MasteringPrimaryGChromaticityY,
		MasteringPrimaryBChromaticityX, MasteringPrimaryBChromaticityY,
		MasteringWhitePointChromaticityX, MasteringWhitePointChromaticityY,
		MasteringLuminanceMax, MasteringLuminanceMin,
	}}
)

// ApplyTrack copies every by-value member of a TrackInfo view into t. Pointer
// members (name, codec ID, private data) are left to the caller, which owns
// the memory they point into. Only the union member selected by the track
// type is decoded.
func ApplyTrack(b []byte, t *mkv.TrackInfo) {
	t.Number = uint8(TrackNumber.Uint(b))
	t.Type = mkv.TrackType(TrackType.Uint(b))
	t.TrackOverlay = uint8(TrackOverlay.Uint(b))
	t.UID = TrackUID.Uint(b)
	t.MinCache = TrackMinCache.Uint(b)
	t.MaxCache = TrackMaxCache.Uint(b)
	t.DefaultDuration = TrackDefaultDuration.Uint(b)
	t.CodecDelay = TrackCodecDelay.Uint(b)
	t.SeekPreRoll = TrackSeekPreRoll.Uint(b)
	t.TimecodeScale = TrackTimecodeScale.Float(b)
	t.CompMethod = uint32(TrackCompMethod.Uint(b))
	t.MaxBlockAdditionID = uint32(TrackMaxBlockAdditionID.Uint(b))
	t.Language = TrackLanguage.String(b)

	t.Enabled = TrackEnabled.Bool(b)
	t.Default = TrackDefault.Bool(b)
	t.Forced = TrackForced.Bool(b)
	t.Lacing = TrackLacing.Bool(b)
	t.DecodeAll = TrackDecodeAll.Bool(b)
	t.CompEnabled = TrackCompEnabled.Bool(b)

	switch t.Type {
	case mkv.TypeVideo:
		applyVideo(b, &t.Video)
	case mkv.TypeAudio:
		t.Audio = mkv.AudioInfo{
			SamplingFreq:       AudioSamplingFreq.Float(b),
			OutputSamplingFreq: AudioOutputSamplingFreq.Float(b),
			Channels:           uint8(AudioChannels.Uint(b)),
			BitDepth:           uint8(AudioBitDepth.Uint(b)),
		}
	}
}

func applyVideo(b []byte, v *mkv.VideoInfo) {
	v.StereoMode = uint8(VideoStereoMode.Uint(b))
	v.DisplayUnit = uint8(VideoDisplayUnit.Uint(b))
	v.AspectRatioType = uint8(VideoAspectRatioType.Uint(b))
	v.PixelWidth = uint32(VideoPixelWidth.Uint(b))
	v.PixelHeight = uint32(VideoPixelHeight.Uint(b))
	v.DisplayWidth = uint32(VideoDisplayWidth.Uint(b))
	v.DisplayHeight = uint32(VideoDisplayHeight.Uint(b))
	v.CropL = uint32(VideoCropL.Uint(b))
	v.CropT = uint32(VideoCropT.Uint(b))
	v.CropR = uint32(VideoCropR.Uint(b))
	v.CropB = uint32(VideoCropB.Uint(b))
	v.ColourSpace = uint32(VideoColourSpace.Uint(b))
	v.GammaValue = VideoGammaValue.Float(b)
	v.Interlaced = VideoInterlaced.Bool(b)

	c := &v.Colour
	c.MatrixCoefficients = uint32(ColourMatrixCoefficients.Uint(b))
	c.BitsPerChannel = uint32(ColourBitsPerChannel.Uint(b))
	c.ChromaSubsamplingHorz = uint32(ColourChromaSubsamplingHorz.Uint(b))
	c.ChromaSubsamplingVert = uint32(ColourChromaSubsamplingVert.Uint(b))
	c.CbSubsamplingHorz = uint32(ColourCbSubsamplingHorz.Uint(b))
	c.CbSubsamplingVert = uint32(ColourCbSubsamplingVert.Uint(b))
	c.ChromaSitingHorz = uint32(ColourChromaSitingHorz.Uint(b))
	c.ChromaSitingVert = uint32(ColourChromaSitingVert.Uint(b))
	c.Range = uint32(ColourRange.Uint(b))
	c.TransferCharacteristics = uint32(ColourTransferCharacteristics.Uint(b))
	c.Primaries = uint32(ColourPrimaries.Uint(b))
	c.MaxCLL = uint32(ColourMaxCLL.Uint(b))
	c.MaxFALL = uint32(ColourMaxFALL.Uint(b))

	m := &c.MasteringMetadata
	m.PrimaryRChromaticityX = MasteringPrimaryRChromaticityX.Float32(b)
	m.PrimaryRChromaticityY = MasteringPrimaryRChromaticityY.Float32(b)
	m.PrimaryGChromaticityX = MasteringPrimaryGChromaticityX.Float32(b)
	m.PrimaryGChromaticityY = MasteringPrimaryGChromaticityY.Float32(b)
	m.PrimaryBChromaticityX = MasteringPrimaryBChromaticityX.Float32(b)
	m.PrimaryBChromaticityY = MasteringPrimaryBChromaticityY.Float32(b)
	m.WhitePointChromaticityX = MasteringWhitePointChromaticityX.Float32(b)
	m.WhitePointChromaticityY = MasteringWhitePointChromaticityY.Float32(b)
	m.LuminanceMax = MasteringLuminanceMax.Float32(b)
	m.LuminanceMin = MasteringLuminanceMin.Float32(b)
}
