package fields

// Record sizes for walking arrays of chapter and tag structs.
const (
	ChapterSize        = 96
	ChapterDisplaySize = 12
	ChapterProcessSize = 24
	ChapterCommandSize = 12
)

var (
	ChapterUID        = Field{Name: "UID", Offset: 0, Kind: U64}
	ChapterStart      = Field{Name: "Start", Offset: 8, Kind: U64}
	ChapterEnd        = Field{Name: "End", Offset: 16, Kind: U64}
	ChapterNTracks    = Field{Name: "nTracks", Offset: 24, Kind: U32}
	ChapterTracks     = Field{Name: "Tracks", Offset: 32, Kind: Ptr}
	ChapterNDisplay   = Field{Name: "nDisplay", Offset: 36, Kind: U32}
	ChapterDisplay    = Field{Name: "Display", Offset: 44, Kind: Ptr}
	ChapterNChildren  = Field{Name: "nChildren", Offset: 48, Kind: U32}
	ChapterChildren   = Field{Name: "Children", Offset: 56, Kind: Ptr}
	ChapterNProcess   = Field{Name: "nProcess", Offset: 60, Kind: U32}
	ChapterProcess    = Field{Name: "Process", Offset: 68, Kind: Ptr}
	ChapterSegmentUID = Field{Name: "SegmentUID", Offset: 72, Kind: Chars, Len: 16}
)

// Chapter and edition flags share one bitfield unit at offset 88.
var (
	ChapterHidden  = Field{Name: "Hidden", Offset: 88, Kind: Bit, Bit: 0}
	ChapterEnabled = Field{Name: "Enabled", Offset: 88, Kind: Bit, Bit: 1}
	EditionDefault = Field{Name: "Default", Offset: 88, Kind: Bit, Bit: 2}
	EditionOrdered = Field{Name: "Ordered", Offset: 88, Kind: Bit, Bit: 3}
)

var (
	DisplayString   = Field{Name: "String", Offset: 0, Kind: Ptr}
	DisplayLanguage = Field{Name: "Language", Offset: 4, Kind: Chars, Len: 4}
	DisplayCountry  = Field{Name: "Country", Offset: 8, Kind: Chars, Len: 4}

	ProcessCodecID          = Field{Name: "CodecID", Offset: 0, Kind: U32}
	ProcessCodecPrivateSize = Field{Name: "CodecPrivateSize", Offset: 4, Kind: U32}
	ProcessCodecPrivate     = Field{Name: "CodecPrivate", Offset: 8, Kind: Ptr}
	ProcessNCommands        = Field{Name: "nCommands", Offset: 12, Kind: U32}
	ProcessCommands         = Field{Name: "Commands", Offset: 20, Kind: Ptr}

	CommandTime   = Field{Name: "Time", Offset: 0, Kind: U32}
	CommandLength = Field{Name: "CommandLength", Offset: 4, Kind: U32}
	CommandData   = Field{Name: "Command", Offset: 8, Kind: Ptr}
)

var (
	ChapterPlain = Group{Name: "chapter", Fields: []Field{
		ChapterUID, ChapterStart, ChapterEnd, ChapterNTracks, ChapterTracks,
		ChapterNDisplay, ChapterDisplay, ChapterNChildren, ChapterChildren,
		ChapterNProcess, ChapterProcess, ChapterSegmentUID,
	}}

	ChapterFlags = Group{Name: "chapter-flags", Fields: []Field{ChapterHidden, ChapterEnabled}}

	EditionFlags = Group{Name: "edition-flags", Fields: []Field{EditionDefault, EditionOrdered}}

	ChapterDisplayPlain = Group{Name: "chapter-display", Fields: []Field{
		DisplayString, DisplayLanguage, DisplayCountry,
	}}
)
