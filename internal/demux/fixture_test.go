package demux

import (
	"bytes"
	"testing"

	"github.com/at-wat/ebml-go"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/mkvbridge/internal/mkvio"
)

// Writer-side element trees for test files. Every field is filled so the
// encoder never sees an empty optional element.

type fixtureDoc struct {
	Header  fixtureHeader  `ebml:"EBML"`
	Segment fixtureSegment `ebml:"Segment"`
}

type fixtureHeader struct {
	EBMLVersion            uint64
	EBMLReadVersion        uint64
	EBMLMaxIDLength        uint64
	EBMLMaxSizeLength      uint64
	EBMLDocType            string
	EBMLDocTypeVersion     uint64
	EBMLDocTypeReadVersion uint64
}

type fixtureSegment struct {
	Info        fixtureInfo
	Tracks      fixtureTracks
	Chapters    fixtureChapters
	Tags        fixtureTags
	Attachments fixtureAttachments
	Cues        fixtureCues
	Cluster     []fixtureCluster
}

type fixtureInfo struct {
	SegmentUID    []byte
	TimecodeScale uint64
	Duration      float64
	Title         string
	MuxingApp     string
	WritingApp    string
}

type fixtureTracks struct {
	TrackEntry []fixtureTrack
}

type fixtureTrack struct {
	TrackNumber        uint64
	TrackUID           uint64
	TrackType          uint64
	FlagDefault        uint64
	DefaultDuration    uint64
	TrackTimecodeScale float64
	Name               string
	CodecID            string
	Video              []fixtureVideo
	Audio              []fixtureAudio
}

type fixtureVideo struct {
	PixelWidth  uint64
	PixelHeight uint64
}

type fixtureAudio struct {
	SamplingFrequency float64
	Channels          uint64
}

type fixtureChapters struct {
	EditionEntry []fixtureEdition
}

type fixtureEdition struct {
	EditionUID         uint64
	EditionFlagDefault uint64
	ChapterAtom        []fixtureAtom
}

type fixtureAtom struct {
	ChapterUID        uint64
	ChapterTimeStart  uint64
	ChapterFlagHidden uint64
	ChapterDisplay    []fixtureDisplay
	ChapterAtom       []fixtureAtom
}

type fixtureDisplay struct {
	ChapString   string
	ChapLanguage string
}

type fixtureTags struct {
	Tag []fixtureTag
}

type fixtureTag struct {
	Targets   fixtureTargets
	SimpleTag []fixtureSimpleTag
}

type fixtureTargets struct {
	TargetTypeValue uint64
	TagTrackUID     uint64
}

type fixtureSimpleTag struct {
	TagName   string
	TagString string
}

type fixtureAttachments struct {
	AttachedFile []fixtureFile
}

type fixtureFile struct {
	FileName     string
	FileMimeType string
	FileData     []byte
	FileUID      uint64
}

type fixtureCues struct {
	CuePoint []fixtureCuePoint
}

type fixtureCuePoint struct {
	CueTime           uint64
	CueTrackPositions fixtureCuePosition
}

type fixtureCuePosition struct {
	CueTrack           uint64
	CueClusterPosition uint64
}

type fixtureCluster struct {
	Timecode    uint64
	SimpleBlock []ebml.Block
	BlockGroup  []fixtureBlockGroup
}

type fixtureBlockGroup struct {
	Block         []ebml.Block
	BlockDuration uint64
}

const ms = 1000000

func block(track uint64, tc int16, keyframe bool, data string) ebml.Block {
	return ebml.Block{
		TrackNumber: track,
		Timecode:    tc,
		Keyframe:    keyframe,
		Lacing:      ebml.LacingNo,
		Data:        [][]byte{[]byte(data)},
	}
}

// testFile returns a two-track file:
//
//	track 0: video, number 1, 40ms default duration
//	track 1: audio, number 2, not default
//
// Packets in file order: v0@0 a0@0 v1@40 a1@20 | v2@80 a2@80. Only v1 is not
// a keyframe.
func testFile(docType string) fixtureDoc {
	return fixtureDoc{
		Header: fixtureHeader{
			EBMLVersion:            1,
			EBMLReadVersion:        1,
			EBMLMaxIDLength:        4,
			EBMLMaxSizeLength:      8,
			EBMLDocType:            docType,
			EBMLDocTypeVersion:     4,
			EBMLDocTypeReadVersion: 2,
		},
		Segment: fixtureSegment{
			Info: fixtureInfo{
				SegmentUID:    []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
				TimecodeScale: ms,
				Duration:      120,
				Title:         "fixture",
				MuxingApp:     "mkvbridge",
				WritingApp:    "mkvbridge-test",
			},
			Tracks: fixtureTracks{TrackEntry: []fixtureTrack{
				{
					TrackNumber:     1,
					TrackUID:        100,
					TrackType:          1,
					FlagDefault:        1,
					DefaultDuration:    40 * ms,
					TrackTimecodeScale: 1,
					Name:               "picture",
					CodecID:            "V_VP8",
					Video:              []fixtureVideo{{PixelWidth: 320, PixelHeight: 240}},
				},
				{
					TrackNumber:        2,
					TrackUID:           200,
					TrackType:          2,
					FlagDefault:        0,
					TrackTimecodeScale: 1,
					Name:               "sound",
					CodecID:            "A_OPUS",
					Audio:              []fixtureAudio{{SamplingFrequency: 48000, Channels: 2}},
				},
			}},
			Chapters: fixtureChapters{EditionEntry: []fixtureEdition{{
				EditionUID:         7,
				EditionFlagDefault: 1,
				ChapterAtom: []fixtureAtom{{
					ChapterUID:     11,
					ChapterDisplay: []fixtureDisplay{{ChapString: "Intro", ChapLanguage: "eng"}},
					ChapterAtom: []fixtureAtom{{
						ChapterUID:        12,
						ChapterTimeStart:  40 * ms,
						ChapterFlagHidden: 1,
						ChapterDisplay:    []fixtureDisplay{{ChapString: "Part", ChapLanguage: "ger"}},
					}},
				}},
			}}},
			Tags: fixtureTags{Tag: []fixtureTag{{
				Targets:   fixtureTargets{TargetTypeValue: 30, TagTrackUID: 100},
				SimpleTag: []fixtureSimpleTag{{TagName: "TITLE", TagString: "Picture"}},
			}}},
			Attachments: fixtureAttachments{AttachedFile: []fixtureFile{{
				FileName:     "cover.jpg",
				FileMimeType: "image/jpeg",
				FileData:     []byte("jpegdata"),
				FileUID:      99,
			}}},
			Cues: fixtureCues{CuePoint: []fixtureCuePoint{{
				CueTime:           80,
				CueTrackPositions: fixtureCuePosition{CueTrack: 1, CueClusterPosition: 1234},
			}}},
			Cluster: []fixtureCluster{
				{
					Timecode: 0,
					SimpleBlock: []ebml.Block{
						block(1, 0, true, "v0"),
						block(2, 0, true, "a0"),
						block(1, 40, false, "v1"),
					},
					BlockGroup: []fixtureBlockGroup{{
						Block:         []ebml.Block{block(2, 20, false, "a1")},
						BlockDuration: 20,
					}},
				},
				{
					Timecode: 80,
					SimpleBlock: []ebml.Block{
						block(1, 0, true, "v2"),
						block(2, 0, true, "a2"),
					},
				},
			},
		},
	}
}

func encode(t *testing.T, doc fixtureDoc) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := ebml.Marshal(&doc, &buf); err != nil {
		t.Fatalf("Failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

// countingStream records packet buffer traffic.
type countingStream struct {
	*mkvio.IO
	allocs int
	frees  int
}

func (s *countingStream) MemAlloc(size int) []byte {
	s.allocs++
	return s.IO.MemAlloc(size)
}

func (s *countingStream) MemFree(mem []byte) {
	s.frees++
	s.IO.MemFree(mem)
}

func newStream(t *testing.T, data []byte) *countingStream {
	t.Helper()

	table := mkvio.NewReaderTable(zap.NewNop())
	key, _ := mkvio.NewKey(t.Name())
	if err := table.Add(key, bytes.NewReader(data)); err != nil {
		t.Fatal(err)
	}

	rec := mkvio.Alloc()
	rec.SetCallbacks(t.Name(), table)
	return &countingStream{IO: rec}
}

func openTestFile(t *testing.T) (*Demuxer, *countingStream) {
	t.Helper()

	stream := newStream(t, encode(t, testFile("matroska")))
	d, err := Open(stream, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(d.Close)
	return d, stream
}
