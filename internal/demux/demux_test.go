package demux

import (
	"errors"
	"io"
	"testing"

	"go.uber.org/zap"

	"github.com/woxQAQ/mkvbridge/pkg/mkv"
)

func TestOpen_Tracks(t *testing.T) {
	d, _ := openTestFile(t)

	if d.NumTracks() != 2 {
		t.Fatalf("NumTracks() = %d, want 2", d.NumTracks())
	}

	v, err := d.TrackInfo(0)
	if err != nil {
		t.Fatalf("TrackInfo(0) failed: %v", err)
	}
	if v.Number != 1 || v.UID != 100 || v.Type != mkv.TypeVideo || v.CodecID != "V_VP8" {
		t.Errorf("video track = %+v", v)
	}
	if v.Video.PixelWidth != 320 || v.Video.PixelHeight != 240 {
		t.Errorf("pixel size = %dx%d", v.Video.PixelWidth, v.Video.PixelHeight)
	}
	// Display size defaults to the pixel size.
	if v.Video.DisplayWidth != 320 || v.Video.DisplayHeight != 240 {
		t.Errorf("display size = %dx%d", v.Video.DisplayWidth, v.Video.DisplayHeight)
	}
	if !v.Enabled || !v.Default || v.Forced || !v.Lacing || !v.DecodeAll {
		t.Errorf("video flags = %+v", v)
	}
	if v.Language != "eng" || v.TimecodeScale != 1 {
		t.Errorf("defaults: language %q, timecode scale %v", v.Language, v.TimecodeScale)
	}
	if v.Video.Colour.MatrixCoefficients != 2 || v.Video.Colour.Primaries != 2 {
		t.Errorf("colour defaults = %+v", v.Video.Colour)
	}

	a, err := d.TrackInfo(1)
	if err != nil {
		t.Fatalf("TrackInfo(1) failed: %v", err)
	}
	if a.Type != mkv.TypeAudio || a.Default || a.Name != "sound" {
		t.Errorf("audio track = %+v", a)
	}
	if a.Audio.SamplingFreq != 48000 || a.Audio.OutputSamplingFreq != 48000 || a.Audio.Channels != 2 {
		t.Errorf("audio = %+v", a.Audio)
	}

	_, err = d.TrackInfo(2)
	var rangeErr *TrackRangeError
	if !errors.As(err, &rangeErr) || rangeErr.Count != 2 {
		t.Errorf("TrackInfo(2) error = %v", err)
	}
}

func TestOpen_FileInfo(t *testing.T) {
	d, _ := openTestFile(t)

	info := d.FileInfo()
	if info.Title != "fixture" || info.MuxingApp != "mkvbridge" || info.WritingApp != "mkvbridge-test" {
		t.Errorf("info = %+v", info)
	}
	if info.TimecodeScale != ms {
		t.Errorf("TimecodeScale = %d", info.TimecodeScale)
	}
	if info.Duration != 120*ms {
		t.Errorf("Duration = %d, want %d", info.Duration, 120*ms)
	}
	if info.UID[0] != 1 || info.UID[15] != 16 {
		t.Errorf("UID = %v", info.UID)
	}
	if info.DateUTCValid {
		t.Error("DateUTCValid set without a DateUTC element")
	}

	// The returned value is a copy.
	info.Title = "changed"
	if d.FileInfo().Title != "fixture" {
		t.Error("FileInfo() should return a copy")
	}
}

func TestOpen_Chapters(t *testing.T) {
	d, _ := openTestFile(t)

	editions := d.Chapters()
	if len(editions) != 1 {
		t.Fatalf("got %d editions, want 1", len(editions))
	}

	ed := editions[0]
	if ed.UID != 7 || !ed.Default || ed.Ordered {
		t.Errorf("edition = %+v", ed)
	}
	if len(ed.Children) != 1 {
		t.Fatalf("edition has %d chapters, want 1", len(ed.Children))
	}

	intro := ed.Children[0]
	if intro.UID != 11 || intro.Hidden || !intro.Enabled {
		t.Errorf("intro = %+v", intro)
	}
	if len(intro.Display) != 1 || intro.Display[0].String != "Intro" || intro.Display[0].Language != "eng" {
		t.Errorf("intro display = %+v", intro.Display)
	}

	if len(intro.Children) != 1 {
		t.Fatalf("intro has %d children, want 1", len(intro.Children))
	}
	part := intro.Children[0]
	if part.UID != 12 || part.Start != 40*ms || !part.Hidden {
		t.Errorf("part = %+v", part)
	}
	if part.Display[0].Language != "ger" {
		t.Errorf("part language = %q", part.Display[0].Language)
	}
}

func TestOpen_TagsAttachmentsCues(t *testing.T) {
	d, _ := openTestFile(t)

	tags := d.Tags()
	if len(tags) != 1 {
		t.Fatalf("got %d tags, want 1", len(tags))
	}
	if len(tags[0].Targets) != 1 || tags[0].Targets[0] != (mkv.Target{UID: 100, Type: mkv.TargetTrack}) {
		t.Errorf("targets = %+v", tags[0].Targets)
	}
	st := tags[0].SimpleTags
	if len(st) != 1 || st[0].Name != "TITLE" || st[0].Value != "Picture" || st[0].Language != "und" || !st[0].Default {
		t.Errorf("simple tags = %+v", st)
	}

	att := d.Attachments()
	if len(att) != 1 {
		t.Fatalf("got %d attachments, want 1", len(att))
	}
	if att[0].Name != "cover.jpg" || att[0].MimeType != "image/jpeg" || att[0].Length != 8 || att[0].UID != 99 {
		t.Errorf("attachment = %+v", att[0])
	}
	if att[0].Position == 0 {
		t.Error("attachment position not recorded")
	}

	cues := d.Cues()
	if len(cues) != 1 || cues[0].Time != 80*ms || cues[0].Track != 1 || cues[0].Position != 1234 {
		t.Errorf("cues = %+v", cues)
	}
}

func TestOpen_RejectsOtherDocTypes(t *testing.T) {
	stream := newStream(t, encode(t, testFile("notmkv")))

	_, err := Open(stream, zap.NewNop())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestOpen_Garbage(t *testing.T) {
	stream := newStream(t, []byte("this is not an ebml stream"))

	_, err := Open(stream, zap.NewNop())
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Errorf("expected ParseError, got %v", err)
	}
}

func TestOpen_WebM(t *testing.T) {
	stream := newStream(t, encode(t, testFile("webm")))

	d, err := Open(stream, zap.NewNop())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	d.Close()
}

func TestClose_FreesPacketBuffers(t *testing.T) {
	stream := newStream(t, encode(t, testFile("matroska")))

	d, err := Open(stream, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if stream.allocs != 6 {
		t.Errorf("allocs = %d, want 6", stream.allocs)
	}

	d.Close()
	if stream.frees != stream.allocs {
		t.Errorf("frees = %d, want %d", stream.frees, stream.allocs)
	}

	if _, err := d.ReadPacket(0); err != io.EOF {
		t.Errorf("ReadPacket() after Close() = %v, want io.EOF", err)
	}
}
