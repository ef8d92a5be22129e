package wasm

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
	"github.com/woxQAQ/mkvbridge/internal/fields"
	"github.com/woxQAQ/mkvbridge/internal/mkvio"
	"github.com/woxQAQ/mkvbridge/pkg/mkv"
)

// put copies b into the guest and returns its address.
func put(t *testing.T, inst *Instance, b []byte) uint32 {
	t.Helper()
	ptr, _, err := inst.Memory().WriteBytes(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	return ptr
}

func putString(t *testing.T, inst *Instance, s string) uint32 {
	t.Helper()
	ptr, _, err := inst.Memory().WriteString(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	return ptr
}

func TestDecodeTrack(t *testing.T) {
	inst, _ := newGuest(t, allocModule)

	b := make([]byte, fields.TrackInfoSize)
	fields.TrackNumber.Put(b, 2)
	fields.TrackType.Put(b, uint64(mkv.TypeAudio))
	fields.TrackEnabled.Put(b, 1)
	fields.TrackLacing.Put(b, 1)
	fields.TrackLanguage.PutString(b, "jpn")
	fields.AudioSamplingFreq.PutFloat(b, 44100)
	fields.AudioChannels.Put(b, 2)
	fields.TrackName.Put(b, uint64(putString(t, inst, "Commentary")))
	fields.TrackCodecID.Put(b, uint64(putString(t, inst, "A_OPUS")))
	fields.TrackCodecPrivate.Put(b, uint64(put(t, inst, []byte("OpusHead"))))
	fields.TrackCodecPrivateSize.Put(b, 8)

	d := decoder{mem: inst.Memory()}
	ti := d.track(put(t, inst, b))
	if d.err != nil {
		t.Fatal(d.err)
	}

	if ti.Number != 2 || ti.Type != mkv.TypeAudio {
		t.Errorf("Number/Type = %d/%v", ti.Number, ti.Type)
	}
	if ti.Name != "Commentary" || ti.CodecID != "A_OPUS" || ti.Language != "jpn" {
		t.Errorf("Name/CodecID/Language = %q/%q/%q", ti.Name, ti.CodecID, ti.Language)
	}
	if !bytes.Equal(ti.CodecPrivate, []byte("OpusHead")) {
		t.Errorf("CodecPrivate = %q", ti.CodecPrivate)
	}
	if ti.CompMethodPrivate != nil {
		t.Errorf("CompMethodPrivate = %v, want nil", ti.CompMethodPrivate)
	}
	if !ti.Enabled || !ti.Lacing || ti.Default {
		t.Errorf("flags = %+v", ti)
	}
	if ti.Audio.SamplingFreq != 44100 || ti.Audio.Channels != 2 {
		t.Errorf("Audio = %+v", ti.Audio)
	}
}

func TestDecodeChapters(t *testing.T) {
	inst, _ := newGuest(t, allocModule)

	display := make([]byte, fields.ChapterDisplaySize)
	fields.DisplayString.Put(display, uint64(putString(t, inst, "Opening")))
	fields.DisplayLanguage.PutString(display, "eng")

	trackUIDs := make([]byte, 8)
	trackUID.Put(trackUIDs, 0xABCDEF)

	child := make([]byte, fields.ChapterSize)
	fields.ChapterUID.Put(child, 7)
	fields.ChapterStart.Put(child, 0)
	fields.ChapterEnd.Put(child, 90_000_000_000)
	fields.ChapterEnabled.Put(child, 1)
	fields.ChapterNDisplay.Put(child, 1)
	fields.ChapterDisplay.Put(child, uint64(put(t, inst, display)))
	fields.ChapterNTracks.Put(child, 1)
	fields.ChapterTracks.Put(child, uint64(put(t, inst, trackUIDs)))
	// Edition bits on a nested chapter are ignored.
	fields.EditionOrdered.Put(child, 1)

	edition := make([]byte, fields.ChapterSize)
	fields.ChapterUID.Put(edition, 1)
	fields.EditionDefault.Put(edition, 1)
	fields.ChapterHidden.Put(edition, 1)
	fields.ChapterNChildren.Put(edition, 1)
	fields.ChapterChildren.Put(edition, uint64(put(t, inst, child)))

	d := decoder{mem: inst.Memory()}
	chapters := d.chapters(put(t, inst, edition), 1, 0)
	if d.err != nil {
		t.Fatal(d.err)
	}

	if len(chapters) != 1 {
		t.Fatalf("len(chapters) = %d, want 1", len(chapters))
	}
	ed := chapters[0]
	if ed.UID != 1 || !ed.Default || ed.Ordered || !ed.Hidden {
		t.Errorf("edition = %+v", ed)
	}
	if len(ed.Children) != 1 {
		t.Fatalf("len(Children) = %d, want 1", len(ed.Children))
	}

	ch := ed.Children[0]
	if ch.UID != 7 || ch.End != 90_000_000_000 || !ch.Enabled || ch.Hidden {
		t.Errorf("chapter = %+v", ch)
	}
	if ch.Ordered {
		t.Error("nested chapter should not carry edition flags")
	}
	if len(ch.Display) != 1 || ch.Display[0].String != "Opening" || ch.Display[0].Language != "eng" {
		t.Errorf("Display = %+v", ch.Display)
	}
	if len(ch.Tracks) != 1 || ch.Tracks[0] != 0xABCDEF {
		t.Errorf("Tracks = %v", ch.Tracks)
	}
}

func TestDecodeTags(t *testing.T) {
	inst, _ := newGuest(t, allocModule)

	target := make([]byte, fields.TargetSize)
	fields.TargetUID.Put(target, 42)
	fields.TargetType.Put(target, mkv.TargetTrack)

	simple := make([]byte, fields.SimpleTagSize)
	fields.SimpleTagName.Put(simple, uint64(putString(t, inst, "TITLE")))
	fields.SimpleTagValue.Put(simple, uint64(putString(t, inst, "Main feature")))
	fields.SimpleTagLanguage.PutString(simple, "und")
	fields.SimpleTagDefault.Put(simple, 1)

	tag := make([]byte, fields.TagSize)
	fields.TagNTargets.Put(tag, 1)
	fields.TagTargets.Put(tag, uint64(put(t, inst, target)))
	fields.TagNSimpleTags.Put(tag, 1)
	fields.TagSimpleTags.Put(tag, uint64(put(t, inst, simple)))

	d := decoder{mem: inst.Memory()}
	tags := d.tags(put(t, inst, tag), 1)
	if d.err != nil {
		t.Fatal(d.err)
	}

	if len(tags) != 1 {
		t.Fatalf("len(tags) = %d, want 1", len(tags))
	}
	if len(tags[0].Targets) != 1 || tags[0].Targets[0] != (mkv.Target{UID: 42, Type: mkv.TargetTrack}) {
		t.Errorf("Targets = %+v", tags[0].Targets)
	}
	want := mkv.SimpleTag{Name: "TITLE", Value: "Main feature", Language: "und", Default: true}
	if len(tags[0].SimpleTags) != 1 || tags[0].SimpleTags[0] != want {
		t.Errorf("SimpleTags = %+v, want %+v", tags[0].SimpleTags, want)
	}
}

func TestDecodeInvalidPointer(t *testing.T) {
	inst, _ := newGuest(t, memoryModule)

	d := decoder{mem: inst.Memory()}
	d.track(0xFFFFF000)

	var memErr *MemoryAccessError
	if !errors.As(d.err, &memErr) {
		t.Fatalf("err = %v, want MemoryAccessError", d.err)
	}
}

func TestDecodeRejectsOversizedCounts(t *testing.T) {
	inst, _ := newGuest(t, allocModule)

	tests := []struct {
		name   string
		decode func(d *decoder)
	}{
		{"tags", func(d *decoder) {
			if tags := d.tags(0xFFFFFF00, 0xFFFFFFFF); tags != nil {
				t.Errorf("tags = %d entries, want none", len(tags))
			}
		}},
		{"chapters", func(d *decoder) {
			d.chapters(0x100, 0x0FFFFFFF, 0)
		}},
		{"chapter tracks", func(d *decoder) {
			b := make([]byte, fields.ChapterSize)
			fields.ChapterNTracks.Put(b, 0x0FFFFFFF)
			fields.ChapterTracks.Put(b, 0xFFFF0000)

			chapters := d.chapters(put(t, inst, b), 1, 0)
			if len(chapters) == 1 && len(chapters[0].Tracks) != 0 {
				t.Errorf("decoded %d track UIDs", len(chapters[0].Tracks))
			}
		}},
		{"tag targets", func(d *decoder) {
			b := make([]byte, fields.TagSize)
			fields.TagNTargets.Put(b, 0xFFFFFFFF)
			fields.TagTargets.Put(b, 16)

			d.tags(put(t, inst, b), 1)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := decoder{mem: inst.Memory()}
			tt.decode(&d)

			var memErr *MemoryAccessError
			if !errors.As(d.err, &memErr) {
				t.Fatalf("err = %v, want MemoryAccessError", d.err)
			}
		})
	}
}

// newParser instantiates parserModule with the export check enabled.
func newParser(t *testing.T) (*Instance, *HostFunctionsImpl) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	runtime := newTestRuntime(t, nil)

	if _, err := NewModuleLoader(runtime, logger).LoadBytes(ctx, "parser", parserModule); err != nil {
		t.Fatalf("Failed to load parser: %v", err)
	}

	hostFuncs := NewHostFunctions(logger)
	inst, err := NewInstanceManager(runtime, hostFuncs, logger).Instantiate(ctx, &InstanceConfig{ModuleName: "parser"})
	if err != nil {
		t.Fatalf("Failed to instantiate parser: %v", err)
	}
	return inst, hostFuncs
}

func bindings(h *HostFunctionsImpl) int {
	n := 0
	h.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func TestSession(t *testing.T) {
	inst, host := newParser(t)
	ctx := context.Background()

	s, err := Open(ctx, inst, bytes.NewReader([]byte("\x1a\x45\xdf\xa3 and the rest")), false, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// The guest IO record carries the key host calls are resolved by.
	key, ok := inst.Memory().ReadCString(s.ioPtr + abi.KeyOffset)
	if !ok || key != s.Key().String() {
		t.Errorf("guest key = %q, want %q", key, s.Key())
	}

	// mkv_open read the header through mkvio.read into its own buffer.
	header, _ := inst.Memory().CopyBytes(s.file, 4)
	if !bytes.Equal(header, []byte{0x1a, 0x45, 0xdf, 0xa3}) {
		t.Errorf("guest buffer = %x", header)
	}

	if n, err := s.NumTracks(ctx); err != nil || n != 1 {
		t.Errorf("NumTracks() = %d, %v", n, err)
	}

	rec := make([]byte, fields.TrackInfoSize)
	fields.TrackNumber.Put(rec, 3)
	fields.TrackType.Put(rec, uint64(mkv.TypeVideo))
	inst.Module().Memory().Write(2048, rec)

	ti, err := s.TrackInfo(ctx, 0)
	if err != nil {
		t.Fatalf("TrackInfo(0) failed: %v", err)
	}
	if ti.Number != 3 || ti.Type != mkv.TypeVideo {
		t.Errorf("track = %+v", ti)
	}
	if _, err := s.TrackInfo(ctx, 1); err == nil {
		t.Error("TrackInfo(1) should fail")
	}

	if chapters, err := s.Chapters(ctx); err != nil || len(chapters) != 0 {
		t.Errorf("Chapters() = %v, %v", chapters, err)
	}
	if tags, err := s.Tags(ctx); err != nil || len(tags) != 0 {
		t.Errorf("Tags() = %v, %v", tags, err)
	}

	if host.Readers().Len() != 1 || bindings(host) != 1 {
		t.Errorf("open session: %d readers, %d bindings", host.Readers().Len(), bindings(host))
	}

	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if host.Readers().Len() != 0 || bindings(host) != 0 {
		t.Errorf("after Close: %d readers, %d bindings", host.Readers().Len(), bindings(host))
	}
}

func TestSessionOpenError(t *testing.T) {
	inst, host := newParser(t)
	ctx := context.Background()

	_, err := Open(ctx, inst, bytes.NewReader(nil), false, zaptest.NewLogger(t))

	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("Open() error = %v, want OpenError", err)
	}
	// The guest copied geterror's text into the error buffer.
	if openErr.Msg != mkvio.ErrorText {
		t.Errorf("Msg = %q, want %q", openErr.Msg, mkvio.ErrorText)
	}

	if host.Readers().Len() != 0 || bindings(host) != 0 {
		t.Errorf("after failed open: %d readers, %d bindings", host.Readers().Len(), bindings(host))
	}

	// The last block freed is the guest copy of the error text.
	freed, _ := inst.Memory().Uint32(8)
	if text, _ := inst.Memory().ReadCString(freed); text != mkvio.ErrorText {
		t.Errorf("last freed block holds %q, want the error text", text)
	}
}

func TestOpenRequiresParserExports(t *testing.T) {
	inst, host := newGuest(t, allocModule)
	logger := zaptest.NewLogger(t)

	_, err := Open(context.Background(), inst, bytes.NewReader(nil), false, logger)

	var notFound *FunctionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Open() error = %v, want FunctionNotFoundError", err)
	}

	if host.Readers().Len() != 0 {
		t.Errorf("reader table holds %d entries after failed open", host.Readers().Len())
	}
}

func TestInstantiateValidatesExports(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)
	if _, err := loader.LoadBytes(ctx, "alloc-only", allocModule); err != nil {
		t.Fatal(err)
	}

	manager := NewInstanceManager(runtime, NewHostFunctions(logger), logger)

	_, err = manager.Instantiate(ctx, &InstanceConfig{ModuleName: "alloc-only"})

	var notFound *FunctionNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Instantiate() error = %v, want FunctionNotFoundError", err)
	}
	if notFound.FunctionName != "io_alloc" {
		t.Errorf("FunctionName = %s, want io_alloc", notFound.FunctionName)
	}
	if runtime.Guests() != 0 {
		t.Errorf("Guests() = %d, want 0", runtime.Guests())
	}
}

func TestInstantiateLimit(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	config := DefaultRuntimeConfig()
	config.MaxInstances = 1

	runtime, err := NewRuntime(ctx, logger, config)
	if err != nil {
		t.Fatal(err)
	}
	defer runtime.Close(ctx)

	loader := NewModuleLoader(runtime, logger)
	if _, err := loader.LoadBytes(ctx, "mem", memoryModule); err != nil {
		t.Fatal(err)
	}

	manager := NewInstanceManager(runtime, NewHostFunctions(logger), logger)

	first, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "mem", SkipValidation: true})
	if err != nil {
		t.Fatal(err)
	}

	_, err = manager.Instantiate(ctx, &InstanceConfig{ModuleName: "mem", SkipValidation: true})
	if _, ok := err.(*InstanceLimitError); !ok {
		t.Fatalf("second Instantiate() error = %v, want InstanceLimitError", err)
	}

	// Closing frees the slot.
	if err := first.Close(ctx); err != nil {
		t.Fatal(err)
	}
	second, err := manager.Instantiate(ctx, &InstanceConfig{ModuleName: "mem", SkipValidation: true})
	if err != nil {
		t.Fatalf("Instantiate() after Close = %v", err)
	}
	second.Close(ctx)
}
