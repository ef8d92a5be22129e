package wasm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
	"github.com/woxQAQ/mkvbridge/internal/fields"
	"github.com/woxQAQ/mkvbridge/internal/mkvio"
	"github.com/woxQAQ/mkvbridge/pkg/mkv"
)

// maxChapterDepth bounds recursion over nested chapters.
const maxChapterDepth = 32

// trackUID reads one element of a chapter's track UID array.
var trackUID = fields.Field{Name: "TrackUID", Kind: fields.U64}

// Session is one file opened by a guest parser.
//
// The Go side keeps an mkvio.IO record registered with the instance's host
// functions; the guest keeps its own IO record carrying the same key. Guest
// structs are decoded through the fields tables into pkg/mkv values.
type Session struct {
	inst   *Instance
	io     *mkvio.IO
	key    mkvio.Key
	logger *zap.Logger

	ioPtr uint32
	file  uint32
}

// Open registers r under a fresh key and asks the guest parser to open it.
// With streaming set, r is never seeked and the parser avoids seeks.
func Open(ctx context.Context, inst *Instance, r io.ReadSeeker, streaming bool, logger *zap.Logger) (*Session, error) {
	keyText := mkvio.NewKeyString()
	key, _ := mkvio.NewKey(keyText)

	s := &Session{
		inst:   inst,
		io:     mkvio.Alloc(),
		key:    key,
		logger: logger.With(zap.String("component", "wasm-session"), zap.String("key", keyText)),
	}

	host := inst.Host()
	if err := host.Readers().Add(key, r); err != nil {
		return nil, err
	}
	s.io.SetCallbacks(keyText, host.Readers())
	if err := host.Register(s.io); err != nil {
		host.Readers().Remove(key)
		return nil, err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if err := s.open(ctx, streaming); err != nil {
		s.release(ctx)
		return nil, err
	}

	s.logger.Debug("Stream opened", zap.Uint32("file", s.file))
	return s, nil
}

func (s *Session) open(ctx context.Context, streaming bool) error {
	mem := s.inst.Memory()

	ioPtr, err := s.inst.call32(ctx, abi.ExportIOAlloc)
	if err != nil {
		return err
	}
	if ioPtr == 0 {
		return &MemoryAccessError{Operation: "io_alloc", Length: abi.IORecordSize, Err: errors.New("guest returned null")}
	}
	s.ioPtr = ioPtr

	keyPtr, _, err := mem.WriteBytes(ctx, s.key.Bytes())
	if err != nil {
		return err
	}
	_, err = s.inst.call(ctx, abi.ExportIOSetCallbacks, uint64(ioPtr), uint64(keyPtr))
	if freeErr := mem.Free(ctx, keyPtr); err == nil {
		err = freeErr
	}
	if err != nil {
		return err
	}

	errBuf, err := mem.Alloc(ctx, abi.ErrorBufferSize)
	if err != nil {
		return err
	}
	defer func() { _ = mem.Free(ctx, errBuf) }()

	var flags uint64
	if streaming {
		flags = mkv.OpenAvoidSeeks
	}

	file, err := s.inst.call32(ctx, abi.ExportOpen, uint64(ioPtr), flags, uint64(errBuf), abi.ErrorBufferSize)
	if err != nil {
		return err
	}
	if file == 0 {
		msg, _ := mem.ReadString(errBuf, abi.ErrorBufferSize)
		return &OpenError{Key: s.key.String(), Msg: msg}
	}
	s.file = file
	return nil
}

// Key returns the correlation key of the session.
func (s *Session) Key() mkvio.Key {
	return s.key
}

// Close closes the parser handle and releases both IO records.
func (s *Session) Close(ctx context.Context) error {
	s.inst.mu.Lock()
	defer s.inst.mu.Unlock()

	var err error
	if s.file != 0 {
		_, err = s.inst.call(ctx, abi.ExportClose, uint64(s.file))
		s.file = 0
	}
	s.release(ctx)
	return err
}

// release frees the guest IO record and drops every host-side binding.
// Callers hold inst.mu.
func (s *Session) release(ctx context.Context) {
	host := s.inst.Host()
	if errPtr := host.Unregister(s.key); errPtr != 0 {
		_ = s.inst.Memory().Free(ctx, errPtr)
	}
	host.Readers().Remove(s.key)

	if s.ioPtr != 0 {
		if _, err := s.inst.call(ctx, abi.ExportIOFree, uint64(s.ioPtr)); err != nil {
			s.logger.Warn("Failed to free guest IO record", zap.Error(err))
		}
		s.ioPtr = 0
	}
	s.io.Release()
}

// NumTracks returns the number of tracks the parser found.
func (s *Session) NumTracks(ctx context.Context) (int, error) {
	s.inst.mu.Lock()
	defer s.inst.mu.Unlock()

	n, err := s.inst.call32(ctx, abi.ExportNumTracks, uint64(s.file))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// TrackInfo decodes track n.
func (s *Session) TrackInfo(ctx context.Context, n int) (*mkv.TrackInfo, error) {
	s.inst.mu.Lock()
	defer s.inst.mu.Unlock()

	ptr, err := s.inst.call32(ctx, abi.ExportTrackInfo, uint64(s.file), uint64(n))
	if err != nil {
		return nil, err
	}
	if ptr == 0 {
		return nil, fmt.Errorf("track %d out of range", n)
	}

	d := decoder{mem: s.inst.Memory()}
	ti := d.track(ptr)
	if d.err != nil {
		return nil, d.err
	}
	return ti, nil
}

// Chapters decodes the edition and chapter tree.
func (s *Session) Chapters(ctx context.Context) ([]*mkv.Chapter, error) {
	s.inst.mu.Lock()
	defer s.inst.mu.Unlock()

	ptr, count, err := s.list(ctx, abi.ExportChapters)
	if err != nil {
		return nil, err
	}

	d := decoder{mem: s.inst.Memory()}
	chapters := d.chapters(ptr, count, 0)
	if d.err != nil {
		return nil, d.err
	}
	return chapters, nil
}

// Tags decodes every tag.
func (s *Session) Tags(ctx context.Context) ([]mkv.Tag, error) {
	s.inst.mu.Lock()
	defer s.inst.mu.Unlock()

	ptr, count, err := s.list(ctx, abi.ExportTags)
	if err != nil {
		return nil, err
	}

	d := decoder{mem: s.inst.Memory()}
	tags := d.tags(ptr, count)
	if d.err != nil {
		return nil, d.err
	}
	return tags, nil
}

// list calls an export that reports an array through two out-parameters.
func (s *Session) list(ctx context.Context, export string) (uint32, uint32, error) {
	mem := s.inst.Memory()

	out, err := mem.Alloc(ctx, 8)
	if err != nil {
		return 0, 0, err
	}
	defer func() { _ = mem.Free(ctx, out) }()

	if _, err := s.inst.call(ctx, export, uint64(s.file), uint64(out), uint64(out+4)); err != nil {
		return 0, 0, err
	}

	ptr, ok1 := mem.Uint32(out)
	count, ok2 := mem.Uint32(out + 4)
	if !ok1 || !ok2 {
		return 0, 0, &MemoryAccessError{Operation: "read", Address: out, Length: 8, Err: errors.New("out of range")}
	}
	return ptr, count, nil
}

// decoder walks parser structs in guest memory. The first failure sticks and
// later reads return zero values.
type decoder struct {
	mem *Memory
	err error
}

func (d *decoder) fail(op string, addr, length uint32) {
	if d.err == nil {
		d.err = &MemoryAccessError{Operation: op, Address: addr, Length: length, Err: errors.New("out of range")}
	}
}

// record copies one struct so later guest calls cannot move it.
func (d *decoder) record(ptr, size uint32) []byte {
	b, ok := d.mem.CopyBytes(ptr, size)
	if !ok || b == nil {
		d.fail("read", ptr, size)
		return make([]byte, size)
	}
	return b
}

// span returns count when count records of size bytes at ptr fit in guest
// memory. Otherwise it fails and returns 0, so a corrupt count can neither
// size an allocation nor drive a loop.
func (d *decoder) span(ptr, count, size uint32) uint32 {
	if count == 0 || d.err != nil {
		return 0
	}
	if uint64(ptr)+uint64(count)*uint64(size) > uint64(d.mem.Size()) {
		d.fail("read-array", ptr, count)
		return 0
	}
	return count
}

func (d *decoder) cstring(ptr uint32) string {
	s, ok := d.mem.ReadCString(ptr)
	if !ok {
		d.fail("read-string", ptr, 0)
	}
	return s
}

func (d *decoder) bytes(ptr, length uint32) []byte {
	b, ok := d.mem.CopyBytes(ptr, length)
	if !ok {
		d.fail("read", ptr, length)
	}
	return b
}

func (d *decoder) track(ptr uint32) *mkv.TrackInfo {
	b := d.record(ptr, fields.TrackInfoSize)

	ti := &mkv.TrackInfo{}
	fields.ApplyTrack(b, ti)
	ti.Name = d.cstring(uint32(fields.TrackName.Uint(b)))
	ti.CodecID = d.cstring(uint32(fields.TrackCodecID.Uint(b)))
	ti.CodecPrivate = d.bytes(
		uint32(fields.TrackCodecPrivate.Uint(b)),
		uint32(fields.TrackCodecPrivateSize.Uint(b)),
	)
	ti.CompMethodPrivate = d.bytes(
		uint32(fields.TrackCompMethodPrivate.Uint(b)),
		uint32(fields.TrackCompMethodPrivateSize.Uint(b)),
	)
	return ti
}

func (d *decoder) chapters(ptr, count uint32, depth int) []*mkv.Chapter {
	if count == 0 {
		return nil
	}
	if depth > maxChapterDepth {
		d.fail("chapter-depth", ptr, count)
		return nil
	}

	count = d.span(ptr, count, fields.ChapterSize)
	if count == 0 {
		return nil
	}

	out := make([]*mkv.Chapter, 0, count)
	for i := uint32(0); i < count && d.err == nil; i++ {
		out = append(out, d.chapter(ptr+i*fields.ChapterSize, depth))
	}
	return out
}

func (d *decoder) chapter(ptr uint32, depth int) *mkv.Chapter {
	b := d.record(ptr, fields.ChapterSize)

	c := &mkv.Chapter{
		UID:     fields.ChapterUID.Uint(b),
		Start:   fields.ChapterStart.Uint(b),
		End:     fields.ChapterEnd.Uint(b),
		Hidden:  fields.ChapterHidden.Bool(b),
		Enabled: fields.ChapterEnabled.Bool(b),
	}
	if depth == 0 {
		c.Default = fields.EditionDefault.Bool(b)
		c.Ordered = fields.EditionOrdered.Bool(b)
	}
	copy(c.SegmentUID[:], fields.ChapterSegmentUID.Bytes(b))

	tracks := uint32(fields.ChapterTracks.Uint(b))
	nTracks := d.span(tracks, uint32(fields.ChapterNTracks.Uint(b)), 8)
	for i := uint32(0); i < nTracks && d.err == nil; i++ {
		raw := d.record(tracks+i*8, 8)
		c.Tracks = append(c.Tracks, trackUID.Uint(raw))
	}

	display := uint32(fields.ChapterDisplay.Uint(b))
	nDisplay := d.span(display, uint32(fields.ChapterNDisplay.Uint(b)), fields.ChapterDisplaySize)
	for i := uint32(0); i < nDisplay && d.err == nil; i++ {
		db := d.record(display+i*fields.ChapterDisplaySize, fields.ChapterDisplaySize)
		c.Display = append(c.Display, mkv.ChapterDisplay{
			String:   d.cstring(uint32(fields.DisplayString.Uint(db))),
			Language: fields.DisplayLanguage.String(db),
			Country:  fields.DisplayCountry.String(db),
		})
	}

	process := uint32(fields.ChapterProcess.Uint(b))
	nProcess := d.span(process, uint32(fields.ChapterNProcess.Uint(b)), fields.ChapterProcessSize)
	for i := uint32(0); i < nProcess && d.err == nil; i++ {
		c.Process = append(c.Process, d.process(process+i*fields.ChapterProcessSize))
	}

	c.Children = d.chapters(
		uint32(fields.ChapterChildren.Uint(b)),
		uint32(fields.ChapterNChildren.Uint(b)),
		depth+1,
	)
	return c
}

func (d *decoder) process(ptr uint32) mkv.ChapterProcess {
	b := d.record(ptr, fields.ChapterProcessSize)

	p := mkv.ChapterProcess{
		CodecID: uint32(fields.ProcessCodecID.Uint(b)),
		CodecPrivate: d.bytes(
			uint32(fields.ProcessCodecPrivate.Uint(b)),
			uint32(fields.ProcessCodecPrivateSize.Uint(b)),
		),
	}

	commands := uint32(fields.ProcessCommands.Uint(b))
	nCommands := d.span(commands, uint32(fields.ProcessNCommands.Uint(b)), fields.ChapterCommandSize)
	for i := uint32(0); i < nCommands && d.err == nil; i++ {
		cb := d.record(commands+i*fields.ChapterCommandSize, fields.ChapterCommandSize)
		p.Commands = append(p.Commands, mkv.ChapterCommand{
			Time:    uint32(fields.CommandTime.Uint(cb)),
			Command: d.bytes(uint32(fields.CommandData.Uint(cb)), uint32(fields.CommandLength.Uint(cb))),
		})
	}
	return p
}

func (d *decoder) tags(ptr, count uint32) []mkv.Tag {
	count = d.span(ptr, count, fields.TagSize)
	if count == 0 {
		return nil
	}

	out := make([]mkv.Tag, 0, count)
	for i := uint32(0); i < count && d.err == nil; i++ {
		b := d.record(ptr+i*fields.TagSize, fields.TagSize)

		var tag mkv.Tag
		targets := uint32(fields.TagTargets.Uint(b))
		nTargets := d.span(targets, uint32(fields.TagNTargets.Uint(b)), fields.TargetSize)
		for j := uint32(0); j < nTargets && d.err == nil; j++ {
			tb := d.record(targets+j*fields.TargetSize, fields.TargetSize)
			tag.Targets = append(tag.Targets, mkv.Target{
				UID:  fields.TargetUID.Uint(tb),
				Type: uint32(fields.TargetType.Uint(tb)),
			})
		}

		simple := uint32(fields.TagSimpleTags.Uint(b))
		nSimple := d.span(simple, uint32(fields.TagNSimpleTags.Uint(b)), fields.SimpleTagSize)
		for j := uint32(0); j < nSimple && d.err == nil; j++ {
			sb := d.record(simple+j*fields.SimpleTagSize, fields.SimpleTagSize)
			tag.SimpleTags = append(tag.SimpleTags, mkv.SimpleTag{
				Name:     d.cstring(uint32(fields.SimpleTagName.Uint(sb))),
				Value:    d.cstring(uint32(fields.SimpleTagValue.Uint(sb))),
				Language: fields.SimpleTagLanguage.String(sb),
				Default:  fields.SimpleTagDefault.Bool(sb),
			})
		}
		out = append(out, tag)
	}
	return out
}
