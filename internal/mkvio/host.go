package mkvio

import (
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"
)

// Host is the set of callbacks an IO record forwards to. Every call names the
// resource by key. Negative results signal failure.
type Host interface {
	// Seek positions the resource at pos. Returns 0 or a negative value.
	Seek(key Key, pos uint64) int

	// Read reads up to len(buf) bytes. Returns the count or a negative value.
	Read(key Key, buf []byte) int

	// Size returns the resource size or a negative value.
	Size(key Key) int64
}

// ReaderTable is a Host backed by io.ReadSeekers registered under keys.
//
// Parser callbacks carry only a key, never a Go pointer, so the resource has
// to be found again on every call. Lookups take a read lock; only Add and
// Remove contend.
type ReaderTable struct {
	mu      sync.RWMutex
	readers map[Key]io.ReadSeeker
	logger  *zap.Logger
}

var _ Host = (*ReaderTable)(nil)

// NewReaderTable creates an empty table.
func NewReaderTable(logger *zap.Logger) *ReaderTable {
	return &ReaderTable{
		readers: make(map[Key]io.ReadSeeker),
		logger:  logger.With(zap.String("component", "mkvio-host")),
	}
}

// Add registers r under key.
func (t *ReaderTable) Add(key Key, r io.ReadSeeker) error {
	if key.IsZero() {
		return ErrInvalidKey
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.readers[key]; exists {
		return &DuplicateKeyError{Key: key.String()}
	}
	t.readers[key] = r
	return nil
}

// Remove unregisters key. Unknown keys are ignored.
func (t *ReaderTable) Remove(key Key) {
	t.mu.Lock()
	delete(t.readers, key)
	t.mu.Unlock()
}

// Get returns the reader registered under key.
func (t *ReaderTable) Get(key Key) (io.ReadSeeker, error) {
	t.mu.RLock()
	r, ok := t.readers[key]
	t.mu.RUnlock()

	if !ok {
		return nil, &UnknownKeyError{Key: key.String()}
	}
	return r, nil
}

// Len returns the number of registered readers.
func (t *ReaderTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.readers)
}

// Seek implements Host.
func (t *ReaderTable) Seek(key Key, pos uint64) int {
	r, err := t.Get(key)
	if err != nil {
		t.logger.Debug("Seek on unknown key", zap.Error(err))
		return -1
	}

	if _, err := r.Seek(int64(pos), io.SeekStart); err != nil {
		t.logger.Debug("Seek failed",
			zap.String("key", key.String()),
			zap.Uint64("pos", pos),
			zap.Error(err),
		)
		return -1
	}
	return 0
}

// Read implements Host. It keeps reading until buf is full or the reader hits
// end of input, so a short count always means end of data.
func (t *ReaderTable) Read(key Key, buf []byte) int {
	r, err := t.Get(key)
	if err != nil {
		t.logger.Debug("Read on unknown key", zap.Error(err))
		return -1
	}

	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		t.logger.Debug("Read failed",
			zap.String("key", key.String()),
			zap.Int("size", len(buf)),
			zap.Error(err),
		)
		return -1
	}
	return n
}

// Size implements Host. The reader's offset is restored afterwards.
func (t *ReaderTable) Size(key Key) int64 {
	r, err := t.Get(key)
	if err != nil {
		t.logger.Debug("Size on unknown key", zap.Error(err))
		return -1
	}

	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}

	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}

	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		t.logger.Warn("Failed to restore offset after size query",
			zap.String("key", key.String()),
			zap.Error(err),
		)
		return -1
	}
	return end
}

// Streaming wraps a plain reader for hosts that require an io.ReadSeeker.
// Every Seek fails with ErrNotSeekable, so the parser must be opened with
// seeking disabled.
func Streaming(r io.Reader) io.ReadSeeker {
	return &streamingSeeker{r: r}
}

type streamingSeeker struct {
	r io.Reader
}

func (s *streamingSeeker) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func (s *streamingSeeker) Seek(offset int64, whence int) (int64, error) {
	return -1, ErrNotSeekable
}
