package mkvio

import (
	"errors"
	"io"
)

// Reader exposes an InputStream as an io.ReadSeeker for Go consumers.
//
// It keeps its own offset and passes it on every call, so the stream sees the
// same position contract the parser would produce.
type Reader struct {
	s     InputStream
	off   uint64
	size  int64
	sized bool
}

// NewReader creates a reader starting at offset 0.
func NewReader(s InputStream) *Reader {
	return &Reader{s: s}
}

// Read implements io.Reader.
func (r *Reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	n := r.s.Read(r.off, p)
	if n < 0 {
		return 0, &StreamError{Op: "read", Offset: r.off, Msg: r.s.Error()}
	}
	if n == 0 {
		return 0, io.EOF
	}
	r.off += uint64(n)

	if r.s.Progress(r.off, r.max()) == 0 {
		return n, ErrCanceled
	}
	return n, nil
}

// Seek implements io.Seeker. Only the offset changes; the stream is asked to
// move on the next Read.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(r.off)
	case io.SeekEnd:
		size := r.s.FileSize()
		if size < 0 {
			return 0, &StreamError{Op: "size", Offset: r.off, Msg: r.s.Error()}
		}
		base = size
	default:
		return 0, errors.New("mkvio: invalid whence")
	}

	abs := base + offset
	if abs < 0 {
		return 0, errors.New("mkvio: negative position")
	}
	r.off = uint64(abs)
	return abs, nil
}

// Offset returns the current read offset.
func (r *Reader) Offset() uint64 {
	return r.off
}

// max returns the stream size for progress reports, or 0 when unknown.
func (r *Reader) max() uint64 {
	if !r.sized {
		r.size = r.s.FileSize()
		r.sized = true
	}
	if r.size < 0 {
		return 0
	}
	return uint64(r.size)
}
