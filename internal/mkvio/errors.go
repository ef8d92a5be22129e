package mkvio

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSeekable is returned by the seeker wrapped around a plain reader.
	ErrNotSeekable = errors.New("mkvio: input is not seekable")

	// ErrCanceled is returned by Reader when the stream's progress hook asks
	// to stop.
	ErrCanceled = errors.New("mkvio: canceled by progress hook")

	// ErrInvalidKey is returned when registering a resource under an empty key.
	ErrInvalidKey = errors.New("mkvio: empty correlation key")
)

// UnknownKeyError occurs when a host callback names a key with no resource.
type UnknownKeyError struct {
	Key string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("no reader registered for key '%s'", e.Key)
}

// DuplicateKeyError occurs when a key is registered twice.
type DuplicateKeyError struct {
	Key string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("reader for key '%s' is already registered", e.Key)
}

// StreamError occurs when an InputStream reports a failure sentinel.
type StreamError struct {
	Op     string
	Offset uint64
	Msg    string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream %s failed at offset %d: %s", e.Op, e.Offset, e.Msg)
}
