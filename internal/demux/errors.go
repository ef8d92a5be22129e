package demux

import "fmt"

// ParseError occurs when the input is not a readable Matroska file.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse matroska file: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// TrackRangeError occurs when a track index is out of range.
type TrackRangeError struct {
	Track int
	Count int
}

func (e *TrackRangeError) Error() string {
	return fmt.Sprintf("track %d out of range (file has %d tracks)", e.Track, e.Count)
}

// AllocError occurs when the stream refuses a packet buffer.
type AllocError struct {
	Size int
}

func (e *AllocError) Error() string {
	return fmt.Sprintf("stream could not allocate %d bytes", e.Size)
}
