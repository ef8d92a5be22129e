package mkvio

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestReaderTableRegistration(t *testing.T) {
	table := NewReaderTable(zap.NewNop())
	key, _ := NewKey("k1")

	if err := table.Add(key, bytes.NewReader(nil)); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	err := table.Add(key, bytes.NewReader(nil))
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		t.Errorf("expected DuplicateKeyError, got %T", err)
	}

	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}

	table.Remove(key)
	if _, err := table.Get(key); err == nil {
		t.Error("Get() should fail after Remove()")
	}

	if err := table.Add(Key{}, bytes.NewReader(nil)); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Add() with empty key = %v, want ErrInvalidKey", err)
	}

	var unknown *UnknownKeyError
	if _, err := table.Get(key); !errors.As(err, &unknown) {
		t.Errorf("expected UnknownKeyError, got %T", err)
	}
}

func TestReaderTableCallbacks(t *testing.T) {
	table := NewReaderTable(zaptest.NewLogger(t))
	key, _ := NewKey("file")
	r := bytes.NewReader([]byte("0123456789"))
	if err := table.Add(key, r); err != nil {
		t.Fatal(err)
	}

	if got := table.Seek(key, 4); got != 0 {
		t.Fatalf("Seek() = %d, want 0", got)
	}

	buf := make([]byte, 3)
	if n := table.Read(key, buf); n != 3 || string(buf) != "456" {
		t.Errorf("Read() = %d %q, want 3 \"456\"", n, buf)
	}

	if size := table.Size(key); size != 10 {
		t.Errorf("Size() = %d, want 10", size)
	}

	// Size must not move the reader.
	if n := table.Read(key, buf); n != 3 || string(buf) != "789" {
		t.Errorf("Read() after Size() = %d %q, want 3 \"789\"", n, buf)
	}

	// Short read at end of input.
	if n := table.Read(key, buf); n != 0 {
		t.Errorf("Read() at EOF = %d, want 0", n)
	}
}

func TestReaderTableUnknownKey(t *testing.T) {
	table := NewReaderTable(zap.NewNop())
	key, _ := NewKey("missing")

	if table.Seek(key, 0) >= 0 {
		t.Error("Seek() on unknown key should fail")
	}
	if table.Read(key, make([]byte, 1)) >= 0 {
		t.Error("Read() on unknown key should fail")
	}
	if table.Size(key) >= 0 {
		t.Error("Size() on unknown key should fail")
	}
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

func TestReaderTableReadError(t *testing.T) {
	table := NewReaderTable(zap.NewNop())
	key, _ := NewKey("bad")
	table.Add(key, Streaming(failingReader{}))

	if n := table.Read(key, make([]byte, 4)); n != -1 {
		t.Errorf("Read() = %d, want -1", n)
	}
}

func TestStreamingSeeker(t *testing.T) {
	table := NewReaderTable(zap.NewNop())
	key, _ := NewKey("pipe")
	table.Add(key, Streaming(strings.NewReader("stream")))

	if table.Seek(key, 2) != -1 {
		t.Error("Seek() on streaming input should fail")
	}
	if table.Size(key) != -1 {
		t.Error("Size() on streaming input should fail")
	}

	buf := make([]byte, 6)
	if n := table.Read(key, buf); n != 6 || string(buf) != "stream" {
		t.Errorf("Read() = %d %q", n, buf)
	}

	if _, err := Streaming(strings.NewReader("")).Seek(0, io.SeekStart); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("expected ErrNotSeekable, got %v", err)
	}
}

func TestIOWithReaderTable(t *testing.T) {
	table := NewReaderTable(zap.NewNop())
	name := NewKeyString()
	key, _ := NewKey(name)
	table.Add(key, bytes.NewReader([]byte("hello, matroska")))

	c := Alloc()
	c.SetCallbacks(name, table)
	defer c.Release()

	buf := make([]byte, 8)
	if n := c.Read(7, buf); n != 8 || string(buf) != "matroska" {
		t.Errorf("Read() = %d %q", n, buf)
	}
	if c.FileSize() != 15 {
		t.Errorf("FileSize() = %d, want 15", c.FileSize())
	}
	if n := c.Read(0, buf[:5]); n != 5 || string(buf[:5]) != "hello" {
		t.Errorf("Read() = %d %q", n, buf[:5])
	}
}
