package mkvio

// IO is the per-session context record handed to the parser.
//
// It tracks the logical stream position, carries the correlation key and
// forwards to a Host. One IO serves exactly one open file and is not safe for
// concurrent use.
type IO struct {
	pos  uint64
	key  Key
	host Host
}

var _ InputStream = (*IO)(nil)

// Alloc returns a zeroed IO record.
func Alloc() *IO {
	return new(IO)
}

// SetCallbacks resets the position, stores key and installs host. The key is
// truncated to KeySize bytes; truncated reports whether that happened. It is
// never an error.
func (c *IO) SetCallbacks(key string, host Host) (truncated bool) {
	c.pos = 0
	c.key, truncated = NewKey(key)
	c.host = host
	return truncated
}

// Release drops the record's references. The record must not be used again.
func (c *IO) Release() {
	c.pos = 0
	c.key = Key{}
	c.host = nil
}

// Key returns the correlation key.
func (c *IO) Key() Key {
	return c.key
}

// Pos returns the tracked stream position.
func (c *IO) Pos() uint64 {
	return c.pos
}

// Read implements InputStream. A position that differs from the tracked one
// costs exactly one host seek; the position only moves on confirmed success.
func (c *IO) Read(pos uint64, buf []byte) int {
	if len(buf) == 0 {
		return 0
	}

	if pos != c.pos {
		if c.host.Seek(c.key, pos) < 0 {
			return -1
		}
		c.pos = pos
	}

	n := c.host.Read(c.key, buf)
	if n < 0 {
		return -1
	}
	c.pos += uint64(n)

	return n
}

// Scan is not supported.
func (c *IO) Scan(start uint64, signature uint32) int64 {
	return -1
}

// CacheSize always returns DefaultCacheSize.
func (c *IO) CacheSize() uint32 {
	return DefaultCacheSize
}

// Error always returns ErrorText. Failure detail stays on the host side.
// TODO: carry the last host failure once Host can report one.
func (c *IO) Error() string {
	return ErrorText
}

// MemAlloc allocates from the Go heap. A negative size yields nil.
func (c *IO) MemAlloc(size int) []byte {
	if size < 0 {
		return nil
	}
	return make([]byte, size)
}

// MemRealloc resizes mem, preserving its contents up to the new size.
func (c *IO) MemRealloc(mem []byte, size int) []byte {
	if size < 0 {
		return nil
	}
	if size <= cap(mem) {
		return mem[:size]
	}
	grown := make([]byte, size)
	copy(grown, mem)
	return grown
}

// MemFree is a no-op; the garbage collector owns the memory.
func (c *IO) MemFree(mem []byte) {}

// Progress never cancels.
func (c *IO) Progress(cur, max uint64) int {
	return 1
}

// FileSize asks the host for the resource size.
func (c *IO) FileSize() int64 {
	return c.host.Size(c.key)
}
