package mkvio

// InputStream is the abstract input the parser reads through. It mirrors the
// parser's table of nine callbacks. Failure is signalled only through negative
// sentinels (or nil for allocations); there is no error value across this
// boundary.
type InputStream interface {
	// Read reads len(buf) bytes at pos. Returns bytes read, 0 at end of
	// input, or -1.
	Read(pos uint64, buf []byte) int

	// Scan searches for a 4-byte signature from start. Returns its offset or -1.
	Scan(start uint64, signature uint32) int64

	// CacheSize is the read-ahead size the parser should use.
	CacheSize() uint32

	// Error describes the last failure.
	Error() string

	MemAlloc(size int) []byte
	MemRealloc(mem []byte, size int) []byte
	MemFree(mem []byte)

	// Progress is called during long operations. Returning 0 cancels.
	Progress(cur, max uint64) int

	// FileSize returns the total input size or a negative value if unknown.
	FileSize() int64
}

const (
	// DefaultCacheSize is the fixed value returned by IO.CacheSize.
	DefaultCacheSize = 64 * 1024

	// ErrorText is the only error text the IO record ever reports.
	ErrorText = "input stream error"
)
