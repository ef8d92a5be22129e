package wasm

// Guest ABI shared by the host (internal/wasm) and parser modules built for
// WebAssembly. All addresses and lengths are 32-bit guest offsets.

// ABIVersion is the value a plugin manifest must declare in abi_version.
const ABIVersion = 1

// ImportModule is the host module name the parser imports its stream
// callbacks from.
const ImportModule = "mkvio"

// Host imports, one per input-stream slot. Each takes the guest address of the
// IO record as its first argument.
const (
	ImportRead         = "read"         // (io i32, pos i64, buf i32, count i32) -> i32
	ImportScan         = "scan"         // (io i32, start i64, signature i32) -> i64
	ImportGetCacheSize = "getcachesize" // (io i32) -> i32
	ImportGetError     = "geterror"     // (io i32) -> i32, address of a NUL-terminated string
	ImportMemAlloc     = "memalloc"     // (io i32, size i32) -> i32
	ImportMemRealloc   = "memrealloc"   // (io i32, mem i32, size i32) -> i32
	ImportMemFree      = "memfree"      // (io i32, mem i32)
	ImportProgress     = "progress"     // (io i32, cur i64, max i64) -> i32
	ImportGetFileSize  = "getfilesize"  // (io i32) -> i64
)

// Imports lists every host import in slot order.
var Imports = []string{
	ImportRead, ImportScan, ImportGetCacheSize, ImportGetError, ImportMemAlloc,
	ImportMemRealloc, ImportMemFree, ImportProgress, ImportGetFileSize,
}

// Guest exports.
const (
	ExportMalloc  = "malloc"  // (size i32) -> i32
	ExportRealloc = "realloc" // (ptr i32, size i32) -> i32
	ExportFree    = "free"    // (ptr i32)

	ExportIOAlloc        = "io_alloc"         // () -> i32, zeroed IO record
	ExportIOFree         = "io_free"          // (io i32)
	ExportIOSetCallbacks = "io_set_callbacks" // (io i32, key i32), key is NUL-terminated

	ExportOpen      = "mkv_open"       // (io i32, flags i32, errbuf i32, errlen i32) -> i32, 0 on failure
	ExportClose     = "mkv_close"      // (file i32)
	ExportNumTracks = "mkv_num_tracks" // (file i32) -> i32
	ExportTrackInfo = "mkv_track_info" // (file i32, n i32) -> i32, 0 if out of range
	ExportChapters  = "mkv_chapters"   // (file i32, outptr i32, outcount i32)
	ExportTags      = "mkv_tags"       // (file i32, outptr i32, outcount i32)
)

// RequiredExports must all be present for a module to be used as a parser.
var RequiredExports = []string{
	ExportMalloc, ExportRealloc, ExportFree,
	ExportIOAlloc, ExportIOFree, ExportIOSetCallbacks,
	ExportOpen, ExportClose, ExportNumTracks, ExportTrackInfo,
	ExportChapters, ExportTags,
}

// Layout of the guest IO record: the nine stream slots (function table
// indices), the tracked position, then the key with its NUL terminator.
const (
	PosOffset    = 40
	KeyOffset    = 48
	KeyCapacity  = 37
	IORecordSize = 88
)

// ErrorBufferSize is the size of the buffer the host passes to mkv_open for
// the parser's error message.
const ErrorBufferSize = 256
