package wasm

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
	"github.com/woxQAQ/mkvbridge/internal/mkvio"
)

// HostFunctionsImpl implements the "mkvio" import module.
//
// The parser only ever hands back the guest address of its IO record. Every
// slot reads the correlation key stored in that record and finds the Go-side
// mkvio.IO registered under it; the IO then talks to the readers table.
type HostFunctionsImpl struct {
	logger  *zap.Logger
	readers *mkvio.ReaderTable

	// key -> *binding
	sessions sync.Map
}

var _ abi.HostFunctions = (*HostFunctionsImpl)(nil)

// binding is the host state of one open stream.
type binding struct {
	io *mkvio.IO

	// errPtr is the guest copy of the error text, written on first use.
	errPtr uint32
}

// NewHostFunctions creates a new host functions implementation.
func NewHostFunctions(logger *zap.Logger) *HostFunctionsImpl {
	return &HostFunctionsImpl{
		logger:  logger.With(zap.String("component", "wasm-host")),
		readers: mkvio.NewReaderTable(logger),
	}
}

// Readers returns the table the registered IO records read from.
func (h *HostFunctionsImpl) Readers() *mkvio.ReaderTable {
	return h.readers
}

// Register makes io reachable from guest calls carrying its key.
func (h *HostFunctionsImpl) Register(io *mkvio.IO) error {
	key := io.Key()
	if _, loaded := h.sessions.LoadOrStore(key, &binding{io: io}); loaded {
		return &mkvio.DuplicateKeyError{Key: key.String()}
	}
	return nil
}

// Unregister drops the binding for key and returns the guest address of its
// error text, if one was written, so the caller can free it.
func (h *HostFunctionsImpl) Unregister(key mkvio.Key) uint32 {
	v, ok := h.sessions.LoadAndDelete(key)
	if !ok {
		return 0
	}
	return v.(*binding).errPtr
}

// lookup resolves the IO record at ioPtr in the calling guest.
func (h *HostFunctionsImpl) lookup(mod api.Module, fn string, ioPtr uint32) (*binding, bool) {
	raw, ok := mod.Memory().Read(ioPtr+abi.KeyOffset, abi.KeyCapacity)
	if !ok {
		h.logger.Debug("IO record out of range",
			zap.String("function", fn),
			zap.Uint32("io", ioPtr),
		)
		return nil, false
	}

	key, _ := mkvio.NewKey(string(raw))
	v, ok := h.sessions.Load(key)
	if !ok {
		h.logger.Debug("Call for unregistered key",
			zap.String("function", fn),
			zap.String("key", key.String()),
		)
		return nil, false
	}
	return v.(*binding), true
}

// Read passes a view of guest memory straight to the IO record.
// Signature: read(io, pos, buf, count) -> count | 0 at end | -1
func (h *HostFunctionsImpl) Read(ctx context.Context, mod api.Module, io uint32, pos uint64, buf, count uint32) int32 {
	if count == 0 {
		return 0
	}

	b, ok := h.lookup(mod, abi.ImportRead, io)
	if !ok {
		return -1
	}

	view, ok := mod.Memory().Read(buf, count)
	if !ok {
		h.logger.Error("Read buffer out of range",
			zap.Uint32("buf", buf),
			zap.Uint32("count", count),
		)
		return -1
	}

	return int32(b.io.Read(pos, view))
}

// Scan is not supported and always returns -1.
func (h *HostFunctionsImpl) Scan(ctx context.Context, mod api.Module, io uint32, start uint64, signature uint32) int64 {
	b, ok := h.lookup(mod, abi.ImportScan, io)
	if !ok {
		return -1
	}
	return b.io.Scan(start, signature)
}

// GetCacheSize returns the fixed read-ahead size, for unknown keys too.
func (h *HostFunctionsImpl) GetCacheSize(ctx context.Context, mod api.Module, io uint32) uint32 {
	b, ok := h.lookup(mod, abi.ImportGetCacheSize, io)
	if !ok {
		return mkvio.DefaultCacheSize
	}
	return b.io.CacheSize()
}

// GetError returns the guest address of the error text. The text is copied
// into guest memory once per stream and freed on Unregister.
func (h *HostFunctionsImpl) GetError(ctx context.Context, mod api.Module, io uint32) uint32 {
	b, ok := h.lookup(mod, abi.ImportGetError, io)
	if !ok {
		return 0
	}
	if b.errPtr != 0 {
		return b.errPtr
	}

	ptr, _, err := NewMemory(mod).WriteString(ctx, b.io.Error())
	if err != nil {
		h.logger.Error("Failed to write error text",
			zap.Error(&HostFunctionError{FunctionName: abi.ImportGetError, Err: err}),
		)
		return 0
	}
	b.errPtr = ptr
	return ptr
}

// MemAlloc forwards to the guest's malloc. Parser memory has to live in the
// guest's own address space, so the Go heap cannot serve it.
func (h *HostFunctionsImpl) MemAlloc(ctx context.Context, mod api.Module, io, size uint32) uint32 {
	return h.callGuest(ctx, mod, abi.ExportMalloc, uint64(size))
}

// MemRealloc forwards to the guest's realloc.
func (h *HostFunctionsImpl) MemRealloc(ctx context.Context, mod api.Module, io, mem, size uint32) uint32 {
	return h.callGuest(ctx, mod, abi.ExportRealloc, uint64(mem), uint64(size))
}

// MemFree forwards to the guest's free.
func (h *HostFunctionsImpl) MemFree(ctx context.Context, mod api.Module, io, mem uint32) {
	h.callGuest(ctx, mod, abi.ExportFree, uint64(mem))
}

// Progress never cancels.
func (h *HostFunctionsImpl) Progress(ctx context.Context, mod api.Module, io uint32, cur, max uint64) int32 {
	b, ok := h.lookup(mod, abi.ImportProgress, io)
	if !ok {
		return 1
	}
	return int32(b.io.Progress(cur, max))
}

// GetFileSize returns the host resource size unchanged.
func (h *HostFunctionsImpl) GetFileSize(ctx context.Context, mod api.Module, io uint32) int64 {
	b, ok := h.lookup(mod, abi.ImportGetFileSize, io)
	if !ok {
		return -1
	}
	return b.io.FileSize()
}

// callGuest calls a guest allocator export and returns its first result, or 0
// on any failure.
func (h *HostFunctionsImpl) callGuest(ctx context.Context, mod api.Module, name string, params ...uint64) uint32 {
	fn := mod.ExportedFunction(name)
	if fn == nil {
		h.logger.Error("Guest export missing", zap.String("function", name))
		return 0
	}

	res, err := fn.Call(ctx, params...)
	if err != nil {
		h.logger.Error("Guest allocator call failed",
			zap.Error(&HostFunctionError{FunctionName: name, Err: err}),
		)
		return 0
	}
	if len(res) == 0 {
		return 0
	}
	return uint32(res[0])
}

