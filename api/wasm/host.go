//go:build !wasm

package wasm

import (
	"context"

	"github.com/tetratelabs/wazero/api"
)

// HostFunctions is the Go side of the "mkvio" import module. mod is the
// calling guest; io is the guest address of its IO record.
type HostFunctions interface {
	Read(ctx context.Context, mod api.Module, io uint32, pos uint64, buf, count uint32) int32
	Scan(ctx context.Context, mod api.Module, io uint32, start uint64, signature uint32) int64
	GetCacheSize(ctx context.Context, mod api.Module, io uint32) uint32
	GetError(ctx context.Context, mod api.Module, io uint32) uint32
	MemAlloc(ctx context.Context, mod api.Module, io, size uint32) uint32
	MemRealloc(ctx context.Context, mod api.Module, io, mem, size uint32) uint32
	MemFree(ctx context.Context, mod api.Module, io, mem uint32)
	Progress(ctx context.Context, mod api.Module, io uint32, cur, max uint64) int32
	GetFileSize(ctx context.Context, mod api.Module, io uint32) int64
}
