package wasm

import (
	"context"
	"errors"

	"github.com/tetratelabs/wazero/api"

	abi "github.com/woxQAQ/mkvbridge/api/wasm"
)

// maxCString bounds ReadCString so a missing terminator cannot walk the whole
// linear memory.
const maxCString = 1 << 20

// Memory provides checked access to a guest's linear memory.
//
// Reads are bounds-checked by wazero and report failure through the ok result.
// Writes go through the guest's own allocator (malloc/free exports), so every
// address handed back is owned by the guest and must be released with Free.
//
// CopyBytes copies out of guest memory, so results stay valid when the guest
// later grows or reuses its memory.
type Memory struct {
	mod api.Module
	mem api.Memory
}

// NewMemory creates a memory helper.
func NewMemory(module api.Module) *Memory {
	return &Memory{mod: module, mem: module.Memory()}
}

// ReadString reads a null-terminated string from Wasm memory.
func (m *Memory) ReadString(ptr uint32, maxLen uint32) (string, bool) {
	buf, ok := m.mem.Read(ptr, maxLen)
	if !ok {
		return "", false
	}

	end := len(buf)
	for i, b := range buf {
		if b == 0 {
			end = i
			break
		}
	}

	return string(buf[:end]), true
}

// ReadCString reads the NUL-terminated string at ptr without a known length.
// A null pointer reads as the empty string.
func (m *Memory) ReadCString(ptr uint32) (string, bool) {
	if ptr == 0 {
		return "", true
	}

	size := m.mem.Size()
	if ptr >= size {
		return "", false
	}

	limit := size - ptr
	if limit > maxCString {
		limit = maxCString
	}
	for n := uint32(0); n < limit; n++ {
		b, ok := m.mem.ReadByte(ptr + n)
		if !ok {
			return "", false
		}
		if b == 0 {
			buf, _ := m.mem.Read(ptr, n)
			return string(buf), true
		}
	}
	return "", false
}

// Size returns the current size of linear memory in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// CopyBytes reads length bytes at ptr into a new Go slice. A null pointer or
// zero length yields nil.
func (m *Memory) CopyBytes(ptr uint32, length uint32) ([]byte, bool) {
	if ptr == 0 || length == 0 {
		return nil, true
	}
	view, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), view...), true
}

// Alloc reserves size bytes with the guest's malloc.
func (m *Memory) Alloc(ctx context.Context, size uint32) (uint32, error) {
	fn := m.mod.ExportedFunction(abi.ExportMalloc)
	if fn == nil {
		return 0, &FunctionNotFoundError{ModuleName: m.mod.Name(), FunctionName: abi.ExportMalloc}
	}

	res, err := fn.Call(ctx, uint64(size))
	if err != nil {
		return 0, &CallError{FunctionName: abi.ExportMalloc, Err: err}
	}

	ptr := uint32(res[0])
	if ptr == 0 && size != 0 {
		return 0, &MemoryAccessError{
			Operation: "alloc",
			Length:    size,
			Err:       errors.New("guest allocator returned null"),
		}
	}
	return ptr, nil
}

// Free releases a block obtained from Alloc. Freeing null is a no-op.
func (m *Memory) Free(ctx context.Context, ptr uint32) error {
	if ptr == 0 {
		return nil
	}

	fn := m.mod.ExportedFunction(abi.ExportFree)
	if fn == nil {
		return &FunctionNotFoundError{ModuleName: m.mod.Name(), FunctionName: abi.ExportFree}
	}
	if _, err := fn.Call(ctx, uint64(ptr)); err != nil {
		return &CallError{FunctionName: abi.ExportFree, Err: err}
	}
	return nil
}

// WriteBytes copies data into a fresh guest allocation.
// Returns pointer and length.
func (m *Memory) WriteBytes(ctx context.Context, data []byte) (uint32, uint32, error) {
	length := uint32(len(data))

	ptr, err := m.Alloc(ctx, length)
	if err != nil {
		return 0, 0, err
	}

	if !m.mem.Write(ptr, data) {
		_ = m.Free(ctx, ptr)
		return 0, 0, &MemoryAccessError{
			Operation: "write",
			Address:   ptr,
			Length:    length,
			Err:       errors.New("out of range"),
		}
	}
	return ptr, length, nil
}

// WriteString copies s plus a NUL terminator into a fresh guest allocation.
// The returned length excludes the terminator.
func (m *Memory) WriteString(ctx context.Context, s string) (uint32, uint32, error) {
	buf := make([]byte, len(s)+1)
	copy(buf, s)

	ptr, _, err := m.WriteBytes(ctx, buf)
	if err != nil {
		return 0, 0, err
	}
	return ptr, uint32(len(s)), nil
}

// Uint32 reads a little-endian 32-bit value.
func (m *Memory) Uint32(ptr uint32) (uint32, bool) {
	return m.mem.ReadUint32Le(ptr)
}
