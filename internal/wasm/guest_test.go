package wasm

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"
)

// allocModule exports one page of memory and a bump allocator:
//
//	(global $top (mut i32) (i32.const 1024))
//	(func (export "malloc") (param i32) (result i32)
//	  global.get $top  global.get $top  local.get 0  i32.add  global.set $top)
//	(func (export "free") (param i32))
//	(func (export "realloc") (param i32 i32) (result i32)
//	  local.get 1  call 0)
var allocModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32)->i32, (i32)->(), (i32,i32)->i32
	0x01, 0x10, 0x03,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x00,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	// function
	0x03, 0x04, 0x03, 0x00, 0x01, 0x02,
	// memory: 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// global: mut i32 = 1024
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x08, 0x0b,
	// export
	0x07, 0x24, 0x04,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x06, 'm', 'a', 'l', 'l', 'o', 'c', 0x00, 0x00,
	0x04, 'f', 'r', 'e', 'e', 0x00, 0x01,
	0x07, 'r', 'e', 'a', 'l', 'l', 'o', 'c', 0x00, 0x02,
	// code
	0x0a, 0x17, 0x03,
	0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b,
	0x02, 0x00, 0x0b,
	0x06, 0x00, 0x20, 0x01, 0x10, 0x00, 0x0b,
}

// memoryModule only exports one page of memory.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x05, 0x03, 0x01, 0x00, 0x01,
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
}

// parserModule is a stub parser exporting every required function:
//
//	(import "mkvio" "read" (func $read (param i32 i64 i32 i32) (result i32)))
//	(import "mkvio" "geterror" (func $geterror (param i32) (result i32)))
//	malloc, realloc: bump allocator from 4096, as allocModule
//	(func (export "free") (param i32) (i32.store (i32.const 8) (local.get 0)))
//	(func (export "io_alloc") (result i32) (call $malloc (i32.const 88)))
//	(func (export "io_set_callbacks") (param i32 i32)
//	  (memory.copy (i32.add (local.get 0) (i32.const 48)) (local.get 1) (i32.const 37)))
//	(func (export "mkv_open") (param i32 i32 i32 i32) (result i32)
//	  (if (result i32) (i32.eq (call $read (local.get 0) (i64.const 0) (i32.const 512) (i32.const 4)) (i32.const 4))
//	    (then (i32.const 512))
//	    (else (memory.copy (local.get 2) (call $geterror (local.get 0)) (i32.const 19)) (i32.const 0))))
//	(func (export "mkv_num_tracks") (param i32) (result i32) (i32.const 1))
//	(func (export "mkv_track_info") (param i32 i32) (result i32)
//	  (if (result i32) (local.get 1) (then (i32.const 0)) (else (i32.const 2048))))
//	mkv_chapters, mkv_tags: store 0 to both out-parameters
//	io_free, mkv_close: no-ops
//
// Address 8 holds the last pointer passed to free.
var parserModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	// type: (i32)->i32, (i32)->(), (i32,i32)->i32, ()->i32, (i32,i32)->(),
	// (i32,i32,i32,i32)->i32, (i32,i32,i32)->(), (i32,i64,i32,i32)->i32
	0x01, 0x2f, 0x08,
	0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x60, 0x01, 0x7f, 0x00,
	0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x00, 0x01, 0x7f,
	0x60, 0x02, 0x7f, 0x7f, 0x00,
	0x60, 0x04, 0x7f, 0x7f, 0x7f, 0x7f, 0x01, 0x7f,
	0x60, 0x03, 0x7f, 0x7f, 0x7f, 0x00,
	0x60, 0x04, 0x7f, 0x7e, 0x7f, 0x7f, 0x01, 0x7f,
	// import: mkvio.read, mkvio.geterror
	0x02, 0x1f, 0x02,
	0x05, 'm', 'k', 'v', 'i', 'o', 0x04, 'r', 'e', 'a', 'd', 0x00, 0x07,
	0x05, 'm', 'k', 'v', 'i', 'o', 0x08, 'g', 'e', 't', 'e', 'r', 'r', 'o', 'r', 0x00, 0x00,
	// function
	0x03, 0x0d, 0x0c, 0x00, 0x02, 0x01, 0x03, 0x01, 0x04, 0x05, 0x01, 0x00, 0x02, 0x06, 0x06,
	// memory: 1 page
	0x05, 0x03, 0x01, 0x00, 0x01,
	// global: mut i32 = 4096
	0x06, 0x07, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x20, 0x0b,
	// export
	0x07, 0x9f, 0x01, 0x0d,
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00,
	0x06, 'm', 'a', 'l', 'l', 'o', 'c', 0x00, 0x02,
	0x07, 'r', 'e', 'a', 'l', 'l', 'o', 'c', 0x00, 0x03,
	0x04, 'f', 'r', 'e', 'e', 0x00, 0x04,
	0x08, 'i', 'o', '_', 'a', 'l', 'l', 'o', 'c', 0x00, 0x05,
	0x07, 'i', 'o', '_', 'f', 'r', 'e', 'e', 0x00, 0x06,
	0x10, 'i', 'o', '_', 's', 'e', 't', '_', 'c', 'a', 'l', 'l', 'b', 'a', 'c', 'k', 's', 0x00, 0x07,
	0x08, 'm', 'k', 'v', '_', 'o', 'p', 'e', 'n', 0x00, 0x08,
	0x09, 'm', 'k', 'v', '_', 'c', 'l', 'o', 's', 'e', 0x00, 0x09,
	0x0e, 'm', 'k', 'v', '_', 'n', 'u', 'm', '_', 't', 'r', 'a', 'c', 'k', 's', 0x00, 0x0a,
	0x0e, 'm', 'k', 'v', '_', 't', 'r', 'a', 'c', 'k', '_', 'i', 'n', 'f', 'o', 0x00, 0x0b,
	0x0c, 'm', 'k', 'v', '_', 'c', 'h', 'a', 'p', 't', 'e', 'r', 's', 0x00, 0x0c,
	0x08, 'm', 'k', 'v', '_', 't', 'a', 'g', 's', 0x00, 0x0d,
	// code
	0x0a, 0x97, 0x01, 0x0c,
	0x0b, 0x00, 0x23, 0x00, 0x23, 0x00, 0x20, 0x00, 0x6a, 0x24, 0x00, 0x0b,
	0x06, 0x00, 0x20, 0x01, 0x10, 0x02, 0x0b,
	0x09, 0x00, 0x41, 0x08, 0x20, 0x00, 0x36, 0x02, 0x00, 0x0b,
	0x07, 0x00, 0x41, 0xd8, 0x00, 0x10, 0x02, 0x0b,
	0x02, 0x00, 0x0b,
	0x0f, 0x00, 0x20, 0x00, 0x41, 0x30, 0x6a, 0x20, 0x01, 0x41, 0x25, 0xfc, 0x0a, 0x00, 0x00, 0x0b,
	0x25, 0x00, 0x20, 0x00, 0x42, 0x00, 0x41, 0x80, 0x04, 0x41, 0x04, 0x10, 0x00, 0x41, 0x04, 0x46, 0x04, 0x7f,
	0x41, 0x80, 0x04, 0x05, 0x20, 0x02, 0x20, 0x00, 0x10, 0x01, 0x41, 0x13, 0xfc, 0x0a, 0x00, 0x00, 0x41, 0x00, 0x0b, 0x0b,
	0x02, 0x00, 0x0b,
	0x04, 0x00, 0x41, 0x01, 0x0b,
	0x0d, 0x00, 0x20, 0x01, 0x04, 0x7f, 0x41, 0x00, 0x05, 0x41, 0x80, 0x10, 0x0b, 0x0b,
	0x10, 0x00, 0x20, 0x01, 0x41, 0x00, 0x36, 0x02, 0x00, 0x20, 0x02, 0x41, 0x00, 0x36, 0x02, 0x00, 0x0b,
	0x10, 0x00, 0x20, 0x01, 0x41, 0x00, 0x36, 0x02, 0x00, 0x20, 0x02, 0x41, 0x00, 0x36, 0x02, 0x00, 0x0b,
}

// newGuest instantiates wasmBytes without the parser export check.
func newGuest(t *testing.T, wasmBytes []byte) (*Instance, *HostFunctionsImpl) {
	t.Helper()

	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	runtime, err := NewRuntime(ctx, logger, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { runtime.Close(context.Background()) })

	loader := NewModuleLoader(runtime, logger)
	if _, err := loader.LoadBytes(ctx, "guest", wasmBytes); err != nil {
		t.Fatalf("Failed to load guest: %v", err)
	}

	hostFuncs := NewHostFunctions(logger)
	manager := NewInstanceManager(runtime, hostFuncs, logger)

	instance, err := manager.Instantiate(ctx, &InstanceConfig{
		ModuleName:     "guest",
		SkipValidation: true,
	})
	if err != nil {
		t.Fatalf("Failed to instantiate guest: %v", err)
	}

	return instance, hostFuncs
}
