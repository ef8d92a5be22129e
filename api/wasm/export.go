//go:build wasm

package wasm

// This file documents the exports a parser module must provide. Parsers are
// usually C code built with wasi-sdk as a reactor; a Go port would use
// //go:wasmexport.
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. 64-bit positions stay i64.
//
// //go:wasmexport malloc
// func malloc(size uint32) uint32
//
// //go:wasmexport io_set_callbacks
// func ioSetCallbacks(io, key uint32)
//
// //go:wasmexport mkv_open
// func mkvOpen(io, flags, errbuf, errlen uint32) uint32
//
// //go:wasmexport mkv_track_info
// func mkvTrackInfo(file, n uint32) uint32
//
// The stream slots are imported from the "mkvio" module:
//
// //go:wasmimport mkvio read
// func read(io uint32, pos uint64, buf, count uint32) int32
