// Package fields reads parser-owned structs out of raw memory.
//
// The parser's records use C bitfields and unions, which no Go type can
// mirror directly. Instead every field is described once, by offset and kind,
// in a flat table, and read through a handful of typed getters. Offsets follow
// the little-endian wasm32 build of the parser (4-byte pointers, 8-byte aligned
// 64-bit values, bitfields allocated from the least significant bit).
//
// Reads never fail. The caller guarantees the view covers the whole struct, as
// the parser itself requires a valid non-null record.
package fields

import (
	"encoding/binary"
	"math"
)

// Kind is the storage type of a field.
type Kind uint8

const (
	U8 Kind = iota + 1
	U32
	U64
	F32
	F64
	// Ptr is a 32-bit guest address.
	Ptr
	// Bit is a single bit inside a 32-bit storage unit.
	Bit
	// Chars is a fixed-size, possibly NUL-terminated char array.
	Chars
)

func (k Kind) String() string {
	switch k {
	case U8:
		return "u8"
	case U32:
		return "u32"
	case U64:
		return "u64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	case Ptr:
		return "ptr"
	case Bit:
		return "bit"
	case Chars:
		return "chars"
	default:
		return "invalid"
	}
}

// Field describes one struct member.
type Field struct {
	Name   string
	Offset uint32
	Kind   Kind
	// Bit is the bit index for Bit fields.
	Bit uint8
	// Len is the array length for Chars fields.
	Len uint32
}

// Size returns the number of bytes the field's storage occupies.
func (f Field) Size() uint32 {
	switch f.Kind {
	case U8:
		return 1
	case U32, F32, Ptr, Bit:
		return 4
	case U64, F64:
		return 8
	case Chars:
		return f.Len
	default:
		return 0
	}
}

// Uint returns the field as an unsigned integer. Float fields are converted.
func (f Field) Uint(b []byte) uint64 {
	switch f.Kind {
	case U8:
		return uint64(b[f.Offset])
	case U32, Ptr:
		return uint64(le.Uint32(b[f.Offset:]))
	case U64:
		return le.Uint64(b[f.Offset:])
	case Bit:
		return uint64(le.Uint32(b[f.Offset:])>>f.Bit) & 1
	case F32, F64:
		return uint64(f.Float(b))
	default:
		return 0
	}
}

// Int returns the field sign-extended from its storage width.
func (f Field) Int(b []byte) int64 {
	switch f.Kind {
	case U8:
		return int64(int8(b[f.Offset]))
	case U32:
		return int64(int32(le.Uint32(b[f.Offset:])))
	case U64:
		return int64(le.Uint64(b[f.Offset:]))
	case F32, F64:
		return int64(f.Float(b))
	default:
		return int64(f.Uint(b))
	}
}

// Float returns the field as a float64. Integer fields are converted.
func (f Field) Float(b []byte) float64 {
	switch f.Kind {
	case F32:
		return float64(math.Float32frombits(le.Uint32(b[f.Offset:])))
	case F64:
		return math.Float64frombits(le.Uint64(b[f.Offset:]))
	case Chars:
		return 0
	default:
		return float64(f.Uint(b))
	}
}

// Float32 returns the field as a float32.
func (f Field) Float32(b []byte) float32 {
	if f.Kind == F32 {
		return math.Float32frombits(le.Uint32(b[f.Offset:]))
	}
	return float32(f.Float(b))
}

// Bool reports whether the field is non-zero.
func (f Field) Bool(b []byte) bool {
	return f.Uint(b) != 0
}

// String returns a Chars field up to its first NUL.
func (f Field) String(b []byte) string {
	if f.Kind != Chars {
		return ""
	}
	raw := b[f.Offset : f.Offset+f.Len]
	for i, c := range raw {
		if c == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

// Bytes returns a copy of the field's storage.
func (f Field) Bytes(b []byte) []byte {
	out := make([]byte, f.Size())
	copy(out, b[f.Offset:])
	return out
}

// Put stores v into the field. Used to build records in tests and when
// handing structs to the parser.
func (f Field) Put(b []byte, v uint64) {
	switch f.Kind {
	case U8:
		b[f.Offset] = byte(v)
	case U32, Ptr:
		le.PutUint32(b[f.Offset:], uint32(v))
	case U64:
		le.PutUint64(b[f.Offset:], v)
	case Bit:
		unit := le.Uint32(b[f.Offset:])
		unit &^= 1 << f.Bit
		unit |= uint32(v&1) << f.Bit
		le.PutUint32(b[f.Offset:], unit)
	case F32:
		le.PutUint32(b[f.Offset:], math.Float32bits(float32(v)))
	case F64:
		le.PutUint64(b[f.Offset:], math.Float64bits(float64(v)))
	}
}

// PutFloat stores a float field.
func (f Field) PutFloat(b []byte, v float64) {
	switch f.Kind {
	case F32:
		le.PutUint32(b[f.Offset:], math.Float32bits(float32(v)))
	case F64:
		le.PutUint64(b[f.Offset:], math.Float64bits(v))
	default:
		f.Put(b, uint64(v))
	}
}

// PutString stores s into a Chars field, NUL-padded and truncated to Len.
func (f Field) PutString(b []byte, s string) {
	if f.Kind != Chars {
		return
	}
	raw := b[f.Offset : f.Offset+f.Len]
	for i := range raw {
		raw[i] = 0
	}
	copy(raw, s)
}

var le = binary.LittleEndian

// Group is a named, ordered set of fields sharing one owning struct.
type Group struct {
	Name   string
	Fields []Field
}

// Lookup finds a field by name.
func (g *Group) Lookup(name string) (Field, bool) {
	for _, f := range g.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Names returns the field names in declaration order.
func (g *Group) Names() []string {
	names := make([]string, len(g.Fields))
	for i, f := range g.Fields {
		names[i] = f.Name
	}
	return names
}
