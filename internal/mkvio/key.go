package mkvio

import (
	"strings"

	"github.com/google/uuid"
)

// KeySize is the maximum length of a correlation key. A UUID string is exactly
// this long.
const KeySize = 36

// Key is the correlation key that ties an IO record to a host-side resource.
// It is a fixed-size value so it can be copied into parser memory and compared
// without allocation.
type Key struct {
	buf [KeySize]byte
	n   uint8
}

// NewKey builds a key from s. Input is cut at the first NUL byte, and anything
// beyond KeySize bytes is dropped; truncated reports whether that happened.
func NewKey(s string) (k Key, truncated bool) {
	if i := strings.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	truncated = len(s) > KeySize
	k.n = uint8(copy(k.buf[:], s))
	return k, truncated
}

// NewKeyString returns a fresh random key string.
func NewKeyString() string {
	return uuid.New().String()
}

// String returns the key text.
func (k Key) String() string {
	return string(k.buf[:k.n])
}

// Len returns the key length in bytes.
func (k Key) Len() int {
	return int(k.n)
}

// IsZero reports whether the key is empty.
func (k Key) IsZero() bool {
	return k.n == 0
}

// Bytes returns the NUL-terminated KeySize+1 byte form used in guest IO records.
func (k Key) Bytes() []byte {
	b := make([]byte, KeySize+1)
	copy(b, k.buf[:k.n])
	return b
}
