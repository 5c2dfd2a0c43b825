package query

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// reader is a strict big-endian cursor. The first failure sticks and every
// later read returns zero values.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(buf []byte) *reader {
	return &reader{buf: buf}
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("offset %d: %s", r.off, fmt.Sprintf(format, args...))
	}
}

func (r *reader) take(n int, what string) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.fail("%s: need %d bytes, have %d", what, n, len(r.buf)-r.off)
		return nil
	}

	b := r.buf[r.off : r.off+n]
	r.off += n

	return b
}

func (r *reader) u8(what string) uint8 {
	b := r.take(1, what)
	if b == nil {
		return 0
	}

	return b[0]
}

func (r *reader) u16(what string) uint16 {
	b := r.take(2, what)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint16(b)
}

func (r *reader) u32(what string) uint32 {
	b := r.take(4, what)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint32(b)
}

func (r *reader) u64(what string) uint64 {
	b := r.take(8, what)
	if b == nil {
		return 0
	}

	return binary.BigEndian.Uint64(b)
}

func (r *reader) bool(what string) bool {
	switch v := r.u8(what); v {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("%s: invalid bool %d", what, v)
		return false
	}
}

// bytes reads a u32 length followed by that many bytes. The result is a copy.
func (r *reader) bytes(what string) []byte {
	n := r.u32(what + " length")
	b := r.take(int(n), what)
	if b == nil {
		return nil
	}

	return append([]byte{}, b...)
}

func (r *reader) string(what string) string {
	b := r.bytes(what)
	if b != nil && !utf8.Valid(b) {
		r.fail("%s: invalid utf-8", what)
	}

	return string(b)
}

func (r *reader) fixed(dst []byte, what string) {
	if b := r.take(len(dst), what); b != nil {
		copy(dst, b)
	}
}

// sub reads a u32 length and returns a reader scoped to that many bytes.
func (r *reader) sub(what string) *reader {
	n := r.u32(what + " length")
	b := r.take(int(n), what)
	if r.err != nil {
		return &reader{err: r.err}
	}

	return newReader(b)
}

// finish fails unless the reader consumed its whole buffer.
func (r *reader) finish(what string) error {
	if r.err == nil && r.off != len(r.buf) {
		r.fail("%s: %d trailing bytes", what, len(r.buf)-r.off)
	}

	return r.err
}
