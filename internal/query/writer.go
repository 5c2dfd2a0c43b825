package query

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// writer is the big-endian encoder mirroring reader.
type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) u8(v uint8) { w.buf.WriteByte(v) }

func (w *writer) u16(v uint16) { w.buf.Write(binary.BigEndian.AppendUint16(nil, v)) }

func (w *writer) u32(v uint32) { w.buf.Write(binary.BigEndian.AppendUint32(nil, v)) }

func (w *writer) u64(v uint64) { w.buf.Write(binary.BigEndian.AppendUint64(nil, v)) }

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) raw(b []byte) { w.buf.Write(b) }

func (w *writer) bytes(b []byte) {
	if uint64(len(b)) > math.MaxUint32 && w.err == nil {
		w.err = fmt.Errorf("field of %d bytes exceeds u32 length", len(b))
		return
	}

	w.u32(uint32(len(b)))
	w.buf.Write(b)
}

// count writes a u8 element count.
func (w *writer) count(n int, what string) {
	if n > math.MaxUint8 && w.err == nil {
		w.err = fmt.Errorf("too many %s: %d > 255", what, n)
	}

	w.u8(uint8(n))
}

func (w *writer) result() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}

	return w.buf.Bytes(), nil
}
