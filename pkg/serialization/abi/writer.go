package abi

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// Writer encodes the wire format into a growing buffer. Encoding cannot fail
// on well-formed values; the only error case is a big integer that does not
// fit its fixed field width.
type Writer struct {
	buf   []byte
	order byteOrder
}

// NewLittleEndianWriter returns a writer for state-snapshot encoding.
func NewLittleEndianWriter() *Writer {
	return &Writer{order: littleEndian}
}

// NewBigEndianWriter returns a writer for action-payload encoding.
func NewBigEndianWriter() *Writer {
	return &Writer{order: bigEndian}
}

// Bytes returns the encoded buffer.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) WriteU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(1)
	} else {
		w.WriteU8(0)
	}
}

func (w *Writer) WriteU32(v uint32) {
	w.buf = w.order.order().AppendUint32(w.buf, v)
}

func (w *Writer) WriteI32(v int32) {
	w.WriteU32(uint32(v))
}

func (w *Writer) WriteU64(v uint64) {
	w.buf = w.order.order().AppendUint64(w.buf, v)
}

func (w *Writer) WriteI64(v int64) {
	w.WriteU64(uint64(v))
}

// WriteU128 writes a fixed 16-byte unsigned integer in the writer's byte
// order. Values above 2^128-1 are rejected.
func (w *Writer) WriteU128(v *uint256.Int) error {
	if !FitsU128(v) {
		return fmt.Errorf("abi: value %s does not fit in 16 bytes", v)
	}
	be := v.Bytes32()
	field := be[32-U128Length:]
	if w.order == littleEndian {
		for i := U128Length - 1; i >= 0; i-- {
			w.buf = append(w.buf, field[i])
		}
	} else {
		w.buf = append(w.buf, field...)
	}
	return nil
}

func (w *Writer) WriteAddress(a Address) {
	w.buf = append(w.buf, a[:]...)
}

// WriteBytesFixed writes raw bytes with no length prefix.
func (w *Writer) WriteBytesFixed(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteLength writes an i32 vector length prefix.
func (w *Writer) WriteLength(n int) error {
	if n > math.MaxInt32 {
		return fmt.Errorf("abi: length %d exceeds i32 prefix", n)
	}
	w.WriteI32(int32(n))
	return nil
}

// WriteString writes an i32-length-prefixed UTF-8 string.
func (w *Writer) WriteString(s string) error {
	if err := w.WriteLength(len(s)); err != nil {
		return err
	}
	w.buf = append(w.buf, s...)
	return nil
}

// WriteOption writes a presence byte and, if v is non-nil, the value itself.
func WriteOption[T any](w *Writer, v *T, elem func(*Writer, T) error) error {
	w.WriteBool(v != nil)
	if v == nil {
		return nil
	}
	return elem(w, *v)
}

// WriteVec writes an i32-length-prefixed vector.
func WriteVec[T any](w *Writer, vs []T, elem func(*Writer, T) error) error {
	if err := w.WriteLength(len(vs)); err != nil {
		return err
	}
	for _, v := range vs {
		if err := elem(w, v); err != nil {
			return err
		}
	}
	return nil
}
