package abi

import (
	"math"
	"unicode/utf8"

	"github.com/holiman/uint256"
)

// Reader decodes the wire format from a byte buffer, tracking the cursor
// offset so decode failures can report where they happened. Multi-byte
// integers follow the reader's byte order.
type Reader struct {
	buf   []byte
	off   int
	order byteOrder
}

// NewLittleEndianReader returns a reader for state-snapshot encoding.
func NewLittleEndianReader(buf []byte) *Reader {
	return &Reader{buf: buf, order: littleEndian}
}

// NewBigEndianReader returns a reader for action-payload encoding.
func NewBigEndianReader(buf []byte) *Reader {
	return &Reader{buf: buf, order: bigEndian}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int {
	return r.off
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.off
}

// Finish fails unless the buffer has been fully consumed.
func (r *Reader) Finish() error {
	if r.off != len(r.buf) {
		return &DecodeError{
			Offset: r.off,
			Value:  uint64(r.buf[r.off]),
			Msg:    "trailing bytes after value",
		}
	}
	return nil
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.Remaining() < n {
		return nil, truncatedError(r.off, n, r.Remaining())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadBool() (bool, error) {
	off := r.off
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &DecodeError{Offset: off, Value: uint64(b), Msg: "invalid boolean byte"}
	}
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return r.order.order().Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return r.order.order().Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

// ReadU128 reads a fixed 16-byte unsigned integer in the reader's byte order.
func (r *Reader) ReadU128() (*uint256.Int, error) {
	b, err := r.take(U128Length)
	if err != nil {
		return nil, err
	}
	v := new(uint256.Int)
	if r.order == bigEndian {
		v.SetBytes(b)
	} else {
		le := make([]byte, U128Length)
		for i, c := range b {
			le[U128Length-1-i] = c
		}
		v.SetBytes(le)
	}
	return v, nil
}

func (r *Reader) ReadAddress() (Address, error) {
	b, err := r.take(AddressLength)
	if err != nil {
		return Address{}, err
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// ReadBytesFixed reads exactly n raw bytes.
func (r *Reader) ReadBytesFixed(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// ReadLength reads an i32 vector length prefix, rejecting negative or
// impossibly large values before any element is decoded.
func (r *Reader) ReadLength() (int, error) {
	off := r.off
	n, err := r.ReadI32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, &DecodeError{Offset: off, Value: uint64(uint32(n)), Msg: "negative length prefix"}
	}
	if int(n) > r.Remaining() {
		return 0, &DecodeError{Offset: off, Value: uint64(n), Msg: "length prefix exceeds input"}
	}
	return int(n), nil
}

// ReadString reads an i32-length-prefixed UTF-8 string.
func (r *Reader) ReadString() (string, error) {
	off := r.off
	n, err := r.ReadLength()
	if err != nil {
		return "", err
	}
	b, err := r.take(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", &DecodeError{Offset: off, Msg: "string is not valid UTF-8"}
	}
	return string(b), nil
}

// ReadOption reads a presence byte and, if set, decodes a value with elem.
func ReadOption[T any](r *Reader, elem func(*Reader) (T, error)) (*T, error) {
	present, err := r.ReadBool()
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, nil
	}
	v, err := elem(r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ReadVec reads an i32-length-prefixed vector, decoding each element with elem.
func ReadVec[T any](r *Reader, elem func(*Reader) (T, error)) ([]T, error) {
	n, err := r.ReadLength()
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := elem(r)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

var maxU128 = func() *uint256.Int {
	v := new(uint256.Int).SetUint64(math.MaxUint64)
	return v.Or(v, new(uint256.Int).Lsh(v, 64))
}()

// FitsU128 reports whether v can be encoded in 16 bytes.
func FitsU128(v *uint256.Int) bool {
	return v.Cmp(maxU128) <= 0
}
