package abi

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveRoundTrip(t *testing.T) {
	addr := Address{0x01, 0xaa, 0xbb}
	amount := new(uint256.Int).SetUint64(18446744073709551615)
	amount.Mul(amount, uint256.NewInt(7))

	w := NewLittleEndianWriter()
	w.WriteU8(0x42)
	w.WriteBool(true)
	w.WriteU32(123456)
	w.WriteI32(-7)
	w.WriteU64(1 << 40)
	w.WriteI64(-1234567890)
	require.NoError(t, w.WriteU128(amount))
	w.WriteAddress(addr)
	require.NoError(t, w.WriteString("lottery"))

	r := NewLittleEndianReader(w.Bytes())

	u8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0x42), u8)

	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	u32, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(123456), u32)

	i32, err := r.ReadI32()
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i32)

	u64, err := r.ReadU64()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<40), u64)

	i64, err := r.ReadI64()
	require.NoError(t, err)
	assert.Equal(t, int64(-1234567890), i64)

	u128, err := r.ReadU128()
	require.NoError(t, err)
	assert.True(t, amount.Eq(u128))

	got, err := r.ReadAddress()
	require.NoError(t, err)
	assert.Equal(t, addr, got)

	s, err := r.ReadString()
	require.NoError(t, err)
	assert.Equal(t, "lottery", s)

	require.NoError(t, r.Finish())
}

func TestU128Bounds(t *testing.T) {
	max := new(uint256.Int).SetAllOne()
	max.Rsh(max, 128)
	assert.True(t, FitsU128(max))

	for _, order := range []struct {
		name   string
		writer func() *Writer
		reader func([]byte) *Reader
	}{
		{"little endian", NewLittleEndianWriter, NewLittleEndianReader},
		{"big endian", NewBigEndianWriter, NewBigEndianReader},
	} {
		t.Run(order.name, func(t *testing.T) {
			w := order.writer()
			require.NoError(t, w.WriteU128(max))
			require.Len(t, w.Bytes(), U128Length)

			got, err := order.reader(w.Bytes()).ReadU128()
			require.NoError(t, err)
			assert.True(t, max.Eq(got))
		})
	}

	over := new(uint256.Int).Add(max, uint256.NewInt(1))
	assert.False(t, FitsU128(over))
	err := NewLittleEndianWriter().WriteU128(over)
	assert.Error(t, err)
}

func TestU128ByteOrder(t *testing.T) {
	v := uint256.NewInt(0x0102)

	w := NewLittleEndianWriter()
	require.NoError(t, w.WriteU128(v))
	le := w.Bytes()
	assert.Equal(t, byte(0x02), le[0])
	assert.Equal(t, byte(0x01), le[1])

	w = NewBigEndianWriter()
	require.NoError(t, w.WriteU128(v))
	be := w.Bytes()
	assert.Equal(t, byte(0x01), be[U128Length-2])
	assert.Equal(t, byte(0x02), be[U128Length-1])
}

func TestTruncatedInputReportsOffset(t *testing.T) {
	w := NewLittleEndianWriter()
	w.WriteU32(7)
	buf := w.Bytes()

	r := NewLittleEndianReader(buf)
	_, err := r.ReadU32()
	require.NoError(t, err)

	_, err = r.ReadU64()
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 4, decodeErr.Offset)
}

func TestInvalidBool(t *testing.T) {
	r := NewLittleEndianReader([]byte{0x05, 0x02})
	_, err := r.ReadU8()
	require.NoError(t, err)

	_, err = r.ReadBool()
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 1, decodeErr.Offset)
	assert.Equal(t, uint64(2), decodeErr.Value)
}

func TestLengthPrefix(t *testing.T) {
	t.Run("negative", func(t *testing.T) {
		w := NewLittleEndianWriter()
		w.WriteI32(-1)
		_, err := NewLittleEndianReader(w.Bytes()).ReadLength()
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, 0, decodeErr.Offset)
	})

	t.Run("oversized", func(t *testing.T) {
		w := NewLittleEndianWriter()
		w.WriteI32(1000)
		w.WriteU8(0)
		_, err := NewLittleEndianReader(w.Bytes()).ReadLength()
		var decodeErr *DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, uint64(1000), decodeErr.Value)
	})
}

func TestStringRejectsInvalidUTF8(t *testing.T) {
	w := NewLittleEndianWriter()
	w.WriteI32(2)
	w.WriteU8(0xff)
	w.WriteU8(0xfe)

	_, err := NewLittleEndianReader(w.Bytes()).ReadString()
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestOptionRoundTrip(t *testing.T) {
	seven := uint32(7)

	w := NewLittleEndianWriter()
	writeU32 := func(w *Writer, v uint32) error {
		w.WriteU32(v)
		return nil
	}
	require.NoError(t, WriteOption(w, &seven, writeU32))
	require.NoError(t, WriteOption[uint32](w, nil, writeU32))

	r := NewLittleEndianReader(w.Bytes())
	got, err := ReadOption(r, (*Reader).ReadU32)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, seven, *got)

	got, err = ReadOption(r, (*Reader).ReadU32)
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, r.Finish())
}

func TestVecRoundTrip(t *testing.T) {
	values := []uint64{1, 1 << 20, 1 << 62}

	w := NewBigEndianWriter()
	require.NoError(t, WriteVec(w, values, func(w *Writer, v uint64) error {
		w.WriteU64(v)
		return nil
	}))

	r := NewBigEndianReader(w.Bytes())
	got, err := ReadVec(r, (*Reader).ReadU64)
	require.NoError(t, err)
	assert.Equal(t, values, got)
	require.NoError(t, r.Finish())
}

func TestFinishReportsTrailingBytes(t *testing.T) {
	r := NewLittleEndianReader([]byte{0x01, 0x02})
	_, err := r.ReadU8()
	require.NoError(t, err)

	err = r.Finish()
	var decodeErr *DecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, 1, decodeErr.Offset)
}

func TestUnknownDiscriminantError(t *testing.T) {
	err := UnknownDiscriminantError(9, 0x7f)
	assert.Equal(t, 9, err.Offset)
	assert.Equal(t, uint64(0x7f), err.Value)
	assert.Contains(t, err.Error(), "0x7f")
}
