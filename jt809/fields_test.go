package jt809

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestReadIntegers(t *testing.T) {
	r := NewReader([]byte{
		0x7F,
		0x01, 0x02,
		0xFF, 0xFE,
		0x01, 0x02, 0x03, 0x04,
		0xFF, 0xFF, 0xFF, 0xFD,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00,
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFC,
	})

	b, err := r.ReadByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0x7F), b)

	u16, err := r.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0102), u16)

	i16, err := r.ReadInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x01020304), u32)

	i32, err := r.ReadInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-3), i32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(256), u64)

	i64, err := r.ReadInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-4), i64)

	assert.Equal(t, 0, r.Len())
}

func TestPeekIntegers(t *testing.T) {
	r := NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFE, 0x00, 0x00, 0x00, 0x01})

	b, err := r.PeekByte()
	require.NoError(t, err)
	assert.Equal(t, byte(0xFF), b)

	u16, err := r.PeekUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFF), u16)

	i16, err := r.PeekInt16()
	require.NoError(t, err)
	assert.Equal(t, int16(-1), i16)

	u32, err := r.PeekUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xFFFFFFFE), u32)

	i32, err := r.PeekInt32()
	require.NoError(t, err)
	assert.Equal(t, int32(-2), i32)

	u64, err := r.PeekUint64()
	require.NoError(t, err)
	assert.Equal(t, uint64(0xFFFFFFFE00000001), u64)

	i64, err := r.PeekInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(-0x1FFFFFFFF), i64)

	assert.Equal(t, 0, r.Pos())

	require.NoError(t, r.Skip(6))
	_, err = r.PeekUint32()
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func TestReadString(t *testing.T) {
	plate, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("京A12345"))
	require.NoError(t, err)
	field := make([]byte, 21)
	copy(field, plate)

	r := NewReader(append(field, 'x'))
	s, err := r.ReadString(21)
	require.NoError(t, err)
	assert.Equal(t, "京A12345", s)
	assert.Equal(t, 21, r.Pos())

	_, err = r.ReadString(2)
	assert.True(t, errors.Is(err, ErrShortBuffer))
}

func TestReadRemainingString(t *testing.T) {
	r := NewReader([]byte{'o', 'k', 0x00, 0x00})
	s, err := r.ReadRemainingString()
	require.NoError(t, err)
	assert.Equal(t, "ok", s)
	assert.Equal(t, 4, r.Pos())
}

func TestReadHex(t *testing.T) {
	r := NewReader([]byte{0x0A, 0xBC, 0x01})
	s, err := r.ReadHex(3)
	require.NoError(t, err)
	assert.Equal(t, "0ABC01", s)
}

func TestReadBCD(t *testing.T) {
	r := NewReader([]byte{0x13, 0x80, 0x01, 0x99})
	s, err := r.ReadBCD(4)
	require.NoError(t, err)
	assert.Equal(t, "1380", s)

	// odd digit counts round down
	s, err = r.ReadBCD(3)
	require.NoError(t, err)
	assert.Equal(t, "01", s)
	assert.Equal(t, 3, r.Pos())
}

func TestReadBigNumber(t *testing.T) {
	r := NewReader([]byte{0x01, 0x00, 0x01})
	s, err := r.ReadBigNumber(3)
	require.NoError(t, err)
	assert.Equal(t, "65537", s)

	r = NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	s, err = r.ReadBigNumber(8)
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", s)
}

func TestReadBigNumberWraps(t *testing.T) {
	// byte 0 of a 9-byte field shifts by 64, which wraps to 0
	r := NewReader([]byte{0x01, 0, 0, 0, 0, 0, 0, 0, 0x02})
	s, err := r.ReadBigNumber(9)
	require.NoError(t, err)
	assert.Equal(t, "3", s)
}
