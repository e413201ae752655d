package jt809

import (
	"encoding/binary"
	"encoding/hex"
	"strconv"
	"strings"
)

func (r *Reader) ReadByte() (byte, error) {
	b, err := r.Read(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadStart reads the begin flag.
func (r *Reader) ReadStart() (byte, error) { return r.ReadByte() }

// ReadEnd reads the end flag.
func (r *Reader) ReadEnd() (byte, error) { return r.ReadByte() }

func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.Read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.Read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.ReadUint32()
	return int32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) {
	b, err := r.Read(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) ReadInt64() (int64, error) {
	v, err := r.ReadUint64()
	return int64(v), err
}

func (r *Reader) PeekByte() (byte, error) {
	b, err := r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) PeekUint16() (uint16, error) {
	b, err := r.Peek(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) PeekInt16() (int16, error) {
	v, err := r.PeekUint16()
	return int16(v), err
}

func (r *Reader) PeekUint32() (uint32, error) {
	b, err := r.Peek(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) PeekInt32() (int32, error) {
	v, err := r.PeekUint32()
	return int32(v), err
}

// PeekUint32Back reads a uint32 that starts back bytes before the cursor,
// falling back to the cursor itself when back reaches before the buffer.
func (r *Reader) PeekUint32Back(back int) (uint32, error) {
	b, err := r.PeekBack(back, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) PeekUint64() (uint64, error) {
	b, err := r.Peek(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) PeekInt64() (int64, error) {
	v, err := r.PeekUint64()
	return int64(v), err
}

// ReadString reads a fixed-length text field in the reader's charset and
// trims its NUL padding.
func (r *Reader) ReadString(n int) (string, error) {
	b, err := r.Read(n)
	if err != nil {
		return "", err
	}
	return r.text(b)
}

// ReadRemainingString reads the rest of the content as text.
func (r *Reader) ReadRemainingString() (string, error) {
	b, err := r.ReadContent(0)
	if err != nil {
		return "", err
	}
	return r.text(b)
}

func (r *Reader) text(b []byte) (string, error) {
	s, err := r.opts.Charset.NewDecoder().Bytes(b)
	if err != nil {
		return "", err
	}
	return strings.Trim(string(s), "\x00"), nil
}

// ReadHex reads n bytes as an uppercase hex string.
func (r *Reader) ReadHex(n int) (string, error) {
	b, err := r.Read(n)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// ReadBCD reads a BCD field of digits decimal digits, two per byte, and
// returns the nibbles as text. An odd digit count rounds down.
func (r *Reader) ReadBCD(digits int) (string, error) {
	return r.ReadHex(digits / 2)
}

// ReadBigNumber reads n big-endian bytes as an unsigned number and returns it
// in decimal. Fields wider than 8 bytes wrap: each shift is taken mod 64.
func (r *Reader) ReadBigNumber(n int) (string, error) {
	b, err := r.Read(n)
	if err != nil {
		return "", err
	}
	var v uint64
	for i, c := range b {
		v += uint64(c) << (uint(8*(n-i-1)) & 63)
	}
	return strconv.FormatUint(v, 10), nil
}
