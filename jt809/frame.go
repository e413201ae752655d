// Package jt809 decodes JT809 vehicle telemetry frames.
//
// On the wire a frame is
//
//	0x5B | header | body | crc (2 bytes, big-endian) | 0x5D
//
// with every 0x5B, 0x5A, 0x5D and 0x5E between the flags stuffed:
//
//	0x5B -> 0x5A 0x01
//	0x5A -> 0x5A 0x02
//	0x5D -> 0x5E 0x01
//	0x5E -> 0x5E 0x02
//
// The CRC is CRC-16/CCITT-FALSE over the unstuffed header and body.
package jt809

import (
	"bufio"
	"encoding/binary"
)

// MaxFrameSize caps ReadFrame. Frames are normally well under 1KB.
const MaxFrameSize = 64 * 1024

// ReadFrame reads one encoded frame, flags included, from r.
//
// If the next byte is not a begin flag it is consumed and ErrInvalidFrame is
// returned, so calling again walks forward to the next frame.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	start, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if start != BeginFlag {
		return nil, ErrInvalidFrame
	}

	// Stuffing keeps both flags out of the body, so the frame ends at the
	// first end flag. A begin flag before it means the previous frame was
	// cut short.
	buff := []byte{BeginFlag}
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == BeginFlag {
			_ = r.UnreadByte()
			return nil, ErrInvalidFrame
		}

		buff = append(buff, b)
		if b == EndFlag {
			return buff, nil
		}
		if len(buff) >= MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
	}
}

// Frame wraps content (header and body) into an encoded frame: it appends
// the CRC, stuffs, and adds the flags.
func Frame(content []byte) []byte {
	withCRC := make([]byte, len(content)+2)
	copy(withCRC, content)
	binary.BigEndian.PutUint16(withCRC[len(content):], CRC16(content))

	escaped := Escape(withCRC)
	out := make([]byte, 0, len(escaped)+2)
	out = append(out, BeginFlag)
	out = append(out, escaped...)
	return append(out, EndFlag)
}
