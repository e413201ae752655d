package jt809

import (
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// trailerLen is the checksum (2 bytes) plus the end flag (1 byte).
const trailerLen = 3

// Options control how a Reader interprets text and packed dates.
type Options struct {
	// Charset decodes fixed-length text fields. Defaults to GBK.
	Charset encoding.Encoding
	// Location is the zone packed dates are built in. Defaults to UTC+8.
	Location *time.Location
	// Now supplies the current date for the 5-byte time form.
	Now func() time.Time
}

var DefaultOptions = Options{
	Charset:  simplifiedchinese.GBK,
	Location: ChinaStandardTime,
	Now:      time.Now,
}

func (o Options) withDefaults() Options {
	if o.Charset == nil {
		o.Charset = DefaultOptions.Charset
	}
	if o.Location == nil {
		o.Location = DefaultOptions.Location
	}
	if o.Now == nil {
		o.Now = DefaultOptions.Now
	}
	return o
}

// Reader holds one frame and a read cursor over it. It is built over the
// encoded bytes and, after Decode or FullDecode, reads from its own decoded
// copy. Slices returned by reads alias that copy.
//
// A Reader is single use and not safe for concurrent use.
type Reader struct {
	src []byte
	buf []byte
	pos int

	calculated uint16
	real       uint16
	valid      bool

	decoded bool
	passed  bool

	opts Options
}

// NewReader creates a Reader over src. Until a decode pass runs, reads see
// src itself.
func NewReader(src []byte) *Reader {
	return NewReaderWithOptions(src, DefaultOptions)
}

func NewReaderWithOptions(src []byte, opts Options) *Reader {
	return &Reader{
		src:        src,
		buf:        src,
		calculated: CRCInit,
		opts:       opts.withDefaults(),
	}
}

// Decode unescapes a complete frame and computes its checksum in the same
// pass. The checksum covers the decoded bytes after the begin flag and before
// the trailing checksum and end flag. A mismatch is reported by
// ChecksumValid, not as an error.
func (r *Reader) Decode() error {
	if r.passed {
		return ErrAlreadyDecoded
	}
	r.passed = true

	out := make([]byte, len(r.src))
	n := 0
	// boundary is in encoded space and moves down one byte per collapsed
	// escape. A byte is folded once the following byte has been seen, so an
	// escape in the low checksum byte still pulls the boundary below the high
	// checksum byte before it is judged.
	boundary := len(r.src) - trailerLen
	pending := -1
	for i := 0; i < len(r.src); i++ {
		b := r.src[i]
		if v, ok := unescape(r.src[i:]); ok {
			b = v
			i++
			boundary--
		}
		if pending > 0 && pending < boundary {
			r.calculated = CRCStep(r.calculated, out[pending])
		}
		out[n] = b
		pending = n
		n++
	}
	if pending > 0 && pending < boundary {
		r.calculated = CRCStep(r.calculated, out[pending])
	}

	r.buf = out[:n]
	if n >= trailerLen {
		r.real = uint16(r.buf[n-3])<<8 | uint16(r.buf[n-2])
	}
	r.valid = n >= trailerLen && r.calculated == r.real
	r.decoded = true
	return nil
}

// FullDecode unescapes the whole source without checksum handling. It is used
// for bodies and other fragments that carry no frame trailer.
func (r *Reader) FullDecode() error {
	if r.passed {
		return ErrAlreadyDecoded
	}
	r.passed = true
	r.buf = Unescape(r.src)
	return nil
}

// Decoded reports whether a checksum-aware Decode has run.
func (r *Reader) Decoded() bool { return r.decoded }

// Checksum returns the checksum computed during Decode and the one carried by
// the frame.
func (r *Reader) Checksum() (calculated, real uint16) {
	return r.calculated, r.real
}

func (r *Reader) ChecksumValid() bool { return r.valid }

// Bytes returns the whole buffer the reader reads from.
func (r *Reader) Bytes() []byte { return r.buf }

// Pos returns the cursor.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of bytes after the cursor, trailer included.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

func (r *Reader) window(at, n int) ([]byte, error) {
	if n < 0 || at < 0 || at+n > len(r.buf) {
		avail := len(r.buf) - at
		if avail < 0 {
			avail = 0
		}
		return nil, &ReadError{Offset: at, Want: n, Available: avail}
	}
	return r.buf[at : at+n : at+n], nil
}

// Read returns the next n bytes and advances the cursor past them.
func (r *Reader) Read(n int) ([]byte, error) {
	b, err := r.window(r.pos, n)
	if err != nil {
		return nil, err
	}
	r.pos += n
	return b, nil
}

// Peek returns the next n bytes without moving the cursor.
func (r *Reader) Peek(n int) ([]byte, error) {
	return r.window(r.pos, n)
}

// PeekBack returns n bytes starting back bytes before the cursor, without
// moving it. When the cursor is closer than back to the start of the buffer
// the read happens at the cursor instead.
func (r *Reader) PeekBack(back, n int) ([]byte, error) {
	at := r.pos - back
	if at < 0 {
		at = r.pos
	}
	return r.window(at, n)
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.Read(n)
	return err
}

// RemainingLength returns the content length left after the cursor. In a
// decoded frame the checksum and end flag are not content.
func (r *Reader) RemainingLength() (int, error) {
	n := len(r.buf) - r.pos
	if r.decoded {
		n -= trailerLen
	}
	if n < 0 {
		return 0, ErrNegativeRemaining
	}
	return n, nil
}

// ReadContent returns the rest of the content, less reserve trailing bytes
// that belong to fields after it, and advances the cursor past it. Outside a
// decoded frame reserve is ignored and everything after the cursor is
// returned.
func (r *Reader) ReadContent(reserve int) ([]byte, error) {
	n := len(r.buf) - r.pos
	if r.decoded {
		n -= trailerLen + reserve
	}
	if n < 0 {
		return nil, ErrNegativeRemaining
	}
	return r.Read(n)
}

// Sub returns a Reader over the next n bytes and advances past them. The sub
// reader is not in decoded mode: its content runs to the end of its buffer.
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.Read(n)
	if err != nil {
		return nil, err
	}
	sub := NewReaderWithOptions(b, r.opts)
	sub.passed = true
	return sub, nil
}
