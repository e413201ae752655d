package jt809

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrShortBuffer       = errors.New("jt809: read past end of buffer")
	ErrNegativeRemaining = errors.New("jt809: remaining content length is negative")
	ErrAlreadyDecoded    = errors.New("jt809: reader already decoded")
	ErrInvalidFrame      = errors.New("jt809: unexpected start of frame")
	ErrFrameTooLarge     = errors.New("jt809: frame too large")
	ErrUnknownVersion    = errors.New("jt809: unknown protocol version")
)

// ReadError describes a read that ran past the decoded buffer. It unwraps to
// ErrShortBuffer.
type ReadError struct {
	Offset    int
	Want      int
	Available int
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("jt809: read of %d bytes at offset %d, %d available", e.Want, e.Offset, e.Available)
}

func (e *ReadError) Unwrap() error {
	return ErrShortBuffer
}
