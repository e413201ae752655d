package main

import (
	"bytes"
	"io"
	"testing"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"jt809-proxy/jt809"
)

// heartbeat is a 2011 link test from centre 100.
func heartbeat() []byte {
	return jt809.Frame([]byte{
		0x00, 0x00, 0x00, 0x1A,
		0x00, 0x00, 0x00, 0x01,
		0x10, 0x05,
		0x00, 0x00, 0x00, 0x64,
		0x01, 0x00, 0x00,
		0x00,
		0x00, 0x00, 0x00, 0x00,
	})
}

func TestInspect(t *testing.T) {
	logger := log.NewNopLogger()
	parser := jt809.Parser{Version: jt809.Version2011}

	assert.True(t, inspect(logger, parser, "test", heartbeat()))
	assert.Equal(t, 1.0, testutil.ToFloat64(messagesByID.WithLabelValues("0x1005")))

	before := testutil.ToFloat64(checksumFailures)
	bad := heartbeat()
	bad[8] ^= 0x10
	assert.True(t, inspect(logger, parser, "test", bad))
	assert.Equal(t, before+1, testutil.ToFloat64(checksumFailures))

	*dropInvalid = true
	defer func() { *dropInvalid = false }()
	assert.False(t, inspect(logger, parser, "test", bad))

	short := jt809.Frame([]byte{0x00, 0x01})
	assert.False(t, inspect(logger, parser, "test", short))
	assert.Equal(t, 1.0, testutil.ToFloat64(decodeErrors.WithLabelValues("short")))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "invalid_frame", errorKind(errors.Wrap(jt809.ErrInvalidFrame, "x")))
	assert.Equal(t, "too_large", errorKind(jt809.ErrFrameTooLarge))
	assert.Equal(t, "short", errorKind(&jt809.ReadError{Offset: 1, Want: 2}))
	assert.Equal(t, "negative_length", errorKind(jt809.ErrNegativeRemaining))
	assert.Equal(t, "other", errorKind(io.EOF))
}

func TestLoggingReader(t *testing.T) {
	var buf bytes.Buffer
	r := NewLoggingReader(bytes.NewReader([]byte{0x5B, 0x5D}), log.NewLogfmtLogger(&buf))
	b, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x5B, 0x5D}, b)
	assert.Contains(t, buf.String(), "wire=5b5d")
	assert.NoError(t, r.Close())
}
