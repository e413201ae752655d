package main

import (
	"encoding/hex"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// loggingReader logs every chunk read from the wire, before any framing.
type loggingReader struct {
	r      io.Reader
	logger log.Logger
}

func (l loggingReader) Close() error {
	if rc, ok := l.r.(io.Closer); ok {
		return rc.Close()
	}

	return nil
}

func (l loggingReader) Read(p []byte) (n int, err error) {
	n, err = l.r.Read(p)
	if n > 0 {
		level.Debug(l.logger).Log("dir", "in", "n", n, "wire", hex.EncodeToString(p[:n]))
	}
	if err != nil {
		level.Debug(l.logger).Log("dir", "in", "err", err)
	}

	return
}

func NewLoggingReader(r io.Reader, logger log.Logger) io.ReadCloser {
	return loggingReader{
		r:      r,
		logger: logger,
	}
}
