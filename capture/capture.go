// Package capture reads and writes recordings of raw JT809 wire frames.
//
// A capture is CSV, one frame per record:
//
//	2024-03-15T10:20:30.123456789+08:00,10.0.0.7:9000,5B0000001A...5D
package capture

import (
	"encoding/csv"
	"encoding/hex"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const expectedFields = 3

type Record struct {
	Timestamp time.Time
	Remote    string
	Frame     []byte
}

type Reader struct {
	csvReader *csv.Reader
}

// Read returns the next well-formed record. Records with the wrong field
// count, a bad timestamp or bad hex are skipped.
func (r *Reader) Read() (Record, error) {
	for {
		record, err := r.csvReader.Read()
		if err != nil {
			if _, ok := err.(*csv.ParseError); ok {
				continue
			}
			return Record{}, err
		}

		if len(record) != expectedFields {
			continue
		}

		ts, err := time.Parse(time.RFC3339Nano, record[0])
		if err != nil {
			continue
		}

		frame, err := hex.DecodeString(record[2])
		if err != nil || len(frame) == 0 {
			continue
		}

		return Record{
			Timestamp: ts,
			Remote:    record[1],
			Frame:     frame,
		}, nil
	}
}

func NewReader(r io.Reader) *Reader {
	c := csv.NewReader(r)
	c.FieldsPerRecord = -1
	c.Comment = '#'
	c.ReuseRecord = true
	return &Reader{
		csvReader: c,
	}
}

type Writer struct {
	c *csv.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{c: csv.NewWriter(w)}
}

// Write records one frame. Records are flushed as they are written so a
// capture survives the process being killed.
func (w *Writer) Write(rec Record) error {
	err := w.c.Write([]string{
		rec.Timestamp.Format(time.RFC3339Nano),
		rec.Remote,
		strings.ToUpper(hex.EncodeToString(rec.Frame)),
	})
	if err != nil {
		return errors.Wrap(err, "capture")
	}
	w.c.Flush()
	return errors.Wrap(w.c.Error(), "capture")
}
