package jt809

import (
	"fmt"

	"github.com/pkg/errors"
)

// Message IDs.
const (
	MsgLoginRequest    uint16 = 0x1001
	MsgLoginResponse   uint16 = 0x1002
	MsgLogoutRequest   uint16 = 0x1003
	MsgLinkTest        uint16 = 0x1005
	MsgLinkTestReply   uint16 = 0x1006
	MsgExchangeUp      uint16 = 0x1200
	MsgExchangeDown    uint16 = 0x9200
	SubRealLocation    uint16 = 0x1202
	SubHistoryLocation uint16 = 0x1203
)

type Version int

const (
	Version2011 Version = 2011
	Version2019 Version = 2019
)

func ParseVersion(s string) (Version, error) {
	switch s {
	case "2011", "":
		return Version2011, nil
	case "2019":
		return Version2019, nil
	}
	return 0, errors.Wrapf(ErrUnknownVersion, "%q", s)
}

// HeaderLen returns the size of the message header.
func (v Version) HeaderLen() int {
	if v == Version2019 {
		return 30
	}
	return 22
}

type Header struct {
	// MsgLength is the length of the whole unstuffed frame, flags included.
	MsgLength    uint32
	MsgSN        uint32
	MsgID        uint16
	GNSSCenterID uint32
	Version      [3]byte
	EncryptFlag  byte
	EncryptKey   uint32
	// Time is only carried by 2019 headers.
	Time Date
}

func (h Header) VersionString() string {
	return fmt.Sprintf("%d.%d.%d", h.Version[0], h.Version[1], h.Version[2])
}

// ReadHeader reads the message header that follows the begin flag.
func ReadHeader(r *Reader, v Version) (Header, error) {
	var (
		h   Header
		err error
	)
	if h.MsgLength, err = r.ReadUint32(); err != nil {
		return h, errors.Wrap(err, "header.msg_length")
	}
	if h.MsgSN, err = r.ReadUint32(); err != nil {
		return h, errors.Wrap(err, "header.msg_sn")
	}
	if h.MsgID, err = r.ReadUint16(); err != nil {
		return h, errors.Wrap(err, "header.msg_id")
	}
	if h.GNSSCenterID, err = r.ReadUint32(); err != nil {
		return h, errors.Wrap(err, "header.gnss_center_id")
	}
	ver, err := r.Read(3)
	if err != nil {
		return h, errors.Wrap(err, "header.version")
	}
	copy(h.Version[:], ver)
	if h.EncryptFlag, err = r.ReadByte(); err != nil {
		return h, errors.Wrap(err, "header.encrypt_flag")
	}
	if h.EncryptKey, err = r.ReadUint32(); err != nil {
		return h, errors.Wrap(err, "header.encrypt_key")
	}
	if v == Version2019 {
		if h.Time, err = r.ReadUTCDateTime(); err != nil {
			return h, errors.Wrap(err, "header.time")
		}
	}
	return h, nil
}

// Package is one decoded frame.
type Package struct {
	Header Header
	// Body aliases the decoded frame. It is encrypted when
	// Header.EncryptFlag is set.
	Body          []byte
	CRC           uint16
	ChecksumValid bool
}

func (p *Package) Encrypted() bool { return p.Header.EncryptFlag == 1 }

// Parser turns encoded frames into packages.
type Parser struct {
	Version Version
	Options Options
}

func (p Parser) Parse(frame []byte) (*Package, error) {
	r := NewReaderWithOptions(frame, p.Options)
	if err := r.Decode(); err != nil {
		return nil, err
	}

	start, err := r.ReadStart()
	if err != nil {
		return nil, errors.Wrap(err, "begin flag")
	}
	if start != BeginFlag {
		return nil, errors.Wrapf(ErrInvalidFrame, "begin flag 0x%02X", start)
	}

	pkg := &Package{ChecksumValid: r.ChecksumValid()}
	if pkg.Header, err = ReadHeader(r, p.Version); err != nil {
		return nil, err
	}
	if pkg.Body, err = r.ReadContent(0); err != nil {
		return nil, errors.Wrap(err, "body")
	}
	if pkg.CRC, err = r.ReadUint16(); err != nil {
		return nil, errors.Wrap(err, "crc")
	}
	end, err := r.ReadEnd()
	if err != nil {
		return nil, errors.Wrap(err, "end flag")
	}
	if end != EndFlag {
		return nil, errors.Wrapf(ErrInvalidFrame, "end flag 0x%02X", end)
	}
	return pkg, nil
}

// Body returns a Reader over the package body.
func (p Parser) Body(pkg *Package) *Reader {
	r := NewReaderWithOptions(pkg.Body, p.Options)
	r.passed = true
	return r
}
