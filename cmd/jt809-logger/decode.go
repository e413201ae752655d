package main

import (
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"jt809-proxy/jt809"
)

var errChecksum = errors.New("checksum mismatch")

type Position struct {
	Received  time.Time
	Plate     string
	Color     byte
	Time      time.Time
	TimeValid bool
	Latitude  float64
	Longitude float64
	Speed     uint16
	Direction uint16
	Altitude  uint16
	Mileage   uint32
	State     uint32
	Alarm     uint32
}

type decoder struct {
	parser          jt809.Parser
	requireChecksum bool
	logger          log.Logger
}

// positions decodes one frame and returns the vehicle positions it carries.
// Frames of other types are logged or ignored.
func (d *decoder) positions(at time.Time, frame []byte) ([]Position, error) {
	pkg, err := d.parser.Parse(frame)
	if err != nil {
		return nil, err
	}
	if !pkg.ChecksumValid && d.requireChecksum {
		return nil, errors.Wrapf(errChecksum, "msg 0x%04X sn %d", pkg.Header.MsgID, pkg.Header.MsgSN)
	}
	if pkg.Encrypted() {
		level.Debug(d.logger).Log("msg_id", fmt.Sprintf("0x%04X", pkg.Header.MsgID), "action", "skip_encrypted")
		return nil, nil
	}

	r := d.parser.Body(pkg)
	switch pkg.Header.MsgID {
	case jt809.MsgLoginRequest:
		l, err := jt809.ReadLogin(r, d.parser.Version)
		if err != nil {
			return nil, err
		}
		level.Info(d.logger).Log("action", "login", "user_id", l.UserID, "down_link", fmt.Sprintf("%s:%d", l.DownLinkIP, l.DownLinkPort))
		return nil, nil
	case jt809.MsgExchangeUp:
	default:
		return nil, nil
	}

	ex, err := jt809.ReadExchange(r)
	if err != nil {
		return nil, err
	}
	if d.parser.Version != jt809.Version2011 {
		// 2019 carries 808-style GNSS data, which is not decoded here.
		return nil, nil
	}
	data, err := jt809.ReadExchangeData(r, &ex)
	if err != nil {
		return nil, err
	}

	var locs []jt809.Location
	switch ex.SubType {
	case jt809.SubRealLocation:
		l, err := jt809.ReadLocation(data)
		if err != nil {
			return nil, err
		}
		locs = append(locs, l)
	case jt809.SubHistoryLocation:
		if locs, err = jt809.ReadHistory(data); err != nil {
			return nil, err
		}
	default:
		return nil, nil
	}

	out := make([]Position, 0, len(locs))
	for _, l := range locs {
		out = append(out, Position{
			Received:  at,
			Plate:     ex.Plate,
			Color:     ex.Color,
			Time:      l.Time.Time,
			TimeValid: l.Time.Parsed(),
			Latitude:  l.Latitude(),
			Longitude: l.Longitude(),
			Speed:     l.Speed,
			Direction: l.Direction,
			Altitude:  l.Altitude,
			Mileage:   l.Mileage,
			State:     l.State,
			Alarm:     l.Alarm,
		})
	}
	return out, nil
}
