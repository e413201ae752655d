package jt809

import "github.com/pkg/errors"

// LocationLen is the size of one 2011 GNSS location record.
const LocationLen = 36

// Exchange is the vehicle envelope that opens every 0x1200/0x9200 body. The
// sub-business parsers take it as context, so the payload length is read once.
type Exchange struct {
	Plate      string
	Color      byte
	SubType    uint16
	DataLength uint32
}

func ReadExchange(r *Reader) (Exchange, error) {
	var (
		ex  Exchange
		err error
	)
	if ex.Plate, err = r.ReadString(21); err != nil {
		return ex, errors.Wrap(err, "exchange.plate")
	}
	if ex.Color, err = r.ReadByte(); err != nil {
		return ex, errors.Wrap(err, "exchange.color")
	}
	if ex.SubType, err = r.ReadUint16(); err != nil {
		return ex, errors.Wrap(err, "exchange.sub_type")
	}
	if ex.DataLength, err = r.ReadUint32(); err != nil {
		return ex, errors.Wrap(err, "exchange.data_length")
	}
	return ex, nil
}

// ReadExchangeData returns a Reader over the sub-business payload. With a nil
// envelope the length is taken from the four bytes just before the cursor,
// where ReadExchange left the data length field.
func ReadExchangeData(r *Reader, ex *Exchange) (*Reader, error) {
	var n uint32
	if ex != nil {
		n = ex.DataLength
	} else {
		var err error
		if n, err = r.PeekUint32Back(4); err != nil {
			return nil, errors.Wrap(err, "exchange.data_length")
		}
	}
	sub, err := r.Sub(int(n))
	if err != nil {
		return nil, errors.Wrap(err, "exchange.data")
	}
	return sub, nil
}

// Location is a 2011 GNSS record. Lon and Lat are in millionths of a degree.
type Location struct {
	Encrypt   byte
	Time      Date
	Lon       uint32
	Lat       uint32
	Speed     uint16 // km/h, from satellite
	RecSpeed  uint16 // km/h, from the tachograph
	Mileage   uint32 // km
	Direction uint16
	Altitude  uint16
	State     uint32
	Alarm     uint32
}

func (l Location) Longitude() float64 { return float64(l.Lon) / 1e6 }
func (l Location) Latitude() float64 { return float64(l.Lat) / 1e6 }

func ReadLocation(r *Reader) (Location, error) {
	var l Location
	b, err := r.Read(LocationLen)
	if err != nil {
		return l, errors.Wrap(err, "location")
	}
	g := NewReaderWithOptions(b, r.opts)

	// Every read below is inside b.
	l.Encrypt, _ = g.ReadByte()
	day, _ := g.ReadByte()
	month, _ := g.ReadByte()
	year, _ := g.ReadUint16()
	hour, _ := g.ReadByte()
	minute, _ := g.ReadByte()
	sec, _ := g.ReadByte()
	if d, ok := calendar(r.opts.Location, int(year), int(month), int(day), int(hour), int(minute), int(sec), 0); ok {
		l.Time = d
	} else {
		l.Time = fallback()
	}
	l.Lon, _ = g.ReadUint32()
	l.Lat, _ = g.ReadUint32()
	l.Speed, _ = g.ReadUint16()
	l.RecSpeed, _ = g.ReadUint16()
	l.Mileage, _ = g.ReadUint32()
	l.Direction, _ = g.ReadUint16()
	l.Altitude, _ = g.ReadUint16()
	l.State, _ = g.ReadUint32()
	l.Alarm, _ = g.ReadUint32()
	return l, nil
}

// ReadHistory reads a count byte followed by that many location records.
func ReadHistory(r *Reader) ([]Location, error) {
	count, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "history.count")
	}
	locs := make([]Location, 0, count)
	for i := 0; i < int(count); i++ {
		l, err := ReadLocation(r)
		if err != nil {
			return nil, errors.Wrapf(err, "history[%d]", i)
		}
		locs = append(locs, l)
	}
	return locs, nil
}

// Login is the body of MsgLoginRequest.
type Login struct {
	UserID       uint32
	Password     string
	GNSSCenterID uint32 // 2019 only
	DownLinkIP   string
	DownLinkPort uint16
}

func ReadLogin(r *Reader, v Version) (Login, error) {
	var (
		l   Login
		err error
	)
	if l.UserID, err = r.ReadUint32(); err != nil {
		return l, errors.Wrap(err, "login.user_id")
	}
	if l.Password, err = r.ReadString(8); err != nil {
		return l, errors.Wrap(err, "login.password")
	}
	if v == Version2019 {
		if l.GNSSCenterID, err = r.ReadUint32(); err != nil {
			return l, errors.Wrap(err, "login.gnss_center_id")
		}
	}
	if l.DownLinkIP, err = r.ReadString(32); err != nil {
		return l, errors.Wrap(err, "login.down_link_ip")
	}
	if l.DownLinkPort, err = r.ReadUint16(); err != nil {
		return l, errors.Wrap(err, "login.down_link_port")
	}
	return l, nil
}
