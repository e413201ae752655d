package jt809

import "time"

// DateBase selects how the bytes of a packed date are read.
type DateBase int

const (
	// BaseHex reads a byte as its two hex digits taken as decimal (0x25 is 25).
	BaseHex DateBase = iota
	// BaseDecimal reads a byte as its numeric value (0x25 is 37).
	BaseDecimal
)

// BaseYear is added to the two-digit year of the 6-byte form.
const BaseYear = 2000

// maxUnixSeconds is 9999-12-31T23:59:59Z.
const maxUnixSeconds = 253402300799

var (
	ChinaStandardTime = time.FixedZone("CST", 8*60*60)

	// Epoch is returned in place of any packed date that cannot be built.
	Epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
)

func ParseDateBase(s string) (DateBase, bool) {
	switch s {
	case "X2", "x2", "hex":
		return BaseHex, true
	case "D2", "d2", "decimal":
		return BaseDecimal, true
	}
	return 0, false
}

func (b DateBase) String() string {
	if b == BaseDecimal {
		return "D2"
	}
	return "X2"
}

func (b DateBase) value(c byte) (int, bool) {
	if b == BaseDecimal {
		return int(c), true
	}
	hi, lo := int(c>>4), int(c&0x0f)
	if hi > 9 || lo > 9 {
		return 0, false
	}
	return hi*10 + lo, true
}

type DateStatus int

const (
	DateParsed DateStatus = iota
	DateFallback
)

// Date is a packed date field. When Status is DateFallback the bytes did not
// form a calendar date and Time is Epoch.
type Date struct {
	time.Time
	Status DateStatus
}

func (d Date) Parsed() bool { return d.Status == DateParsed }

func fallback() Date {
	return Date{Time: Epoch, Status: DateFallback}
}

// calendar builds a date, rejecting fields time.Date would normalize.
func calendar(loc *time.Location, year, month, day, hour, minute, sec, msec int) (Date, bool) {
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 ||
		hour < 0 || hour > 23 || minute < 0 || minute > 59 || sec < 0 || sec > 59 ||
		msec < 0 || msec > 999 {
		return Date{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, sec, msec*int(time.Millisecond), loc)
	if t.Day() != day {
		return Date{}, false
	}
	return Date{Time: t, Status: DateParsed}, true
}

func values(base DateBase, b []byte) ([]int, bool) {
	out := make([]int, len(b))
	for i, c := range b {
		v, ok := base.value(c)
		if !ok {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

// ReadDateTime6 reads yyMMddHHmmss.
func (r *Reader) ReadDateTime6(base DateBase) (Date, error) {
	b, err := r.Read(6)
	if err != nil {
		return Date{}, err
	}
	v, ok := values(base, b)
	if !ok {
		return fallback(), nil
	}
	d, ok := calendar(r.opts.Location, v[0]+BaseYear, v[1], v[2], v[3], v[4], v[5], 0)
	if !ok {
		return fallback(), nil
	}
	return d, nil
}

// ReadDateTime5 reads HHmmss and a 16-bit millisecond count, on today's date.
func (r *Reader) ReadDateTime5(base DateBase) (Date, error) {
	b, err := r.Read(5)
	if err != nil {
		return Date{}, err
	}
	v, ok := values(base, b[:3])
	if !ok {
		return fallback(), nil
	}
	now := r.opts.Now().In(r.opts.Location)
	msec := int(b[3])<<8 + int(b[4])
	d, ok := calendar(r.opts.Location, now.Year(), int(now.Month()), now.Day(), v[0], v[1], v[2], msec)
	if !ok {
		return fallback(), nil
	}
	return d, nil
}

// ReadDateTime4 reads a year from the first byte (shifted) plus the raw
// second byte, then month and day.
func (r *Reader) ReadDateTime4(base DateBase) (Date, error) {
	b, err := r.Read(4)
	if err != nil {
		return Date{}, err
	}
	hi, ok1 := base.value(b[0])
	md, ok2 := values(base, b[2:])
	if !ok1 || !ok2 {
		return fallback(), nil
	}
	d, ok := calendar(r.opts.Location, hi<<8+int(b[1]), md[0], md[1], 0, 0, 0, 0)
	if !ok {
		return fallback(), nil
	}
	return d, nil
}

// ReadUTCDateTime reads seconds since the Unix epoch and returns them as wall
// time in UTC+8.
func (r *Reader) ReadUTCDateTime() (Date, error) {
	secs, err := r.ReadUint64()
	if err != nil {
		return Date{}, err
	}
	if secs > maxUnixSeconds-8*60*60 {
		return fallback(), nil
	}
	return Date{Time: time.Unix(int64(secs), 0).In(ChinaStandardTime), Status: DateParsed}, nil
}
