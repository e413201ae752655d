package jt809

const (
	BeginFlag = 0x5B
	EndFlag   = 0x5D

	escA = 0x5A
	escE = 0x5E
)

// unescape matches a two byte escape sequence at the start of b.
func unescape(b []byte) (byte, bool) {
	if len(b) < 2 {
		return 0, false
	}
	switch b[0] {
	case escA:
		switch b[1] {
		case 0x01:
			return 0x5B, true
		case 0x02:
			return 0x5A, true
		}
	case escE:
		switch b[1] {
		case 0x01:
			return 0x5D, true
		case 0x02:
			return 0x5E, true
		}
	}
	return 0, false
}

// Escape byte-stuffs every 0x5B, 0x5A, 0x5D and 0x5E in data.
func Escape(data []byte) []byte {
	out := make([]byte, 0, len(data)+len(data)/8+2)
	for _, b := range data {
		switch b {
		case 0x5B:
			out = append(out, escA, 0x01)
		case 0x5A:
			out = append(out, escA, 0x02)
		case 0x5D:
			out = append(out, escE, 0x01)
		case 0x5E:
			out = append(out, escE, 0x02)
		default:
			out = append(out, b)
		}
	}
	return out
}

// Unescape collapses every escape sequence in data. A single trailing byte is
// copied as is.
func Unescape(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		if b, ok := unescape(data[i:]); ok {
			out = append(out, b)
			i++
			continue
		}
		out = append(out, data[i])
	}
	return out
}
