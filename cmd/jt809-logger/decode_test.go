package main

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"jt809-proxy/jt809"
)

func testFrame(v jt809.Version, msgID uint16, encrypted bool, body []byte) []byte {
	b := binary.BigEndian.AppendUint32(nil, uint32(1+v.HeaderLen()+len(body)+3))
	b = binary.BigEndian.AppendUint32(b, 1)
	b = binary.BigEndian.AppendUint16(b, msgID)
	b = binary.BigEndian.AppendUint32(b, 100)
	b = append(b, 1, 0, 0)
	if encrypted {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = binary.BigEndian.AppendUint32(b, 0)
	if v == jt809.Version2019 {
		b = binary.BigEndian.AppendUint64(b, 1710465408)
	}
	return jt809.Frame(append(b, body...))
}

func testLocation(sec byte, lon, lat uint32) []byte {
	b := []byte{0, 15, 3}
	b = binary.BigEndian.AppendUint16(b, 2024)
	b = append(b, 10, 20, sec)
	b = binary.BigEndian.AppendUint32(b, lon)
	b = binary.BigEndian.AppendUint32(b, lat)
	b = binary.BigEndian.AppendUint16(b, 60)
	b = binary.BigEndian.AppendUint16(b, 60)
	b = binary.BigEndian.AppendUint32(b, 500)
	b = binary.BigEndian.AppendUint16(b, 180)
	b = binary.BigEndian.AppendUint16(b, 12)
	b = binary.BigEndian.AppendUint32(b, 0x03)
	b = binary.BigEndian.AppendUint32(b, 0x01)
	return b
}

func testExchange(t *testing.T, sub uint16, data []byte) []byte {
	plate, err := simplifiedchinese.GBK.NewEncoder().Bytes([]byte("粤B88888"))
	require.NoError(t, err)
	b := make([]byte, 21)
	copy(b, plate)
	b = append(b, 1)
	b = binary.BigEndian.AppendUint16(b, sub)
	b = binary.BigEndian.AppendUint32(b, uint32(len(data)))
	return append(b, data...)
}

func testDecoder(v jt809.Version, requireChecksum bool) *decoder {
	return &decoder{
		parser:          jt809.Parser{Version: v},
		requireChecksum: requireChecksum,
		logger:          log.NewNopLogger(),
	}
}

func TestPositionsRealLocation(t *testing.T) {
	at := time.Date(2024, 3, 15, 2, 20, 31, 0, time.UTC)
	frame := testFrame(jt809.Version2011, jt809.MsgExchangeUp, false,
		testExchange(t, jt809.SubRealLocation, testLocation(30, 113943000, 22543000)))

	positions, err := testDecoder(jt809.Version2011, true).positions(at, frame)
	require.NoError(t, err)
	require.Len(t, positions, 1)

	p := positions[0]
	assert.Equal(t, at, p.Received)
	assert.Equal(t, "粤B88888", p.Plate)
	assert.Equal(t, byte(1), p.Color)
	assert.True(t, p.TimeValid)
	assert.True(t, time.Date(2024, 3, 15, 2, 20, 30, 0, time.UTC).Equal(p.Time))
	assert.InDelta(t, 113.943, p.Longitude, 1e-9)
	assert.InDelta(t, 22.543, p.Latitude, 1e-9)
	assert.Equal(t, uint16(60), p.Speed)
	assert.Equal(t, uint16(180), p.Direction)
	assert.Equal(t, uint16(12), p.Altitude)
	assert.Equal(t, uint32(500), p.Mileage)
	assert.Equal(t, uint32(3), p.State)
	assert.Equal(t, uint32(1), p.Alarm)
}

func TestPositionsHistory(t *testing.T) {
	data := []byte{3}
	for i := 0; i < 3; i++ {
		data = append(data, testLocation(byte(i), uint32(i), uint32(i))...)
	}
	frame := testFrame(jt809.Version2011, jt809.MsgExchangeUp, false, testExchange(t, jt809.SubHistoryLocation, data))

	positions, err := testDecoder(jt809.Version2011, false).positions(time.Now(), frame)
	require.NoError(t, err)
	require.Len(t, positions, 3)
	assert.Equal(t, 2, positions[2].Time.Second())
}

func TestPositionsChecksum(t *testing.T) {
	frame := testFrame(jt809.Version2011, jt809.MsgExchangeUp, false,
		testExchange(t, jt809.SubRealLocation, testLocation(30, 1, 2)))
	// Low byte of the serial number.
	frame[8] ^= 0x10

	_, err := testDecoder(jt809.Version2011, true).positions(time.Now(), frame)
	assert.True(t, errors.Is(err, errChecksum), "%v", err)

	positions, err := testDecoder(jt809.Version2011, false).positions(time.Now(), frame)
	require.NoError(t, err)
	assert.Len(t, positions, 1)
}

func TestPositionsIgnored(t *testing.T) {
	d := testDecoder(jt809.Version2011, true)

	positions, err := d.positions(time.Now(), testFrame(jt809.Version2011, jt809.MsgLinkTest, false, nil))
	require.NoError(t, err)
	assert.Empty(t, positions)

	enc := testFrame(jt809.Version2011, jt809.MsgExchangeUp, true, []byte{0x01, 0x02})
	positions, err = d.positions(time.Now(), enc)
	require.NoError(t, err)
	assert.Empty(t, positions)

	other := testFrame(jt809.Version2011, jt809.MsgExchangeUp, false, testExchange(t, 0x1201, []byte{0x01}))
	positions, err = d.positions(time.Now(), other)
	require.NoError(t, err)
	assert.Empty(t, positions)

	v19 := testFrame(jt809.Version2019, jt809.MsgExchangeUp, false,
		testExchange(t, jt809.SubRealLocation, testLocation(30, 1, 2)))
	positions, err = testDecoder(jt809.Version2019, true).positions(time.Now(), v19)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPositionsLogin(t *testing.T) {
	body := binary.BigEndian.AppendUint32(nil, 42)
	body = append(body, []byte("pass\x00\x00\x00\x00")...)
	ip := make([]byte, 32)
	copy(ip, "192.168.1.10")
	body = append(body, ip...)
	body = binary.BigEndian.AppendUint16(body, 7000)

	positions, err := testDecoder(jt809.Version2011, true).positions(time.Now(), testFrame(jt809.Version2011, jt809.MsgLoginRequest, false, body))
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestPositionsTruncated(t *testing.T) {
	frame := testFrame(jt809.Version2011, jt809.MsgExchangeUp, false,
		testExchange(t, jt809.SubRealLocation, testLocation(30, 1, 2)[:20]))

	_, err := testDecoder(jt809.Version2011, false).positions(time.Now(), frame)
	assert.True(t, errors.Is(err, jt809.ErrShortBuffer), "%v", err)
}
