package jt809

// CRCInit is the initial value of the frame checksum.
const CRCInit uint16 = 0xFFFF

// CRCStep folds one byte into a running CRC-16/CCITT-FALSE value.
func CRCStep(crc uint16, b byte) uint16 {
	return (crc << 8) ^ crcTable[byte(crc>>8)^b]
}

// CRC16 computes the frame checksum over data.
func CRC16(data []byte) uint16 {
	crc := CRCInit
	for _, b := range data {
		crc = CRCStep(crc, b)
	}
	return crc
}

// polynomial 0x1021, MSB first
var crcTable = func() [256]uint16 {
	var table [256]uint16
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for bit := 0; bit < 8; bit++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
		table[i] = crc
	}
	return table
}()
