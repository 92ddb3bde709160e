package protocol

// CRC16 computes the frame checksum (CRC-16/MCRF4XX: CCITT polynomial,
// reflected, 0xFFFF initial value, no final xor)
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}
