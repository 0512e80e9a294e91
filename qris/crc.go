package qris

import "fmt"

const crcPolynomial = 0x1021

// CRC16 computes the CRC-16/CCITT-FALSE checksum (poly 0x1021, init 0xFFFF)
// used by the tag 63 field and renders it as 4 uppercase hex digits.
// Input is consumed rune by rune, which equals per-byte processing for the
// ASCII payloads QRIS defines; non-ASCII runes are not UTF-16 code units.
func CRC16(s string) string {
	crc := 0xFFFF
	for _, r := range s {
		crc ^= int(r) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return fmt.Sprintf("%04X", crc&0xFFFF)
}
