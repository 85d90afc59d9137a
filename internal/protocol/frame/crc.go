package frame

import (
	"hash/crc32"

	"github.com/sigurn/crc16"
)

// crc16Params describes the header checksum from SPEC_FULL.md §4.4: an
// MCRF4XX-shaped CRC-16 (poly 0x1021, reflected in/out) but with the
// device's own non-standard initial value instead of the usual 0xFFFF.
// Grounded on github.com/sigurn/crc16, whose Params type exposes exactly
// this knob set.
var crc16Params = crc16.Params{
	Poly:   0x1021,
	Init:   0x9232,
	RefIn:  true,
	RefOut: true,
	XorOut: 0x0000,
	Check:  0x0000,
	Name:   "CRC-16/ACQUISITION-HEADER",
}

var crc16Table = crc16.MakeTable(crc16Params)

// crc16Checksum computes the header CRC-16 over data.
func crc16Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crc16Table)
}

// crc32Checksum computes the whole-frame CRC-32 over data using the
// IEEE 802.3 polynomial (reused from the standard library's precomputed
// reflected table) but the device's own initial value and no final XOR,
// per SPEC_FULL.md §4.4. The high-level crc32.Checksum helper hardcodes
// the standard init/xorout, so the table is reused directly with a
// hand-rolled accumulation loop instead.
func crc32Checksum(data []byte) uint32 {
	crc := uint32(0x564f580a)
	for _, b := range data {
		crc = crc32.IEEETable[byte(crc)^b] ^ (crc >> 8)
	}
	return crc
}
