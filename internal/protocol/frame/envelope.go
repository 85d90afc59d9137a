// Package frame implements the wire envelope of SPEC_FULL.md §4.4: a
// length-and-CRC framed container around a bincode-style packed command
// body, modeled on the hand-packed little-endian header style of
// SagerNet-smux's session.go.
package frame

import (
	"encoding/binary"

	"github.com/sightcore/acquisition/internal/errs"
)

const (
	sof        byte = 0xAA
	version    byte = 0x01
	headerSize      = 9  // sof..header CRC-16 inclusive
	crcTailSize     = 4  // trailing frame CRC-32
	minFrameSize    = headerSize + crcTailSize
)

// CmdType is the envelope's direction/kind discriminator.
type CmdType uint8

const (
	CmdTypeCmd CmdType = 0
	CmdTypeAck CmdType = 1
	CmdTypeMsg CmdType = 2
)

// Record is a command-catalog entry that knows its own cmd_set/cmd_id
// and can pack/unpack its body in the fixed little-endian layout
// SPEC_FULL.md §4.4 describes. Implementations live in package command.
type Record interface {
	CmdSet() uint8
	CmdID() uint8
	// StaticSize is the exact serialized body length this record always
	// produces, cmd_set/cmd_id header included. The encoder rejects a
	// record whose Encode output doesn't match this.
	StaticSize() int
	// Encode appends this record's packed body (cmd_set, cmd_id, then
	// fields in declaration order) to buf and returns the result.
	Encode(buf []byte) []byte
	// Decode fills the record's fields from body, which is exactly the
	// bytes following the 9-byte header (sof through the header CRC-16)
	// and preceding the frame CRC-32 (i.e. cmd_set, cmd_id, then the
	// declared fields).
	Decode(body []byte) error
}

// Encode produces the complete wire representation of record at the
// given sequence number, per SPEC_FULL.md §4.4's encoder contract.
func Encode(cmdType CmdType, seq uint16, record Record) ([]byte, error) {
	body := record.Encode(nil)
	if len(body) != record.StaticSize() {
		return nil, errs.Protocol(errs.BodyDecode, "encoded body length does not match record's declared static size")
	}

	total := headerSize + len(body) + crcTailSize
	buf := make([]byte, total)
	buf[0] = sof
	buf[1] = version
	binary.LittleEndian.PutUint16(buf[2:4], uint16(total))
	buf[4] = byte(cmdType)
	binary.LittleEndian.PutUint16(buf[5:7], seq)

	headerCRC := crc16Checksum(buf[0:7])
	binary.LittleEndian.PutUint16(buf[7:9], headerCRC)

	copy(buf[headerSize:headerSize+len(body)], body)

	frameCRC := crc32Checksum(buf[0 : total-crcTailSize])
	binary.LittleEndian.PutUint32(buf[total-crcTailSize:total], frameCRC)

	return buf, nil
}

// Decoded is the result of a successful Decode: the envelope's fields
// plus the raw body bytes (cmd_set, cmd_id, then record fields), left
// for the caller to hand to the matching Record's Decode.
type Decoded struct {
	CmdType CmdType
	Seq     uint16
	Body    []byte
}

// Decode validates and parses the envelope in buf, per SPEC_FULL.md
// §4.4's decoder contract. It does not interpret the body past the
// 2-byte cmd_set/cmd_id header; callers look those up in the command
// catalog and call the matching Record.Decode.
func Decode(buf []byte) (Decoded, error) {
	if len(buf) < minFrameSize {
		return Decoded{}, errs.Protocol(errs.LengthMismatch, "frame shorter than minimum envelope size")
	}
	total := int(binary.LittleEndian.Uint16(buf[2:4]))
	if total != len(buf) {
		return Decoded{}, errs.Protocol(errs.LengthMismatch, "declared total length does not match buffer length")
	}

	wantHeaderCRC := crc16Checksum(buf[0:7])
	gotHeaderCRC := binary.LittleEndian.Uint16(buf[7:9])
	if wantHeaderCRC != gotHeaderCRC {
		return Decoded{}, errs.Protocol(errs.HeaderCrcFail, "header CRC-16 mismatch")
	}

	wantFrameCRC := crc32Checksum(buf[0 : total-crcTailSize])
	gotFrameCRC := binary.LittleEndian.Uint32(buf[total-crcTailSize : total])
	if wantFrameCRC != gotFrameCRC {
		return Decoded{}, errs.Protocol(errs.FrameCrcFail, "frame CRC-32 mismatch")
	}

	cmdType := CmdType(buf[4])
	if cmdType != CmdTypeCmd && cmdType != CmdTypeAck && cmdType != CmdTypeMsg {
		return Decoded{}, errs.Protocol(errs.BadCmdType, "cmd_type not one of 0/1/2")
	}

	seq := binary.LittleEndian.Uint16(buf[5:7])
	body := buf[headerSize : total-crcTailSize]

	return Decoded{CmdType: cmdType, Seq: seq, Body: body}, nil
}
