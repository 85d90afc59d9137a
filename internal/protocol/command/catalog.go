// Package command implements the typed request/response record catalog
// of SPEC_FULL.md §4.4: one frame.Record implementation per entry in the
// command table, packed/unpacked in fixed little-endian layout with the
// stdlib's encoding/binary, grounded on the same hand-packed style as
// the frame envelope header itself.
package command

import (
	"encoding/binary"
	"math"

	"github.com/sightcore/acquisition/internal/errs"
)

func putU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putI32(buf []byte, v int32) []byte { return putU32(buf, uint32(v)) }

func putBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 1)
	}
	return append(buf, 0)
}

func putF32(buf []byte, v float32) []byte {
	return putU32(buf, math.Float32bits(v))
}

func checkLen(body []byte, want int) error {
	if len(body) != want {
		return errs.Protocol(errs.BodyDecode, "record body length mismatch")
	}
	return nil
}

// Broadcast is the inbound beacon a device emits on the discovery
// socket: set/id 0x00/0x00.
type Broadcast struct {
	BroadcastCode [16]uint8
	DevType       uint8
	Reserved      uint16
}

func (r *Broadcast) CmdSet() uint8   { return 0x00 }
func (r *Broadcast) CmdID() uint8    { return 0x00 }
func (r *Broadcast) StaticSize() int { return 2 + 16 + 1 + 2 }

func (r *Broadcast) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID())
	buf = append(buf, r.BroadcastCode[:]...)
	buf = append(buf, r.DevType)
	return putU16(buf, r.Reserved)
}

func (r *Broadcast) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	copy(r.BroadcastCode[:], body[2:18])
	r.DevType = body[18]
	r.Reserved = binary.LittleEndian.Uint16(body[19:21])
	return nil
}

// HandshakeReq registers the client's endpoints with the device: set/id
// 0x00/0x01. Reserved pads the body to 12 bytes of fields (14 with the
// cmd header) to match control_frame.rs's Handshake::len() (6×u8 + 3×u16
// + Cmd::len()) and spec.md §8 S1's binding total-length vector (0x1B);
// the wire table names only the four addressed fields, but the original
// and S1 agree the declared body is two bytes wider than that.
type HandshakeReq struct {
	UserIP   [4]uint8
	DataPort uint16
	CmdPort  uint16
	ImuPort  uint16
	Reserved [2]uint8
}

func (r *HandshakeReq) CmdSet() uint8   { return 0x00 }
func (r *HandshakeReq) CmdID() uint8    { return 0x01 }
func (r *HandshakeReq) StaticSize() int { return 2 + 4 + 2 + 2 + 2 + 2 }

func (r *HandshakeReq) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID())
	buf = append(buf, r.UserIP[:]...)
	buf = putU16(buf, r.DataPort)
	buf = putU16(buf, r.CmdPort)
	buf = putU16(buf, r.ImuPort)
	buf = append(buf, r.Reserved[:]...)
	return buf
}

func (r *HandshakeReq) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	copy(r.UserIP[:], body[2:6])
	r.DataPort = binary.LittleEndian.Uint16(body[6:8])
	r.CmdPort = binary.LittleEndian.Uint16(body[8:10])
	r.ImuPort = binary.LittleEndian.Uint16(body[10:12])
	copy(r.Reserved[:], body[12:14])
	return nil
}

// DeviceInfoReq has no body: set/id 0x00/0x02.
type DeviceInfoReq struct{}

func (r *DeviceInfoReq) CmdSet() uint8     { return 0x00 }
func (r *DeviceInfoReq) CmdID() uint8      { return 0x02 }
func (r *DeviceInfoReq) StaticSize() int   { return 2 }
func (r *DeviceInfoReq) Encode(buf []byte) []byte { return append(buf, r.CmdSet(), r.CmdID()) }
func (r *DeviceInfoReq) Decode(body []byte) error { return checkLen(body, r.StaticSize()) }

// HeartbeatReq has no body: set/id 0x00/0x03.
type HeartbeatReq struct{}

func (r *HeartbeatReq) CmdSet() uint8     { return 0x00 }
func (r *HeartbeatReq) CmdID() uint8      { return 0x03 }
func (r *HeartbeatReq) StaticSize() int   { return 2 }
func (r *HeartbeatReq) Encode(buf []byte) []byte { return append(buf, r.CmdSet(), r.CmdID()) }
func (r *HeartbeatReq) Decode(body []byte) error { return checkLen(body, r.StaticSize()) }

// SampleCtrlReq starts or ends sampling: set/id 0x00/0x04.
type SampleCtrlReq struct {
	Ctrl uint8 // 0=start, 1=end
}

func (r *SampleCtrlReq) CmdSet() uint8   { return 0x00 }
func (r *SampleCtrlReq) CmdID() uint8    { return 0x04 }
func (r *SampleCtrlReq) StaticSize() int { return 2 + 1 }

func (r *SampleCtrlReq) Encode(buf []byte) []byte {
	return append(buf, r.CmdSet(), r.CmdID(), r.Ctrl)
}

func (r *SampleCtrlReq) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Ctrl = body[2]
	return nil
}

// ChangeCoordReq switches the coordinate system: set/id 0x00/0x05.
type ChangeCoordReq struct {
	Coord uint8 // 0=cartesian, 1=spherical
}

func (r *ChangeCoordReq) CmdSet() uint8   { return 0x00 }
func (r *ChangeCoordReq) CmdID() uint8    { return 0x05 }
func (r *ChangeCoordReq) StaticSize() int { return 2 + 1 }

func (r *ChangeCoordReq) Encode(buf []byte) []byte {
	return append(buf, r.CmdSet(), r.CmdID(), r.Coord)
}

func (r *ChangeCoordReq) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Coord = body[2]
	return nil
}

// DisconnectReq has no body: set/id 0x00/0x06.
type DisconnectReq struct{}

func (r *DisconnectReq) CmdSet() uint8     { return 0x00 }
func (r *DisconnectReq) CmdID() uint8      { return 0x06 }
func (r *DisconnectReq) StaticSize() int   { return 2 }
func (r *DisconnectReq) Encode(buf []byte) []byte { return append(buf, r.CmdSet(), r.CmdID()) }
func (r *DisconnectReq) Decode(body []byte) error { return checkLen(body, r.StaticSize()) }

// IpConfigReq reconfigures the device's static network settings: set/id
// 0x00/0x08.
type IpConfigReq struct {
	Mode uint8
	IP   [4]uint8
	Mask [4]uint8
	GW   [4]uint8
}

func (r *IpConfigReq) CmdSet() uint8   { return 0x00 }
func (r *IpConfigReq) CmdID() uint8    { return 0x08 }
func (r *IpConfigReq) StaticSize() int { return 2 + 1 + 4 + 4 + 4 }

func (r *IpConfigReq) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID(), r.Mode)
	buf = append(buf, r.IP[:]...)
	buf = append(buf, r.Mask[:]...)
	buf = append(buf, r.GW[:]...)
	return buf
}

func (r *IpConfigReq) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Mode = body[2]
	copy(r.IP[:], body[3:7])
	copy(r.Mask[:], body[7:11])
	copy(r.GW[:], body[11:15])
	return nil
}

// IpInfoReq has no body: set/id 0x00/0x09.
type IpInfoReq struct{}

func (r *IpInfoReq) CmdSet() uint8     { return 0x00 }
func (r *IpInfoReq) CmdID() uint8      { return 0x09 }
func (r *IpInfoReq) StaticSize() int   { return 2 }
func (r *IpInfoReq) Encode(buf []byte) []byte { return append(buf, r.CmdSet(), r.CmdID()) }
func (r *IpInfoReq) Decode(body []byte) error { return checkLen(body, r.StaticSize()) }

// RebootReq asks the device to reboot after timeout: set/id 0x00/0x0A.
type RebootReq struct {
	Timeout uint16
}

func (r *RebootReq) CmdSet() uint8   { return 0x00 }
func (r *RebootReq) CmdID() uint8    { return 0x0A }
func (r *RebootReq) StaticSize() int { return 2 + 2 }

func (r *RebootReq) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID())
	return putU16(buf, r.Timeout)
}

func (r *RebootReq) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Timeout = binary.LittleEndian.Uint16(body[2:4])
	return nil
}

// WriteFlashReq persists three TLV-encoded settings: set/id 0x00/0x0B.
// Each TLV is (tag:u16, len:u16, val), and the lengths here are always 1
// byte, matching the fixed table in SPEC_FULL.md §4.4.
type WriteFlashReq struct {
	HighSens   bool
	Repetitive bool
	Slot       uint8
}

func (r *WriteFlashReq) CmdSet() uint8   { return 0x00 }
func (r *WriteFlashReq) CmdID() uint8    { return 0x0B }
func (r *WriteFlashReq) StaticSize() int { return 2 + 3*(2+2+1) }

func (r *WriteFlashReq) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID())
	buf = putU16(buf, 0x0001)
	buf = putU16(buf, 1)
	buf = putBool(buf, r.HighSens)
	buf = putU16(buf, 0x0002)
	buf = putU16(buf, 1)
	buf = putBool(buf, r.Repetitive)
	buf = putU16(buf, 0x0003)
	buf = putU16(buf, 1)
	buf = append(buf, r.Slot)
	return buf
}

func (r *WriteFlashReq) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	// tag/len pairs are fixed by the catalog; only the values vary.
	r.HighSens = body[6] != 0
	r.Repetitive = body[11] != 0
	r.Slot = body[16]
	return nil
}

// ModeSwitchReq switches the device's operating mode: set/id 0x01/0x00.
type ModeSwitchReq struct {
	Mode uint8 // 1=normal, 2=low, 3=standby
}

func (r *ModeSwitchReq) CmdSet() uint8   { return 0x01 }
func (r *ModeSwitchReq) CmdID() uint8    { return 0x00 }
func (r *ModeSwitchReq) StaticSize() int { return 2 + 1 }

func (r *ModeSwitchReq) Encode(buf []byte) []byte {
	return append(buf, r.CmdSet(), r.CmdID(), r.Mode)
}

func (r *ModeSwitchReq) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Mode = body[2]
	return nil
}

// WriteOuterParams sets the device's extrinsic calibration: set/id
// 0x01/0x01.
type WriteOuterParams struct {
	Roll, Pitch, Yaw float32
	X, Y, Z          int32
}

func (r *WriteOuterParams) CmdSet() uint8   { return 0x01 }
func (r *WriteOuterParams) CmdID() uint8    { return 0x01 }
func (r *WriteOuterParams) StaticSize() int { return 2 + 4*3 + 4*3 }

func (r *WriteOuterParams) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID())
	buf = putF32(buf, r.Roll)
	buf = putF32(buf, r.Pitch)
	buf = putF32(buf, r.Yaw)
	buf = putI32(buf, r.X)
	buf = putI32(buf, r.Y)
	buf = putI32(buf, r.Z)
	return buf
}

func (r *WriteOuterParams) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Roll = math.Float32frombits(binary.LittleEndian.Uint32(body[2:6]))
	r.Pitch = math.Float32frombits(binary.LittleEndian.Uint32(body[6:10]))
	r.Yaw = math.Float32frombits(binary.LittleEndian.Uint32(body[10:14]))
	r.X = int32(binary.LittleEndian.Uint32(body[14:18]))
	r.Y = int32(binary.LittleEndian.Uint32(body[18:22]))
	r.Z = int32(binary.LittleEndian.Uint32(body[22:26]))
	return nil
}

// ReadOuterParams has no body: set/id 0x01/0x02.
type ReadOuterParams struct{}

func (r *ReadOuterParams) CmdSet() uint8     { return 0x01 }
func (r *ReadOuterParams) CmdID() uint8      { return 0x02 }
func (r *ReadOuterParams) StaticSize() int   { return 2 }
func (r *ReadOuterParams) Encode(buf []byte) []byte { return append(buf, r.CmdSet(), r.CmdID()) }
func (r *ReadOuterParams) Decode(body []byte) error { return checkLen(body, r.StaticSize()) }

// SetReturnMode sets the return-signal mode: set/id 0x01/0x06.
type SetReturnMode struct {
	Mode uint8 // 0..=3
}

func (r *SetReturnMode) CmdSet() uint8   { return 0x01 }
func (r *SetReturnMode) CmdID() uint8    { return 0x06 }
func (r *SetReturnMode) StaticSize() int { return 2 + 1 }

func (r *SetReturnMode) Encode(buf []byte) []byte {
	return append(buf, r.CmdSet(), r.CmdID(), r.Mode)
}

func (r *SetReturnMode) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Mode = body[2]
	return nil
}

// GetReturnMode has no body: set/id 0x01/0x07.
type GetReturnMode struct{}

func (r *GetReturnMode) CmdSet() uint8     { return 0x01 }
func (r *GetReturnMode) CmdID() uint8      { return 0x07 }
func (r *GetReturnMode) StaticSize() int   { return 2 }
func (r *GetReturnMode) Encode(buf []byte) []byte { return append(buf, r.CmdSet(), r.CmdID()) }
func (r *GetReturnMode) Decode(body []byte) error { return checkLen(body, r.StaticSize()) }

// UpdateUtcSyncTime pushes the device's UTC wall-clock: set/id
// 0x01/0x0A.
type UpdateUtcSyncTime struct {
	Year, Month, Day, Hour uint8
	Microsecond            uint32
}

func (r *UpdateUtcSyncTime) CmdSet() uint8   { return 0x01 }
func (r *UpdateUtcSyncTime) CmdID() uint8    { return 0x0A }
func (r *UpdateUtcSyncTime) StaticSize() int { return 2 + 4 + 4 }

func (r *UpdateUtcSyncTime) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID(), r.Year, r.Month, r.Day, r.Hour)
	return putU32(buf, r.Microsecond)
}

func (r *UpdateUtcSyncTime) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Year, r.Month, r.Day, r.Hour = body[2], body[3], body[4], body[5]
	r.Microsecond = binary.LittleEndian.Uint32(body[6:10])
	return nil
}

// CommonResp is the shared response shape every request elicits: it
// echoes the request's (cmd_set,cmd_id) and carries a single ret_code
// byte, per SPEC_FULL.md §4.4.
type CommonResp struct {
	Set, ID  uint8
	RetCode uint8
}

func (r *CommonResp) CmdSet() uint8   { return r.Set }
func (r *CommonResp) CmdID() uint8    { return r.ID }
func (r *CommonResp) StaticSize() int { return 2 + 1 }

func (r *CommonResp) Encode(buf []byte) []byte {
	return append(buf, r.Set, r.ID, r.RetCode)
}

func (r *CommonResp) Decode(body []byte) error {
	if err := checkLen(body, r.StaticSize()); err != nil {
		return err
	}
	r.Set = body[0]
	r.ID = body[1]
	r.RetCode = body[2]
	return nil
}
