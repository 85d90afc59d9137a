package frame

import (
	"encoding/binary"
	"testing"

	"github.com/sightcore/acquisition/internal/errs"
)

// testHandshakeReq mirrors the command catalog's HandshakeReq shape
// closely enough to exercise the envelope codec without importing
// package command (which itself imports frame). Reserved pads the body
// to 14 bytes to match control_frame.rs's Handshake::len() and spec.md
// §8 S1's binding total-length vector (0x1B).
type testHandshakeReq struct {
	UserIP   [4]uint8
	DataPort uint16
	CmdPort  uint16
	ImuPort  uint16
	Reserved [2]uint8
}

func (r *testHandshakeReq) CmdSet() uint8   { return 0x00 }
func (r *testHandshakeReq) CmdID() uint8    { return 0x01 }
func (r *testHandshakeReq) StaticSize() int { return 2 + 4 + 2 + 2 + 2 + 2 }

func (r *testHandshakeReq) Encode(buf []byte) []byte {
	buf = append(buf, r.CmdSet(), r.CmdID())
	buf = append(buf, r.UserIP[:]...)
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], r.DataPort)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint16(tmp[:], r.CmdPort)
	buf = append(buf, tmp[:]...)
	binary.LittleEndian.PutUint16(tmp[:], r.ImuPort)
	buf = append(buf, tmp[:]...)
	buf = append(buf, r.Reserved[:]...)
	return buf
}

func (r *testHandshakeReq) Decode(body []byte) error {
	if len(body) != r.StaticSize() {
		return errs.Protocol(errs.BodyDecode, "handshake body length mismatch")
	}
	copy(r.UserIP[:], body[2:6])
	r.DataPort = binary.LittleEndian.Uint16(body[6:8])
	r.CmdPort = binary.LittleEndian.Uint16(body[8:10])
	r.ImuPort = binary.LittleEndian.Uint16(body[10:12])
	copy(r.Reserved[:], body[12:14])
	return nil
}

type testSampleCtrlReq struct {
	Ctrl uint8
}

func (r *testSampleCtrlReq) CmdSet() uint8   { return 0x00 }
func (r *testSampleCtrlReq) CmdID() uint8    { return 0x04 }
func (r *testSampleCtrlReq) StaticSize() int { return 2 + 1 }

func (r *testSampleCtrlReq) Encode(buf []byte) []byte {
	return append(buf, r.CmdSet(), r.CmdID(), r.Ctrl)
}

func (r *testSampleCtrlReq) Decode(body []byte) error {
	if len(body) != r.StaticSize() {
		return errs.Protocol(errs.BodyDecode, "sample ctrl body length mismatch")
	}
	r.Ctrl = body[2]
	return nil
}

// TestHandshakeEnvelopeHeaderBytes is scenario S1: the fixed header
// bytes (everything before the CRC-16, which depends only on the CRC
// implementation) must come out byte-exact for a known request.
func TestHandshakeEnvelopeHeaderBytes(t *testing.T) {
	req := &testHandshakeReq{UserIP: [4]uint8{192, 168, 1, 50}, DataPort: 50001, CmdPort: 50002, ImuPort: 50003}
	buf, err := Encode(CmdTypeCmd, 0x11, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := []byte{0xAA, 0x01, 0x1B, 0x00, 0x00, 0x11, 0x00}
	if len(buf) < len(want) {
		t.Fatalf("encoded frame too short: %d bytes", len(buf))
	}
	for i, b := range want {
		if buf[i] != b {
			t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, buf[i], b)
		}
	}
	if len(buf) != 0x1B {
		t.Fatalf("total length = %d, want 0x1B (27)", len(buf))
	}

	// Body starts right after the 9-byte header; cmd_set/cmd_id come first.
	if buf[9] != 0x00 || buf[10] != 0x01 {
		t.Fatalf("body cmd header = %02X %02X, want 00 01", buf[9], buf[10])
	}
}

// TestSampleCtrlRoundTrip is scenario S2.
func TestSampleCtrlRoundTrip(t *testing.T) {
	req := &testSampleCtrlReq{Ctrl: 0}
	buf, err := Encode(CmdTypeCmd, 0, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Seq != 0 {
		t.Fatalf("seq = %d, want 0", decoded.Seq)
	}

	var out testSampleCtrlReq
	if err := out.Decode(decoded.Body); err != nil {
		t.Fatalf("body Decode: %v", err)
	}
	if out.Ctrl != req.Ctrl {
		t.Fatalf("Ctrl = %d, want %d", out.Ctrl, req.Ctrl)
	}
}

// TestHandshakeRecordRoundTrip exercises invariant 3 for a record with a
// non-trivial body.
func TestHandshakeRecordRoundTrip(t *testing.T) {
	req := &testHandshakeReq{UserIP: [4]uint8{192, 168, 1, 50}, DataPort: 50001, CmdPort: 50002, ImuPort: 50003}
	buf, err := Encode(CmdTypeCmd, 7, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Seq != 7 {
		t.Fatalf("seq = %d, want 7", decoded.Seq)
	}

	var out testHandshakeReq
	if err := out.Decode(decoded.Body); err != nil {
		t.Fatalf("body Decode: %v", err)
	}
	if out != *req {
		t.Fatalf("decoded = %+v, want %+v", out, *req)
	}
}

// TestFrameLengthFieldMatchesPhysicalLength is invariant 4.
func TestFrameLengthFieldMatchesPhysicalLength(t *testing.T) {
	req := &testSampleCtrlReq{Ctrl: 1}
	buf, err := Encode(CmdTypeCmd, 42, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	declared := binary.LittleEndian.Uint16(buf[2:4])
	if int(declared) != len(buf) {
		t.Fatalf("declared length = %d, physical length = %d", declared, len(buf))
	}
}

// TestCorruptHeaderCRC is scenario S4: flipping byte 7 (the first CRC-16
// byte) must surface HeaderCrcFail.
func TestCorruptHeaderCRC(t *testing.T) {
	req := &testSampleCtrlReq{Ctrl: 0}
	buf, err := Encode(CmdTypeCmd, 0, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	buf[7] ^= 0xFF

	_, err = Decode(buf)
	if !errs.Is(err, errs.KindProtocol) {
		t.Fatalf("expected a protocol error, got %v", err)
	}
	if got := subkindOf(err); got != "HeaderCrcFail" {
		t.Fatalf("subkind = %s, want HeaderCrcFail", got)
	}
}

// TestBitFlipDetection is invariant 5: flipping any single bit in the
// serialized envelope must cause decode to fail with HeaderCrcFail or
// FrameCrcFail, or with LengthMismatch when the flipped bit is in the
// total-length field (Decode checks the length before either CRC).
func TestBitFlipDetection(t *testing.T) {
	req := &testHandshakeReq{UserIP: [4]uint8{10, 0, 0, 1}, DataPort: 1, CmdPort: 2, ImuPort: 3}
	base, err := Encode(CmdTypeCmd, 99, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	for byteIdx := 0; byteIdx < len(base); byteIdx++ {
		for bit := 0; bit < 8; bit++ {
			corrupt := append([]byte(nil), base...)
			corrupt[byteIdx] ^= 1 << uint(bit)

			_, err := Decode(corrupt)
			if err == nil {
				t.Fatalf("byte %d bit %d: expected decode failure, got none", byteIdx, bit)
			}
			sub := subkindOf(err)
			if sub != "HeaderCrcFail" && sub != "FrameCrcFail" && sub != "LengthMismatch" {
				t.Fatalf("byte %d bit %d: unexpected failure kind %s", byteIdx, bit, sub)
			}
		}
	}
}

func TestTruncatedFrameIsLengthMismatch(t *testing.T) {
	req := &testSampleCtrlReq{Ctrl: 0}
	buf, err := Encode(CmdTypeCmd, 0, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode(buf[:len(buf)-1])
	if subkindOf(err) != "LengthMismatch" {
		t.Fatalf("expected LengthMismatch, got %v", err)
	}
}

// subkindOf extracts the ProtocolSubkind string from a protocol error,
// or "" if err isn't one.
func subkindOf(err error) string {
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.KindProtocol {
		return ""
	}
	return e.Sub.String()
}
