package command

import (
	"reflect"
	"testing"

	"github.com/sightcore/acquisition/internal/errs"
	"github.com/sightcore/acquisition/internal/protocol/frame"
)

// roundTrip encodes r inside a full envelope, decodes the envelope, and
// decodes the body back into a fresh zero value of the same concrete
// type, returning it for comparison. This is invariant 3 applied to
// every catalog entry.
func roundTrip(t *testing.T, seq uint16, r frame.Record, fresh frame.Record) frame.Record {
	t.Helper()
	buf, err := frame.Encode(frame.CmdTypeCmd, seq, r)
	if err != nil {
		t.Fatalf("%T: Encode: %v", r, err)
	}
	decoded, err := frame.Decode(buf)
	if err != nil {
		t.Fatalf("%T: frame.Decode: %v", r, err)
	}
	if decoded.Seq != seq {
		t.Fatalf("%T: seq = %d, want %d", r, decoded.Seq, seq)
	}
	if err := fresh.Decode(decoded.Body); err != nil {
		t.Fatalf("%T: body Decode: %v", r, err)
	}
	return fresh
}

func TestCatalogRoundTrip(t *testing.T) {
	cases := []struct {
		name  string
		req   frame.Record
		fresh frame.Record
	}{
		{"Broadcast", &Broadcast{BroadcastCode: [16]uint8{1, 2, 3}, DevType: 9, Reserved: 0x1234}, &Broadcast{}},
		{"HandshakeReq", &HandshakeReq{UserIP: [4]uint8{192, 168, 1, 50}, DataPort: 50001, CmdPort: 50002, ImuPort: 50003}, &HandshakeReq{}},
		{"DeviceInfoReq", &DeviceInfoReq{}, &DeviceInfoReq{}},
		{"HeartbeatReq", &HeartbeatReq{}, &HeartbeatReq{}},
		{"SampleCtrlReq start", &SampleCtrlReq{Ctrl: 0}, &SampleCtrlReq{}},
		{"SampleCtrlReq end", &SampleCtrlReq{Ctrl: 1}, &SampleCtrlReq{}},
		{"ChangeCoordReq", &ChangeCoordReq{Coord: 1}, &ChangeCoordReq{}},
		{"DisconnectReq", &DisconnectReq{}, &DisconnectReq{}},
		{"IpConfigReq", &IpConfigReq{Mode: 1, IP: [4]uint8{10, 0, 0, 5}, Mask: [4]uint8{255, 255, 255, 0}, GW: [4]uint8{10, 0, 0, 1}}, &IpConfigReq{}},
		{"IpInfoReq", &IpInfoReq{}, &IpInfoReq{}},
		{"RebootReq", &RebootReq{Timeout: 3000}, &RebootReq{}},
		{"WriteFlashReq", &WriteFlashReq{HighSens: true, Repetitive: false, Slot: 7}, &WriteFlashReq{}},
		{"ModeSwitchReq", &ModeSwitchReq{Mode: 2}, &ModeSwitchReq{}},
		{"WriteOuterParams", &WriteOuterParams{Roll: 1.5, Pitch: -2.25, Yaw: 0.125, X: -100, Y: 200, Z: -300}, &WriteOuterParams{}},
		{"ReadOuterParams", &ReadOuterParams{}, &ReadOuterParams{}},
		{"SetReturnMode", &SetReturnMode{Mode: 3}, &SetReturnMode{}},
		{"GetReturnMode", &GetReturnMode{}, &GetReturnMode{}},
		{"UpdateUtcSyncTime", &UpdateUtcSyncTime{Year: 26, Month: 7, Day: 29, Hour: 12, Microsecond: 987654}, &UpdateUtcSyncTime{}},
		{"CommonResp success", &CommonResp{Set: 0x00, ID: 0x01, RetCode: 0}, &CommonResp{}},
		{"CommonResp failure", &CommonResp{Set: 0x01, ID: 0x06, RetCode: 3}, &CommonResp{}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := roundTrip(t, 0x2A, c.req, c.fresh)
			if got.CmdSet() != c.req.CmdSet() || got.CmdID() != c.req.CmdID() {
				t.Fatalf("cmd header mismatch: got (%#x,%#x), want (%#x,%#x)", got.CmdSet(), got.CmdID(), c.req.CmdSet(), c.req.CmdID())
			}
			if !reflect.DeepEqual(got, c.req) {
				t.Fatalf("decoded = %+v, want %+v", got, c.req)
			}
		})
	}
}

func TestWriteFlashReqFields(t *testing.T) {
	req := &WriteFlashReq{HighSens: true, Repetitive: true, Slot: 4}
	buf, err := frame.Encode(frame.CmdTypeCmd, 1, req)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := frame.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var out WriteFlashReq
	if err := out.Decode(decoded.Body); err != nil {
		t.Fatalf("body Decode: %v", err)
	}
	if out != *req {
		t.Fatalf("decoded = %+v, want %+v", out, *req)
	}
}

func TestStaticSizeMismatchRejectedByEncoder(t *testing.T) {
	r := &shortBodyRecord{}
	_, err := frame.Encode(frame.CmdTypeCmd, 0, r)
	if err == nil {
		t.Fatalf("expected an error when encoded body length disagrees with StaticSize")
	}
	if e, ok := err.(*errs.Error); !ok || e.Kind != errs.KindProtocol || e.Sub != errs.BodyDecode {
		t.Fatalf("expected a BodyDecode protocol error, got %v", err)
	}
}

// shortBodyRecord deliberately lies about its StaticSize to exercise the
// encoder's length-consistency rejection.
type shortBodyRecord struct{}

func (shortBodyRecord) CmdSet() uint8   { return 0x00 }
func (shortBodyRecord) CmdID() uint8    { return 0x03 }
func (shortBodyRecord) StaticSize() int { return 99 }
func (shortBodyRecord) Encode(buf []byte) []byte {
	return append(buf, 0x00, 0x03)
}
func (shortBodyRecord) Decode([]byte) error { return nil }
