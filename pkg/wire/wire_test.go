package wire

import (
	"math"
	"testing"

	"duelcore/pkg/limits"
)

func TestQuantizePosRoundTrip(t *testing.T) {
	cases := []float32{-65.5, -12.345, 0, 0.001, 40.2, 65.5}
	for _, p := range cases {
		q := QuantizePos(p)
		got := DequantizePos(q)
		if diff := math.Abs(float64(got - p)); diff > 0.002 {
			t.Errorf("quantize(%v)=%v dequantize=%v diff=%v exceeds 0.002m", p, q, got, diff)
		}
	}
}

func TestQuantizeYawWraps(t *testing.T) {
	q := QuantizeYaw(0)
	if q != 0 {
		t.Fatalf("yaw 0 should quantize to 0, got %d", q)
	}
	q2 := QuantizeYaw(float32(2 * math.Pi))
	if q2 != 0 {
		t.Fatalf("full turn should wrap to 0, got %d", q2)
	}
}

func TestSeqGreaterWraparound(t *testing.T) {
	var s uint16 = 65530
	d := s + 10 // wraps past 65535
	if !SeqGreater(d, s) {
		t.Fatalf("expected %d to be newer than %d across wraparound", d, s)
	}
	if SeqGreater(s, d) {
		t.Fatalf("did not expect %d to be newer than %d", s, d)
	}
}

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize+4)
	h := Header{Type: MsgInput, Flags: FlagReliable, Sequence: 42, AckBits: 0xdeadbeef, Ack: 7}
	n := PutHeader(buf, h)
	if n != HeaderSize {
		t.Fatalf("expected %d bytes written, got %d", HeaderSize, n)
	}
	got, rest, err := ParseHeader(buf)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
	if len(rest) != 4 {
		t.Fatalf("expected 4 leftover bytes, got %d", len(rest))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	var s Snapshot
	s.ServerTime = 12.5
	s.ShotCount = 2
	s.Players[0] = QuantizedPlayer{
		PosX: QuantizePos(1.5), PosY: QuantizePos(-2.25), PosZ: QuantizePos(0),
		VelX: QuantizeVel(3), VelY: 0, VelZ: QuantizeVel(-1),
		Yaw: QuantizeYaw(1.0), Pitch: QuantizePitch(-0.2),
		Flags: FlagActive | FlagAlive | FlagOnGround, Health: 80, LastProcessed: 1234,
	}
	s.Shots[0] = QuantizedShot{ShooterIdx: 0, OriginX: QuantizePos(1), DirX: QuantizeShotDir(1), Length: 20}

	buf := make([]byte, SnapshotPayloadSize)
	n := EncodeSnapshot(buf, s)
	if n != SnapshotPayloadSize {
		t.Fatalf("expected to write %d bytes, wrote %d", SnapshotPayloadSize, n)
	}

	got, err := DecodeSnapshot(buf)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if got.ServerTime != s.ServerTime || got.ShotCount != s.ShotCount {
		t.Fatalf("header fields mismatch: %+v", got)
	}
	if got.Players[0] != s.Players[0] {
		t.Fatalf("player 0 mismatch: got %+v want %+v", got.Players[0], s.Players[0])
	}
	if got.Shots[0] != s.Shots[0] {
		t.Fatalf("shot 0 mismatch: got %+v want %+v", got.Shots[0], s.Shots[0])
	}
}

func TestInputRoundTrip(t *testing.T) {
	in := Input{Sequence: 99, MoveX: 1, MoveZ: -1, LookYaw: 0.5, LookPitch: -0.1, Buttons: ButtonShoot, ShotTime: 3.14, Time: 3.2}
	buf := make([]byte, InputPayloadSize)
	EncodeInput(buf, in)
	got, err := DecodeInput(buf)
	if err != nil {
		t.Fatalf("DecodeInput: %v", err)
	}
	if got != in {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, in)
	}
	if !got.Shoot() || got.Jump() {
		t.Fatalf("button decode wrong: %+v", got)
	}
}

func TestConnectRequestNameTruncation(t *testing.T) {
	c := NewConnectRequest("this name is definitely longer than thirty two bytes")
	if len(c.Name()) != 32 {
		t.Fatalf("expected truncation to 32 bytes, got %d: %q", len(c.Name()), c.Name())
	}
	buf := make([]byte, 33)
	EncodeConnectRequest(buf, c)
	got, err := DecodeConnectRequest(buf)
	if err != nil {
		t.Fatalf("DecodeConnectRequest: %v", err)
	}
	if got.Name() != c.Name() {
		t.Fatalf("name mismatch: got %q want %q", got.Name(), c.Name())
	}
}

func TestDecodeDispatch(t *testing.T) {
	buf := make([]byte, 6)
	EncodeConnectAccept(buf, ConnectAccept{ServerTime: 1.5, PlayerIndex: 3})
	msg, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	ca, ok := msg.(ConnectAccept)
	if !ok {
		t.Fatalf("expected ConnectAccept, got %T", msg)
	}
	if ca.PlayerIndex != 3 {
		t.Fatalf("expected player index 3, got %d", ca.PlayerIndex)
	}
}

func TestMaxPlayersFitsPlayerCountByte(t *testing.T) {
	if limits.MaxPlayers > 255 {
		t.Fatalf("player count must fit in a byte")
	}
}
