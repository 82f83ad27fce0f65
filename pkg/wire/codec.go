package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"duelcore/pkg/limits"
)

var le = binary.LittleEndian

func putF32(buf []byte, v float32) {
	le.PutUint32(buf, math.Float32bits(v))
}

func getF32(buf []byte) float32 {
	return math.Float32frombits(le.Uint32(buf))
}

// EncodeSnapshot serializes a Snapshot payload (after the header) into buf,
// which must have at least SnapshotPayloadSize bytes, returning the number
// of bytes written.
func EncodeSnapshot(buf []byte, s Snapshot) int {
	off := 0
	buf[off] = MsgSnapshot
	off++
	putF32(buf[off:], s.ServerTime)
	off += 4
	buf[off] = byte(limits.MaxPlayers)
	off++
	buf[off] = s.ShotCount
	off++
	for i := 0; i < limits.MaxPlayers; i++ {
		off += putQuantizedPlayer(buf[off:], s.Players[i])
	}
	for i := 0; i < limits.MaxShots; i++ {
		off += putQuantizedShot(buf[off:], s.Shots[i])
	}
	return off
}

// SnapshotPayloadSize is the fixed encoded size of a SNAPSHOT message body
// (including the leading type byte), suitable for sizing send buffers.
const SnapshotPayloadSize = 1 + 4 + 1 + 1 + limits.MaxPlayers*quantizedPlayerSize + limits.MaxShots*quantizedShotSize

func putQuantizedPlayer(buf []byte, p QuantizedPlayer) int {
	off := 0
	le.PutUint16(buf[off:], uint16(p.PosX))
	off += 2
	le.PutUint16(buf[off:], uint16(p.PosY))
	off += 2
	le.PutUint16(buf[off:], uint16(p.PosZ))
	off += 2
	buf[off] = byte(p.VelX)
	off++
	buf[off] = byte(p.VelY)
	off++
	buf[off] = byte(p.VelZ)
	off++
	buf[off] = p.Yaw
	off++
	buf[off] = byte(p.Pitch)
	off++
	buf[off] = p.Flags
	off++
	buf[off] = p.Health
	off++
	le.PutUint32(buf[off:], p.LastProcessed)
	off += 4
	return off
}

func getQuantizedPlayer(buf []byte) (QuantizedPlayer, int) {
	off := 0
	var p QuantizedPlayer
	p.PosX = int16(le.Uint16(buf[off:]))
	off += 2
	p.PosY = int16(le.Uint16(buf[off:]))
	off += 2
	p.PosZ = int16(le.Uint16(buf[off:]))
	off += 2
	p.VelX = int8(buf[off])
	off++
	p.VelY = int8(buf[off])
	off++
	p.VelZ = int8(buf[off])
	off++
	p.Yaw = buf[off]
	off++
	p.Pitch = int8(buf[off])
	off++
	p.Flags = buf[off]
	off++
	p.Health = buf[off]
	off++
	p.LastProcessed = le.Uint32(buf[off:])
	off += 4
	return p, off
}

func putQuantizedShot(buf []byte, s QuantizedShot) int {
	off := 0
	buf[off] = s.ShooterIdx
	off++
	le.PutUint16(buf[off:], uint16(s.OriginX))
	off += 2
	le.PutUint16(buf[off:], uint16(s.OriginY))
	off += 2
	le.PutUint16(buf[off:], uint16(s.OriginZ))
	off += 2
	buf[off] = byte(s.DirX)
	off++
	buf[off] = byte(s.DirY)
	off++
	buf[off] = byte(s.DirZ)
	off++
	buf[off] = s.Length
	off++
	return off
}

func getQuantizedShot(buf []byte) (QuantizedShot, int) {
	off := 0
	var s QuantizedShot
	s.ShooterIdx = buf[off]
	off++
	s.OriginX = int16(le.Uint16(buf[off:]))
	off += 2
	s.OriginY = int16(le.Uint16(buf[off:]))
	off += 2
	s.OriginZ = int16(le.Uint16(buf[off:]))
	off += 2
	s.DirX = int8(buf[off])
	off++
	s.DirY = int8(buf[off])
	off++
	s.DirZ = int8(buf[off])
	off++
	s.Length = buf[off]
	off++
	return s, off
}

// DecodeSnapshot parses a SNAPSHOT message body (buf[0] must be MsgSnapshot).
func DecodeSnapshot(buf []byte) (Snapshot, error) {
	if len(buf) < SnapshotPayloadSize {
		return Snapshot{}, fmt.Errorf("wire: short snapshot payload (%d bytes)", len(buf))
	}
	if buf[0] != MsgSnapshot {
		return Snapshot{}, fmt.Errorf("wire: not a snapshot message (type %d)", buf[0])
	}
	off := 1
	var s Snapshot
	s.ServerTime = getF32(buf[off:])
	off += 4
	off++ // player_count, implied by fixed array width
	s.ShotCount = buf[off]
	off++
	for i := 0; i < limits.MaxPlayers; i++ {
		p, n := getQuantizedPlayer(buf[off:])
		s.Players[i] = p
		off += n
	}
	for i := 0; i < limits.MaxShots; i++ {
		sh, n := getQuantizedShot(buf[off:])
		s.Shots[i] = sh
		off += n
	}
	return s, nil
}

// EncodeInput serializes an Input payload into buf (after the header).
func EncodeInput(buf []byte, in Input) int {
	off := 0
	buf[off] = MsgInput
	off++
	le.PutUint32(buf[off:], in.Sequence)
	off += 4
	putF32(buf[off:], in.MoveX)
	off += 4
	putF32(buf[off:], in.MoveZ)
	off += 4
	putF32(buf[off:], in.LookYaw)
	off += 4
	putF32(buf[off:], in.LookPitch)
	off += 4
	buf[off] = in.Buttons
	off++
	putF32(buf[off:], in.ShotTime)
	off += 4
	putF32(buf[off:], in.Time)
	off += 4
	return off
}

// InputPayloadSize is the fixed encoded size of an INPUT message body.
const InputPayloadSize = 1 + 4 + 4 + 4 + 4 + 4 + 1 + 4 + 4

// DecodeInput parses an INPUT message body.
func DecodeInput(buf []byte) (Input, error) {
	if len(buf) < InputPayloadSize {
		return Input{}, fmt.Errorf("wire: short input payload (%d bytes)", len(buf))
	}
	if buf[0] != MsgInput {
		return Input{}, fmt.Errorf("wire: not an input message (type %d)", buf[0])
	}
	off := 1
	var in Input
	in.Sequence = le.Uint32(buf[off:])
	off += 4
	in.MoveX = getF32(buf[off:])
	off += 4
	in.MoveZ = getF32(buf[off:])
	off += 4
	in.LookYaw = getF32(buf[off:])
	off += 4
	in.LookPitch = getF32(buf[off:])
	off += 4
	in.Buttons = buf[off]
	off++
	in.ShotTime = getF32(buf[off:])
	off += 4
	in.Time = getF32(buf[off:])
	off += 4
	return in, nil
}

// EncodePlayerLeft serializes a PLAYER_LEFT message body into buf.
func EncodePlayerLeft(buf []byte, p PlayerLeft) int {
	buf[0] = MsgPlayerLeft
	buf[1] = byte(p.PlayerIdx)
	return 2
}

// DecodePlayerLeft parses a PLAYER_LEFT message body.
func DecodePlayerLeft(buf []byte) (PlayerLeft, error) {
	if len(buf) < 2 {
		return PlayerLeft{}, fmt.Errorf("wire: short player_left payload")
	}
	return PlayerLeft{PlayerIdx: int8(buf[1])}, nil
}

// EncodePlayerDied serializes a PLAYER_DIED message body into buf.
func EncodePlayerDied(buf []byte, p PlayerDied) int {
	buf[0] = MsgPlayerDied
	buf[1] = byte(p.KillerIdx)
	buf[2] = byte(p.KilledIdx)
	return 3
}

// DecodePlayerDied parses a PLAYER_DIED message body.
func DecodePlayerDied(buf []byte) (PlayerDied, error) {
	if len(buf) < 3 {
		return PlayerDied{}, fmt.Errorf("wire: short player_died payload")
	}
	return PlayerDied{KillerIdx: int8(buf[1]), KilledIdx: int8(buf[2])}, nil
}

// EncodeConnectRequest serializes a CONNECT_REQUEST message body into buf.
func EncodeConnectRequest(buf []byte, c ConnectRequest) int {
	buf[0] = MsgConnectRequest
	copy(buf[1:33], c.PlayerName[:])
	return 33
}

// DecodeConnectRequest parses a CONNECT_REQUEST message body.
func DecodeConnectRequest(buf []byte) (ConnectRequest, error) {
	if len(buf) < 33 {
		return ConnectRequest{}, fmt.Errorf("wire: short connect_request payload")
	}
	var c ConnectRequest
	copy(c.PlayerName[:], buf[1:33])
	return c, nil
}

// EncodeConnectAccept serializes a CONNECT_ACCEPT message body into buf.
func EncodeConnectAccept(buf []byte, c ConnectAccept) int {
	buf[0] = MsgConnectAccept
	putF32(buf[1:], c.ServerTime)
	buf[5] = byte(c.PlayerIndex)
	return 6
}

// DecodeConnectAccept parses a CONNECT_ACCEPT message body.
func DecodeConnectAccept(buf []byte) (ConnectAccept, error) {
	if len(buf) < 6 {
		return ConnectAccept{}, fmt.Errorf("wire: short connect_accept payload")
	}
	return ConnectAccept{ServerTime: getF32(buf[1:]), PlayerIndex: int8(buf[5])}, nil
}
