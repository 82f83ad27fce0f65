// Package wire implements the datagram packet header and the message
// codecs that ride inside it. Layout is fixed and little-endian; see
// §4.1 and §6 of the specification this module implements.
package wire

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed byte size of the packet header.
const HeaderSize = 1 + 1 + 2 + 4 + 2 // type + flags + sequence + ack_bits + ack

// MTU is the maximum total packet size (header + payload) this transport
// will ever send.
const MTU = 1500

// FlagReliable marks a packet as requiring acknowledgement and retransmission.
const FlagReliable = 1 << 0

// Header is the wire-level packet header, transmitted verbatim before the
// payload on every packet.
type Header struct {
	Type     byte
	Flags    byte
	Sequence uint16
	AckBits  uint32
	Ack      uint16
}

// Reliable reports whether the reliable flag bit is set.
func (h Header) Reliable() bool { return h.Flags&FlagReliable != 0 }

var errShortHeader = errors.New("wire: packet shorter than header")

// PutHeader encodes h into the front of buf, which must be at least
// HeaderSize bytes long, and returns the number of bytes written.
func PutHeader(buf []byte, h Header) int {
	buf[0] = h.Type
	buf[1] = h.Flags
	binary.LittleEndian.PutUint16(buf[2:4], h.Sequence)
	binary.LittleEndian.PutUint32(buf[4:8], h.AckBits)
	binary.LittleEndian.PutUint16(buf[8:10], h.Ack)
	return HeaderSize
}

// ParseHeader decodes a Header from the front of buf and returns the
// remaining payload slice.
func ParseHeader(buf []byte) (Header, []byte, error) {
	if len(buf) < HeaderSize {
		return Header{}, nil, errShortHeader
	}
	h := Header{
		Type:     buf[0],
		Flags:    buf[1],
		Sequence: binary.LittleEndian.Uint16(buf[2:4]),
		AckBits:  binary.LittleEndian.Uint32(buf[4:8]),
		Ack:      binary.LittleEndian.Uint16(buf[8:10]),
	}
	return h, buf[HeaderSize:], nil
}

// SeqGreater reports whether a is "newer" than b under 16-bit signed
// wraparound comparison (§3 invariant 1, §8 sequence wraparound property).
func SeqGreater(a, b uint16) bool {
	return int16(a-b) > 0
}

// SeqDiff returns a-b as a signed 16-bit difference.
func SeqDiff(a, b uint16) int16 {
	return int16(a - b)
}
