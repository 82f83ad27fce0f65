package transport

import (
	"net"
	"time"

	"duelcore/pkg/limits"
	"duelcore/pkg/wire"
)

// pendingPacket is a reliable packet awaiting acknowledgement, occupying
// slot `sequence mod 32` of a peer's reliable window (§3, §4.1).
type pendingPacket struct {
	inUse          bool
	sequence       uint16
	bufIdx         uint32
	size           int
	sendTime       time.Time
	nextRetransmit time.Time
	retryCount     int
}

// packetClass is the outcome of classifying an incoming sequence number
// against a peer's receive window (§4.1).
type packetClass int

const (
	classDuplicate packetClass = iota
	classTooOld
	classFresh
	classOutOfOrderAccepted
)

// Peer tracks one remote endpoint's transport session: outgoing sequence
// numbering, the receive bitmask, the in-flight reliable window, RTT, and
// liveness (§3's PeerState).
type Peer struct {
	Addr *net.UDPAddr

	localSequence  uint16
	remoteSequence uint16
	haveRemote     bool
	recvBitmask    uint32

	window      [limits.ReliableWindow]pendingPacket
	windowMask  uint32
	windowStart uint16

	RTT      time.Duration
	LastSeen time.Time

	// RetransmitFactor is the multiple of RTT a reliable send waits
	// before retrying; Endpoint stamps this from its own field when the
	// peer is created.
	RetransmitFactor float64
}

func newPeer(addr *net.UDPAddr, now time.Time) *Peer {
	return &Peer{Addr: addr, LastSeen: now, RTT: 100 * time.Millisecond, RetransmitFactor: DefaultRetransmitFactor}
}

// canSendReliable reports whether sending one more reliable packet would
// stay within the 32-packet window.
func (p *Peer) canSendReliable() bool {
	next := p.localSequence + 1
	return wire.SeqDiff(next, p.windowStart) < limits.ReliableWindow
}

// nextSequence allocates the next outgoing sequence number without recording
// it as reliable; callers fill the header and, for reliable sends, call
// recordReliable afterward.
func (p *Peer) nextSequence() uint16 {
	p.localSequence++
	return p.localSequence
}

// recordReliable stores a just-sent reliable packet in the window so the
// retransmission sweep and ack processing can find it.
func (p *Peer) recordReliable(seq uint16, bufIdx uint32, size int, now time.Time) {
	slot := seq % limits.ReliableWindow
	if p.windowMask == 0 {
		// An empty window starts at the first packet put into it.
		p.windowStart = seq
	}
	p.window[slot] = pendingPacket{
		inUse:          true,
		sequence:       seq,
		bufIdx:         bufIdx,
		size:           size,
		sendTime:       now,
		nextRetransmit: now.Add(retransmitDelay(p.RTT, p.RetransmitFactor)),
		retryCount:     0,
	}
	p.windowMask |= 1 << slot
}

func retransmitDelay(rtt time.Duration, factor float64) time.Duration {
	return time.Duration(factor * float64(rtt))
}

// ackReleaser is implemented by bufferPool; kept as an interface so peer
// tests can fake it.
type ackReleaser interface {
	release(idx uint32)
}

// processAck applies an incoming header's ack/ack_bits to this peer's
// reliable window: every acknowledged sequence frees its slot, updates the
// RTT sample, and window_start advances past any contiguously cleared
// slots (§4.1, §8 ack monotonicity).
func (p *Peer) processAck(ack uint16, ackBits uint32, now time.Time, pool ackReleaser) {
	p.ackOne(ack, now, pool)
	for k := 0; k < 32; k++ {
		if ackBits&(1<<uint(k)) == 0 {
			continue
		}
		p.ackOne(ack-uint16(k+1), now, pool)
	}
	p.advanceWindowStart()
}

func (p *Peer) ackOne(seq uint16, now time.Time, pool ackReleaser) {
	slot := seq % limits.ReliableWindow
	pp := &p.window[slot]
	if !pp.inUse || pp.sequence != seq {
		return
	}
	p.RTT = now.Sub(pp.sendTime)
	pool.release(pp.bufIdx)
	pp.inUse = false
	p.windowMask &^= 1 << slot
}

func (p *Peer) advanceWindowStart() {
	if p.windowMask == 0 {
		p.windowStart = p.localSequence
		return
	}
	for i := 0; i < limits.ReliableWindow; i++ {
		slot := p.windowStart % limits.ReliableWindow
		if p.windowMask&(1<<slot) != 0 {
			break
		}
		p.windowStart++
	}
}

// classify determines how a newly arrived sequence number relates to this
// peer's receive window and updates that window when the packet is fresh
// or an accepted out-of-order arrival (§4.1, §8 wraparound property).
func (p *Peer) classify(seq uint16) packetClass {
	if !p.haveRemote {
		p.haveRemote = true
		p.remoteSequence = seq
		p.recvBitmask = 0
		return classFresh
	}

	diff := wire.SeqDiff(seq, p.remoteSequence)
	switch {
	case diff == 0:
		return classDuplicate
	case diff > 0 && diff <= limits.ReliableWindow:
		p.recvBitmask = (p.recvBitmask << uint(diff)) | (1 << uint(diff-1))
		p.remoteSequence = seq
		return classFresh
	case diff > limits.ReliableWindow:
		p.recvBitmask = 0
		p.remoteSequence = seq
		return classFresh
	case -diff >= limits.ReliableWindow:
		return classTooOld
	default:
		bit := uint(-diff - 1)
		if p.recvBitmask&(1<<bit) != 0 {
			return classDuplicate
		}
		p.recvBitmask |= 1 << bit
		return classOutOfOrderAccepted
	}
}

// ackFields returns the (ack, ack_bits) pair to stamp on our next outgoing
// header: the latest remote sequence we've observed and a mirror of our
// receive bitmask (§4.1).
func (p *Peer) ackFields() (uint16, uint32) {
	return p.remoteSequence, p.recvBitmask
}

// releaseAllPending returns every outstanding reliable buffer to the pool,
// used when a peer is removed (§3 invariant 3).
func (p *Peer) releaseAllPending(pool ackReleaser) {
	for i := range p.window {
		if p.window[i].inUse {
			pool.release(p.window[i].bufIdx)
			p.window[i].inUse = false
		}
	}
	p.windowMask = 0
}
