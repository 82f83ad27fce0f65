// Package transport implements the datagram endpoint: per-peer sequence
// numbering, piggy-backed sliding-window acknowledgement, retransmission of
// reliable messages, peer liveness, RTT estimation, and a decoupled
// receive thread handing packets to the main thread through an SPSC queue
// (§4.1, §5 of the specification).
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"duelcore/pkg/limits"
	"duelcore/pkg/wire"
)

// ErrWindowFull is reported to the caller when a peer already has 32
// unacknowledged reliable packets outstanding (§4.1 step 1, §7).
var ErrWindowFull = errors.New("transport: reliable window full")

// ErrBufferPoolExhausted is reported when no free packet buffer is
// available to keep a reliable packet for retransmission; the packet has
// already been sent once when this is returned.
var ErrBufferPoolExhausted = errors.New("transport: buffer pool exhausted")

// DefaultPeerInactivityTimeout, DefaultMaxRetries and DefaultRetransmitFactor
// are the §6 frozen tunable values; callers that thread a config.Tunables
// through override Endpoint's exported fields of the same names instead of
// relying on these.
const (
	DefaultPeerInactivityTimeout = 4 * time.Second
	DefaultMaxRetries            = 10
	DefaultRetransmitFactor      = 1.1

	receiveReadTimeout  = 100 * time.Millisecond
	freeQueueRetryDelay = 100 * time.Microsecond
)

// Polled is one payload surfaced by Poll: the source peer address and the
// payload bytes minus the header. Callers must call Endpoint.Release with
// the returned Polled value once done reading Payload.
type Polled struct {
	Addr    *net.UDPAddr
	Payload []byte
	bufIdx  uint32
}

// Endpoint is a bi-directional datagram transport session shared by the
// server and the client (§4.1). All peer-table and window state is only
// ever touched from the caller's own goroutine (T2, the "main loop"); the
// receive worker (T1) only reads the socket and pushes descriptors.
type Endpoint struct {
	conn *net.UDPConn
	pool *bufferPool
	recv *spscQueue[recvDescriptor]

	peers map[string]*Peer

	stopping atomic.Bool
	wg       sync.WaitGroup

	// AcceptUnrecognized decides whether a datagram from an address with
	// no peer entry should create one. The server's default is to accept,
	// the client's default is to reject (§4.1).
	AcceptUnrecognized func(addr *net.UDPAddr) bool
	// OnPeerRemoved fires when a peer is pruned for inactivity or max
	// retransmit retries (§4.1, §7).
	OnPeerRemoved func(addr *net.UDPAddr)

	// PeerInactivityTimeout, MaxRetries and RetransmitFactor are the
	// operator-tunable knobs behind §4.1's liveness and retransmission
	// sweep; NewEndpoint seeds them with the §6 frozen defaults, and a
	// caller wiring a config.Tunables overrides them before Start.
	PeerInactivityTimeout time.Duration
	MaxRetries            int
	RetransmitFactor      float64

	sendScratch [wire.MTU]byte
}

// NewEndpoint binds a UDP socket at laddr ("" picks any local port for an
// outbound-only client, "host:port" to bind a specific address).
func NewEndpoint(laddr string) (*Endpoint, error) {
	addr, err := net.ResolveUDPAddr("udp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %q: %w", laddr, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %q: %w", laddr, err)
	}
	ep := &Endpoint{
		conn:                  conn,
		pool:                  newBufferPool(),
		recv:                  newSPSCQueue[recvDescriptor](limits.PacketPool),
		peers:                 make(map[string]*Peer, limits.MaxPeers),
		AcceptUnrecognized:    func(*net.UDPAddr) bool { return false },
		PeerInactivityTimeout: DefaultPeerInactivityTimeout,
		MaxRetries:            DefaultMaxRetries,
		RetransmitFactor:      DefaultRetransmitFactor,
	}
	return ep, nil
}

// LocalAddr returns the bound local address.
func (e *Endpoint) LocalAddr() *net.UDPAddr {
	return e.conn.LocalAddr().(*net.UDPAddr)
}

// Start launches the receive worker goroutine (T1).
func (e *Endpoint) Start() {
	e.wg.Add(1)
	go e.receiveLoop()
}

// Stop signals the receive worker to exit, closes the socket, and waits
// for the worker to join (§5 cancellation).
func (e *Endpoint) Stop() {
	e.stopping.Store(true)
	e.conn.Close()
	e.wg.Wait()
}

// receiveLoop is T1: acquire a free buffer, block-read with a short
// timeout, and publish a descriptor. On any failure the buffer is
// returned immediately (§4.1 incoming path).
func (e *Endpoint) receiveLoop() {
	defer e.wg.Done()
	for !e.stopping.Load() {
		idx, ok := e.pool.acquire()
		if !ok {
			time.Sleep(freeQueueRetryDelay)
			continue
		}

		buf := e.pool.at(idx)
		_ = e.conn.SetReadDeadline(time.Now().Add(receiveReadTimeout))
		n, addr, err := e.conn.ReadFromUDP(buf)
		if err != nil {
			e.pool.release(idx)
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if e.stopping.Load() {
				return
			}
			continue // transient error: reported only via dropped packet
		}

		if n < wire.HeaderSize {
			e.pool.release(idx)
			continue
		}

		if !e.recv.Push(recvDescriptor{bufIdx: idx, addr: addr, size: n}) {
			e.pool.release(idx)
		}
	}
}

// Poll drains one payload from the receive queue, applying the ack/bitmask
// processing and sequence classification of §4.1. It returns ok=false when
// the queue is empty or the packet was dropped (unknown sender rejected,
// duplicate, too old, or malformed).
func (e *Endpoint) Poll() (Polled, bool) {
	desc, ok := e.recv.Pop()
	if !ok {
		return Polled{}, false
	}

	buf := e.pool.at(desc.bufIdx)[:desc.size]
	hdr, body, err := wire.ParseHeader(buf)
	if err != nil {
		e.pool.release(desc.bufIdx)
		return Polled{}, false
	}

	peer, known := e.peers[desc.addr.String()]
	now := time.Now()
	if !known {
		if len(e.peers) >= limits.MaxPeers || !e.AcceptUnrecognized(desc.addr) {
			e.pool.release(desc.bufIdx)
			return Polled{}, false
		}
		peer = newPeer(desc.addr, now)
		peer.RetransmitFactor = e.RetransmitFactor
		e.peers[desc.addr.String()] = peer
	}
	peer.LastSeen = now

	peer.processAck(hdr.Ack, hdr.AckBits, now, e.pool)

	class := peer.classify(hdr.Sequence)
	if class == classDuplicate || class == classTooOld {
		e.pool.release(desc.bufIdx)
		return Polled{}, false
	}

	return Polled{Addr: desc.addr, Payload: body, bufIdx: desc.bufIdx}, true
}

// Release returns a polled payload's buffer to the pool. Callers must call
// this exactly once after they are done reading a Polled value's Payload.
func (e *Endpoint) Release(p Polled) {
	e.pool.release(p.bufIdx)
}

// SendUnreliable transmits body (whose first byte must already be the
// message type per §6) to addr without buffering or retransmission.
func (e *Endpoint) SendUnreliable(addr *net.UDPAddr, msgType byte, body []byte) error {
	peer := e.peerFor(addr)
	return e.sendRaw(peer, addr, msgType, body, false)
}

// SendReliable transmits body, buffering it for retransmission until
// acknowledged. Returns ErrWindowFull if the peer already has 32
// unacknowledged reliable packets in flight (§4.1 step 1).
func (e *Endpoint) SendReliable(addr *net.UDPAddr, msgType byte, body []byte) error {
	peer := e.peerFor(addr)
	if !peer.canSendReliable() {
		return ErrWindowFull
	}
	return e.sendRaw(peer, addr, msgType, body, true)
}

// peerFor returns the peer entry for addr, creating one if this is our
// first outbound send to it (the client dials a server it has no inbound
// packet from yet).
func (e *Endpoint) peerFor(addr *net.UDPAddr) *Peer {
	key := addr.String()
	peer, ok := e.peers[key]
	if !ok {
		peer = newPeer(addr, time.Now())
		peer.RetransmitFactor = e.RetransmitFactor
		e.peers[key] = peer
	}
	return peer
}

func (e *Endpoint) sendRaw(peer *Peer, addr *net.UDPAddr, msgType byte, body []byte, reliable bool) error {
	total := wire.HeaderSize + len(body)
	if total > wire.MTU {
		return fmt.Errorf("transport: packet size %d exceeds MTU", total)
	}

	seq := peer.nextSequence()
	ack, ackBits := peer.ackFields()
	flags := byte(0)
	if reliable {
		flags = wire.FlagReliable
	}
	hdr := wire.Header{Type: msgType, Flags: flags, Sequence: seq, AckBits: ackBits, Ack: ack}

	buf := e.sendScratch[:total]
	wire.PutHeader(buf, hdr)
	copy(buf[wire.HeaderSize:], body)

	if _, err := e.conn.WriteToUDP(buf, addr); err != nil {
		return fmt.Errorf("transport: write to %s: %w", addr, err)
	}

	if reliable {
		idx, ok := e.pool.acquire()
		if !ok {
			return ErrBufferPoolExhausted
		}
		copy(e.pool.at(idx), buf)
		peer.recordReliable(seq, idx, total, time.Now())
	}
	return nil
}

// Update runs the per-tick maintenance sweep (§4.1 retransmission sweep):
// prune inactive peers, then retransmit any reliable packet whose
// retransmit deadline has elapsed.
func (e *Endpoint) Update(now time.Time) {
	for key, peer := range e.peers {
		if now.Sub(peer.LastSeen) > e.PeerInactivityTimeout {
			e.removePeer(key, peer)
			continue
		}
		e.sweepPeer(key, peer, now)
	}
}

func (e *Endpoint) sweepPeer(key string, peer *Peer, now time.Time) {
	removed := false
	for slot := range peer.window {
		pp := &peer.window[slot]
		if !pp.inUse || now.Before(pp.nextRetransmit) {
			continue
		}
		if _, err := e.conn.WriteToUDP(e.pool.at(pp.bufIdx)[:pp.size], peer.Addr); err != nil {
			continue
		}
		pp.retryCount++
		pp.nextRetransmit = now.Add(retransmitDelay(peer.RTT, peer.RetransmitFactor))
		if pp.retryCount >= e.MaxRetries {
			removed = true
			break
		}
	}
	if removed {
		e.removePeer(key, peer)
	}
}

func (e *Endpoint) removePeer(key string, peer *Peer) {
	peer.releaseAllPending(e.pool)
	delete(e.peers, key)
	if e.OnPeerRemoved != nil {
		e.OnPeerRemoved(peer.Addr)
	}
}

// PeerCount returns the number of currently tracked peers.
func (e *Endpoint) PeerCount() int {
	return len(e.peers)
}

// RemovePeer forcibly removes a peer (e.g. the server dropping a client
// that sent an explicit leave), invoking OnPeerRemoved like any other
// removal path.
func (e *Endpoint) RemovePeer(addr *net.UDPAddr) {
	key := addr.String()
	if peer, ok := e.peers[key]; ok {
		e.removePeer(key, peer)
	}
}

// PeerRTT returns the current RTT estimate for addr, or 0 if unknown.
func (e *Endpoint) PeerRTT(addr *net.UDPAddr) time.Duration {
	if peer, ok := e.peers[addr.String()]; ok {
		return peer.RTT
	}
	return 0
}
