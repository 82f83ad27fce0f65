package transport

import (
	"net"

	"duelcore/pkg/limits"
	"duelcore/pkg/wire"
)

// recvDescriptor is what the receive worker hands the main loop through
// the "received" SPSC queue: a buffer index, where it came from, and how
// much of the buffer holds a valid datagram.
type recvDescriptor struct {
	bufIdx uint32
	addr   *net.UDPAddr
	size   int
}

// bufferPool is the fixed-size pool of packet buffers shared between the
// receive worker and the main loop, per §3's ownership model: the receive
// thread acquires a free index before writing, the consumer returns it
// after draining the payload.
type bufferPool struct {
	buffers [limits.PacketPool][]byte
	free    *spscQueue[uint32]
}

func newBufferPool() *bufferPool {
	p := &bufferPool{free: newSPSCQueue[uint32](limits.PacketPool)}
	for i := range p.buffers {
		p.buffers[i] = make([]byte, wire.MTU)
		p.free.Push(uint32(i))
	}
	return p
}

// acquire pops a free buffer index. It reports false if the pool is
// exhausted.
func (p *bufferPool) acquire() (uint32, bool) {
	return p.free.Pop()
}

// release returns a buffer index to the free pool.
func (p *bufferPool) release(idx uint32) {
	// Capacity always equals the total number of indices in circulation,
	// so Push can only fail if a caller double-releases the same index.
	if !p.free.Push(idx) {
		panic("transport: buffer pool overfull, likely a double release")
	}
}

func (p *bufferPool) at(idx uint32) []byte {
	return p.buffers[idx]
}
