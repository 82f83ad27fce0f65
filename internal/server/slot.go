package server

import (
	"net"
	"time"

	"duelcore/pkg/limits"
	"duelcore/pkg/sim"
	"duelcore/pkg/wire"
)

// inputQueue is the per-player bounded FIFO of undrained input messages
// (§4.2 step 1, capacity 12). A full queue drops the newest arrival,
// since inputs are sent unreliably and a dropped one is simply replaced
// by the next tick's.
type inputQueue struct {
	buf   [limits.ServerInputBuffer]wire.Input
	head  int
	count int
}

func (q *inputQueue) push(in wire.Input) bool {
	if q.count == limits.ServerInputBuffer {
		return false
	}
	q.buf[(q.head+q.count)%limits.ServerInputBuffer] = in
	q.count++
	return true
}

func (q *inputQueue) pop() (wire.Input, bool) {
	if q.count == 0 {
		return wire.Input{}, false
	}
	in := q.buf[q.head]
	q.head = (q.head + 1) % limits.ServerInputBuffer
	q.count--
	return in, true
}

// slot is one player seat on the server. Its position in the §4.2 state
// machine (INACTIVE / ACTIVE_ALIVE / ACTIVE_DEAD) is derived from
// Player.Active and Player.Health rather than tracked redundantly:
// !Active → INACTIVE, Active && Alive() → ACTIVE_ALIVE, Active &&
// !Alive() → ACTIVE_DEAD.
type slot struct {
	Player    sim.Player
	Addr      *net.UDPAddr
	Inputs    inputQueue
	RespawnAt time.Time // zero when no respawn is pending
}

func (s *slot) active() bool {
	return s.Player.Active
}
