package server

import (
	"duelcore/pkg/limits"
	"duelcore/pkg/sim"
)

// historyFrame is one tick's worth of authoritative player state, stamped
// with the server clock at which it was captured (§3 Snapshot, history
// ring).
type historyFrame struct {
	Timestamp float32
	Players   [limits.MaxPlayers]sim.Player
}

// historyRing is the server's fixed-capacity ring of past frames used for
// lag-compensated hit tests (§3, §4.2). Capacity is frozen at
// limits.ServerHistory (≥ 64 per §3).
type historyRing struct {
	frames [limits.ServerHistory]historyFrame
	count  int
	write  int
}

func (r *historyRing) push(f historyFrame) {
	r.frames[r.write] = f
	r.write = (r.write + 1) % limits.ServerHistory
	if r.count < limits.ServerHistory {
		r.count++
	}
}

// nearestAtOrBefore searches newest to oldest for the first frame whose
// timestamp is ≤ t (§4.2 lag-compensated shot). ok is false if the ring
// holds no such frame, in which case the caller should fall back to the
// live frame.
func (r *historyRing) nearestAtOrBefore(t float32) (historyFrame, bool) {
	for i := 0; i < r.count; i++ {
		idx := (r.write - 1 - i + limits.ServerHistory) % limits.ServerHistory
		f := r.frames[idx]
		if f.Timestamp <= t {
			return f, true
		}
	}
	return historyFrame{}, false
}
