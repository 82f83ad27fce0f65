// Package server implements the authoritative tick loop: connect
// handling, input processing, lag-compensated shot resolution, the
// player lifecycle state machine, and periodic snapshot broadcast (§4.2).
package server

import (
	"context"
	"log"
	"net"
	"time"

	"golang.org/x/time/rate"

	"duelcore/pkg/limits"
	"duelcore/pkg/sim"
	"duelcore/pkg/transport"
	"duelcore/pkg/wire"
	"duelcore/pkg/world"

	"duelcore/internal/config"
)

// Server owns the authoritative world and drives the tick loop described
// in §4.2. It is meant to be run from a single goroutine (T2); the
// transport's own receive worker is the only other thread involved.
type Server struct {
	ep     *transport.Endpoint
	arena  world.Arena
	tun    config.Tunables
	slots  [limits.MaxPlayers]slot
	byAddr map[string]int

	history   historyRing
	serverTime float32
	tickShots []wire.QuantizedShot

	lastSweep     time.Time
	lastSnapshot  time.Time
	lastStatusLog time.Time

	acceptLimiters map[string]*rate.Limiter
}

// NewServer binds a UDP endpoint at listenAddr and constructs a server
// with the default arena and the given tunables.
func NewServer(listenAddr string, tun config.Tunables) (*Server, error) {
	ep, err := transport.NewEndpoint(listenAddr)
	if err != nil {
		return nil, err
	}
	ep.PeerInactivityTimeout = time.Duration(tun.PeerInactivitySec * float64(time.Second))
	ep.MaxRetries = tun.ReliableRetryLimit
	ep.RetransmitFactor = tun.RetransmitFactor

	s := &Server{
		ep:             ep,
		arena:          world.Default(),
		tun:            tun,
		byAddr:         make(map[string]int, limits.MaxPlayers),
		acceptLimiters: make(map[string]*rate.Limiter),
	}
	for i := range s.slots {
		s.slots[i].Player.Index = sim.InactiveIndex
	}
	ep.AcceptUnrecognized = s.acceptPolicy
	ep.OnPeerRemoved = s.onPeerRemoved
	return s, nil
}

// LocalAddr returns the bound listen address.
func (s *Server) LocalAddr() *net.UDPAddr {
	return s.ep.LocalAddr()
}

// acceptPolicy throttles CONNECT_REQUEST floods from a single address
// with a token bucket before falling through to the server's default
// accept-everyone-unrecognized behavior (§4.1 default policy, SPEC_FULL.md
// DOMAIN STACK accept throttle).
func (s *Server) acceptPolicy(addr *net.UDPAddr) bool {
	key := addr.IP.String()
	lim, ok := s.acceptLimiters[key]
	if !ok {
		if len(s.acceptLimiters) >= limits.MaxPeers*4 {
			s.acceptLimiters = make(map[string]*rate.Limiter, limits.MaxPeers*4)
		}
		lim = rate.NewLimiter(rate.Limit(s.tun.AcceptRatePerSec), s.tun.AcceptBurst)
		s.acceptLimiters[key] = lim
	}
	return lim.Allow()
}

func (s *Server) onPeerRemoved(addr *net.UDPAddr) {
	idx, ok := s.byAddr[addr.String()]
	if !ok {
		return
	}
	delete(s.byAddr, addr.String())
	s.deactivateSlot(idx)
	s.broadcastReliable(wire.MsgPlayerLeft, func(buf []byte) int {
		return wire.EncodePlayerLeft(buf, wire.PlayerLeft{PlayerIdx: int8(idx)})
	})
}

func (s *Server) deactivateSlot(idx int) {
	s.slots[idx] = slot{}
	s.slots[idx].Player.Index = sim.InactiveIndex
}

// Run drives the tick loop at tun.TickHz until ctx is cancelled, then
// stops the transport and returns.
func (s *Server) Run(ctx context.Context) error {
	s.ep.Start()
	defer s.ep.Stop()

	period := time.Second / time.Duration(s.tun.TickHz)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	log.Printf("server: listening on %s, tick %dHz", s.LocalAddr(), s.tun.TickHz)

	for {
		select {
		case <-ctx.Done():
			log.Println("server: shutting down")
			return nil
		case <-ticker.C:
			s.tick(float32(period.Seconds()))
		}
	}
}

func (s *Server) tick(dt float32) {
	now := time.Now()
	s.serverTime += dt
	s.tickShots = s.tickShots[:0]

	s.drainTransport()
	s.processInputs(dt)
	s.advanceRespawns(now)

	s.history.push(historyFrame{Timestamp: s.serverTime, Players: s.playerArray()})

	if now.Sub(s.lastSnapshot) >= time.Second/time.Duration(s.tun.SnapshotHz) {
		s.lastSnapshot = now
		s.broadcastSnapshot()
	}
	if now.Sub(s.lastSweep) >= 100*time.Millisecond {
		s.lastSweep = now
		s.ep.Update(now)
	}
	if now.Sub(s.lastStatusLog) >= time.Second {
		s.lastStatusLog = now
		s.logStatus()
	}
}

func (s *Server) playerArray() [limits.MaxPlayers]sim.Player {
	var arr [limits.MaxPlayers]sim.Player
	for i := range s.slots {
		arr[i] = s.slots[i].Player
	}
	return arr
}

func (s *Server) logStatus() {
	active := 0
	for i := range s.slots {
		if s.slots[i].active() {
			active++
		}
	}
	log.Printf("server: %d/%d players, %d peers", active, limits.MaxPlayers, s.ep.PeerCount())
}
