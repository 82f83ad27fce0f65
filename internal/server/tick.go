package server

import (
	"log"
	"net"
	"time"

	"duelcore/pkg/limits"
	"duelcore/pkg/sim"
	"duelcore/pkg/wire"
)

func (s *Server) drainTransport() {
	for {
		polled, ok := s.ep.Poll()
		if !ok {
			return
		}
		msg, err := wire.Decode(polled.Payload)
		s.ep.Release(polled)
		if err != nil {
			continue
		}

		switch m := msg.(type) {
		case wire.ConnectRequest:
			s.handleConnect(polled.Addr, m)
		case wire.Input:
			s.handleInput(polled.Addr, m)
		default:
			// PLAYER_LEFT/PLAYER_DIED/SNAPSHOT/CONNECT_ACCEPT are
			// server-to-client only; a client that sends one is ignored.
		}
	}
}

func (s *Server) handleConnect(addr *net.UDPAddr, req wire.ConnectRequest) {
	if _, already := s.byAddr[addr.String()]; already {
		return
	}

	idx := -1
	for i := range s.slots {
		if !s.slots[i].active() {
			idx = i
			break
		}
	}
	if idx == -1 {
		return // server full
	}

	spawn := s.arena.Spawns[idx%len(s.arena.Spawns)]
	player := sim.NewPlayer(idx, spawn)
	player.Health = s.tun.StartingHealth
	s.slots[idx] = slot{Player: player, Addr: addr}
	s.byAddr[addr.String()] = idx

	log.Printf("server: player %d connected from %s as %q", idx, addr, req.Name())

	buf := make([]byte, 6)
	n := wire.EncodeConnectAccept(buf, wire.ConnectAccept{ServerTime: s.serverTime, PlayerIndex: int8(idx)})
	if err := s.ep.SendReliable(addr, wire.MsgConnectAccept, buf[:n]); err != nil {
		log.Printf("server: connect-accept to %s: %v", addr, err)
	}
}

func (s *Server) handleInput(addr *net.UDPAddr, in wire.Input) {
	idx, ok := s.byAddr[addr.String()]
	if !ok || !s.slots[idx].active() {
		return
	}
	s.slots[idx].Inputs.push(in)
}

func (s *Server) processInputs(dt float32) {
	for idx := range s.slots {
		sl := &s.slots[idx]
		if !sl.active() {
			continue
		}
		for {
			in, ok := sl.Inputs.pop()
			if !ok {
				break
			}
			if in.Sequence <= sl.Player.LastProcessed {
				continue
			}
			sl.Player.LastProcessed = in.Sequence

			if in.Shoot() && sl.Player.Alive() {
				s.resolveShot(idx, in)
			}
			sl.Player = sim.ApplyInput(sl.Player, in, dt)
			sl.Player = sim.StepPhysics(sl.Player, dt, s.arena)
		}
	}
}

// resolveShot performs the §4.2 lag-compensated trace: reconstruct the
// shooter's ray from the historical frame at or before shot_time, resolve
// against that frame's players, and apply damage against the *current*
// target slot (health is always authoritative-now, only the geometry used
// to aim is historical).
func (s *Server) resolveShot(shooterIdx int, in wire.Input) {
	frame, ok := s.history.nearestAtOrBefore(in.ShotTime)
	var shooter sim.Player
	var roster [limits.MaxPlayers]sim.Player
	if ok {
		shooter = frame.Players[shooterIdx]
		roster = frame.Players
	} else {
		shooter = s.slots[shooterIdx].Player
		roster = s.playerArray()
	}

	shot := sim.Shot{
		ShooterIdx: shooterIdx,
		Origin:     sim.EyePosition(shooter),
		Dir:        sim.LookDir(shooter),
		MaxLength:  200,
	}
	result := sim.ResolveShot(shot, s.arena, roster[:])

	s.tickShots = append(s.tickShots, wire.QuantizedShot{
		ShooterIdx: uint8(shooterIdx),
		OriginX:    wire.QuantizePos(shot.Origin.X),
		OriginY:    wire.QuantizePos(shot.Origin.Y),
		OriginZ:    wire.QuantizePos(shot.Origin.Z),
		DirX:       wire.QuantizeShotDir(shot.Dir.X),
		DirY:       wire.QuantizeShotDir(shot.Dir.Y),
		DirZ:       wire.QuantizeShotDir(shot.Dir.Z),
		Length:     clampShotLength(result.Length),
	})

	if result.HitPlayerIdx < 0 {
		return
	}
	target := &s.slots[result.HitPlayerIdx]
	if !target.active() || !target.Player.Alive() {
		return
	}

	target.Player.Health -= s.tun.BulletDamage
	if target.Player.Health <= 0 {
		target.Player.Health = 0
		target.RespawnAt = time.Now().Add(time.Duration(s.tun.RespawnDelaySec * float64(time.Second)))
		s.broadcastReliable(wire.MsgPlayerDied, func(buf []byte) int {
			return wire.EncodePlayerDied(buf, wire.PlayerDied{KillerIdx: int8(shooterIdx), KilledIdx: int8(result.HitPlayerIdx)})
		})
	}
}

func clampShotLength(l float32) uint8 {
	if l < 0 {
		return 0
	}
	if l > 255 {
		return 255
	}
	return uint8(l)
}

func (s *Server) advanceRespawns(now time.Time) {
	for idx := range s.slots {
		sl := &s.slots[idx]
		if !sl.active() || sl.RespawnAt.IsZero() || now.Before(sl.RespawnAt) {
			continue
		}
		spawn := s.arena.Spawns[idx%len(s.arena.Spawns)]
		sl.Player = sim.NewPlayer(idx, spawn)
		sl.Player.Health = s.tun.StartingHealth
		sl.RespawnAt = time.Time{}
	}
}

func (s *Server) broadcastSnapshot() {
	snap := s.buildSnapshot()
	buf := make([]byte, wire.SnapshotPayloadSize)
	n := wire.EncodeSnapshot(buf, snap)
	body := buf[:n]

	for idx := range s.slots {
		if !s.slots[idx].active() {
			continue
		}
		if err := s.ep.SendUnreliable(s.slots[idx].Addr, wire.MsgSnapshot, body); err != nil {
			log.Printf("server: snapshot to player %d: %v", idx, err)
		}
	}
}

func (s *Server) broadcastReliable(msgType byte, encode func(buf []byte) int) {
	scratch := make([]byte, wire.MTU-wire.HeaderSize)
	n := encode(scratch)
	body := scratch[:n]
	for idx := range s.slots {
		if !s.slots[idx].active() {
			continue
		}
		if err := s.ep.SendReliable(s.slots[idx].Addr, msgType, body); err != nil {
			log.Printf("server: reliable send to player %d: %v", idx, err)
		}
	}
}
