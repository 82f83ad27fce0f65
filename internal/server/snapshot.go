package server

import (
	"duelcore/pkg/limits"
	"duelcore/pkg/sim"
	"duelcore/pkg/wire"
)

func toQuantizedPlayer(p sim.Player) wire.QuantizedPlayer {
	flags := byte(0)
	if p.OnGround {
		flags |= wire.FlagOnGround
	}
	if p.WallRunning {
		flags |= wire.FlagWallRunning
	}
	flags = wire.PackJumpsRemaining(flags, p.JumpsRemaining)
	if p.Active {
		flags |= wire.FlagActive
	}
	if p.Alive() {
		flags |= wire.FlagAlive
	}

	health := p.Health
	if health < 0 {
		health = 0
	}
	if health > 255 {
		health = 255
	}

	return wire.QuantizedPlayer{
		PosX: wire.QuantizePos(p.Position.X),
		PosY: wire.QuantizePos(p.Position.Y),
		PosZ: wire.QuantizePos(p.Position.Z),
		VelX: wire.QuantizeVel(p.Velocity.X),
		VelY: wire.QuantizeVel(p.Velocity.Y),
		VelZ: wire.QuantizeVel(p.Velocity.Z),
		Yaw:  wire.QuantizeYaw(p.Yaw),
		Pitch: wire.QuantizePitch(p.Pitch),
		Flags: flags,
		Health: uint8(health),
		LastProcessed: p.LastProcessed,
	}
}

func (s *Server) buildSnapshot() wire.Snapshot {
	var snap wire.Snapshot
	snap.ServerTime = s.serverTime
	for i := 0; i < limits.MaxPlayers; i++ {
		if s.slots[i].active() {
			snap.Players[i] = toQuantizedPlayer(s.slots[i].Player)
		}
	}
	snap.ShotCount = uint8(len(s.tickShots))
	for i, sh := range s.tickShots {
		if i >= limits.MaxShots {
			break
		}
		snap.Shots[i] = sh
	}
	if int(snap.ShotCount) > limits.MaxShots {
		snap.ShotCount = limits.MaxShots
	}
	return snap
}
