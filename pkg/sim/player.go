// Package sim holds the simulation code shared verbatim by server and
// client: player state, input application, and physics. Per the
// reconciliation correctness condition, every function here is a pure
// transformation of its arguments — no RNG, no wall-clock reads, no
// pointers into shared mutable state.
package sim

import (
	"math"

	"duelcore/pkg/wire"
	"duelcore/pkg/world"
)

// InactiveIndex is the sentinel Player.Index value for an unoccupied slot.
const InactiveIndex = -1

// Player is the essential simulated entity (§3).
type Player struct {
	Index         int
	LastProcessed uint32

	Position world.Vec3
	Velocity world.Vec3
	Yaw      float32
	Pitch    float32

	OnGround    bool
	WallRunning bool
	WallNormal  world.Vec3

	JumpsRemaining int
	Health         int

	// Active mirrors the slot's state-machine occupancy (ACTIVE_ALIVE or
	// ACTIVE_DEAD), independent of Health, so a dead-but-connected player
	// still quantizes as present on the wire.
	Active bool
}

// Alive reports whether the player's health is positive (§3 invariant).
func (p Player) Alive() bool {
	return p.Health > 0
}

// NewPlayer returns a freshly connected, full-health player at spawn.
func NewPlayer(index int, spawn world.Vec3) Player {
	return Player{
		Index:          index,
		Position:       spawn,
		Health:         StartingHealth,
		Active:         true,
		JumpsRemaining: MaxAirJumps,
	}
}

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApplyInput folds one input message into the player's orientation and
// desired velocity. It does not move the player; StepPhysics integrates
// position from the velocity this leaves behind.
func ApplyInput(p Player, in wire.Input, dt float32) Player {
	if !p.Active || !p.Alive() {
		return p
	}

	p.Yaw = in.LookYaw
	p.Pitch = clampF(in.LookPitch, -math.Pi/2+0.01, math.Pi/2-0.01)

	moveX, moveZ := in.MoveX, in.MoveZ
	if moveX != 0 && moveZ != 0 {
		norm := float32(1 / math.Sqrt2)
		moveX *= norm
		moveZ *= norm
	}
	sin, cos := float32(math.Sin(float64(p.Yaw))), float32(math.Cos(float64(p.Yaw)))
	// forward is +Z in local space, rotated into world space by yaw.
	wishX := moveX*cos + moveZ*sin
	wishZ := -moveX*sin + moveZ*cos

	switch {
	case p.WallRunning:
		// Along-wall speed only; component into the wall is already absent
		// because the wish vector is computed from input, not projected,
		// so a deliberate push into the wall simply fights the normal.
		tangent := world.Vec3{X: -p.WallNormal.Z, Z: p.WallNormal.X}
		along := wishX*tangent.X + wishZ*tangent.Z
		p.Velocity.X = tangent.X * along * WallRunSpeed
		p.Velocity.Z = tangent.Z * along * WallRunSpeed
	case p.OnGround:
		p.Velocity.X = wishX * GroundSpeed
		p.Velocity.Z = wishZ * GroundSpeed
	default:
		p.Velocity.X += wishX * GroundSpeed * AirControl * dt
		p.Velocity.Z += wishZ * GroundSpeed * AirControl * dt
	}

	if in.Jump() {
		switch {
		case p.WallRunning:
			p.Velocity.X += p.WallNormal.X * WallJumpPush
			p.Velocity.Z += p.WallNormal.Z * WallJumpPush
			p.Velocity.Y = JumpSpeed
			p.WallRunning = false
		case p.OnGround:
			p.Velocity.Y = JumpSpeed
			p.JumpsRemaining = MaxAirJumps
		case p.JumpsRemaining > 0:
			p.Velocity.Y = JumpSpeed
			p.JumpsRemaining--
		}
	}

	return p
}

// StepPhysics integrates gravity and position, then re-derives ground and
// wall contact for the next tick by probing the arena with the raycast
// primitives that stand in for the out-of-scope physics collaborator.
func StepPhysics(p Player, dt float32, arena world.Arena) Player {
	if !p.Active || !p.Alive() {
		return p
	}

	switch {
	case p.OnGround:
		p.Velocity.Y = 0
	case p.WallRunning:
		p.Velocity.Y -= WallRunGravity * dt
	default:
		p.Velocity.Y -= Gravity * dt
		if p.Velocity.Y < TerminalFallSpeed {
			p.Velocity.Y = TerminalFallSpeed
		}
	}

	p.Position = p.Position.Add(p.Velocity.Scale(dt))

	groundHit, _ := arena.Nearest(p.Position, world.Vec3{Y: -1}, PlayerRadius+GroundProbe)
	p.OnGround = groundHit.Hit && p.Velocity.Y <= 0
	if p.OnGround {
		p.Position.Y = p.Position.Y - groundHit.Distance + PlayerRadius
		p.JumpsRemaining = MaxAirJumps
	}

	p.WallRunning = false
	if !p.OnGround {
		for _, dir := range wallProbeDirs {
			hit, _ := arena.Nearest(p.Position, dir, WallRunProbe)
			lateralSpeed := sqrtf(p.Velocity.X*p.Velocity.X + p.Velocity.Z*p.Velocity.Z)
			if hit.Hit && lateralSpeed >= MinWallRunSpd {
				p.WallRunning = true
				p.WallNormal = hit.Normal
				break
			}
		}
	}

	return p
}

var wallProbeDirs = []world.Vec3{
	{X: 1}, {X: -1}, {Z: 1}, {Z: -1},
}

func sqrtf(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func sinf(v float32) float32 { return float32(math.Sin(float64(v))) }
func cosf(v float32) float32 { return float32(math.Cos(float64(v))) }
