package sim

import (
	"math"
	"testing"

	"duelcore/pkg/wire"
	"duelcore/pkg/world"
)

func flatArena() world.Arena {
	return world.Arena{Obstacles: []world.Obstacle{
		{Center: world.Vec3{Y: -0.5}, Half: world.Vec3{X: 100, Y: 0.5, Z: 100}},
	}}
}

func TestApplyInputIsPureAndDeterministic(t *testing.T) {
	p := NewPlayer(0, world.Vec3{})
	in := wire.Input{Sequence: 1, MoveZ: 1, LookYaw: 0}

	a := ApplyInput(p, in, 1.0/60)
	b := ApplyInput(p, in, 1.0/60)
	if a != b {
		t.Fatalf("ApplyInput should be a pure function of its arguments")
	}
}

func TestGroundMovementReachesGroundSpeed(t *testing.T) {
	p := NewPlayer(0, world.Vec3{})
	p.OnGround = true
	in := wire.Input{MoveZ: 1, LookYaw: 0}

	p = ApplyInput(p, in, 1.0/60)
	if math.Abs(float64(p.Velocity.Z-GroundSpeed)) > 1e-5 {
		t.Fatalf("expected ground velocity to snap to %v, got %v", GroundSpeed, p.Velocity.Z)
	}
}

func TestJumpFromGroundSetsVerticalVelocity(t *testing.T) {
	p := NewPlayer(0, world.Vec3{})
	p.OnGround = true
	in := wire.Input{Buttons: wire.ButtonJump}

	p = ApplyInput(p, in, 1.0/60)
	if p.Velocity.Y != JumpSpeed {
		t.Fatalf("expected vertical velocity %v after jump, got %v", JumpSpeed, p.Velocity.Y)
	}
}

func TestStepPhysicsAppliesGravityWhenAirborne(t *testing.T) {
	p := NewPlayer(0, world.Vec3{Y: 50})
	arena := flatArena()

	p = StepPhysics(p, 1.0/60, arena)
	if p.Velocity.Y >= 0 {
		t.Fatalf("expected negative vertical velocity after gravity, got %v", p.Velocity.Y)
	}
	if p.OnGround {
		t.Fatalf("player 50m up should not register as grounded")
	}
}

func TestStepPhysicsLandsOnFloor(t *testing.T) {
	p := NewPlayer(0, world.Vec3{Y: PlayerRadius + 0.01})
	p.Velocity.Y = -1
	arena := flatArena()

	p = StepPhysics(p, 1.0/60, arena)
	if !p.OnGround {
		t.Fatalf("expected player just above the floor to land")
	}
}

func TestDeadPlayerIgnoresInputAndPhysics(t *testing.T) {
	p := NewPlayer(0, world.Vec3{Y: 10})
	p.Health = 0
	arena := flatArena()

	before := p
	p = ApplyInput(p, wire.Input{MoveZ: 1}, 1.0/60)
	p = StepPhysics(p, 1.0/60, arena)
	if p != before {
		t.Fatalf("dead player state should be frozen")
	}
}

func TestResolveShotPrefersCloserObstacleOverFartherPlayer(t *testing.T) {
	arena := world.Arena{Obstacles: []world.Obstacle{
		{Center: world.Vec3{X: 5}, Half: world.Vec3{X: 1, Y: 1, Z: 1}},
	}}
	players := []Player{
		{Index: 0, Active: true, Health: 100, Position: world.Vec3{}},
		{Index: 1, Active: true, Health: 100, Position: world.Vec3{X: 20}},
	}
	shot := Shot{ShooterIdx: 0, Origin: world.Vec3{}, Dir: world.Vec3{X: 1}, MaxLength: 100}

	result := ResolveShot(shot, arena, players)
	if result.HitPlayerIdx != -1 {
		t.Fatalf("expected the wall to block the shot before reaching player 1")
	}
	if result.Length < 3.9 || result.Length > 4.1 {
		t.Fatalf("expected clipped length ~4, got %v", result.Length)
	}
}

func TestResolveShotHitsClosestPlayerByIndexOnTie(t *testing.T) {
	players := []Player{
		{Index: 0, Active: true, Health: 100, Position: world.Vec3{X: 10}},
		{Index: 1, Active: true, Health: 100, Position: world.Vec3{X: 10, Y: 0.0001}},
		{Index: 2, Active: true, Health: 100, Position: world.Vec3{}},
	}
	shot := Shot{ShooterIdx: 2, Origin: world.Vec3{}, Dir: world.Vec3{X: 1}, MaxLength: 100}

	result := ResolveShot(shot, world.Arena{}, players)
	if result.HitPlayerIdx != 0 {
		t.Fatalf("expected the lower index to win an effective tie, got %d", result.HitPlayerIdx)
	}
}

func TestResolveShotSkipsDeadAndInactivePlayers(t *testing.T) {
	players := []Player{
		{Index: 0, Active: true, Health: 0, Position: world.Vec3{X: 5}},
		{Index: 1, Active: false, Health: 100, Position: world.Vec3{X: 10}},
	}
	shot := Shot{ShooterIdx: -1, Origin: world.Vec3{}, Dir: world.Vec3{X: 1}, MaxLength: 100}

	result := ResolveShot(shot, world.Arena{}, players)
	if result.HitPlayerIdx != -1 {
		t.Fatalf("dead and inactive players must not be hit, got idx %d", result.HitPlayerIdx)
	}
}
