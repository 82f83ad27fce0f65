package client

import (
	"math"

	"duelcore/pkg/limits"
	"duelcore/pkg/sim"
	"duelcore/pkg/world"
)

// deadReckoningMaxSec bounds how long a remote player keeps extrapolating
// along its last known velocity once the snapshot buffer runs dry
// (SPEC_FULL.md's dead-reckoning supplement), before freezing in place.
const deadReckoningMaxSec = 0.25

// deadReckoner remembers, per slot, the last snapshot time a player's
// state was known, so buildFrame can tell how long it has been
// extrapolating.
type deadReckoner struct {
	lastKnownAt [limits.MaxPlayers]float32
}

// buildFrame implements §4.3 step 4: locate the two snapshots bracketing
// render_time and interpolate every non-local player between them,
// falling back to dead reckoning when no bracket exists yet.
func (c *Client) buildFrame() Frame {
	frame := Frame{
		RenderTime: c.renderTime,
		LocalIndex: c.LocalIndex,
		Shots:      c.pendingShots,
	}

	before, after, ok := c.snapshots.bracket(c.renderTime)
	for idx := 0; idx < limits.MaxPlayers; idx++ {
		if idx == c.LocalIndex {
			frame.Players[idx] = c.predicted
			continue
		}
		if ok {
			frame.Players[idx] = interpolatePlayer(before.Players[idx], after.Players[idx], before.Timestamp, after.Timestamp, c.renderTime, float32(c.tun.TeleportThreshold))
			c.dead.lastKnownAt[idx] = after.Timestamp
			continue
		}
		frame.Players[idx] = c.deadReckon(idx)
	}
	return frame
}

// deadReckon extrapolates idx's last known remote state along its last
// known velocity for up to deadReckoningMaxSec past the last snapshot
// that mentioned it, then freezes.
func (c *Client) deadReckon(idx int) sim.Player {
	p := c.lastRemote[idx]
	if !p.Active {
		return p
	}
	elapsed := c.renderTime - c.dead.lastKnownAt[idx]
	if elapsed <= 0 {
		return p
	}
	if elapsed > deadReckoningMaxSec {
		elapsed = deadReckoningMaxSec
	}
	p.Position = p.Position.Add(p.Velocity.Scale(elapsed))
	return p
}

// interpolatePlayer implements the snap-or-lerp rule of §4.3 step 4.
// teleportThreshold is the operator-tunable jump distance, in meters,
// past which interpolation snaps to after instead of lerping.
func interpolatePlayer(before, after sim.Player, beforeT, afterT, renderTime, teleportThreshold float32) sim.Player {
	if !before.Active || !after.Active {
		return after
	}

	d := after.Position.Sub(before.Position)
	dist := math.Sqrt(float64(d.X*d.X + d.Y*d.Y + d.Z*d.Z))
	revived := !before.Alive() && (after.Alive() || after.Health > before.Health)
	if dist > float64(teleportThreshold) || revived {
		return after
	}

	total := afterT - beforeT
	t := float32(0)
	if total > 0 {
		t = (renderTime - beforeT) / total
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}

	out := after
	out.Position = lerpVec3(before.Position, after.Position, t)
	out.Velocity = lerpVec3(before.Velocity, after.Velocity, t)
	out.Pitch = lerpF(before.Pitch, after.Pitch, t)
	out.Yaw = lerpYaw(before.Yaw, after.Yaw, t)
	return out
}

func lerpVec3(a, b world.Vec3, t float32) world.Vec3 {
	return world.Vec3{
		X: lerpF(a.X, b.X, t),
		Y: lerpF(a.Y, b.Y, t),
		Z: lerpF(a.Z, b.Z, t),
	}
}

func lerpF(a, b, t float32) float32 {
	return a + (b-a)*t
}

// lerpYaw interpolates an angle along the shortest arc, wrapping across
// +/-pi (§4.3 step 4).
func lerpYaw(a, b, t float32) float32 {
	diff := b - a
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff < -math.Pi {
		diff += 2 * math.Pi
	}
	return a + diff*t
}
