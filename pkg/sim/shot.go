package sim

import "duelcore/pkg/world"

// Shot is a ray fired by a player: origin, unit direction, and a maximum
// length (§3).
type Shot struct {
	ShooterIdx int
	Origin     world.Vec3
	Dir        world.Vec3
	MaxLength  float32
}

// ShotResult is the outcome of tracing a Shot through the arena and the
// other players: the clipped ray length and, if a player was hit, its
// index (-1 otherwise).
type ShotResult struct {
	Length       float32
	HitPlayerIdx int
}

// ResolveShot traces shot against the arena's obstacles and every other
// active, living player's sphere, applying the tie-break rules of §4.2:
// equal hit distances favor obstacles, then the lower player index.
func ResolveShot(shot Shot, arena world.Arena, players []Player) ShotResult {
	obstacleHit, _ := arena.Nearest(shot.Origin, shot.Dir, shot.MaxLength)

	limit := shot.MaxLength
	if obstacleHit.Hit {
		limit = obstacleHit.Distance
	}

	bestDist := limit
	bestIdx := -1
	for idx, pl := range players {
		if idx == shot.ShooterIdx || !pl.Active || !pl.Alive() {
			continue
		}
		hit := world.RaycastSphere(shot.Origin, shot.Dir, shot.MaxLength, pl.Position, PlayerRadius)
		if !hit.Hit {
			continue
		}
		if obstacleHit.Hit && hit.Distance >= obstacleHit.Distance {
			continue // obstacle wins the tie (or is strictly closer)
		}
		if hit.Distance < bestDist {
			bestDist = hit.Distance
			bestIdx = idx
		}
	}

	if bestIdx >= 0 {
		return ShotResult{Length: bestDist, HitPlayerIdx: bestIdx}
	}
	if obstacleHit.Hit {
		return ShotResult{Length: obstacleHit.Distance, HitPlayerIdx: -1}
	}
	return ShotResult{Length: shot.MaxLength, HitPlayerIdx: -1}
}

// EyePosition returns the origin a shot should be fired from: the
// player's position raised to roughly eye height.
func EyePosition(p Player) world.Vec3 {
	return p.Position.Add(world.Vec3{Y: PlayerRadius * 0.8})
}

// LookDir returns the unit direction a player is currently looking,
// derived from yaw and pitch.
func LookDir(p Player) world.Vec3 {
	cy, sy := cosf(p.Yaw), sinf(p.Yaw)
	cp, sp := cosf(p.Pitch), sinf(p.Pitch)
	return world.Vec3{X: sy * cp, Y: sp, Z: cy * cp}
}
