// Package world stands in for the procedural map generator named as an
// out-of-scope collaborator: a pure function returning a fixed arena of
// oriented bounding boxes and spawn points.
package world

import "duelcore/pkg/limits"

// Vec3 is a minimal 3D vector, shared by pkg/world and pkg/sim.
type Vec3 struct {
	X, Y, Z float32
}

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float32) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }

// Obstacle is an axis-aligned box (the generator is free to emit rotated
// boxes; this arena only ever produces axis-aligned ones, which is a valid
// degenerate OBB).
type Obstacle struct {
	Center Vec3
	Half   Vec3 // half-extents along each axis
}

// Arena is the fixed world geometry plus where players may spawn.
type Arena struct {
	Obstacles []Obstacle
	Spawns    []Vec3
}

// Default returns the built-in arena layout. A real deployment would swap
// this for the output of a procedural generator; this function exists only
// to give the rest of the module something deterministic to run against.
func Default() Arena {
	if len(defaultSpawns) == 0 {
		panic("world: default arena has no spawn points")
	}
	return Arena{Obstacles: append([]Obstacle(nil), defaultObstacles...), Spawns: append([]Vec3(nil), defaultSpawns...)}
}

var defaultObstacles = []Obstacle{
	// floor
	{Center: Vec3{0, -0.5, 0}, Half: Vec3{40, 0.5, 40}},
	// four boundary walls
	{Center: Vec3{40.5, 2, 0}, Half: Vec3{0.5, 3, 40}},
	{Center: Vec3{-40.5, 2, 0}, Half: Vec3{0.5, 3, 40}},
	{Center: Vec3{0, 2, 40.5}, Half: Vec3{40, 3, 0.5}},
	{Center: Vec3{0, 2, -40.5}, Half: Vec3{40, 3, 0.5}},
	// interior cover
	{Center: Vec3{10, 1.5, 5}, Half: Vec3{1.5, 1.5, 1.5}},
	{Center: Vec3{-10, 1.5, -5}, Half: Vec3{1.5, 1.5, 1.5}},
	{Center: Vec3{0, 1.5, 15}, Half: Vec3{4, 1.5, 0.5}},
	{Center: Vec3{0, 1.5, -15}, Half: Vec3{4, 1.5, 0.5}},
	// wall-run faces facing the center
	{Center: Vec3{18, 3, 0}, Half: Vec3{0.3, 3, 6}},
	{Center: Vec3{-18, 3, 0}, Half: Vec3{0.3, 3, 6}},
}

var defaultSpawns = []Vec3{
	{X: 5, Y: 0, Z: 5},
	{X: -5, Y: 0, Z: 5},
	{X: 5, Y: 0, Z: -5},
	{X: -5, Y: 0, Z: -5},
	{X: 20, Y: 0, Z: 20},
	{X: -20, Y: 0, Z: -20},
	{X: 20, Y: 0, Z: -20},
	{X: -20, Y: 0, Z: 20},
}

func init() {
	if cap := limits.MaxObstacles; len(defaultObstacles) > cap {
		panic("world: default obstacle count exceeds pool capacity")
	}
}
