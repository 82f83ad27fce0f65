package world

import "math"

// Hit is the result of a ray query: whether it hit anything, the distance
// along the ray, and the surface normal at the hit point.
type Hit struct {
	Hit      bool
	Distance float32
	Normal   Vec3
}

// RaycastOBB intersects a ray (origin, unit direction) against an oriented
// bounding box degenerated to axis-aligned (Obstacle carries no rotation
// in this arena), using the slab method, clamped to maxLen.
func RaycastOBB(origin, dir Vec3, maxLen float32, ob Obstacle) Hit {
	tMin, tMax := float32(0), maxLen
	normal := Vec3{}

	axes := [3]struct {
		o, d, c, h float32
		n          Vec3
	}{
		{origin.X, dir.X, ob.Center.X, ob.Half.X, Vec3{1, 0, 0}},
		{origin.Y, dir.Y, ob.Center.Y, ob.Half.Y, Vec3{0, 1, 0}},
		{origin.Z, dir.Z, ob.Center.Z, ob.Half.Z, Vec3{0, 0, 1}},
	}

	for _, a := range axes {
		lo := a.c - a.h
		hi := a.c + a.h
		if nearZero(a.d) {
			if a.o < lo || a.o > hi {
				return Hit{}
			}
			continue
		}
		inv := 1 / a.d
		t1 := (lo - a.o) * inv
		t2 := (hi - a.o) * inv
		sign := float32(-1)
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1
		}
		if t1 > tMin {
			tMin = t1
			normal = a.n.Scale(sign)
		}
		if t2 < tMax {
			tMax = t2
		}
		if tMin > tMax {
			return Hit{}
		}
	}

	if tMin <= 0 || tMin > maxLen {
		return Hit{}
	}
	return Hit{Hit: true, Distance: tMin, Normal: normal}
}

// RaycastSphere intersects a ray against a sphere of radius r centered at
// c, clamped to maxLen.
func RaycastSphere(origin, dir Vec3, maxLen float32, c Vec3, r float32) Hit {
	m := origin.Sub(c)
	b := dot(m, dir)
	cc := dot(m, m) - r*r
	if cc > 0 && b > 0 {
		return Hit{}
	}
	disc := b*b - cc
	if disc < 0 {
		return Hit{}
	}
	t := -b - sqrt(disc)
	if t < 0 {
		t = 0
	}
	if t > maxLen {
		return Hit{}
	}
	hitPoint := origin.Add(dir.Scale(t))
	n := hitPoint.Sub(c)
	if len := length(n); len > 0 {
		n = n.Scale(1 / len)
	}
	return Hit{Hit: true, Distance: t, Normal: n}
}

// Nearest casts a ray against every obstacle in the arena and returns the
// closest hit, if any.
func (a Arena) Nearest(origin, dir Vec3, maxLen float32) (Hit, int) {
	best := Hit{}
	bestIdx := -1
	for i, ob := range a.Obstacles {
		h := RaycastOBB(origin, dir, maxLen, ob)
		if h.Hit && (bestIdx == -1 || h.Distance < best.Distance) {
			best = h
			bestIdx = i
			maxLen = h.Distance
		}
	}
	return best, bestIdx
}

func dot(a, b Vec3) float32 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func length(v Vec3) float32 { return sqrt(dot(v, v)) }
func sqrt(v float32) float32 { return float32(math.Sqrt(float64(v))) }
func nearZero(v float32) bool {
	const eps = 1e-8
	return v > -eps && v < eps
}
