// Package bot drives a client.Client the way a human input device would:
// it is, per §1, "merely another transport-speaking client" with no
// privileged access to the simulation.
package bot

import (
	"math"
	"math/rand"

	"duelcore/pkg/wire"
)

// thinkIntervalTicks mirrors the teacher's decide-on-a-timer shape: the
// bot re-decides its wander direction and shoot urge only once every N
// ticks, holding its cached input between decisions.
const thinkIntervalTicks = 20

// shootChance is the per-decision probability of pulling the trigger
// while wandering.
const shootChance = 0.15

// Controller produces one wire.Input per tick for a wandering, occasionally
// shooting bot player. It holds no reference to the simulation and reads
// no game state: Decide takes no arguments, and its inputs come only from
// its own random source and timer.
type Controller struct {
	rnd *rand.Rand

	thinkCounter int
	cached       wire.Input
}

// New returns a bot controller seeded from seed, so a test or a fleet of
// npcs can be driven deterministically or varied per-instance. The
// think counter starts due so the first Decide() call rolls a decision
// rather than returning an empty cached input.
func New(seed int64) *Controller {
	return &Controller{rnd: rand.New(rand.NewSource(seed)), thinkCounter: thinkIntervalTicks}
}

// Decide returns the input to send this tick, re-rolling a new wander
// direction and shoot decision every thinkIntervalTicks ticks and
// holding the cached input in between.
func (c *Controller) Decide() wire.Input {
	c.thinkCounter++
	if c.thinkCounter < thinkIntervalTicks {
		return c.cached
	}
	c.thinkCounter = 0

	angle := c.rnd.Float64() * 2 * math.Pi
	c.cached = wire.Input{
		MoveX:   float32(math.Cos(angle)),
		MoveZ:   float32(math.Sin(angle)),
		LookYaw: float32(angle),
	}
	if c.rnd.Float64() < shootChance {
		c.cached.Buttons |= wire.ButtonShoot
	}
	return c.cached
}
