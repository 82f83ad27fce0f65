package sim

// Movement tunables. Unlike the wire/timing tunables frozen in §6, the
// reference leaves the feel of ground/air/wall-run movement to the
// implementer; these are chosen to be playable, not load-bearing for any
// testable property.
const (
	PlayerRadius = 1.0 // §6 frozen tunable

	GroundSpeed      = 7.0  // m/s, instant acceleration on ground
	AirControl       = 0.35 // fraction of ground accel available airborne
	WallRunSpeed     = 8.0
	WallRunGravity   = 2.0  // m/s^2 while wall-running, reduced from full gravity
	Gravity          = 18.0 // m/s^2
	TerminalFallSpeed = -40.0

	JumpSpeed     = 6.5
	WallJumpPush  = 5.0
	MaxAirJumps   = 1
	WallRunProbe  = PlayerRadius + 0.25
	GroundProbe   = 0.08
	MinWallRunSpd = 2.0 // lateral speed needed to latch onto a wall

	BulletDamage   = 10
	StartingHealth = 100
)
