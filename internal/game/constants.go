package game

import "math"

// Arena geometry, in normalized units. The simulation plane is 100x100
// regardless of how clients render it; clamping and collision math all
// happen in this space.
const (
	ArenaWidth  = 100.0
	ArenaHeight = 100.0

	PaddleHeight = 20.0
	PaddleWidth  = 3.0
	PaddleMargin = 2.0 // Distance from arena edge to paddle back face

	BallRadius = 2.0
)

// Ball speed tuning, in units per tick.
const (
	InitialBallSpeed = 0.8
	MaxBallSpeed     = 2.0
	SpeedIncrement   = 0.05 // Added on every paddle hit, capped at MaxBallSpeed
)

// Match pacing.
const (
	WinningScore     = 7
	CountdownSeconds = 3
	TickRate         = 60 // Simulation ticks per second
)

// Angle limits, in radians.
const (
	// MaxBounceAngle is the steepest deflection off a paddle edge.
	MaxBounceAngle = 60.0 * math.Pi / 180.0

	// MaxServeAngle bounds the random vertical component of a serve.
	MaxServeAngle = 45.0 * math.Pi / 180.0
)

// Derived paddle faces: the X coordinate of each paddle's playing
// surface (the side facing the ball).
const (
	paddle1FaceX = PaddleMargin + PaddleWidth              // Left paddle, front face
	paddle2FaceX = ArenaWidth - PaddleMargin - PaddleWidth // Right paddle, front face
)

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPaddleY restricts a paddle center to positions where the whole
// paddle stays inside the arena.
func ClampPaddleY(y float64) float64 {
	return Clamp(y, PaddleHeight/2, ArenaHeight-PaddleHeight/2)
}
