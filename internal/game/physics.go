// Package game implements the authoritative Pong simulation: a pure
// physics core plus the per-room match state machine. Nothing here does
// I/O; the transport layer owns timers and sockets and calls into these
// functions once per tick.
package game

import (
	"math"
	"math/rand"
)

// Slot identifies which side of the arena a player occupies. Player 1
// is always the left paddle, player 2 the right.
type Slot string

const (
	SlotNone    Slot = ""
	SlotPlayer1 Slot = "player1"
	SlotPlayer2 Slot = "player2"
)

// PhysicsState is the transient simulation snapshot for one tick. It
// has no identity; the room state machine builds one from its
// authoritative state, runs StepPhysics, and writes the result back.
type PhysicsState struct {
	BallX  float64
	BallY  float64
	BallVX float64
	BallVY float64

	Paddle1Y float64 // Left paddle center
	Paddle2Y float64 // Right paddle center
}

// Advance moves the ball by its velocity. Bounds are handled by the
// collision resolvers, not here.
func Advance(s PhysicsState) PhysicsState {
	s.BallX += s.BallVX
	s.BallY += s.BallVY
	return s
}

// ResolveWalls bounces the ball off the top and bottom walls. Clamping
// makes the operation idempotent: a ball already resting on a wall is
// pushed inward, never through it.
func ResolveWalls(s PhysicsState) PhysicsState {
	if s.BallY <= BallRadius {
		s.BallY = BallRadius
		s.BallVY = math.Abs(s.BallVY)
	}
	if s.BallY >= ArenaHeight-BallRadius {
		s.BallY = ArenaHeight - BallRadius
		s.BallVY = -math.Abs(s.BallVY)
	}
	return s
}

// ResolvePaddles tests the ball against each paddle and applies the
// bounce. A paddle is only considered when the ball is moving toward it
// and its leading edge sits inside the paddle's horizontal band, which
// prevents double hits on consecutive ticks.
func ResolvePaddles(s PhysicsState) PhysicsState {
	// Left paddle: ball moving left, leading edge inside [margin, face].
	if s.BallVX < 0 {
		leading := s.BallX - BallRadius
		if leading <= paddle1FaceX && leading >= PaddleMargin && withinPaddle(s.BallY, s.Paddle1Y) {
			speed := nextSpeed(s.BallVX, s.BallVY)
			angle := BounceAngle(s.BallY, s.Paddle1Y)
			s.BallVX = speed * math.Cos(angle)
			s.BallVY = speed * math.Sin(angle)
			s.BallX = paddle1FaceX + BallRadius // Flush against the face
		}
	}

	// Right paddle: mirror image.
	if s.BallVX > 0 {
		leading := s.BallX + BallRadius
		if leading >= paddle2FaceX && leading <= ArenaWidth-PaddleMargin && withinPaddle(s.BallY, s.Paddle2Y) {
			speed := nextSpeed(s.BallVX, s.BallVY)
			angle := BounceAngle(s.BallY, s.Paddle2Y)
			s.BallVX = -speed * math.Cos(angle)
			s.BallVY = speed * math.Sin(angle)
			s.BallX = paddle2FaceX - BallRadius
		}
	}

	return s
}

// withinPaddle reports whether ballY overlaps the paddle's vertical
// extent.
func withinPaddle(ballY, paddleY float64) bool {
	return ballY >= paddleY-PaddleHeight/2 && ballY <= paddleY+PaddleHeight/2
}

// nextSpeed returns the post-hit speed magnitude: current speed plus
// the per-hit increment, capped at the maximum.
func nextSpeed(vx, vy float64) float64 {
	return math.Min(math.Hypot(vx, vy)+SpeedIncrement, MaxBallSpeed)
}

// BounceAngle computes the deflection for a ball striking a paddle at
// hitY. The angle is a linear function of where on the paddle the ball
// struck (-1 at the top edge, +1 at the bottom), scaled to
// MaxBounceAngle. It is odd-symmetric about the paddle center.
func BounceAngle(hitY, paddleY float64) float64 {
	offset := Clamp((hitY-paddleY)/(PaddleHeight/2), -1, 1)
	return offset * MaxBounceAngle
}

// CheckScoring returns the slot that scored, or SlotNone. A point is
// only awarded once the ball's center is strictly beyond the goal line
// by more than its radius; touching the boundary is not a score.
func CheckScoring(s PhysicsState) Slot {
	if s.BallX < -BallRadius {
		return SlotPlayer2 // Ball left past player 1's goal
	}
	if s.BallX > ArenaWidth+BallRadius {
		return SlotPlayer1
	}
	return SlotNone
}

// StepPhysics runs one full physics tick: advance, wall bounce, paddle
// bounce, scoring check.
func StepPhysics(s PhysicsState) (PhysicsState, Slot) {
	s = Advance(s)
	s = ResolveWalls(s)
	s = ResolvePaddles(s)
	return s, CheckScoring(s)
}

// ResetBall centers the ball with zero velocity.
func ResetBall(s PhysicsState) PhysicsState {
	s.BallX = ArenaWidth / 2
	s.BallY = ArenaHeight / 2
	s.BallVX = 0
	s.BallVY = 0
	return s
}

// StartBall centers the ball and serves it toward the given side at the
// initial speed. The vertical component is randomized within
// ±MaxServeAngle, which keeps the horizontal component nonzero.
func StartBall(s PhysicsState, toward Slot, rng *rand.Rand) PhysicsState {
	s = ResetBall(s)

	angle := (rng.Float64()*2 - 1) * MaxServeAngle
	s.BallVX = InitialBallSpeed * math.Cos(angle)
	s.BallVY = InitialBallSpeed * math.Sin(angle)
	if toward == SlotPlayer1 {
		s.BallVX = -s.BallVX
	}
	return s
}
