package game

import (
	"math/rand"
	"slices"
)

// Status is the match lifecycle state.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCountdown Status = "countdown"
	StatusPlaying   Status = "playing"
	StatusPaused    Status = "paused"
	StatusFinished  Status = "finished"
)

// Role is the fixed side assignment for a connection: the first player
// to join a room is the host (left paddle), the second the guest
// (right paddle). Roles are never reassigned within a match.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// SlotForRole maps a role to its arena slot.
func SlotForRole(r Role) Slot {
	if r == RoleHost {
		return SlotPlayer1
	}
	return SlotPlayer2
}

// PlayerInfo describes one attached player.
type PlayerInfo struct {
	ConnID string `json:"playerId"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`
}

// State is the authoritative, broadcastable match snapshot.
type State struct {
	BallX  float64 `json:"ballX"`
	BallY  float64 `json:"ballY"`
	BallVX float64 `json:"ballVX"`
	BallVY float64 `json:"ballVY"`

	Paddle1Y float64 `json:"paddle1Y"`
	Paddle2Y float64 `json:"paddle2Y"`

	Score1 int `json:"score1"`
	Score2 int `json:"score2"`

	Status    Status `json:"status"`
	Winner    Slot   `json:"winner,omitempty"`
	Countdown int    `json:"countdown"` // Seconds remaining, 0 when inactive
}

// Room is the full per-match aggregate. Transitions treat it as a
// value: every operation returns a new Room, cloning the player list on
// mutation, so the transport actor can hold the previous state until a
// transition completes.
type Room struct {
	ID      string
	Players []PlayerInfo // At most two, join order
	Game    State
	Ticks   uint64 // Drives countdown second boundaries
}

// NewRoom creates an empty room in the waiting state with paddles and
// ball centered.
func NewRoom(id string) Room {
	return Room{
		ID: id,
		Game: State{
			BallX:    ArenaWidth / 2,
			BallY:    ArenaHeight / 2,
			Paddle1Y: ArenaHeight / 2,
			Paddle2Y: ArenaHeight / 2,
			Status:   StatusWaiting,
		},
	}
}

// AddPlayer appends a player with the next free role. A room that
// already has two players is returned unchanged.
func AddPlayer(r Room, connID, name string) Room {
	if len(r.Players) >= 2 {
		return r
	}
	role := RoleHost
	if len(r.Players) == 1 {
		role = RoleGuest
	}
	r.Players = append(slices.Clone(r.Players), PlayerInfo{ConnID: connID, Name: name, Role: role})
	return r
}

// RemovePlayer removes the player with the given connection id. If the
// match was underway, the remaining player wins by forfeit. If nobody
// remains the room finishes with no winner and is expected to be
// discarded by the caller.
func RemovePlayer(r Room, connID string) Room {
	idx := slices.IndexFunc(r.Players, func(p PlayerInfo) bool { return p.ConnID == connID })
	if idx < 0 {
		return r
	}

	inProgress := r.Game.Status == StatusCountdown || r.Game.Status == StatusPlaying || r.Game.Status == StatusPaused
	r.Players = slices.Delete(slices.Clone(r.Players), idx, idx+1)

	if inProgress {
		r.Game.Status = StatusFinished
		r.Game.Countdown = 0
		if len(r.Players) > 0 {
			r.Game.Winner = SlotForRole(r.Players[0].Role)
		}
	}
	return r
}

// FindPlayer returns the player attached with the given connection id.
func FindPlayer(r Room, connID string) (PlayerInfo, bool) {
	for _, p := range r.Players {
		if p.ConnID == connID {
			return p, true
		}
	}
	return PlayerInfo{}, false
}

// UpdatePaddle sets the paddle controlled by connID to y, clamped to
// the valid range. Unknown connections are a no-op; clients are never
// trusted with raw positions.
func UpdatePaddle(r Room, connID string, y float64) Room {
	p, ok := FindPlayer(r, connID)
	if !ok {
		return r
	}
	y = ClampPaddleY(y)
	if p.Role == RoleHost {
		r.Game.Paddle1Y = y
	} else {
		r.Game.Paddle2Y = y
	}
	return r
}

// IsReadyToStart reports whether the room holds two players and has not
// started yet.
func IsReadyToStart(r Room) bool {
	return len(r.Players) == 2 && r.Game.Status == StatusWaiting
}

// StartCountdown begins the pre-match countdown. Requires exactly two
// players; otherwise the room stays in waiting.
func StartCountdown(r Room) Room {
	if len(r.Players) != 2 {
		return r
	}
	r.Game.Status = StatusCountdown
	r.Game.Countdown = CountdownSeconds
	return r
}

// StartGame serves the ball toward a uniformly random side and enters
// play.
func StartGame(r Room, rng *rand.Rand) Room {
	toward := SlotPlayer1
	if rng.Intn(2) == 1 {
		toward = SlotPlayer2
	}
	r.Game = applyPhysics(r.Game, StartBall(physicsOf(r.Game), toward, rng))
	r.Game.Status = StatusPlaying
	r.Game.Countdown = 0
	return r
}

// Pause suspends an in-progress match. Only legal from playing.
func Pause(r Room) Room {
	if r.Game.Status != StatusPlaying {
		return r
	}
	r.Game.Status = StatusPaused
	return r
}

// Resume continues a paused match.
func Resume(r Room) Room {
	if r.Game.Status != StatusPaused {
		return r
	}
	r.Game.Status = StatusPlaying
	return r
}

// Tick advances the room by one simulation step. During the countdown
// it decrements the remaining seconds once per TickRate ticks and
// serves when the countdown hits zero; during play it runs the physics
// step and applies scoring. All other statuses only advance the tick
// counter.
func Tick(r Room, rng *rand.Rand) Room {
	r.Ticks++

	switch r.Game.Status {
	case StatusCountdown:
		if r.Ticks%TickRate == 0 {
			if r.Game.Countdown > 0 {
				r.Game.Countdown--
			}
			if r.Game.Countdown == 0 {
				r = StartGame(r, rng)
			}
		}
	case StatusPlaying:
		next, scored := StepPhysics(physicsOf(r.Game))
		r.Game = applyPhysics(r.Game, next)
		if scored != SlotNone {
			r = handleScoring(r, scored, rng)
		}
	}
	return r
}

// handleScoring credits the point. At the winning score the match
// finishes and the ball is left where it crossed the line; otherwise
// the ball re-serves from center toward the side that just scored (a
// rally serve, not a hand-over to the loser).
func handleScoring(r Room, scorer Slot, rng *rand.Rand) Room {
	if scorer == SlotPlayer1 {
		r.Game.Score1++
	} else {
		r.Game.Score2++
	}

	if r.Game.Score1 >= WinningScore || r.Game.Score2 >= WinningScore {
		r.Game.Status = StatusFinished
		r.Game.Winner = scorer
		return r
	}

	r.Game = applyPhysics(r.Game, StartBall(physicsOf(r.Game), scorer, rng))
	return r
}

// physicsOf extracts the transient simulation snapshot from the match
// state.
func physicsOf(s State) PhysicsState {
	return PhysicsState{
		BallX:    s.BallX,
		BallY:    s.BallY,
		BallVX:   s.BallVX,
		BallVY:   s.BallVY,
		Paddle1Y: s.Paddle1Y,
		Paddle2Y: s.Paddle2Y,
	}
}

// applyPhysics writes a simulation snapshot back into the match state.
func applyPhysics(s State, p PhysicsState) State {
	s.BallX = p.BallX
	s.BallY = p.BallY
	s.BallVX = p.BallVX
	s.BallVY = p.BallVY
	s.Paddle1Y = p.Paddle1Y
	s.Paddle2Y = p.Paddle2Y
	return s
}
