// Package protocol defines the JSON wire messages exchanged between
// clients and the matchmaker / game rooms. Each direction is a closed
// set of tagged messages; anything with an unknown tag is a validation
// error, never a crash.
package protocol

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Client-to-server message types.
const (
	TypeJoinQueue  = "JOIN_QUEUE"
	TypeLeaveQueue = "LEAVE_QUEUE"

	TypePaddleMove = "PADDLE_MOVE"
	TypeReady      = "READY"
	TypePause      = "PAUSE"
	TypeResume     = "RESUME"
	TypeLeave      = "LEAVE"
)

// Server-to-client message types.
const (
	TypeQueueJoined   = "QUEUE_JOINED"
	TypeQueueUpdate   = "QUEUE_UPDATE"
	TypeMatchFound    = "MATCH_FOUND"
	TypeUsernameTaken = "USERNAME_TAKEN"
	TypeError         = "ERROR"

	TypeGameState            = "GAME_STATE"
	TypePlayerJoined         = "PLAYER_JOINED"
	TypePlayerLeft           = "PLAYER_LEFT"
	TypeAssignedRole         = "ASSIGNED_ROLE"
	TypeCountdown            = "COUNTDOWN"
	TypeGameStart            = "GAME_START"
	TypeGameOver             = "GAME_OVER"
	TypeOpponentDisconnected = "OPPONENT_DISCONNECTED"
)

// ClientMessage is the decoded form of any inbound message. Fields
// beyond Type are populated only for the message types that carry them.
type ClientMessage struct {
	Type      string  `json:"type"`
	Username  string  `json:"username,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Timestamp int64   `json:"timestamp,omitempty"`
}

// matchmakerTypes and gameTypes close the inbound unions per room kind.
var matchmakerTypes = map[string]bool{
	TypeJoinQueue:  true,
	TypeLeaveQueue: true,
}

var gameTypes = map[string]bool{
	TypePaddleMove: true,
	TypeReady:      true,
	TypePause:      true,
	TypeResume:     true,
	TypeLeave:      true,
}

// ParseMatchmakerMessage decodes an inbound matchmaker message,
// rejecting unknown tags.
func ParseMatchmakerMessage(data []byte) (ClientMessage, error) {
	return parseClient(data, matchmakerTypes)
}

// ParseGameMessage decodes an inbound game-room message, rejecting
// unknown tags.
func ParseGameMessage(data []byte) (ClientMessage, error) {
	return parseClient(data, gameTypes)
}

func parseClient(data []byte, allowed map[string]bool) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("malformed message: %w", err)
	}
	if msg.Type == "" {
		return ClientMessage{}, fmt.Errorf("message missing type")
	}
	if !allowed[msg.Type] {
		return ClientMessage{}, fmt.Errorf("unknown message type %q", msg.Type)
	}
	return msg, nil
}

// Outbound messages. Each struct marshals with its tag already set via
// the constructor, so the transport only ever json.Marshals them.

// QueueJoined acknowledges a successful JOIN_QUEUE.
type QueueJoined struct {
	Type     string `json:"type"`
	Position int    `json:"position"`
}

func NewQueueJoined(position int) QueueJoined {
	return QueueJoined{Type: TypeQueueJoined, Position: position}
}

// QueueUpdate is broadcast to every queued client when the queue
// changes shape.
type QueueUpdate struct {
	Type         string `json:"type"`
	Position     int    `json:"position"`
	TotalInQueue int    `json:"totalInQueue"`
}

func NewQueueUpdate(position, total int) QueueUpdate {
	return QueueUpdate{Type: TypeQueueUpdate, Position: position, TotalInQueue: total}
}

// MatchFound directs a queued client to its new game room.
type MatchFound struct {
	Type       string `json:"type"`
	GameRoomID string `json:"gameRoomId"`
	Opponent   string `json:"opponent"`
}

func NewMatchFound(roomID, opponent string) MatchFound {
	return MatchFound{Type: TypeMatchFound, GameRoomID: roomID, Opponent: opponent}
}

// UsernameTaken rejects a JOIN_QUEUE whose name is already active.
type UsernameTaken struct {
	Type     string `json:"type"`
	Username string `json:"username"`
}

func NewUsernameTaken(username string) UsernameTaken {
	return UsernameTaken{Type: TypeUsernameTaken, Username: username}
}

// ErrorMessage reports a validation failure to the offending client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(message string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Message: message}
}

// GameState carries the full authoritative snapshot, broadcast every
// tick. State is the game package's State; kept as any here so the
// protocol package stays a leaf.
type GameState struct {
	Type  string `json:"type"`
	State any    `json:"state"`
}

func NewGameState(state any) GameState {
	return GameState{Type: TypeGameState, State: state}
}

// PlayerJoined announces a new player to everyone in the room.
type PlayerJoined struct {
	Type   string `json:"type"`
	Player any    `json:"player"`
}

func NewPlayerJoined(player any) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, Player: player}
}

// PlayerLeft announces a departure.
type PlayerLeft struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
}

func NewPlayerLeft(playerID string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, PlayerID: playerID}
}

// AssignedRole tells a freshly connected player which paddle it
// controls.
type AssignedRole struct {
	Type     string `json:"type"`
	Role     string `json:"role"`
	PlayerID string `json:"playerId"`
}

func NewAssignedRole(role, playerID string) AssignedRole {
	return AssignedRole{Type: TypeAssignedRole, Role: role, PlayerID: playerID}
}

// Countdown is emitted once per elapsed countdown second.
type Countdown struct {
	Type    string `json:"type"`
	Seconds int    `json:"seconds"`
}

func NewCountdown(seconds int) Countdown {
	return Countdown{Type: TypeCountdown, Seconds: seconds}
}

// GameStart marks the countdown-to-playing edge.
type GameStart struct {
	Type string `json:"type"`
}

func NewGameStart() GameStart {
	return GameStart{Type: TypeGameStart}
}

// GameOver reports the final outcome.
type GameOver struct {
	Type       string `json:"type"`
	Winner     string `json:"winner"`
	FinalScore [2]int `json:"finalScore"`
}

func NewGameOver(winner string, score1, score2 int) GameOver {
	return GameOver{Type: TypeGameOver, Winner: winner, FinalScore: [2]int{score1, score2}}
}

// OpponentDisconnected tells the surviving player the match ended by
// forfeit.
type OpponentDisconnected struct {
	Type string `json:"type"`
}

func NewOpponentDisconnected() OpponentDisconnected {
	return OpponentDisconnected{Type: TypeOpponentDisconnected}
}

// usernameRE enforces the display-name rule: 3-15 characters,
// alphanumeric plus underscore.
var usernameRE = regexp.MustCompile(`^[A-Za-z0-9_]{3,15}$`)

// ValidUsername reports whether name satisfies the display-name rule.
// Enforced server-side regardless of client hinting.
func ValidUsername(name string) bool {
	return usernameRE.MatchString(name)
}
