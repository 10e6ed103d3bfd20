// Package matchmaking implements the waiting queue that pairs players
// into game rooms. Like the game state machine, everything here is a
// pure function over a State value; the matchmaker actor in the server
// package owns the single live instance and serializes access to it.
package matchmaking

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// ErrUsernameTaken is returned by JoinQueue when the requested name is
// already active, either queued or in a running match.
var ErrUsernameTaken = errors.New("username taken")

// QueuedPlayer is one waiting entry.
type QueuedPlayer struct {
	ConnID     string
	Name       string
	EnqueuedAt time.Time
}

// State holds the FIFO queue plus the set of active usernames. Names
// are stored lower-cased; uniqueness is case-insensitive. A name stays
// active while its owner is queued or playing and is released only via
// FreeUsername or LeaveQueue.
type State struct {
	Queue       []QueuedPlayer
	ActiveNames map[string]struct{}
}

// NewState returns an empty matchmaking state.
func NewState() State {
	return State{ActiveNames: make(map[string]struct{})}
}

// IsUsernameTaken reports whether name is active, ignoring case.
func IsUsernameTaken(s State, name string) bool {
	_, ok := s.ActiveNames[strings.ToLower(name)]
	return ok
}

// JoinQueue appends a player and marks the name active. On a name
// collision the original state is returned untouched alongside
// ErrUsernameTaken. The returned position is 1-based.
func JoinQueue(s State, connID, name string, now time.Time) (State, int, error) {
	if IsUsernameTaken(s, name) {
		return s, 0, ErrUsernameTaken
	}

	s.Queue = append(slices.Clone(s.Queue), QueuedPlayer{
		ConnID:     connID,
		Name:       name,
		EnqueuedAt: now,
	})
	s.ActiveNames = maps.Clone(s.ActiveNames)
	s.ActiveNames[strings.ToLower(name)] = struct{}{}

	return s, len(s.Queue), nil
}

// LeaveQueue removes the player with connID and frees their username.
// Unknown connections are a no-op.
func LeaveQueue(s State, connID string) State {
	idx := slices.IndexFunc(s.Queue, func(p QueuedPlayer) bool { return p.ConnID == connID })
	if idx < 0 {
		return s
	}
	name := s.Queue[idx].Name
	s.Queue = slices.Delete(slices.Clone(s.Queue), idx, idx+1)
	return FreeUsername(s, name)
}

// FreeUsername releases a name from the active set, independent of
// queue membership. Called when a match concludes so both participants
// can queue again.
func FreeUsername(s State, name string) State {
	key := strings.ToLower(name)
	if _, ok := s.ActiveNames[key]; !ok {
		return s
	}
	s.ActiveNames = maps.Clone(s.ActiveNames)
	delete(s.ActiveNames, key)
	return s
}

// Match is a successful pairing. The usernames of both players remain
// active until explicitly freed after the match.
type Match struct {
	RoomID  string
	Player1 QueuedPlayer
	Player2 QueuedPlayer
}

// FindMatch pops the two longest-waiting players and mints a fresh room
// id for them. Strict FIFO: queue order is insertion order and nothing
// reorders it. Returns the state unchanged and nil when fewer than two
// players wait.
func FindMatch(s State) (State, *Match) {
	if len(s.Queue) < 2 {
		return s, nil
	}

	m := &Match{
		RoomID:  NewRoomID(),
		Player1: s.Queue[0],
		Player2: s.Queue[1],
	}
	s.Queue = slices.Clone(s.Queue[2:])
	return s, m
}

// QueuePosition returns the 1-based position of connID, or -1 when the
// connection is not queued.
func QueuePosition(s State, connID string) int {
	for i, p := range s.Queue {
		if p.ConnID == connID {
			return i + 1
		}
	}
	return -1
}

// NewRoomID mints a globally unique room identifier: a millisecond
// timestamp prefix plus a random base32 suffix. Treated as opaque by
// everyone downstream; collisions are not re-checked.
func NewRoomID() string {
	return fmt.Sprintf("game-%d-%s", time.Now().UnixMilli(), randomSuffix())
}

// randomSuffix returns 6 characters of crypto/rand base32.
func randomSuffix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// Fallback to a timestamp-derived suffix
		return fmt.Sprintf("%06X", time.Now().UnixNano()&0xFFFFFF)
	}
	return strings.ToLower(base32.StdEncoding.EncodeToString(b)[:6])
}
