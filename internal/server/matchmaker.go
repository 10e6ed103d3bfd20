package server

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/netpong/internal/matchmaking"
	"github.com/vovakirdan/netpong/internal/protocol"
)

type mmEventKind int

const (
	mmConnect mmEventKind = iota
	mmMessage
	mmDisconnect
	mmFreeNames
)

type mmEvent struct {
	kind  mmEventKind
	conn  *Conn
	data  []byte
	names []string
}

// Matchmaker is the transport actor for the global waiting queue. Like
// a game room it is single-goroutine: every queue mutation, including
// username freeing when a match ends, is serialized through the inbox.
type Matchmaker struct {
	logger *log.Logger

	inbox chan mmEvent
	done  chan struct{}

	state matchmaking.State
	conns map[string]*Conn

	// onMatch is invoked for each successful pairing, after both
	// players have been notified.
	onMatch func(m matchmaking.Match)
}

// newMatchmaker creates the actor. Call run in its own goroutine.
func newMatchmaker(logger *log.Logger, onMatch func(matchmaking.Match)) *Matchmaker {
	return &Matchmaker{
		logger:  logger.With("room", "matchmaker"),
		inbox:   make(chan mmEvent, 64),
		done:    make(chan struct{}),
		state:   matchmaking.NewState(),
		conns:   make(map[string]*Conn),
		onMatch: onMatch,
	}
}

// Join registers a new matchmaking connection.
func (mm *Matchmaker) Join(conn *Conn) {
	mm.post(mmEvent{kind: mmConnect, conn: conn})
}

// HandleMessage delivers one inbound frame.
func (mm *Matchmaker) HandleMessage(conn *Conn, data []byte) {
	mm.post(mmEvent{kind: mmMessage, conn: conn, data: data})
}

// Disconnect reports a closed connection.
func (mm *Matchmaker) Disconnect(conn *Conn) {
	mm.post(mmEvent{kind: mmDisconnect, conn: conn})
}

// FreeNames releases username reservations once a match has concluded.
func (mm *Matchmaker) FreeNames(names []string) {
	mm.post(mmEvent{kind: mmFreeNames, names: names})
}

func (mm *Matchmaker) post(ev mmEvent) {
	select {
	case mm.inbox <- ev:
	case <-mm.done:
	}
}

// Stop shuts the actor down.
func (mm *Matchmaker) Stop() {
	select {
	case <-mm.done:
	default:
		close(mm.done)
	}
}

func (mm *Matchmaker) run() {
	for {
		select {
		case ev := <-mm.inbox:
			switch ev.kind {
			case mmConnect:
				mm.conns[ev.conn.ID()] = ev.conn
			case mmMessage:
				mm.handleMessage(ev.conn, ev.data)
			case mmDisconnect:
				mm.handleDisconnect(ev.conn)
			case mmFreeNames:
				for _, name := range ev.names {
					mm.state = matchmaking.FreeUsername(mm.state, name)
				}
			}

		case <-mm.done:
			return
		}
	}
}

func (mm *Matchmaker) handleMessage(conn *Conn, data []byte) {
	msg, err := protocol.ParseMatchmakerMessage(data)
	if err != nil {
		mm.logger.Warn("bad message", "conn", conn.ID(), "error", err)
		conn.Send(protocol.NewError(err.Error()))
		return
	}

	switch msg.Type {
	case protocol.TypeJoinQueue:
		mm.handleJoinQueue(conn, msg.Username)

	case protocol.TypeLeaveQueue:
		mm.state = matchmaking.LeaveQueue(mm.state, conn.ID())
		mm.broadcastQueue()
	}
}

func (mm *Matchmaker) handleJoinQueue(conn *Conn, username string) {
	if !protocol.ValidUsername(username) {
		conn.Send(protocol.NewError("username must be 3-15 characters, letters, digits and underscore only"))
		return
	}

	// A connection holds at most one queue slot; repeats just re-ack.
	if pos := matchmaking.QueuePosition(mm.state, conn.ID()); pos != -1 {
		conn.Send(protocol.NewQueueJoined(pos))
		return
	}

	next, position, err := matchmaking.JoinQueue(mm.state, conn.ID(), username, time.Now())
	if err != nil {
		conn.Send(protocol.NewUsernameTaken(username))
		return
	}
	mm.state = next

	conn.Send(protocol.NewQueueJoined(position))
	mm.logger.Info("queued", "conn", conn.ID(), "name", username, "position", position)

	mm.broadcastQueue()
	mm.pairWaiting()
}

func (mm *Matchmaker) handleDisconnect(conn *Conn) {
	mm.state = matchmaking.LeaveQueue(mm.state, conn.ID())
	delete(mm.conns, conn.ID())
	mm.broadcastQueue()
}

// pairWaiting drains the queue two at a time. Re-run after every
// successful join; each pairing unicasts the room id and the opponent's
// name to both players. Usernames stay reserved until the match ends.
func (mm *Matchmaker) pairWaiting() {
	for {
		next, match := matchmaking.FindMatch(mm.state)
		if match == nil {
			return
		}
		mm.state = next

		if c, ok := mm.conns[match.Player1.ConnID]; ok {
			c.Send(protocol.NewMatchFound(match.RoomID, match.Player2.Name))
		}
		if c, ok := mm.conns[match.Player2.ConnID]; ok {
			c.Send(protocol.NewMatchFound(match.RoomID, match.Player1.Name))
		}

		mm.logger.Info("match found",
			"room", match.RoomID,
			"player1", match.Player1.Name,
			"player2", match.Player2.Name,
		)

		if mm.onMatch != nil {
			mm.onMatch(*match)
		}

		mm.broadcastQueue()
	}
}

// broadcastQueue sends every still-queued client its current position.
func (mm *Matchmaker) broadcastQueue() {
	total := len(mm.state.Queue)
	for i, p := range mm.state.Queue {
		if c, ok := mm.conns[p.ConnID]; ok {
			c.Send(protocol.NewQueueUpdate(i+1, total))
		}
	}
}
