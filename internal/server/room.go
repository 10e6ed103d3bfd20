package server

import (
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/netpong/internal/game"
	"github.com/vovakirdan/netpong/internal/protocol"
)

// roomEventKind discriminates the actor inbox.
type roomEventKind int

const (
	evConnect roomEventKind = iota
	evMessage
	evDisconnect
)

type roomEvent struct {
	kind roomEventKind
	conn *Conn
	data []byte
}

// GameRoom is the transport actor for one match. A single goroutine
// owns the game.Room value and the live connections; connection pumps
// and the tick timer only ever talk to it through the inbox, so no
// transition races another.
type GameRoom struct {
	id           string
	logger       *log.Logger
	tickInterval time.Duration

	inbox chan roomEvent
	done  chan struct{}

	state game.Room
	conns map[string]*Conn // conn id -> conn
	names []string         // Display names seen, reported on teardown
	rng   *rand.Rand

	// onFinished runs once when the actor tears down, with the display
	// names whose matchmaking reservations should be released.
	onFinished func(roomID string, names []string)
}

// newGameRoom creates the actor for a room id. Call run in its own
// goroutine.
func newGameRoom(id string, tickInterval time.Duration, logger *log.Logger, onFinished func(string, []string)) *GameRoom {
	return &GameRoom{
		id:           id,
		logger:       logger.With("room", id),
		tickInterval: tickInterval,
		inbox:        make(chan roomEvent, 64),
		done:         make(chan struct{}),
		state:        game.NewRoom(id),
		conns:        make(map[string]*Conn),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		onFinished:   onFinished,
	}
}

// Join hands a freshly upgraded connection to the actor.
func (gr *GameRoom) Join(conn *Conn) {
	gr.post(roomEvent{kind: evConnect, conn: conn})
}

// HandleMessage delivers one inbound frame.
func (gr *GameRoom) HandleMessage(conn *Conn, data []byte) {
	gr.post(roomEvent{kind: evMessage, conn: conn, data: data})
}

// Disconnect reports a closed connection.
func (gr *GameRoom) Disconnect(conn *Conn) {
	gr.post(roomEvent{kind: evDisconnect, conn: conn})
}

func (gr *GameRoom) post(ev roomEvent) {
	select {
	case gr.inbox <- ev:
	case <-gr.done:
	}
}

// Stop tears the actor down externally (server shutdown).
func (gr *GameRoom) Stop() {
	select {
	case <-gr.done:
	default:
		close(gr.done)
	}
}

// run is the actor loop. The tick channel is nil whenever the
// fixed-rate loop is stopped (waiting, paused, finished), which makes
// the select simply ignore it.
func (gr *GameRoom) run() {
	var ticker *time.Ticker
	var tickC <-chan time.Time

	startLoop := func() {
		if ticker == nil {
			ticker = time.NewTicker(gr.tickInterval)
			tickC = ticker.C
		}
	}
	stopLoop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}
	}
	defer stopLoop()

	for {
		select {
		case ev := <-gr.inbox:
			switch ev.kind {
			case evConnect:
				gr.handleConnect(ev.conn, startLoop)
			case evMessage:
				gr.handleMessage(ev.conn, ev.data, startLoop, stopLoop)
			case evDisconnect:
				if gr.handleDisconnect(ev.conn, stopLoop) {
					return
				}
			}

		case <-tickC:
			if gr.handleTick(stopLoop) {
				return
			}

		case <-gr.done:
			return
		}
	}
}

// handleConnect attaches a player. The first connector becomes host,
// the second guest; once both are present the countdown starts and the
// fixed-rate loop begins.
func (gr *GameRoom) handleConnect(conn *Conn, startLoop func()) {
	if len(gr.state.Players) >= 2 {
		conn.Send(protocol.NewError("room is full"))
		conn.Close()
		return
	}

	gr.state = game.AddPlayer(gr.state, conn.ID(), conn.Username())
	gr.conns[conn.ID()] = conn
	gr.names = append(gr.names, conn.Username())

	player, _ := game.FindPlayer(gr.state, conn.ID())
	conn.Send(protocol.NewAssignedRole(string(player.Role), conn.ID()))
	gr.broadcast(protocol.NewPlayerJoined(player))

	gr.logger.Info("player joined", "conn", conn.ID(), "name", conn.Username(), "role", player.Role)

	if game.IsReadyToStart(gr.state) {
		gr.state = game.StartCountdown(gr.state)
		gr.broadcast(protocol.NewCountdown(gr.state.Game.Countdown))
		startLoop()
	}
}

// handleMessage parses and dispatches one frame. Malformed input is
// logged and reported to the sender; the held state is never touched on
// a parse failure.
func (gr *GameRoom) handleMessage(conn *Conn, data []byte, startLoop, stopLoop func()) {
	msg, err := protocol.ParseGameMessage(data)
	if err != nil {
		gr.logger.Warn("bad message", "conn", conn.ID(), "error", err)
		conn.Send(protocol.NewError(err.Error()))
		return
	}

	switch msg.Type {
	case protocol.TypePaddleMove:
		gr.state = game.UpdatePaddle(gr.state, conn.ID(), msg.Y)

	case protocol.TypeReady:
		// Idempotent: the countdown normally starts on the second
		// connect, but a client may nudge it explicitly.
		if game.IsReadyToStart(gr.state) {
			gr.state = game.StartCountdown(gr.state)
			gr.broadcast(protocol.NewCountdown(gr.state.Game.Countdown))
			startLoop()
		}

	case protocol.TypePause:
		prev := gr.state.Game.Status
		gr.state = game.Pause(gr.state)
		if prev == game.StatusPlaying && gr.state.Game.Status == game.StatusPaused {
			stopLoop()
			gr.broadcast(protocol.NewGameState(gr.state.Game))
		}

	case protocol.TypeResume:
		prev := gr.state.Game.Status
		gr.state = game.Resume(gr.state)
		if prev == game.StatusPaused && gr.state.Game.Status == game.StatusPlaying {
			startLoop()
		}

	case protocol.TypeLeave:
		conn.Close()
	}
}

// handleDisconnect removes the player. Mid-match this is a forfeit for
// the remaining player; an emptied room is discarded. Returns true when
// the actor should exit.
func (gr *GameRoom) handleDisconnect(conn *Conn, stopLoop func()) bool {
	if _, attached := gr.conns[conn.ID()]; !attached {
		return false
	}
	delete(gr.conns, conn.ID())

	wasFinished := gr.state.Game.Status == game.StatusFinished
	gr.state = game.RemovePlayer(gr.state, conn.ID())
	gr.broadcast(protocol.NewPlayerLeft(conn.ID()))

	gr.logger.Info("player left", "conn", conn.ID())

	if gr.state.Game.Status == game.StatusFinished && !wasFinished {
		stopLoop()
		gr.broadcast(protocol.NewOpponentDisconnected())
		gr.broadcast(protocol.NewGameOver(string(gr.state.Game.Winner), gr.state.Game.Score1, gr.state.Game.Score2))
		gr.finish()
		return true
	}

	if len(gr.state.Players) == 0 {
		// Room empty before the match ever ran: discard.
		stopLoop()
		gr.finish()
		return true
	}
	return false
}

// handleTick advances the simulation one step and emits edge-triggered
// notifications by diffing against the previous snapshot. Returns true
// when the match finished and the actor should exit.
func (gr *GameRoom) handleTick(stopLoop func()) bool {
	prev := gr.state.Game
	gr.state = game.Tick(gr.state, gr.rng)
	cur := gr.state.Game

	if cur.Status == game.StatusCountdown && cur.Countdown != prev.Countdown {
		gr.broadcast(protocol.NewCountdown(cur.Countdown))
	}
	if prev.Status == game.StatusCountdown && cur.Status == game.StatusPlaying {
		gr.broadcast(protocol.NewGameStart())
	}

	gr.broadcast(protocol.NewGameState(cur))

	if cur.Status == game.StatusFinished {
		stopLoop()
		gr.broadcast(protocol.NewGameOver(string(cur.Winner), cur.Score1, cur.Score2))
		gr.finish()
		return true
	}
	return false
}

// finish runs the teardown hook once and closes the actor.
func (gr *GameRoom) finish() {
	if gr.onFinished != nil {
		gr.onFinished(gr.id, gr.names)
		gr.onFinished = nil
	}
	gr.logger.Info("room finished",
		"score1", gr.state.Game.Score1,
		"score2", gr.state.Game.Score2,
		"winner", gr.state.Game.Winner,
	)
	gr.Stop()
}

// broadcast sends v to every attached connection.
func (gr *GameRoom) broadcast(v any) {
	for _, c := range gr.conns {
		c.Send(v)
	}
}
