// Package server hosts the WebSocket transport for netpong: one
// matchmaker actor for the global queue and one actor per live match.
// Rooms are fully independent; the only cross-room traffic is the
// matchmaker handing two clients a fresh room id, and a finished room
// handing the matchmaker its username reservations back.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/vovakirdan/netpong/internal/config"
	"github.com/vovakirdan/netpong/internal/game"
	"github.com/vovakirdan/netpong/internal/matchmaking"
	"github.com/vovakirdan/netpong/internal/protocol"
)

// Server owns the HTTP listener, the matchmaker, and the registry of
// live game rooms.
type Server struct {
	cfg      config.ServerConfig
	logger   *log.Logger
	upgrader websocket.Upgrader

	matchmaker *Matchmaker

	mu           sync.Mutex
	rooms        map[string]*GameRoom
	matchedNames map[string][]string // room id -> usernames reserved for it

	// tickInterval is the real-time spacing of simulation ticks.
	// Countdown math counts ticks, not wall time, so tests shrink this
	// to compress simulated seconds.
	tickInterval time.Duration

	httpSrv *http.Server
}

// New creates a server from configuration.
func New(cfg config.ServerConfig) *Server {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "netpong",
	})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		rooms:        make(map[string]*GameRoom),
		matchedNames: make(map[string][]string),
		tickInterval: time.Second / game.TickRate,
	}
	if cfg.AllowAnyOrigin {
		s.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}

	s.matchmaker = newMatchmaker(logger, s.rememberMatch)
	return s
}

// Handler returns the HTTP routes. Exposed separately from
// ListenAndServe so tests can mount it on httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/matchmaking", s.serveMatchmaking)
	mux.HandleFunc("GET /ws/game/{roomID}", s.serveGame)
	return mux
}

// Start launches the matchmaker actor. Must be called before serving.
func (s *Server) Start() {
	go s.matchmaker.run()
}

// ListenAndServe starts the server and blocks until SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *Server) ListenAndServe() error {
	s.Start()

	s.httpSrv = &http.Server{
		Addr:    s.cfg.Address,
		Handler: s.Handler(),
	}

	s.logger.Info("starting server", "address", s.cfg.Address)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-done:
	}

	s.logger.Info("shutting down...")
	return s.Shutdown()
}

// Shutdown stops every actor and closes the listener.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	for _, room := range s.rooms {
		room.Stop()
	}
	s.rooms = make(map[string]*GameRoom)
	s.mu.Unlock()

	s.matchmaker.Stop()

	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// serveMatchmaking upgrades a matchmaking connection and attaches it to
// the matchmaker actor.
func (s *Server) serveMatchmaking(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}

	conn := newConn(ws, "", s.logger)
	s.matchmaker.Join(conn)

	go conn.writePump(s.cfg.IdleTimeout)
	go conn.readPump(s.cfg.IdleTimeout,
		func(data []byte) { s.matchmaker.HandleMessage(conn, data) },
		func() { s.matchmaker.Disconnect(conn) },
	)
}

// serveGame upgrades a game connection. The first connect to an unseen
// room id instantiates that room's actor; the display name travels in
// the ?username query parameter.
func (s *Server) serveGame(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomID")
	username := r.URL.Query().Get("username")
	if !protocol.ValidUsername(username) {
		http.Error(w, "invalid username", http.StatusBadRequest)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", "error", err)
		return
	}

	conn := newConn(ws, username, s.logger)
	room := s.roomFor(roomID)
	room.Join(conn)

	go conn.writePump(s.cfg.IdleTimeout)
	go conn.readPump(s.cfg.IdleTimeout,
		func(data []byte) { room.HandleMessage(conn, data) },
		func() { room.Disconnect(conn) },
	)
}

// roomFor returns the actor for a room id, creating and starting it on
// first sight.
func (s *Server) roomFor(roomID string) *GameRoom {
	s.mu.Lock()
	defer s.mu.Unlock()

	if room, ok := s.rooms[roomID]; ok {
		return room
	}
	room := newGameRoom(roomID, s.tickInterval, s.logger, s.roomFinished)
	s.rooms[roomID] = room
	go room.run()
	return room
}

// rememberMatch records which usernames a pairing reserved, so the
// reservations can be released even if a client never follows the
// MATCH_FOUND redirect.
func (s *Server) rememberMatch(m matchmaking.Match) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchedNames[m.RoomID] = []string{m.Player1.Name, m.Player2.Name}
}

// roomFinished drops a finished room from the registry and frees its
// username reservations back to the matchmaker.
func (s *Server) roomFinished(roomID string, seenNames []string) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	names, ok := s.matchedNames[roomID]
	delete(s.matchedNames, roomID)
	s.mu.Unlock()

	if !ok {
		names = seenNames
	}
	s.matchmaker.FreeNames(names)
}
