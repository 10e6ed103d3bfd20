package server

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/netpong/internal/config"
	"github.com/vovakirdan/netpong/internal/protocol"
)

// newTestServer spins up the full stack on an httptest listener with a
// compressed tick interval so the three-second countdown elapses in
// well under a second of wall time.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	cfg := config.DefaultServerConfig()
	cfg.AllowAnyOrigin = true

	s := New(cfg)
	s.tickInterval = 2 * time.Millisecond
	s.Start()

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Shutdown()
		ts.Close()
	})

	return s, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendJSON(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(v))
}

// waitFor reads frames until one with the wanted type arrives,
// discarding everything else (tick broadcasts, queue updates).
func waitFor(t *testing.T, ws *websocket.Conn, msgType string) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))

	for {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)

		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == msgType {
			return msg
		}
	}
}

// waitForState reads GAME_STATE frames until pred accepts one.
func waitForState(t *testing.T, ws *websocket.Conn, pred func(map[string]any) bool) map[string]any {
	t.Helper()
	for {
		msg := waitFor(t, ws, protocol.TypeGameState)
		state, ok := msg["state"].(map[string]any)
		require.True(t, ok, "GAME_STATE should carry a state object")
		if pred(state) {
			return state
		}
	}
}

// matchUp queues two players and returns their sockets plus the room id
// both were directed to.
func matchUp(t *testing.T, wsBase, name1, name2 string) (c1, c2 *websocket.Conn, roomID string) {
	t.Helper()

	c1 = dial(t, wsBase+"/ws/matchmaking")
	c2 = dial(t, wsBase+"/ws/matchmaking")

	sendJSON(t, c1, map[string]any{"type": protocol.TypeJoinQueue, "username": name1})
	joined := waitFor(t, c1, protocol.TypeQueueJoined)
	require.EqualValues(t, 1, joined["position"])

	sendJSON(t, c2, map[string]any{"type": protocol.TypeJoinQueue, "username": name2})

	m1 := waitFor(t, c1, protocol.TypeMatchFound)
	m2 := waitFor(t, c2, protocol.TypeMatchFound)

	require.Equal(t, name2, m1["opponent"])
	require.Equal(t, name1, m2["opponent"])
	require.Equal(t, m1["gameRoomId"], m2["gameRoomId"], "both players should get the same room")

	roomID, _ = m1["gameRoomId"].(string)
	require.NotEmpty(t, roomID)
	return c1, c2, roomID
}

func TestMatchmakingPairsFIFO(t *testing.T) {
	_, wsBase := newTestServer(t)
	matchUp(t, wsBase, "alice", "bob")
}

func TestMatchmakingUsernameTaken(t *testing.T) {
	_, wsBase := newTestServer(t)

	c1 := dial(t, wsBase+"/ws/matchmaking")
	sendJSON(t, c1, map[string]any{"type": protocol.TypeJoinQueue, "username": "Alice"})
	waitFor(t, c1, protocol.TypeQueueJoined)

	// Same name, different case, different connection
	c2 := dial(t, wsBase+"/ws/matchmaking")
	sendJSON(t, c2, map[string]any{"type": protocol.TypeJoinQueue, "username": "ALICE"})
	taken := waitFor(t, c2, protocol.TypeUsernameTaken)
	require.Equal(t, "ALICE", taken["username"])

	// The rejected client can retry under another name
	sendJSON(t, c2, map[string]any{"type": protocol.TypeJoinQueue, "username": "bob"})
	waitFor(t, c2, protocol.TypeMatchFound)
	waitFor(t, c1, protocol.TypeMatchFound)
}

func TestMatchmakingInvalidUsername(t *testing.T) {
	_, wsBase := newTestServer(t)

	c := dial(t, wsBase+"/ws/matchmaking")
	sendJSON(t, c, map[string]any{"type": protocol.TypeJoinQueue, "username": "x"})
	errMsg := waitFor(t, c, protocol.TypeError)
	require.Contains(t, errMsg["message"], "username")
}

func TestMatchmakingDisconnectLeavesQueue(t *testing.T) {
	_, wsBase := newTestServer(t)

	c1 := dial(t, wsBase+"/ws/matchmaking")
	sendJSON(t, c1, map[string]any{"type": protocol.TypeJoinQueue, "username": "alice"})
	waitFor(t, c1, protocol.TypeQueueJoined)
	c1.Close()

	// The name frees once the disconnect is processed; poll briefly
	c2 := dial(t, wsBase+"/ws/matchmaking")
	require.Eventually(t, func() bool {
		sendJSON(t, c2, map[string]any{"type": protocol.TypeJoinQueue, "username": "alice"})
		require.NoError(t, c2.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := c2.ReadMessage()
		if err != nil {
			return false
		}
		var msg map[string]any
		if json.Unmarshal(data, &msg) != nil {
			return false
		}
		return msg["type"] == protocol.TypeQueueJoined
	}, 3*time.Second, 50*time.Millisecond, "disconnect should free the username")
}

func TestFullMatchFlow(t *testing.T) {
	_, wsBase := newTestServer(t)
	_, _, roomID := matchUp(t, wsBase, "alice", "bob")

	host := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=alice", roomID))
	role1 := waitFor(t, host, protocol.TypeAssignedRole)
	require.Equal(t, "host", role1["role"])

	guest := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=bob", roomID))
	role2 := waitFor(t, guest, protocol.TypeAssignedRole)
	require.Equal(t, "guest", role2["role"])

	// Both players see the countdown begin at 3
	cd := waitFor(t, host, protocol.TypeCountdown)
	require.EqualValues(t, 3, cd["seconds"])
	waitFor(t, guest, protocol.TypeCountdown)

	// ...and the match start once it elapses
	waitFor(t, host, protocol.TypeGameStart)
	waitFor(t, guest, protocol.TypeGameStart)

	state := waitForState(t, host, func(s map[string]any) bool {
		return s["status"] == "playing"
	})
	require.NotZero(t, state["ballVX"], "ball should be served")

	// Paddle intents apply to the mover's own paddle
	sendJSON(t, host, map[string]any{"type": protocol.TypePaddleMove, "y": 25.0})
	waitForState(t, guest, func(s map[string]any) bool {
		return s["paddle1Y"] == 25.0
	})

	sendJSON(t, guest, map[string]any{"type": protocol.TypePaddleMove, "y": 75.0})
	waitForState(t, host, func(s map[string]any) bool {
		return s["paddle2Y"] == 75.0
	})
}

func TestPauseStopsBroadcasts(t *testing.T) {
	_, wsBase := newTestServer(t)
	_, _, roomID := matchUp(t, wsBase, "alice", "bob")

	host := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=alice", roomID))
	guest := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=bob", roomID))

	waitFor(t, host, protocol.TypeGameStart)
	waitForState(t, guest, func(s map[string]any) bool { return s["status"] == "playing" })

	sendJSON(t, host, map[string]any{"type": protocol.TypePause})
	waitForState(t, guest, func(s map[string]any) bool { return s["status"] == "paused" })

	sendJSON(t, guest, map[string]any{"type": protocol.TypeResume})
	waitForState(t, host, func(s map[string]any) bool { return s["status"] == "playing" })
}

func TestOpponentDisconnectForfeits(t *testing.T) {
	s, wsBase := newTestServer(t)
	_, _, roomID := matchUp(t, wsBase, "alice", "bob")

	host := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=alice", roomID))
	guest := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=bob", roomID))

	// Wait until the match is underway so the leave is a forfeit
	waitForState(t, host, func(st map[string]any) bool { return st["status"] == "playing" })

	guest.Close()

	waitFor(t, host, protocol.TypeOpponentDisconnected)
	over := waitFor(t, host, protocol.TypeGameOver)
	require.Equal(t, "player1", over["winner"], "remaining player wins by forfeit")

	// The finished room leaves the registry and the names free up, so
	// both players can queue again
	require.Eventually(t, func() bool {
		s.mu.Lock()
		_, live := s.rooms[roomID]
		s.mu.Unlock()
		return !live
	}, 3*time.Second, 20*time.Millisecond, "finished room should be discarded")

	c := dial(t, wsBase+"/ws/matchmaking")
	require.Eventually(t, func() bool {
		sendJSON(t, c, map[string]any{"type": protocol.TypeJoinQueue, "username": "alice"})
		require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := c.ReadMessage()
		if err != nil {
			return false
		}
		var msg map[string]any
		if json.Unmarshal(data, &msg) != nil {
			return false
		}
		return msg["type"] == protocol.TypeQueueJoined
	}, 3*time.Second, 50*time.Millisecond, "finished match should free the usernames")
}

func TestGameRoomRejectsThirdPlayer(t *testing.T) {
	_, wsBase := newTestServer(t)
	_, _, roomID := matchUp(t, wsBase, "alice", "bob")

	dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=alice", roomID))
	dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=bob", roomID))

	intruder := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=carol", roomID))
	errMsg := waitFor(t, intruder, protocol.TypeError)
	require.Contains(t, errMsg["message"], "full")
}

func TestGameRoomRejectsBadUsername(t *testing.T) {
	_, wsBase := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsBase+"/ws/game/game-1-abc?username=!!", nil)
	require.Error(t, err, "handshake should fail for an invalid username")
	require.NotNil(t, resp)
	require.Equal(t, 400, resp.StatusCode)
}

func TestGameRoomRejectsUnknownMessage(t *testing.T) {
	_, wsBase := newTestServer(t)
	_, _, roomID := matchUp(t, wsBase, "alice", "bob")

	host := dial(t, wsBase+fmt.Sprintf("/ws/game/%s?username=alice", roomID))
	waitFor(t, host, protocol.TypeAssignedRole)

	require.NoError(t, host.WriteMessage(websocket.TextMessage, []byte(`{"type":"EXPLODE"}`)))
	errMsg := waitFor(t, host, protocol.TypeError)
	require.Contains(t, errMsg["message"], "unknown message type")
}
