package matchmaking

import (
	"errors"
	"regexp"
	"testing"
	"time"
)

func mustJoin(t *testing.T, s State, connID, name string) State {
	t.Helper()
	next, _, err := JoinQueue(s, connID, name, time.Now())
	if err != nil {
		t.Fatalf("JoinQueue(%s) failed: %v", name, err)
	}
	return next
}

func TestJoinQueuePositions(t *testing.T) {
	s := NewState()

	s, pos, err := JoinQueue(s, "c1", "alice", time.Now())
	if err != nil || pos != 1 {
		t.Errorf("First joiner should be position 1, got %d (err=%v)", pos, err)
	}

	s, pos, err = JoinQueue(s, "c2", "bob", time.Now())
	if err != nil || pos != 2 {
		t.Errorf("Second joiner should be position 2, got %d (err=%v)", pos, err)
	}

	if got := QueuePosition(s, "c1"); got != 1 {
		t.Errorf("QueuePosition(c1) = %d, want 1", got)
	}
	if got := QueuePosition(s, "missing"); got != -1 {
		t.Errorf("QueuePosition of unknown conn should be -1, got %d", got)
	}
}

func TestUsernameUniquenessCaseInsensitive(t *testing.T) {
	s := NewState()
	s = mustJoin(t, s, "c1", "Alice")

	for _, name := range []string{"Alice", "alice", "ALICE", "aLiCe"} {
		next, pos, err := JoinQueue(s, "c2", name, time.Now())
		if !errors.Is(err, ErrUsernameTaken) {
			t.Errorf("JoinQueue(%q) should fail with ErrUsernameTaken, got %v", name, err)
		}
		if pos != 0 {
			t.Errorf("Failed join should report position 0, got %d", pos)
		}
		// The rejected attempt must not disturb the queue
		if len(next.Queue) != 1 {
			t.Errorf("Failed join should leave the queue untouched, got %d entries", len(next.Queue))
		}
	}

	// Original capitalization is preserved for the holder
	if s.Queue[0].Name != "Alice" {
		t.Errorf("Stored name should keep its capitalization, got %q", s.Queue[0].Name)
	}
}

func TestLeaveQueueFreesName(t *testing.T) {
	s := NewState()
	s = mustJoin(t, s, "c1", "alice")

	s = LeaveQueue(s, "c1")

	if len(s.Queue) != 0 {
		t.Errorf("Queue should be empty after leave, got %d entries", len(s.Queue))
	}
	if IsUsernameTaken(s, "ALICE") {
		t.Error("Leaving the queue should free the username")
	}

	// The name is immediately reusable
	s = mustJoin(t, s, "c2", "alice")
	if len(s.Queue) != 1 {
		t.Errorf("Freed name should be reusable, got %d entries", len(s.Queue))
	}
}

func TestLeaveQueueUnknownConn(t *testing.T) {
	s := NewState()
	s = mustJoin(t, s, "c1", "alice")

	s2 := LeaveQueue(s, "nope")
	if len(s2.Queue) != 1 {
		t.Error("Removing an unknown connection should be a no-op")
	}
}

func TestFindMatchFIFO(t *testing.T) {
	s := NewState()
	for i, name := range []string{"alice", "bob", "carol", "dave"} {
		s = mustJoin(t, s, string(rune('a'+i)), name)
	}

	s, m1 := FindMatch(s)
	if m1 == nil {
		t.Fatal("Four queued players should produce a match")
	}
	if m1.Player1.Name != "alice" || m1.Player2.Name != "bob" {
		t.Errorf("First match should pair the two longest waiting, got %s vs %s", m1.Player1.Name, m1.Player2.Name)
	}

	s, m2 := FindMatch(s)
	if m2 == nil {
		t.Fatal("Remaining pair should produce a match")
	}
	if m2.Player1.Name != "carol" || m2.Player2.Name != "dave" {
		t.Errorf("Second match should pair the remainder in order, got %s vs %s", m2.Player1.Name, m2.Player2.Name)
	}

	if m1.RoomID == m2.RoomID {
		t.Error("Concurrent matches should get distinct room ids")
	}

	s, m3 := FindMatch(s)
	if m3 != nil {
		t.Error("Empty queue should not match")
	}
	if len(s.Queue) != 0 {
		t.Errorf("Queue should be drained, got %d entries", len(s.Queue))
	}
}

func TestMatchKeepsNamesActive(t *testing.T) {
	s := NewState()
	s = mustJoin(t, s, "c1", "alice")
	s = mustJoin(t, s, "c2", "bob")

	s, m := FindMatch(s)
	if m == nil {
		t.Fatal("Two queued players should match")
	}

	// Matched players have left the queue but their names stay reserved
	// until the match concludes
	if !IsUsernameTaken(s, "alice") || !IsUsernameTaken(s, "bob") {
		t.Error("Matched players' names should stay active")
	}

	if _, _, err := JoinQueue(s, "c3", "ALICE", time.Now()); !errors.Is(err, ErrUsernameTaken) {
		t.Errorf("In-match name should be rejected, got %v", err)
	}

	s = FreeUsername(s, "alice")
	s = FreeUsername(s, "bob")
	if IsUsernameTaken(s, "alice") || IsUsernameTaken(s, "bob") {
		t.Error("FreeUsername should release the names")
	}
}

func TestFindMatchSingleWaiter(t *testing.T) {
	s := NewState()
	s = mustJoin(t, s, "c1", "alice")

	s2, m := FindMatch(s)
	if m != nil {
		t.Error("A single waiter should not match")
	}
	if len(s2.Queue) != 1 {
		t.Error("Unmatched waiter should stay queued")
	}
}

func TestNewRoomIDFormat(t *testing.T) {
	idRe := regexp.MustCompile(`^game-\d+-[a-z2-7]{6}$`)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		id := NewRoomID()
		if !idRe.MatchString(id) {
			t.Fatalf("Room id %q does not match the expected shape", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("Room id %q minted twice", id)
		}
		seen[id] = struct{}{}
	}
}
