package registry

import (
	"errors"
	"testing"
	"time"

	"snake-lobby-server/internal/ids"
	"snake-lobby-server/internal/lobby"
)

func TestInsertIfMissingRejectsDuplicate(t *testing.T) {
	r := New()
	if err := r.InsertIfMissing("L"); err != nil {
		t.Fatalf("expected first insert to succeed: %v", err)
	}
	if err := r.InsertIfMissing("L"); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
}

func TestJoinConNotFound(t *testing.T) {
	r := New()
	w := make(chan lobby.OutMsg, 4)
	_, err := r.JoinCon("nope", 1, w, "alice")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJoinConIdempotentSameLobby(t *testing.T) {
	r := New()
	_ = r.InsertIfMissing("L")
	w := make(chan lobby.OutMsg, 4)

	s1, err := r.JoinCon("L", 1, w, "alice")
	if err != nil {
		t.Fatalf("expected join to succeed: %v", err)
	}

	s2, err := r.JoinCon("L", 1, w, "alice")
	if err != nil {
		t.Fatalf("expected re-joining the same lobby to be idempotent: %v", err)
	}
	if s1.Kind != s2.Kind {
		t.Fatalf("expected the same state kind on idempotent rejoin, got %v and %v", s1.Kind, s2.Kind)
	}
}

func TestJoinConAlreadyJoinedDifferentLobby(t *testing.T) {
	r := New()
	_ = r.InsertIfMissing("L")
	_ = r.InsertIfMissing("M")
	w := make(chan lobby.OutMsg, 4)

	_, err := r.JoinCon("L", 1, w, "alice")
	if err != nil {
		t.Fatalf("expected first join to succeed: %v", err)
	}

	_, err = r.JoinCon("M", 1, w, "alice")
	var alreadyJoined *AlreadyJoinedError
	if !errors.As(err, &alreadyJoined) {
		t.Fatalf("expected AlreadyJoinedError, got %v", err)
	}
	if alreadyJoined.LobbyName != "L" {
		t.Fatalf("expected AlreadyJoinedError to name %q, got %q", "L", alreadyJoined.LobbyName)
	}
}

func TestDisjoinConRemovesFromReverseIndex(t *testing.T) {
	r := New()
	_ = r.InsertIfMissing("L")
	w := make(chan lobby.OutMsg, 4)
	_, _ = r.JoinCon("L", 1, w, "alice")

	r.DisjoinCon(1)

	if r.JoinedAny(1) {
		t.Fatal("expected con to no longer be joined to any lobby")
	}
}

func TestLastLeaverDestroysRunningLobby(t *testing.T) {
	r := New()
	_ = r.InsertIfMissing("L")
	w1 := make(chan lobby.OutMsg, 4)
	w2 := make(chan lobby.OutMsg, 4)
	_, _ = r.JoinCon("L", 1, w1, "alice")
	_, _ = r.JoinCon("L", 2, w2, "bob")

	if err := r.VoteStart(1, true, "v1"); err != nil {
		t.Fatalf("vote_start failed: %v", err)
	}
	if err := r.VoteStart(2, true, "v2"); err != nil {
		t.Fatalf("vote_start failed: %v", err)
	}

	r.DisjoinCon(1)
	r.DisjoinCon(2)

	// removal is driven by the registry-owned message-passing goroutine
	// reading the lobby's own control-channel request; give it a moment.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(r.LobbyNames()) == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if names := r.LobbyNames(); len(names) != 0 {
		t.Fatalf("expected lobby to be removed once both players left a Running game, got %v", names)
	}
}

func TestVoteStartNoLobby(t *testing.T) {
	r := New()
	if err := r.VoteStart(1, true, "v1"); !errors.Is(err, ErrNoLobby) {
		t.Fatalf("expected ErrNoLobby, got %v", err)
	}
}

func TestLobbyNamesSorted(t *testing.T) {
	r := New()
	_ = r.InsertIfMissing("zeta")
	_ = r.InsertIfMissing("alpha")
	names := r.LobbyNames()
	if len(names) != 2 || names[0] != ids.LobbyName("alpha") || names[1] != ids.LobbyName("zeta") {
		t.Fatalf("expected sorted [alpha zeta], got %v", names)
	}
}
