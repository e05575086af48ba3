package lobby

import (
	"testing"
	"time"

	"snake-lobby-server/internal/snakedomain"
	"snake-lobby-server/internal/wsproto"
)

func newTestLobby(t *testing.T) (*Lobby, chan CtrlMsg) {
	t.Helper()
	l := New("L")
	ctrl := make(chan CtrlMsg, 16)
	l.SetCh(ctrl)
	return l, ctrl
}

func TestJoinConPrepOnly(t *testing.T) {
	l, _ := newTestLobby(t)
	writer := make(chan OutMsg, 4)

	if err := l.JoinCon(1, writer, "alice"); err != nil {
		t.Fatalf("expected join to succeed in Prep, got %v", err)
	}
	if len(l.Players) != 1 {
		t.Fatalf("expected 1 player, got %d", len(l.Players))
	}
	if _, ok := l.Prep.StartVotes[1]; !ok {
		t.Fatal("expected con to be registered in start votes")
	}

	if err := l.Begin(); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	defer l.Stop()

	writer2 := make(chan OutMsg, 4)
	if err := l.JoinCon(2, writer2, "bob"); err == nil {
		t.Fatal("expected join to fail once lobby is Running")
	}
}

func TestVoteStartBeginsOnceAllVoted(t *testing.T) {
	l, _ := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	w2 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")
	_ = l.JoinCon(2, w2, "bob")

	if err := l.VoteStart(1, true); err != nil {
		t.Fatalf("vote_start failed: %v", err)
	}
	if l.Kind != StatePrep {
		t.Fatal("expected lobby to remain in Prep with only one vote cast")
	}

	if err := l.VoteStart(2, true); err != nil {
		t.Fatalf("vote_start failed: %v", err)
	}
	defer l.Stop()
	if l.Kind != StateRunning {
		t.Fatal("expected lobby to transition to Running once all voted")
	}
	if l.Running == nil || len(l.Running.Snakes) != 2 {
		t.Fatal("expected a running state with 2 snakes")
	}
}

func TestVoteStartOutsidePrepFails(t *testing.T) {
	l, _ := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")
	_ = l.VoteStart(1, true)
	defer l.Stop()

	if err := l.VoteStart(1, true); err == nil {
		t.Fatal("expected vote_start to fail once Running")
	}
}

func TestTickDriverSendsAdvance(t *testing.T) {
	l, ctrl := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")
	if err := l.Begin(); err != nil {
		t.Fatalf("begin failed: %v", err)
	}
	defer l.Stop()

	select {
	case msg := <-ctrl:
		if msg.Kind != CtrlAdvance {
			t.Fatalf("expected CtrlAdvance, got %v", msg.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a tick within 2 seconds")
	}
}

func TestHandleMessageAdvancesAndBroadcasts(t *testing.T) {
	l, _ := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")
	_ = l.VoteStart(1, true)
	defer l.Stop()
	// solo lobby: a lone player's vote alone does not satisfy
	// all_voted_to_start unless it's the only player, which it is here.
	if l.Kind != StateRunning {
		t.Fatal("expected solo lobby to begin immediately")
	}

	counterBefore := l.Running.Counter
	l.HandleMessage(CtrlMsg{Kind: CtrlAdvance})
	if l.Running.Counter != counterBefore+1 {
		t.Fatalf("expected counter to advance, before=%d after=%d", counterBefore, l.Running.Counter)
	}

	select {
	case out := <-w1:
		if out.Id != nil {
			t.Fatal("expected unpinned broadcast (nil id)")
		}
		if out.Msg.LobbyState == nil || out.Msg.LobbyState.Kind != wsproto.LobbyStateRunning {
			t.Fatal("expected a Running LobbyState broadcast")
		}
	default:
		t.Fatal("expected a broadcast message on the player's writer channel")
	}
}

func TestDisjoinConRequestsRemovalWhenRunningAndEmpty(t *testing.T) {
	l, ctrl := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")
	_ = l.VoteStart(1, true)
	defer l.Stop()

	l.DisjoinCon(1)

	select {
	case msg := <-ctrl:
		if msg.Kind != CtrlRemoveLobby {
			t.Fatalf("expected CtrlRemoveLobby, got %v", msg.Kind)
		}
	default:
		t.Fatal("expected the lobby to request its own removal")
	}
}

func TestStateProjectionPrep(t *testing.T) {
	l, _ := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")
	_ = l.VoteStart(1, false)

	state := l.State(1)
	if state.Kind != wsproto.LobbyStatePrep {
		t.Fatalf("expected Prep, got %v", state.Kind)
	}
	if len(state.Participants) != 1 || state.Participants[0].UserName != "alice" {
		t.Fatalf("unexpected participants: %+v", state.Participants)
	}
}

func TestStateProjectionRunningExcludesSelfFromOtherSnakes(t *testing.T) {
	l, _ := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	w2 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")
	_ = l.JoinCon(2, w2, "bob")
	_ = l.VoteStart(1, true)
	_ = l.VoteStart(2, true)
	defer l.Stop()

	state := l.State(1)
	if state.Kind != wsproto.LobbyStateRunning {
		t.Fatalf("expected Running, got %v", state.Kind)
	}
	if state.Domain.Snake == nil {
		t.Fatal("expected receiver's own snake to be populated")
	}
	if len(state.Domain.OtherSnakes) != 1 {
		t.Fatalf("expected exactly 1 other snake, got %d", len(state.Domain.OtherSnakes))
	}
}

func TestSetConDirectionOutsideRunningFails(t *testing.T) {
	l, _ := newTestLobby(t)
	w1 := make(chan OutMsg, 4)
	_ = l.JoinCon(1, w1, "alice")

	if err := l.SetConDirection(1, snakedomain.Left); err == nil {
		t.Fatal("expected set_direction to fail outside Running")
	}
}
