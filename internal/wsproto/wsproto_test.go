package wsproto

import (
	"encoding/json"
	"testing"

	"snake-lobby-server/internal/snakedomain"
)

func roundTripClient(t *testing.T, msg ClientMsg) ClientMsg {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out ClientMsg
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return out
}

func TestClientMsgRoundTrip(t *testing.T) {
	name := "alice"
	lobbyName := "L"
	vote := true
	dir := snakedomain.Up

	cases := []ClientMsg{
		{SetUserName: &name},
		{UserName: true},
		{CreateLobby: &lobbyName},
		{JoinLobby: &lobbyName},
		{LeaveLobby: true},
		{LobbyList: true},
		{VoteStart: &vote},
		{SetDirection: &dir},
	}

	for _, c := range cases {
		got := roundTripClient(t, c)
		gotData, _ := json.Marshal(got)
		wantData, _ := json.Marshal(c)
		if string(gotData) != string(wantData) {
			t.Errorf("round trip mismatch: got %s want %s", gotData, wantData)
		}
	}
}

func TestClientMsgRequiresId(t *testing.T) {
	dir := snakedomain.Up
	if (ClientMsg{SetDirection: &dir}).RequiresId() {
		t.Fatalf("SetDirection must be fire-and-forget")
	}
	if !(ClientMsg{LeaveLobby: true}).RequiresId() {
		t.Fatalf("LeaveLobby must require a correlation id")
	}
}

func roundTripServer(t *testing.T, msg ServerMsg) ServerMsg {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out ServerMsg
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal %s: %v", data, err)
	}
	return out
}

func TestServerMsgRoundTrip(t *testing.T) {
	name := "bob"
	otherLobby := "M"

	cases := []ServerMsg{
		Ack(),
		ErrMsg("illegal state"),
		UserNameResp(&name),
		UserNameResp(nil),
		UserNameOccupied(),
		ForbiddenWhenJoined(),
		LobbyListResp([]LobbyListEntry{{Name: "L"}, {Name: "M"}}),
		LobbyStateResp(LobbyState{Kind: LobbyStateTerminated}),
		LobbyStateResp(LobbyState{
			Kind: LobbyStatePrep,
			Participants: []PrepParticipant{
				{UserName: "alice", VoteStart: true},
			},
		}),
		JoinLobbyDecline(JoinLobbyDeclineReason{NotFound: true}),
		JoinLobbyDecline(JoinLobbyDeclineReason{AlreadyJoined: &otherLobby}),
	}

	for _, c := range cases {
		got := roundTripServer(t, c)
		gotData, _ := json.Marshal(got)
		wantData, _ := json.Marshal(c)
		if string(gotData) != string(wantData) {
			t.Errorf("round trip mismatch: got %s want %s", gotData, wantData)
		}
	}
}

func TestEnvelopePin(t *testing.T) {
	env, err := NewEnvelope(Ack())
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	if env.Id != nil {
		t.Fatalf("expected unpinned envelope to carry nil id")
	}
	pinned := env.Pin("req-1")
	if pinned.Id == nil || *pinned.Id != "req-1" {
		t.Fatalf("expected pinned envelope to carry the given id")
	}
	if env.Id != nil {
		t.Fatalf("Pin must not mutate the receiver")
	}
}
