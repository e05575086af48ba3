// Package wsproto defines the JSON wire schema exchanged over the
// websocket endpoint: envelopes, client request variants, and server
// response variants.
package wsproto

import (
	"encoding/json"
	"fmt"

	"snake-lobby-server/internal/snakedomain"
)

// MsgId is an opaque client-chosen correlation id.
type MsgId = string

// Envelope wraps a payload with an optional correlation id. A nil Id
// serializes as JSON null.
type Envelope struct {
	Id      *MsgId          `json:"id"`
	Payload json.RawMessage `json:"payload"`
}

// Pin returns a copy of the envelope carrying the given correlation id.
func (e Envelope) Pin(id MsgId) Envelope {
	e.Id = &id
	return e
}

// NewEnvelope builds an unpinned envelope (id = null) around payload.
func NewEnvelope(payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("wsproto: marshal payload: %w", err)
	}
	return Envelope{Payload: raw}, nil
}

// tagged is the on-the-wire shape of every client/server variant: a
// discriminant tag plus an arbitrary-shaped value.
type tagged struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

// --- Client -> Server ---------------------------------------------------

const (
	TagSetUserName = "SetUserName"
	TagUserName    = "UserName"
	TagCreateLobby = "CreateLobby"
	TagJoinLobby   = "JoinLobby"
	TagLeaveLobby  = "LeaveLobby"
	TagLobbyList   = "LobbyList"
	TagVoteStart   = "VoteStart"
	TagSetDirection = "SetDirection"
)

// ClientMsg is a decoded client request: exactly one field is set (a
// non-nil pointer or a true bool), matching the wire tag.
type ClientMsg struct {
	SetUserName *string
	UserName    bool
	CreateLobby *string
	JoinLobby   *string
	LeaveLobby  bool
	LobbyList   bool
	VoteStart   *bool
	SetDirection *snakedomain.Direction
}

// RequiresId reports whether this request variant expects a correlated
// response. SetDirection is the sole fire-and-forget variant.
func (m ClientMsg) RequiresId() bool {
	return m.SetDirection == nil
}

// UnmarshalJSON decodes a tagged client payload into the matching field.
func (m *ClientMsg) UnmarshalJSON(data []byte) error {
	var t tagged
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	switch t.Type {
	case TagSetUserName:
		var v string
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return fmt.Errorf("wsproto: SetUserName value: %w", err)
		}
		m.SetUserName = &v
	case TagUserName:
		m.UserName = true
	case TagCreateLobby:
		var v string
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return fmt.Errorf("wsproto: CreateLobby value: %w", err)
		}
		m.CreateLobby = &v
	case TagJoinLobby:
		var v string
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return fmt.Errorf("wsproto: JoinLobby value: %w", err)
		}
		m.JoinLobby = &v
	case TagLeaveLobby:
		m.LeaveLobby = true
	case TagLobbyList:
		m.LobbyList = true
	case TagVoteStart:
		var v bool
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return fmt.Errorf("wsproto: VoteStart value: %w", err)
		}
		m.VoteStart = &v
	case TagSetDirection:
		var v snakedomain.Direction
		if err := json.Unmarshal(t.Value, &v); err != nil {
			return fmt.Errorf("wsproto: SetDirection value: %w", err)
		}
		m.SetDirection = &v
	default:
		return fmt.Errorf("wsproto: unknown client message tag %q", t.Type)
	}
	return nil
}

// MarshalJSON encodes the populated field back to its tagged form. Used
// by round-trip tests.
func (m ClientMsg) MarshalJSON() ([]byte, error) {
	switch {
	case m.SetUserName != nil:
		return marshalTagged(TagSetUserName, *m.SetUserName)
	case m.UserName:
		return marshalTagged(TagUserName, nil)
	case m.CreateLobby != nil:
		return marshalTagged(TagCreateLobby, *m.CreateLobby)
	case m.JoinLobby != nil:
		return marshalTagged(TagJoinLobby, *m.JoinLobby)
	case m.LeaveLobby:
		return marshalTagged(TagLeaveLobby, nil)
	case m.LobbyList:
		return marshalTagged(TagLobbyList, nil)
	case m.VoteStart != nil:
		return marshalTagged(TagVoteStart, *m.VoteStart)
	case m.SetDirection != nil:
		return marshalTagged(TagSetDirection, *m.SetDirection)
	default:
		return nil, fmt.Errorf("wsproto: empty ClientMsg")
	}
}

func marshalTagged(tag string, value interface{}) ([]byte, error) {
	var raw json.RawMessage
	if value != nil {
		v, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		raw = v
	}
	return json.Marshal(tagged{Type: tag, Value: raw})
}

// --- Server -> Client ---------------------------------------------------

const (
	TagAck               = "Ack"
	TagErr               = "Err"
	TagUserNameResp      = "UserName"
	TagUserNameOccupied  = "UserNameOccupied"
	TagForbiddenWhenJoined = "ForbiddenWhenJoined"
	TagLobbyListResp     = "LobbyList"
	TagLobbyStateResp    = "LobbyState"
	TagJoinLobbyDecline  = "JoinLobbyDecline"
)

// JoinLobbyDeclineReason enumerates why a JoinLobby request was refused.
type JoinLobbyDeclineReason struct {
	NotFound       bool    `json:"NotFound,omitempty"`
	AlreadyJoined  *string `json:"AlreadyJoined,omitempty"`
	AlreadyStarted bool    `json:"AlreadyStarted,omitempty"`
	UserNameNotSet bool    `json:"UserNameNotSet,omitempty"`
}

// LobbyListEntry is one row of a LobbyList response.
type LobbyListEntry struct {
	Name string `json:"name"`
}

// ServerMsg is an encoded server response: exactly one field is set,
// selected by the Tag.
type ServerMsg struct {
	Tag              string
	Err              string
	UserName         *string
	LobbyListEntries []LobbyListEntry
	LobbyState       *LobbyState
	Decline          JoinLobbyDeclineReason
}

func Ack() ServerMsg { return ServerMsg{Tag: TagAck} }

func ErrMsg(msg string) ServerMsg { return ServerMsg{Tag: TagErr, Err: msg} }

func UserNameResp(name *string) ServerMsg {
	return ServerMsg{Tag: TagUserNameResp, UserName: name}
}

func UserNameOccupied() ServerMsg { return ServerMsg{Tag: TagUserNameOccupied} }

func ForbiddenWhenJoined() ServerMsg { return ServerMsg{Tag: TagForbiddenWhenJoined} }

func LobbyListResp(entries []LobbyListEntry) ServerMsg {
	return ServerMsg{Tag: TagLobbyListResp, LobbyListEntries: entries}
}

func LobbyStateResp(state LobbyState) ServerMsg {
	return ServerMsg{Tag: TagLobbyStateResp, LobbyState: &state}
}

func JoinLobbyDecline(reason JoinLobbyDeclineReason) ServerMsg {
	return ServerMsg{Tag: TagJoinLobbyDecline, Decline: reason}
}

// MarshalJSON encodes the selected variant to its tagged wire form.
func (m ServerMsg) MarshalJSON() ([]byte, error) {
	switch m.Tag {
	case TagAck:
		return marshalTagged(TagAck, nil)
	case TagErr:
		return marshalTagged(TagErr, m.Err)
	case TagUserNameResp:
		return marshalTagged(TagUserNameResp, m.UserName)
	case TagUserNameOccupied:
		return marshalTagged(TagUserNameOccupied, nil)
	case TagForbiddenWhenJoined:
		return marshalTagged(TagForbiddenWhenJoined, nil)
	case TagLobbyListResp:
		return marshalTagged(TagLobbyListResp, m.LobbyListEntries)
	case TagLobbyStateResp:
		return marshalTagged(TagLobbyStateResp, m.LobbyState)
	case TagJoinLobbyDecline:
		return marshalTagged(TagJoinLobbyDecline, m.Decline)
	default:
		return nil, fmt.Errorf("wsproto: empty ServerMsg")
	}
}

// UnmarshalJSON decodes a tagged server payload. Used by round-trip tests.
func (m *ServerMsg) UnmarshalJSON(data []byte) error {
	var t tagged
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	m.Tag = t.Type
	switch t.Type {
	case TagAck, TagUserNameOccupied, TagForbiddenWhenJoined:
		// no payload
	case TagErr:
		return json.Unmarshal(t.Value, &m.Err)
	case TagUserNameResp:
		return json.Unmarshal(t.Value, &m.UserName)
	case TagLobbyListResp:
		return json.Unmarshal(t.Value, &m.LobbyListEntries)
	case TagLobbyStateResp:
		var s LobbyState
		if err := json.Unmarshal(t.Value, &s); err != nil {
			return err
		}
		m.LobbyState = &s
	case TagJoinLobbyDecline:
		return json.Unmarshal(t.Value, &m.Decline)
	default:
		return fmt.Errorf("wsproto: unknown server message tag %q", t.Type)
	}
	return nil
}

// --- Tailored LobbyState projection -------------------------------------

// LobbyStateKind discriminates the projected lobby snapshot.
type LobbyStateKind string

const (
	LobbyStatePrep       LobbyStateKind = "Prep"
	LobbyStateRunning    LobbyStateKind = "Running"
	LobbyStateTerminated LobbyStateKind = "Terminated"
)

// PrepParticipant is one row of a Prep-state participant list.
type PrepParticipant struct {
	UserName  string `json:"user_name"`
	VoteStart bool   `json:"vote_start"`
}

// Domain is the recipient-tailored simulation snapshot for a Running lobby.
type Domain struct {
	Snake       *snakedomain.Snake  `json:"snake"`
	OtherSnakes []snakedomain.Snake `json:"other_snakes"`
	Foods       snakedomain.Foods   `json:"foods"`
	Boundaries  snakedomain.Boundaries `json:"boundaries"`
}

// LobbyState is the tailored projection sent to one recipient.
type LobbyState struct {
	Kind LobbyStateKind `json:"kind"`

	// Prep
	Participants []PrepParticipant `json:"participants,omitempty"`

	// Running
	Counter       uint32  `json:"counter,omitempty"`
	PlayerCounter int     `json:"player_counter,omitempty"`
	Domain        *Domain `json:"domain,omitempty"`
}
