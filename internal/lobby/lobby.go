// Package lobby implements the per-lobby finite state machine: the Prep
// and Running simulation states, the tick-driven control loop, and the
// recipient-tailored state broadcast.
package lobby

import (
	"context"
	"fmt"
	"time"

	"snake-lobby-server/internal/ids"
	"snake-lobby-server/internal/snakedomain"
	"snake-lobby-server/internal/wsproto"
)

// TickInterval is how often a Running lobby advances its simulation.
// Overridable at startup from config; defaults match the reference server.
var TickInterval = 500 * time.Millisecond

// StateKind discriminates which variant of the lobby FSM is active.
type StateKind int

const (
	StatePrep StateKind = iota
	StateRunning
	StateTerminated
)

// OutMsg is one message queued on a player's writer channel: the
// correlation id to pin (nil for an unsolicited broadcast) plus the
// payload to encode.
type OutMsg struct {
	Id  *wsproto.MsgId
	Msg wsproto.ServerMsg
}

// Ch is a player's outbound message channel, owned by the connection
// handler's writer goroutine.
type Ch chan<- OutMsg

// PlayerSlot is everything the lobby needs to reach and describe one
// joined connection.
type PlayerSlot struct {
	Writer   Ch
	UserName ids.UserName
}

// CtrlKind discriminates a control-channel message.
type CtrlKind int

const (
	CtrlAdvance CtrlKind = iota
	CtrlRemoveLobby
)

// CtrlMsg is sent on a lobby's control channel: either its own tick driver
// requesting an Advance, or the lobby itself requesting its own removal
// (e.g. the last player left a Running game).
type CtrlMsg struct {
	Kind      CtrlKind
	LobbyName ids.LobbyName
}

// Lobby is one named room: its player roster and its current FSM state.
type Lobby struct {
	Name    ids.LobbyName
	Players map[ids.Con]PlayerSlot

	Kind    StateKind
	Prep    *PrepLobbyState
	Running *RunningLobbyState

	ctrl       chan<- CtrlMsg
	cancelTick context.CancelFunc
	tickDone   chan struct{}
}

// New builds a lobby in Prep state, with no players.
func New(name ids.LobbyName) *Lobby {
	return &Lobby{
		Name:    name,
		Players: make(map[ids.Con]PlayerSlot),
		Kind:    StatePrep,
		Prep:    NewPrepLobbyState(),
	}
}

// SetCh wires the lobby to its control channel. Must be called before
// Begin. Mirrors the registry-owned message-passing task that reads this
// channel.
func (l *Lobby) SetCh(ch chan<- CtrlMsg) {
	l.ctrl = ch
}

// Begin transitions Prep -> Running: materialises the simulation state and
// starts a tick driver goroutine that sends CtrlAdvance every TickInterval
// until Stop cancels it. Fails if the lobby is not in Prep.
func (l *Lobby) Begin() error {
	if l.Kind != StatePrep {
		return fmt.Errorf("lobby %q: illegal state for begin", l.Name)
	}
	if l.ctrl == nil {
		return fmt.Errorf("lobby %q: control channel not set", l.Name)
	}

	l.Running = l.Prep.ToRunning()
	l.Prep = nil
	l.Kind = StateRunning

	ctx, cancel := context.WithCancel(context.Background())
	l.cancelTick = cancel
	done := make(chan struct{})
	l.tickDone = done

	ch := l.ctrl
	name := l.Name
	go func() {
		defer close(done)
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case ch <- CtrlMsg{Kind: CtrlAdvance, LobbyName: name}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return nil
}

// Stop aborts the tick driver and transitions to Terminated. A no-op
// unless the lobby is Running. Blocks until the tick goroutine has
// actually returned, so that a caller who closes the control channel
// right after Stop can never race a send from it.
func (l *Lobby) Stop() {
	if l.Kind != StateRunning {
		return
	}
	if l.cancelTick != nil {
		l.cancelTick()
		l.cancelTick = nil
	}
	if l.tickDone != nil {
		<-l.tickDone
		l.tickDone = nil
	}
	l.Running = nil
	l.Kind = StateTerminated
}

// VoteStart records con's readiness vote and begins the game once every
// joined connection has voted yes. Fails outside Prep.
func (l *Lobby) VoteStart(con ids.Con, vote bool) error {
	if l.Kind != StatePrep {
		return fmt.Errorf("lobby %q: illegal state for vote_start", l.Name)
	}
	l.Prep.VoteStart(con, vote)
	if l.Prep.AllVotedToStart() {
		return l.Begin()
	}
	return nil
}

// SetConDirection steers con's snake. Fails outside Running.
func (l *Lobby) SetConDirection(con ids.Con, dir snakedomain.Direction) error {
	if l.Kind != StateRunning {
		return fmt.Errorf("lobby %q: illegal state for set_direction", l.Name)
	}
	l.Running.SetConDirection(con, dir)
	return nil
}

// JoinCon adds con to the player roster. Fails outside Prep — joining a
// Running or Terminated lobby is not supported.
func (l *Lobby) JoinCon(con ids.Con, writer Ch, userName ids.UserName) error {
	if l.Kind != StatePrep {
		return fmt.Errorf("lobby %q: illegal state for join", l.Name)
	}
	l.Players[con] = PlayerSlot{Writer: writer, UserName: userName}
	l.Prep.JoinCon(con)
	return nil
}

// DisjoinCon removes con from the lobby. In Running state, if this leaves
// no players at all, the lobby requests its own removal via the control
// channel — the registry's message-passing loop performs the actual
// teardown.
func (l *Lobby) DisjoinCon(con ids.Con) {
	delete(l.Players, con)

	switch l.Kind {
	case StatePrep:
		l.Prep.RemoveCon(con)
	case StateRunning:
		if len(l.Players) == 0 && l.ctrl != nil {
			select {
			case l.ctrl <- CtrlMsg{Kind: CtrlRemoveLobby, LobbyName: l.Name}:
			default:
			}
		}
		l.Running.RemoveCon(con)
	case StateTerminated:
	}
}

// HandleMessage applies a tick-driver CtrlAdvance message: advance the
// simulation one step and broadcast the new state to every player.
// CtrlRemoveLobby is handled by the registry's loop, never here.
func (l *Lobby) HandleMessage(msg CtrlMsg) {
	if msg.Kind != CtrlAdvance {
		return
	}
	if l.Kind != StateRunning {
		return
	}
	l.Running.Advance()
	l.BroadcastState()
}

// --- broadcasts ----------------------------------------------------------

func (l *Lobby) send(con ids.Con, id *wsproto.MsgId) {
	slot, ok := l.Players[con]
	if !ok {
		return
	}
	select {
	case slot.Writer <- OutMsg{Id: id, Msg: wsproto.LobbyStateResp(l.State(con))}:
	default:
		// writer channel full or closed: drop rather than block the tick
		// driver or the control loop.
	}
}

// BroadcastState sends every player their own tailored snapshot, unpinned.
func (l *Lobby) BroadcastState() {
	for con := range l.Players {
		l.send(con, nil)
	}
}

// BroadcastStateExcept sends every player but con their own tailored
// snapshot, unpinned.
func (l *Lobby) BroadcastStateExcept(except ids.Con) {
	for con := range l.Players {
		if con == except {
			continue
		}
		l.send(con, nil)
	}
}

// PinnedBroadcastState sends every player their own tailored snapshot; the
// copy sent to con additionally carries the triggering request's id.
func (l *Lobby) PinnedBroadcastState(pin wsproto.MsgId, con ids.Con) {
	for c := range l.Players {
		if c == con {
			id := pin
			l.send(c, &id)
		} else {
			l.send(c, nil)
		}
	}
}

// --- projection ------------------------------------------------------

// State projects a recipient-tailored snapshot of the lobby's current FSM
// state for receiver.
func (l *Lobby) State(receiver ids.Con) wsproto.LobbyState {
	switch l.Kind {
	case StatePrep:
		participants := make([]wsproto.PrepParticipant, 0, len(l.Players))
		for con, slot := range l.Players {
			participants = append(participants, wsproto.PrepParticipant{
				UserName:  string(slot.UserName),
				VoteStart: l.Prep.StartVotes[con],
			})
		}
		return wsproto.LobbyState{Kind: wsproto.LobbyStatePrep, Participants: participants}

	case StateRunning:
		var snake *snakedomain.Snake
		others := make([]snakedomain.Snake, 0, len(l.Running.Snakes))
		for con, s := range l.Running.Snakes {
			if con == receiver {
				sCopy := s
				snake = &sCopy
			} else {
				others = append(others, s)
			}
		}
		return wsproto.LobbyState{
			Kind:          wsproto.LobbyStateRunning,
			Counter:       l.Running.Counter,
			PlayerCounter: len(l.Running.Cons),
			Domain: &wsproto.Domain{
				Snake:       snake,
				OtherSnakes: others,
				Foods:       l.Running.Foods,
				Boundaries:  l.Running.Boundaries,
			},
		}

	default:
		return wsproto.LobbyState{Kind: wsproto.LobbyStateTerminated}
	}
}
