// Package registry implements the process-wide lobby registry: the
// triple-consistency name→lobby, con→lobby-name and name→control-channel maps
// described by the connection handler's join/leave flows, plus the
// registry-owned message-passing goroutine that drives each lobby's
// control channel.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"snake-lobby-server/internal/ids"
	"snake-lobby-server/internal/lobby"
	"snake-lobby-server/internal/logging"
	"snake-lobby-server/internal/snakedomain"
	"snake-lobby-server/internal/wsproto"
)

// Sentinel join failures. AlreadyJoined additionally carries the name of
// the lobby the connection is already in.
var (
	ErrNotFound       = errors.New("lobby not found")
	ErrAlreadyStarted = errors.New("lobby already started")
)

// AlreadyJoinedError reports that the connection is already a member of a
// different lobby.
type AlreadyJoinedError struct {
	LobbyName ids.LobbyName
}

func (e *AlreadyJoinedError) Error() string {
	return fmt.Sprintf("already joined lobby %q", e.LobbyName)
}

// handle pairs one lobby with the lock guarding all access to it — the
// innermost lock in the registry's lock order.
type handle struct {
	mu sync.RWMutex
	l  *lobby.Lobby
}

// Registry is the triple-consistency lobby registry. Lock order, always:
// reverse index -> names map -> per-lobby lock. Never invert.
type Registry struct {
	reverseMu sync.RWMutex
	reverse   map[ids.Con]ids.LobbyName

	namesMu sync.RWMutex
	names   map[ids.LobbyName]*handle

	loopsMu sync.Mutex
	loops   map[ids.LobbyName]chan<- lobby.CtrlMsg
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{
		reverse: make(map[ids.Con]ids.LobbyName),
		names:   make(map[ids.LobbyName]*handle),
		loops:   make(map[ids.LobbyName]chan<- lobby.CtrlMsg),
	}
}

// LobbyNames lists every currently registered lobby name.
func (r *Registry) LobbyNames() []ids.LobbyName {
	r.namesMu.RLock()
	defer r.namesMu.RUnlock()
	out := make([]ids.LobbyName, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// get looks up a lobby handle by name, without taking its lock.
func (r *Registry) get(name ids.LobbyName) *handle {
	r.namesMu.RLock()
	defer r.namesMu.RUnlock()
	return r.names[name]
}

// JoinedLobbyName reports which lobby, if any, con currently belongs to.
func (r *Registry) JoinedLobbyName(con ids.Con) (ids.LobbyName, bool) {
	r.reverseMu.RLock()
	defer r.reverseMu.RUnlock()
	name, ok := r.reverse[con]
	return name, ok
}

// JoinedAny reports whether con belongs to any lobby.
func (r *Registry) JoinedAny(con ids.Con) bool {
	_, ok := r.JoinedLobbyName(con)
	return ok
}

// LobbyState returns con's tailored view of the lobby it belongs to, if
// any.
func (r *Registry) LobbyState(con ids.Con) (wsproto.LobbyState, bool) {
	name, ok := r.JoinedLobbyName(con)
	if !ok {
		return wsproto.LobbyState{}, false
	}
	h := r.get(name)
	if h == nil {
		return wsproto.LobbyState{}, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.l.State(con), true
}

// InsertIfMissing creates lobby `name` if it does not already exist, wires
// its control channel, and starts the registry-owned message-passing
// goroutine that drains it.
func (r *Registry) InsertIfMissing(name ids.LobbyName) error {
	r.namesMu.Lock()
	if _, exists := r.names[name]; exists {
		r.namesMu.Unlock()
		return fmt.Errorf("lobby %q already exists", name)
	}

	l := lobby.New(name)
	ctrl := make(chan lobby.CtrlMsg, 64)
	l.SetCh(ctrl)
	h := &handle{l: l}
	r.names[name] = h
	r.namesMu.Unlock()

	r.loopsMu.Lock()
	r.loops[name] = ctrl
	r.loopsMu.Unlock()

	go r.runMessagePasser(name, h, ctrl)

	return nil
}

// runMessagePasser is the registry-owned task reading one lobby's control
// channel: tick-driver Advance messages are applied to the lobby; a
// self-requested removal is forwarded to RemoveLobby.
func (r *Registry) runMessagePasser(name ids.LobbyName, h *handle, ctrl <-chan lobby.CtrlMsg) {
	for msg := range ctrl {
		switch msg.Kind {
		case lobby.CtrlAdvance:
			h.mu.Lock()
			h.l.HandleMessage(msg)
			h.mu.Unlock()
		case lobby.CtrlRemoveLobby:
			r.RemoveLobby(msg.LobbyName)
		}
	}
	logging.ForLobby(logrus.StandardLogger(), string(name)).Debug("message passer exiting")
}

// RemoveLobby stops and deletes a lobby if it exists, unlinking every
// member's reverse-index entry.
func (r *Registry) RemoveLobby(name ids.LobbyName) {
	r.reverseMu.Lock()
	defer r.reverseMu.Unlock()

	r.namesMu.Lock()
	h, ok := r.names[name]
	if !ok {
		r.namesMu.Unlock()
		return
	}
	delete(r.names, name)
	r.namesMu.Unlock()

	h.mu.Lock()
	// Stop blocks until the tick goroutine has actually returned, so no
	// producer can still be holding ctrl by the time we close it below.
	h.l.Stop()
	for con := range h.l.Players {
		delete(r.reverse, con)
	}
	h.mu.Unlock()

	r.loopsMu.Lock()
	ctrl, ok := r.loops[name]
	delete(r.loops, name)
	r.loopsMu.Unlock()
	if ok {
		close(ctrl)
	}
}

// DisjoinCon removes con from whichever lobby it belongs to, if any, and
// broadcasts the resulting state to the remaining players.
func (r *Registry) DisjoinCon(con ids.Con) {
	r.reverseMu.Lock()
	defer r.reverseMu.Unlock()

	name, ok := r.reverse[con]
	if !ok {
		return
	}

	h := r.get(name)
	if h == nil {
		delete(r.reverse, con)
		return
	}

	delete(r.reverse, con)

	h.mu.Lock()
	h.l.DisjoinCon(con)
	h.l.BroadcastState()
	h.mu.Unlock()
}

// JoinCon attempts to join con to lobby `name`. On success it records the
// reverse-index entry, broadcasts the new state to the lobby's other
// players, and returns con's own tailored state. Idempotent: if con is
// already in this same lobby, its current state is returned without
// change. If con is already in a different lobby, AlreadyJoinedError is
// returned.
func (r *Registry) JoinCon(name ids.LobbyName, con ids.Con, writer lobby.Ch, userName ids.UserName) (wsproto.LobbyState, error) {
	r.reverseMu.Lock()
	defer r.reverseMu.Unlock()

	if existing, ok := r.reverse[con]; ok {
		if existing == name {
			h := r.get(existing)
			if h == nil {
				return wsproto.LobbyState{}, ErrNotFound
			}
			h.mu.RLock()
			defer h.mu.RUnlock()
			return h.l.State(con), nil
		}
		return wsproto.LobbyState{}, &AlreadyJoinedError{LobbyName: existing}
	}

	h := r.get(name)
	if h == nil {
		return wsproto.LobbyState{}, ErrNotFound
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.l.JoinCon(con, writer, userName); err != nil {
		return wsproto.LobbyState{}, ErrAlreadyStarted
	}

	r.reverse[con] = name
	h.l.BroadcastStateExcept(con)
	return h.l.State(con), nil
}

// ErrNoLobby is returned by VoteStart and SetDirection when con is not
// currently a member of any lobby.
var ErrNoLobby = errors.New("lobby does not exist")

// VoteStart records con's readiness vote in the lobby it belongs to. On
// success, it pinned-broadcasts the resulting state so con's own response
// carries the correlation id. Returns ErrNoLobby if con is in no lobby.
func (r *Registry) VoteStart(con ids.Con, vote bool, pin wsproto.MsgId) error {
	name, ok := r.JoinedLobbyName(con)
	if !ok {
		return ErrNoLobby
	}
	h := r.get(name)
	if h == nil {
		return ErrNoLobby
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.l.VoteStart(con, vote); err != nil {
		return err
	}
	h.l.PinnedBroadcastState(pin, con)
	return nil
}

// SetDirection steers con's snake in the lobby it belongs to, if any. It
// is fire-and-forget: failures (con in no lobby, lobby not Running, or
// con has no live snake) are silently ignored, matching the wire
// protocol's SetDirection semantics.
func (r *Registry) SetDirection(con ids.Con, dir snakedomain.Direction) {
	name, ok := r.JoinedLobbyName(con)
	if !ok {
		return
	}
	h := r.get(name)
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.l.SetConDirection(con, dir)
}
