// Package wsconn implements the per-socket connection handler: deriving
// a connection identity, the reader/writer goroutine split, and the
// dispatch table for every client message variant.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"snake-lobby-server/internal/config"
	"snake-lobby-server/internal/ids"
	"snake-lobby-server/internal/lobby"
	"snake-lobby-server/internal/logging"
	"snake-lobby-server/internal/registry"
	"snake-lobby-server/internal/usernames"
	"snake-lobby-server/internal/wsproto"
)

// writerQueueDepth bounds each connection's outbound backlog. The spec
// leaves this as an explicit production concern (an unbounded channel
// risks unbounded memory for a slow client); a generous bound plus a
// drop-on-full policy at the send site, which discards the message being
// sent, is the mitigation named there.
const writerQueueDepth = 256

// conState is the per-connection mutable cell: currently just the held
// username. Guarded by a mutex standing in for the reference
// implementation's single-threaded-executor cooperative access.
type conState struct {
	mu       sync.Mutex
	userName *ids.UserName
}

func (s *conState) get() *ids.UserName {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userName
}

func (s *conState) set(name ids.UserName) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userName = &name
}

// Deps bundles the process-wide collaborators a connection handler needs.
type Deps struct {
	Registry  *registry.Registry
	Usernames *usernames.Registry
	Log       *logrus.Logger
	Config    config.Config
}

// Handle drives one upgraded websocket connection to completion: it
// blocks until the socket closes, then performs registry/usernames
// cleanup before returning.
//
// writerCh is a multi-producer channel: the lobby holds it as the
// player's Writer and every in-flight dispatch goroutine captures it, so
// it must never be closed while any of those producers could still be
// sending — a send on a closed channel panics, closed channel or not.
// Instead of closing it, the writer goroutine is stopped via context
// cancellation, and cancellation only happens once the registry has
// forgotten this con (so the lobby can no longer reach it) and every
// dispatch goroutine spawned by readLoop has returned.
func Handle(ws *websocket.Conn, deps Deps) {
	con, err := deriveCon(ws)
	if err != nil {
		deps.Log.WithError(err).Error("wsconn: could not derive connection id")
		_ = ws.Close()
		return
	}

	traceID := uuid.NewString()
	log := logging.ForCon(deps.Log, uint16(con)).WithField("trace_id", traceID)

	state := &conState{}
	if deps.Config.AutoGenUserName && deps.Config.IsLocal() {
		name := ids.UserName(fmt.Sprintf("Player %d", con))
		// debug-only feature: a collision here is simply ignored, as in
		// the reference implementation.
		if deps.Usernames.TryInsert(name, con) {
			state.set(name)
		}
	}

	writerCh := make(chan lobby.OutMsg, writerQueueDepth)
	writeCtx, cancelWrite := context.WithCancel(context.Background())
	defer cancelWrite()

	var writerWg sync.WaitGroup
	writerWg.Add(1)
	go func() {
		defer writerWg.Done()
		writeLoop(writeCtx, ws, writerCh, log)
	}()

	var dispatchWg sync.WaitGroup
	readLoop(ws, con, state, writerCh, &dispatchWg, deps, log)

	// readLoop only returns once the socket itself is done, but dispatch
	// goroutines it spawned may still be running (e.g. blocked on a
	// lobby lock); wait for every one of them before touching the
	// registry, so none can still be holding writerCh afterward.
	dispatchWg.Wait()

	deps.Registry.DisjoinCon(con)
	deps.Usernames.CleanCon(con)

	cancelWrite()
	writerWg.Wait()
	log.Info("connection cleaned up")
}

// deriveCon uses the connection's remote TCP port as its process-wide
// unique identifier, matching the reference server's sock_addr.port().
func deriveCon(ws *websocket.Conn) (ids.Con, error) {
	addr := ws.RemoteAddr()
	_, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return 0, fmt.Errorf("wsconn: split remote addr %q: %w", addr, err)
	}
	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		return 0, fmt.Errorf("wsconn: parse port %q: %w", portStr, err)
	}
	return ids.Con(port), nil
}

// writeLoop drains ch onto the socket until ctx is cancelled. It never
// closes ch — ch outlives this loop, shared with producers that keep
// running after the socket dies.
func writeLoop(ctx context.Context, ws *websocket.Conn, ch <-chan lobby.OutMsg, log *logrus.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case out := <-ch:
			env, err := wsproto.NewEnvelope(out.Msg)
			if err != nil {
				log.WithError(err).Error("wsconn: marshal outgoing payload")
				continue
			}
			if out.Id != nil {
				env = env.Pin(*out.Id)
			}

			data, err := json.Marshal(env)
			if err != nil {
				log.WithError(err).Error("wsconn: marshal envelope")
				continue
			}

			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.WithError(err).Debug("wsconn: write failed, client likely disconnected")
				return
			}
		}
	}
}

func readLoop(ws *websocket.Conn, con ids.Con, state *conState, writerCh chan<- lobby.OutMsg, dispatchWg *sync.WaitGroup, deps Deps, log *logrus.Entry) {
	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("wsconn: read loop exiting")
			return
		}
		if msgType != websocket.TextMessage {
			log.WithField("frame_type", msgType).Info("wsconn: ignoring non-text frame")
			continue
		}

		var env wsproto.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.WithError(err).Info("wsconn: invalid frame JSON, skipping")
			continue
		}

		var msg wsproto.ClientMsg
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			log.WithError(err).Info("wsconn: invalid client message, skipping")
			continue
		}

		dispatchWg.Add(1)
		go func() {
			defer dispatchWg.Done()
			dispatch(con, state, env.Id, msg, writerCh, deps, log)
		}()
	}
}

func dispatch(con ids.Con, state *conState, id *wsproto.MsgId, msg wsproto.ClientMsg, writerCh chan<- lobby.OutMsg, deps Deps, log *logrus.Entry) {
	if msg.RequiresId() && id == nil {
		if deps.Config.IsLocal() {
			panic(fmt.Sprintf("wsconn: correlation id expected for %+v", msg))
		}
		log.Warn("wsconn: correlation id expected but absent, dropping message")
		return
	}
	if !msg.RequiresId() && id != nil {
		if deps.Config.IsLocal() {
			panic("wsconn: correlation id not expected for SetDirection")
		}
		log.Warn("wsconn: unexpected correlation id on fire-and-forget message")
		return
	}

	reply := func(m wsproto.ServerMsg) {
		send(writerCh, lobby.OutMsg{Id: id, Msg: m}, log)
	}

	switch {
	case msg.SetUserName != nil:
		handleSetUserName(con, state, *msg.SetUserName, deps, reply)

	case msg.UserName:
		reply(wsproto.UserNameResp(userNameString(state.get())))

	case msg.CreateLobby != nil:
		handleCreateLobby(*msg.CreateLobby, deps, reply)

	case msg.JoinLobby != nil:
		handleJoinLobby(con, state, *msg.JoinLobby, writerCh, deps, reply)

	case msg.LeaveLobby:
		deps.Registry.DisjoinCon(con)
		reply(wsproto.Ack())

	case msg.LobbyList:
		handleLobbyList(deps, reply)

	case msg.VoteStart != nil:
		handleVoteStart(con, *msg.VoteStart, *id, deps, reply)

	case msg.SetDirection != nil:
		deps.Registry.SetDirection(con, *msg.SetDirection)
	}
}

func handleSetUserName(con ids.Con, state *conState, value string, deps Deps, reply func(wsproto.ServerMsg)) {
	if deps.Registry.JoinedAny(con) {
		reply(wsproto.ForbiddenWhenJoined())
		return
	}
	name := ids.UserName(value)
	if !deps.Usernames.TryInsert(name, con) {
		reply(wsproto.UserNameOccupied())
		return
	}
	state.set(name)
	reply(wsproto.Ack())
}

func handleCreateLobby(name string, deps Deps, reply func(wsproto.ServerMsg)) {
	if err := deps.Registry.InsertIfMissing(ids.LobbyName(name)); err != nil {
		reply(wsproto.ErrMsg(err.Error()))
		return
	}
	reply(wsproto.Ack())
}

func handleJoinLobby(con ids.Con, state *conState, name string, writerCh chan<- lobby.OutMsg, deps Deps, reply func(wsproto.ServerMsg)) {
	userName := state.get()
	if userName == nil {
		reply(wsproto.JoinLobbyDecline(wsproto.JoinLobbyDeclineReason{UserNameNotSet: true}))
		return
	}

	lobbyState, err := deps.Registry.JoinCon(ids.LobbyName(name), con, writerCh, *userName)
	if err != nil {
		reply(wsproto.JoinLobbyDecline(declineReasonFor(err)))
		return
	}
	reply(wsproto.LobbyStateResp(lobbyState))
}

func declineReasonFor(err error) wsproto.JoinLobbyDeclineReason {
	var alreadyJoined *registry.AlreadyJoinedError
	switch {
	case errors.As(err, &alreadyJoined):
		name := string(alreadyJoined.LobbyName)
		return wsproto.JoinLobbyDeclineReason{AlreadyJoined: &name}
	case errors.Is(err, registry.ErrAlreadyStarted):
		return wsproto.JoinLobbyDeclineReason{AlreadyStarted: true}
	default:
		return wsproto.JoinLobbyDeclineReason{NotFound: true}
	}
}

func handleLobbyList(deps Deps, reply func(wsproto.ServerMsg)) {
	names := deps.Registry.LobbyNames()
	entries := make([]wsproto.LobbyListEntry, 0, len(names))
	for _, n := range names {
		entries = append(entries, wsproto.LobbyListEntry{Name: string(n)})
	}
	reply(wsproto.LobbyListResp(entries))
}

func handleVoteStart(con ids.Con, vote bool, id wsproto.MsgId, deps Deps, reply func(wsproto.ServerMsg)) {
	if err := deps.Registry.VoteStart(con, vote, id); err != nil {
		reply(wsproto.ErrMsg(err.Error()))
	}
	// on success, the registry's pinned broadcast already delivered the
	// correlated response — no further reply here.
}

func userNameString(name *ids.UserName) *string {
	if name == nil {
		return nil
	}
	s := string(*name)
	return &s
}

// send enqueues an outgoing message, dropping it rather than blocking the
// dispatch goroutine if the writer's queue is saturated (a persistently
// slow client).
func send(ch chan<- lobby.OutMsg, msg lobby.OutMsg, log *logrus.Entry) {
	select {
	case ch <- msg:
	default:
		log.Warn("wsconn: writer queue full, dropping outgoing message")
	}
}
