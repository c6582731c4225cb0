// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package coordinator implements the Coordinator: it owns the
// matchmaking queue, the game_id -> GameRoom map, and the
// user_id -> game_id index, and routes every inbound client message to
// the right actor. Like its collaborators, it is itself a serial
// actor.
package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ChristopherJMiller/word-arena/internal/auth"
	"github.com/ChristopherJMiller/word-arena/internal/domain"
	"github.com/ChristopherJMiller/word-arena/internal/game"
	"github.com/ChristopherJMiller/word-arena/internal/matchmaking"
	"github.com/ChristopherJMiller/word-arena/internal/protocol"
	"github.com/ChristopherJMiller/word-arena/internal/ratelimit"
	"github.com/ChristopherJMiller/word-arena/internal/registry"
	"github.com/ChristopherJMiller/word-arena/internal/stats"
	"github.com/ChristopherJMiller/word-arena/internal/wordlist"
)

// Config bundles the tunables the Coordinator threads through to
// GameRoom and Queue construction, plus its own reaper cadence.
type Config struct {
	Queue         matchmaking.Config
	Room          game.Config
	ReaperPeriod  time.Duration
	TerminalGrace time.Duration
}

// DefaultConfig returns the tunables used in production.
func DefaultConfig() Config {
	return Config{
		Queue:         matchmaking.DefaultConfig(),
		Room:          game.DefaultConfig(),
		ReaperPeriod:  5 * time.Second,
		TerminalGrace: 30 * time.Second,
	}
}

type gameEntry struct {
	room       *game.Room
	terminalAt time.Time // zero until the room reports terminal
}

// Coordinator is the top-level actor tying together the registry, the
// queue, and every live GameRoom.
type Coordinator struct {
	cfg      Config
	reg      *registry.Registry
	queue    *matchmaking.Queue
	provider wordlist.Provider
	stats    stats.Stats
	verifier auth.Verifier
	log      zerolog.Logger

	games    map[uuid.UUID]*gameEntry
	byUser   map[uuid.UUID]uuid.UUID
	roomDone map[uuid.UUID]chan struct{}

	events chan func(*Coordinator)
}

// New wires a Coordinator around an already-constructed registry, its
// own matchmaking queue, and the shared collaborators. Call Run before
// using any public method.
func New(cfg Config, reg *registry.Registry, provider wordlist.Provider, statsRepo stats.Stats, verifier auth.Verifier, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		cfg:      cfg,
		reg:      reg,
		provider: provider,
		stats:    statsRepo,
		verifier: verifier,
		log:      log,
		games:    make(map[uuid.UUID]*gameEntry),
		byUser:   make(map[uuid.UUID]uuid.UUID),
		roomDone: make(map[uuid.UUID]chan struct{}),
		events:   make(chan func(*Coordinator), 256),
	}
	c.queue = matchmaking.New(cfg.Queue, reg, c.onMatchFormed)
	reg.OnDisconnect = c.onDisconnect
	return c
}

// Run starts the coordinator's own actor loop, its queue, and the
// periodic reaper. It exits when done is closed, at which point every
// live GameRoom is also stopped.
func (c *Coordinator) Run(done <-chan struct{}) {
	queueDone := make(chan struct{})
	go c.queue.Run(queueDone)
	defer close(queueDone)

	reaper := time.NewTicker(c.cfg.ReaperPeriod)
	defer reaper.Stop()

	for {
		select {
		case fn := <-c.events:
			fn(c)
		case <-reaper.C:
			// reap goes through c.do, which this loop must be free to serve.
			go c.reap()
		case <-done:
			c.stopAllRooms()
			return
		}
	}
}

func (c *Coordinator) do(fn func(*Coordinator)) {
	result := make(chan struct{})
	c.events <- func(co *Coordinator) {
		fn(co)
		close(result)
	}
	<-result
}

// Dispatch routes one already-decoded client message from an
// authenticated connection. connID is the socket's registry
// connection id, used only to answer a message Dispatch does not route
// (Authenticate and Heartbeat are handled by the transport) with
// bad_message.
func (c *Coordinator) Dispatch(connID uuid.UUID, userID uuid.UUID, msg protocol.ClientMessage) {
	switch m := msg.(type) {
	case protocol.JoinQueue:
		c.handleJoinQueue(userID)
	case protocol.LeaveQueue:
		c.queue.Leave(userID)
	case protocol.VoteStartGame:
		c.queue.Vote(userID)
	case protocol.SubmitGuess:
		c.routeToRoom(userID, func(r *game.Room) { r.SubmitGuess(userID, m.Word) })
	case protocol.LeaveGame:
		c.routeToRoom(userID, func(r *game.Room) { r.LeaveGame(userID) })
	case protocol.RejoinGame:
		c.handleRejoin(userID, m.GameID)
	default:
		c.reg.Send(connID, protocol.ErrorMessage("bad_message"))
	}
}

// Authenticate verifies a token, binds the connection in the
// registry, and replies success/failure. Returns the resolved user on
// success so the transport layer can tag subsequent Dispatch calls.
func (c *Coordinator) Authenticate(connID uuid.UUID, token string, force bool) (domain.User, bool) {
	user, err := c.verifier.Verify(token)
	if err != nil {
		c.reg.Send(connID, protocol.AuthenticationFailed{Reason: "invalid_token"})
		return domain.User{}, false
	}

	outcome, err := c.reg.Bind(connID, user, force)
	if err != nil {
		c.reg.Send(connID, protocol.AuthenticationFailed{Reason: "internal"})
		return domain.User{}, false
	}
	if outcome == registry.BindSessionConflict {
		c.reg.Send(connID, protocol.AuthenticationFailed{Reason: "session_conflict"})
		return domain.User{}, false
	}

	if c.stats != nil {
		_ = c.stats.IncrementPlayersServed(context.Background())
	}
	c.reg.Send(connID, protocol.AuthenticationSuccess{User: user})
	return user, true
}

func (c *Coordinator) handleJoinQueue(userID uuid.UUID) {
	user, ok := c.reg.LookupUser(userID)
	if !ok {
		user = domain.User{UserID: userID}
	}
	c.do(func(co *Coordinator) {
		if _, playing := co.byUser[userID]; playing {
			co.reg.SendToUser(userID, protocol.ErrorMessage("already_in_game"))
			return
		}
		co.queue.Join(user)
	})
}

func (c *Coordinator) routeToRoom(userID uuid.UUID, fn func(*game.Room)) {
	var room *game.Room
	c.do(func(co *Coordinator) {
		gameID, ok := co.byUser[userID]
		if !ok {
			return
		}
		entry, ok := co.games[gameID]
		if !ok {
			return
		}
		room = entry.room
	})
	if room == nil {
		c.reg.SendToUser(userID, protocol.ErrorMessage("game_not_found"))
		return
	}
	fn(room)
}

func (c *Coordinator) handleRejoin(userID uuid.UUID, gameIDStr string) {
	gameID, err := uuid.Parse(gameIDStr)
	if err != nil {
		c.reg.SendToUser(userID, protocol.ErrorMessage("game_not_found"))
		return
	}

	var room *game.Room
	c.do(func(co *Coordinator) {
		entry, ok := co.games[gameID]
		if !ok {
			return
		}
		room = entry.room
	})
	if room == nil {
		c.reg.SendToUser(userID, protocol.ErrorMessage("game_not_found"))
		return
	}
	connected, err := room.PlayerConnected(userID)
	if err != nil || connected {
		c.reg.SendToUser(userID, protocol.ErrorMessage("game_not_found"))
		return
	}

	c.do(func(co *Coordinator) { co.byUser[userID] = gameID })
	room.PlayerReconnected(userID)
}

// onMatchFormed is invoked (from inside the queue's actor loop) once
// enough players are ready. It hands room construction to the
// coordinator's own loop without waiting for it, so the queue never
// blocks on the coordinator (which itself calls into the queue).
func (c *Coordinator) onMatchFormed(entries []domain.QueueEntry) {
	go c.do(func(co *Coordinator) {
		gameID := uuid.New()
		room, err := game.New(gameID, entries, co.cfg.Room, co.provider, co.reg, co.stats, co.onRoomTerminal)
		if err != nil {
			co.log.Error().Err(err).Msg("failed to construct game room")
			for _, e := range entries {
				co.reg.SendToUser(e.UserID, protocol.ErrorMessage("internal"))
			}
			return
		}

		done := make(chan struct{})
		co.games[gameID] = &gameEntry{room: room}
		co.roomDone[gameID] = done
		for _, e := range entries {
			co.byUser[e.UserID] = gameID
		}

		ids := make([]uuid.UUID, len(entries))
		players := make([]domain.Player, len(entries))
		for i, e := range entries {
			ids[i] = e.UserID
			players[i] = domain.Player{UserID: e.UserID, DisplayName: e.DisplayName, IsConnected: true}
		}
		co.reg.Broadcast(ids, protocol.MatchFound{GameID: gameID.String(), Players: players})

		go room.Run(done)
		room.Start()

		if co.stats != nil {
			_ = co.stats.IncrementGamesServed(context.Background())
		}
	})
}

// onRoomTerminal is invoked (from inside a GameRoom's actor loop) once
// it reaches a terminal status. Only bookkeeping happens here; actual
// removal waits for the reaper's grace period so reconnecting clients
// can still fetch a final GameStateUpdate.
func (c *Coordinator) onRoomTerminal(gameID uuid.UUID) {
	c.do(func(co *Coordinator) {
		entry, ok := co.games[gameID]
		if !ok || !entry.terminalAt.IsZero() {
			return
		}
		entry.terminalAt = time.Now()
	})
}

// onDisconnect is the registry's DisconnectNotifier: it tells whatever
// GameRoom the user was in, and drops them from the queue.
func (c *Coordinator) onDisconnect(userID uuid.UUID) {
	c.queue.Leave(userID)

	var room *game.Room
	c.do(func(co *Coordinator) {
		gameID, ok := co.byUser[userID]
		if !ok {
			return
		}
		if entry, ok := co.games[gameID]; ok {
			room = entry.room
		}
	})
	if room != nil {
		room.PlayerDisconnected(userID)
	}
}

// reap runs the periodic sweep: remove terminal rooms past their
// grace period. The global game-duration cap is enforced by each
// room's own timer (see game.Room.Run), and idle-queue expulsion by
// the queue's own ticker.
func (c *Coordinator) reap() {
	c.do(func(co *Coordinator) {
		now := time.Now()
		for gameID, entry := range co.games {
			if entry.terminalAt.IsZero() {
				continue
			}
			if now.Sub(entry.terminalAt) < co.cfg.TerminalGrace {
				continue
			}
			if done, ok := co.roomDone[gameID]; ok {
				close(done)
				delete(co.roomDone, gameID)
			}
			delete(co.games, gameID)
			for userID, g := range co.byUser {
				if g == gameID {
					delete(co.byUser, userID)
				}
			}
		}
	})
}

// stopAllRooms runs on the actor goroutine itself (from Run), so it
// touches state directly rather than through c.do.
func (c *Coordinator) stopAllRooms() {
	for _, done := range c.roomDone {
		close(done)
	}
	c.roomDone = make(map[uuid.UUID]chan struct{})
}

// Allow consults the connection's rate-limit buckets via the registry,
// for the transport layer to gate inbound messages before dispatch.
func (c *Coordinator) Allow(connID uuid.UUID, action ratelimit.Action) bool {
	return c.reg.Allow(connID, action)
}

// RoomState looks up a room by id and returns its redacted snapshot,
// for the HTTP API's polling fallback. The zero value and
// false are returned for both unknown games and games that have
// already been reaped.
func (c *Coordinator) RoomState(gameID uuid.UUID) (domain.SafeGameState, bool) {
	var room *game.Room
	c.do(func(co *Coordinator) {
		entry, ok := co.games[gameID]
		if !ok {
			return
		}
		room = entry.room
	})
	if room == nil {
		return domain.SafeGameState{}, false
	}
	return room.Snapshot(), true
}
