// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package registry implements the ConnectionRegistry: it maps each
// live socket to an optional authenticated user, enforces the
// single-session-per-user policy, and routes outbound messages. Like
// every other stateful component in this engine it is a serial
// actor — exactly one goroutine ever touches its maps — modeled on
// a Hub.run() select loop, here fed by a single channel of closures.
package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
	"github.com/ChristopherJMiller/word-arena/internal/protocol"
	"github.com/ChristopherJMiller/word-arena/internal/ratelimit"
)

// Socket is the transport-facing side of a connection: whatever can
// accept an outbound message and be told to close. internal/transport
// provides the real gorilla/websocket implementation; tests use a
// fake.
type Socket interface {
	Send(msg protocol.ServerMessage)
	Close()
}

// Connection is one live socket's bookkeeping.
type Connection struct {
	ConnID       uuid.UUID
	UserID       *uuid.UUID
	DisplayName  string
	Socket       Socket
	Limiter      *ratelimit.Buckets
	LastActivity time.Time
}

// BindOutcome reports what happened to an Authenticate request.
type BindOutcome int

const (
	BindSuccess BindOutcome = iota
	BindSessionConflict
	BindTookOver
)

// DisconnectNotifier is called on its own goroutine whenever a bound
// connection closes, so the Coordinator can pull the user out of the
// queue and/or their game. Close launches it with go rather than
// calling it inline, since it is free to call back into the registry
// (SendToUser, Broadcast) and would otherwise deadlock against the
// actor loop it is itself running on.
type DisconnectNotifier func(userID uuid.UUID)

// Registry is the ConnectionRegistry actor.
type Registry struct {
	conns  map[uuid.UUID]*Connection
	byUser map[uuid.UUID]uuid.UUID

	events chan func(*Registry)

	OnDisconnect DisconnectNotifier
}

// New constructs a Registry. Call Run in its own goroutine before
// using any of the public methods.
func New() *Registry {
	return &Registry{
		conns:  make(map[uuid.UUID]*Connection),
		byUser: make(map[uuid.UUID]uuid.UUID),
		events: make(chan func(*Registry), 256),
	}
}

// Run is the actor loop. It exits when done is closed.
func (r *Registry) Run(done <-chan struct{}) {
	for {
		select {
		case fn := <-r.events:
			fn(r)
		case <-done:
			return
		}
	}
}

// do submits fn to the actor loop and blocks until it has run,
// mirroring the request/response idiom used throughout this engine
// for operations that need a synchronous answer.
func (r *Registry) do(fn func(*Registry)) {
	result := make(chan struct{})
	r.events <- func(reg *Registry) {
		fn(reg)
		close(result)
	}
	<-result
}

// Accept registers a new unauthenticated connection and returns its
// id.
func (r *Registry) Accept(socket Socket) uuid.UUID {
	connID := uuid.New()
	r.do(func(reg *Registry) {
		reg.conns[connID] = &Connection{
			ConnID:       connID,
			Socket:       socket,
			Limiter:      ratelimit.NewBuckets(),
			LastActivity: time.Now(),
		}
	})
	return connID
}

// Bind attempts to bind an already-verified user to a connection,
// enforcing single-session-per-user. If another connection already
// holds this user and force is false, it returns BindSessionConflict
// without mutating state. If force is true, the prior connection is
// sent SessionDisconnected and closed.
func (r *Registry) Bind(connID uuid.UUID, user domain.User, force bool) (BindOutcome, error) {
	var outcome BindOutcome
	var bindErr error

	r.do(func(reg *Registry) {
		conn, ok := reg.conns[connID]
		if !ok {
			bindErr = fmt.Errorf("registry: unknown connection %s", connID)
			return
		}

		if existingConnID, taken := reg.byUser[user.UserID]; taken && existingConnID != connID {
			if !force {
				outcome = BindSessionConflict
				return
			}
			if existing, ok := reg.conns[existingConnID]; ok {
				existing.Socket.Send(protocol.SessionDisconnected{})
				existing.Socket.Close()
				delete(reg.conns, existingConnID)
			}
			outcome = BindTookOver
		} else {
			outcome = BindSuccess
		}

		conn.UserID = &user.UserID
		conn.DisplayName = user.DisplayName
		reg.byUser[user.UserID] = connID
	})

	return outcome, bindErr
}

// Send delivers msg to a specific connection, best-effort. A silent
// no-op if the connection is gone.
func (r *Registry) Send(connID uuid.UUID, msg protocol.ServerMessage) {
	r.do(func(reg *Registry) {
		if conn, ok := reg.conns[connID]; ok {
			conn.Socket.Send(msg)
		}
	})
}

// SendToUser delivers msg to whichever connection (if any) that user
// currently holds.
func (r *Registry) SendToUser(userID uuid.UUID, msg protocol.ServerMessage) {
	r.do(func(reg *Registry) {
		if connID, ok := reg.byUser[userID]; ok {
			if conn, ok := reg.conns[connID]; ok {
				conn.Socket.Send(msg)
			}
		}
	})
}

// Broadcast fans a message out to each live connection for the given
// users.
func (r *Registry) Broadcast(userIDs []uuid.UUID, msg protocol.ServerMessage) {
	r.do(func(reg *Registry) {
		for _, userID := range userIDs {
			if connID, ok := reg.byUser[userID]; ok {
				if conn, ok := reg.conns[connID]; ok {
					conn.Socket.Send(msg)
				}
			}
		}
	})
}

// Close removes a connection, notifying OnDisconnect if it was bound.
func (r *Registry) Close(connID uuid.UUID) {
	r.do(func(reg *Registry) {
		conn, ok := reg.conns[connID]
		if !ok {
			return
		}
		delete(reg.conns, connID)
		if conn.UserID != nil {
			if reg.byUser[*conn.UserID] == connID {
				delete(reg.byUser, *conn.UserID)
			}
			if reg.OnDisconnect != nil {
				// Notify off the actor goroutine: OnDisconnect fans out to
				// the queue and game rooms, which call back into the
				// registry (SendToUser/Broadcast) and would deadlock
				// against this very do() if run synchronously here.
				userID := *conn.UserID
				go reg.OnDisconnect(userID)
			}
		}
	})
}

// Allow consults the connection's rate-limit buckets.
func (r *Registry) Allow(connID uuid.UUID, action ratelimit.Action) bool {
	var allowed bool
	r.do(func(reg *Registry) {
		if conn, ok := reg.conns[connID]; ok {
			allowed = conn.Limiter.Allow(action)
		}
	})
	return allowed
}

// Touch stamps a connection's last-activity time. Nothing reads
// LastActivity; idle connections are not disconnected by the registry.
func (r *Registry) Touch(connID uuid.UUID) {
	r.do(func(reg *Registry) {
		if conn, ok := reg.conns[connID]; ok {
			conn.LastActivity = time.Now()
		}
	})
}

// UserFor returns the user bound to a connection, if any.
func (r *Registry) UserFor(connID uuid.UUID) (uuid.UUID, bool) {
	var userID uuid.UUID
	var ok bool
	r.do(func(reg *Registry) {
		if conn, found := reg.conns[connID]; found && conn.UserID != nil {
			userID = *conn.UserID
			ok = true
		}
	})
	return userID, ok
}

// LookupUser returns the domain.User for a currently-connected user
// id: the id and the display name captured at Bind. Email is not kept
// by the registry and is left empty.
func (r *Registry) LookupUser(userID uuid.UUID) (domain.User, bool) {
	var user domain.User
	var ok bool
	r.do(func(reg *Registry) {
		connID, found := reg.byUser[userID]
		if !found {
			return
		}
		conn, found := reg.conns[connID]
		if !found {
			return
		}
		user = domain.User{UserID: userID, DisplayName: conn.DisplayName}
		ok = true
	})
	return user, ok
}

