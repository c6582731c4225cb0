// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport implements the websocket duplex socket that
// carries the Word Arena wire protocol: an HTTP upgrade handler, a
// read pump that decodes and dispatches inbound frames, and a write
// pump with congestion-based dropping, all grounded on mk48's
// server/socket_client.go.
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ChristopherJMiller/word-arena/internal/coordinator"
	"github.com/ChristopherJMiller/word-arena/internal/protocol"
	"github.com/ChristopherJMiller/word-arena/internal/ratelimit"
	"github.com/ChristopherJMiller/word-arena/internal/registry"
)

const (
	writeWait   = 5 * time.Second
	pongWait    = 60 * time.Second
	pingPeriod  = (pongWait * 8) / 10
	maxMessageSize = 4096

	// socketCongestionThreshold and socketBufferSize mirror the
	// teacher's backpressure scheme: once more than this many messages
	// plus one are queued, further sends are progressively dropped
	// rather than blocking the room/registry actor that's fanning them
	// out.
	socketCongestionThreshold = 5
	socketBufferSize          = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin:      func(r *http.Request) bool { return true },
	HandshakeTimeout: 5 * time.Second,
	ReadBufferSize:   maxMessageSize,
	WriteBufferSize:  2048,
}

// Socket is the registry.Socket implementation backed by a live
// gorilla/websocket connection.
type Socket struct {
	conn    *websocket.Conn
	send    chan protocol.ServerMessage
	once    sync.Once
	counter int
	log     zerolog.Logger
}

// NewSocket wraps an already-upgraded connection.
func NewSocket(conn *websocket.Conn, log zerolog.Logger) *Socket {
	return &Socket{
		conn: conn,
		send: make(chan protocol.ServerMessage, socketBufferSize),
		log:  log,
	}
}

// Send queues an outbound message, dropping it under sustained
// congestion rather than letting a slow client stall the actor that's
// broadcasting to it.
func (s *Socket) Send(msg protocol.ServerMessage) {
	congestion := len(s.send) - socketCongestionThreshold
	s.counter++
	if congestion > 1 && s.counter%congestion != 0 {
		s.log.Warn().Msg("dropping outbound message due to socket congestion")
		return
	}

	select {
	case s.send <- msg:
	default:
		s.log.Warn().Msg("socket unresponsive, closing")
		s.Close()
	}
}

// Close closes the send channel exactly once; writePump notices and
// tears down the connection.
func (s *Socket) Close() {
	s.once.Do(func() { close(s.send) })
}

func (s *Socket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			payload, err := protocol.EncodeServer(msg)
			if err != nil {
				s.log.Error().Err(err).Msg("failed to encode outbound message")
				continue
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes each inbound frame and hands it to onMessage. It
// returns when the connection closes or a fatal read error occurs;
// the caller is responsible for tearing down registry state.
func (s *Socket) readPump(onMessage func(protocol.ClientMessage) error) {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeClient(data)
		if err != nil {
			s.Send(protocol.ErrorMessage("bad_message"))
			continue
		}
		if err := onMessage(msg); err != nil {
			return
		}
	}
}

// Handler upgrades HTTP requests to websocket connections and drives
// each one through Authenticate/Dispatch on the Coordinator, gated by
// the connection's rate-limit buckets.
type Handler struct {
	Registry    *registry.Registry
	Coordinator *coordinator.Coordinator
	Log         zerolog.Logger
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sock := NewSocket(conn, h.Log)
	connID := h.Registry.Accept(sock)

	go sock.writePump()

	var userID uuid.UUID
	var authenticated bool

	sock.readPump(func(msg protocol.ClientMessage) error {
		h.Registry.Touch(connID)

		switch m := msg.(type) {
		case protocol.Authenticate:
			if !h.Registry.Allow(connID, ratelimit.ActionJoinQueue) {
				h.Registry.Send(connID, protocol.ErrorMessage("rate_limited"))
				return nil
			}
			user, ok := h.Coordinator.Authenticate(connID, m.Token, m.Force)
			if ok {
				userID = user.UserID
				authenticated = true
			}
			return nil
		case protocol.Heartbeat:
			if !h.Registry.Allow(connID, ratelimit.ActionHeartbeat) {
				return nil
			}
			return nil
		}

		if !authenticated {
			h.Registry.Send(connID, protocol.ErrorMessage("not_authenticated"))
			return nil
		}

		action := ratelimit.ActionJoinQueue
		if _, ok := msg.(protocol.SubmitGuess); ok {
			action = ratelimit.ActionSubmitGuess
		}
		if !h.Coordinator.Allow(connID, action) {
			h.Registry.Send(connID, protocol.ErrorMessage("rate_limited"))
			return nil
		}

		h.Coordinator.Dispatch(connID, userID, msg)
		return nil
	})

	h.Registry.Close(connID)
}
