// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package matchmaking implements the MatchmakingQueue: authenticated
// players waiting for a match, with early-start voting and a
// countdown, run as its own serial actor (Hub.run() idiom, per
// registry.Registry and coordinator.Coordinator).
package matchmaking

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
	"github.com/ChristopherJMiller/word-arena/internal/protocol"
)

// Sender is the subset of ConnectionRegistry the queue needs to reach
// waiting players.
type Sender interface {
	SendToUser(userID uuid.UUID, msg protocol.ServerMessage)
	Broadcast(userIDs []uuid.UUID, msg protocol.ServerMessage)
}

// Config holds the queue's tunables.
type Config struct {
	MinPlayers          int
	MaxPlayers          int
	VoteFraction        float64
	FullCountdown       time.Duration
	IdleQueueTimeout    time.Duration
}

// DefaultConfig returns the tunables used in production.
func DefaultConfig() Config {
	return Config{
		MinPlayers:       2,
		MaxPlayers:       16,
		VoteFraction:     0.60,
		FullCountdown:    60 * time.Second,
		IdleQueueTimeout: 300 * time.Second,
	}
}

// MatchFormedFunc is invoked (from inside the actor loop) when a
// match is formed. Implementations must not block; the Coordinator
// hands off to a new GameRoom asynchronously.
type MatchFormedFunc func(entries []domain.QueueEntry)

// Queue is the MatchmakingQueue actor.
type Queue struct {
	cfg     Config
	sender  Sender
	onMatch MatchFormedFunc

	entries []domain.QueueEntry
	votes   map[uuid.UUID]struct{}

	countdownActive bool
	countdownEndsAt time.Time

	events chan func(*Queue)
}

// New constructs a Queue.
func New(cfg Config, sender Sender, onMatch MatchFormedFunc) *Queue {
	return &Queue{
		cfg:     cfg,
		sender:  sender,
		onMatch: onMatch,
		votes:   make(map[uuid.UUID]struct{}),
		events:  make(chan func(*Queue), 256),
	}
}

// Run is the actor loop; it owns a 1-second ticker for countdown
// broadcasts and idle cleanup, in the manner of a leaderboardTicker.
// It exits when done is closed.
func (q *Queue) Run(done <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case fn := <-q.events:
			fn(q)
		case <-ticker.C:
			q.tick()
		case <-done:
			return
		}
	}
}

func (q *Queue) do(fn func(*Queue)) {
	result := make(chan struct{})
	q.events <- func(qu *Queue) {
		fn(qu)
		close(result)
	}
	<-result
}

// Join adds a player to the queue.
func (q *Queue) Join(user domain.User) {
	q.do(func(qu *Queue) {
		for _, e := range qu.entries {
			if e.UserID == user.UserID {
				return // already queued
			}
		}
		qu.entries = append(qu.entries, domain.QueueEntry{
			UserID:      user.UserID,
			DisplayName: user.DisplayName,
			JoinedAt:    time.Now(),
		})
		position := len(qu.entries)
		qu.sender.SendToUser(user.UserID, protocol.QueueJoined{Position: position})

		if len(qu.entries) >= qu.cfg.MinPlayers && !qu.countdownActive {
			qu.startCountdown()
		}
		if len(qu.entries) >= qu.cfg.MaxPlayers {
			qu.countdownEndsAt = time.Now()
		}
	})
}

// Leave removes a player from the queue, cancelling any countdown
// that no longer has enough players.
func (q *Queue) Leave(userID uuid.UUID) {
	q.do(func(qu *Queue) {
		qu.remove(userID)
		qu.sender.SendToUser(userID, protocol.QueueLeft{})
		if qu.countdownActive && len(qu.entries) < qu.cfg.MinPlayers {
			qu.countdownActive = false
			delete(qu.votes, userID)
		}
	})
}

func (q *Queue) remove(userID uuid.UUID) {
	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			delete(q.votes, userID)
			return
		}
	}
}

// Vote records an early-start vote and cuts the countdown short if
// the vote fraction is met.
func (q *Queue) Vote(userID uuid.UUID) {
	q.do(func(qu *Queue) {
		found := false
		for _, e := range qu.entries {
			if e.UserID == userID {
				found = true
				break
			}
		}
		if !found || !qu.countdownActive {
			return
		}
		qu.votes[userID] = struct{}{}

		total := len(qu.entries)
		needed := votesNeeded(total, qu.cfg.VoteFraction)
		if total >= qu.cfg.MinPlayers && len(qu.votes) >= needed {
			qu.countdownEndsAt = time.Now()
		}
	})
}

func votesNeeded(total int, fraction float64) int {
	needed := int(math.Ceil(float64(total) * fraction))
	if needed < 1 {
		needed = 1
	}
	return needed
}

func (q *Queue) startCountdown() {
	q.countdownActive = true
	q.countdownEndsAt = time.Now().Add(q.cfg.FullCountdown)
	q.votes = make(map[uuid.UUID]struct{})
}

// tick runs once per second from the actor's own ticker: broadcasts
// countdown state, forms a match if the countdown has ended, and
// expels solo players that have idled too long.
func (q *Queue) tick() {
	q.cleanupIdle()

	if !q.countdownActive {
		return
	}

	remaining := time.Until(q.countdownEndsAt)
	if remaining <= 0 {
		q.formMatch()
		return
	}

	userIDs := q.userIDs()
	q.sender.Broadcast(userIDs, protocol.MatchmakingCountdown{
		SecondsRemaining: int(math.Ceil(remaining.Seconds())),
		PlayersReady:     len(q.votes),
		TotalPlayers:     len(q.entries),
	})
}

func (q *Queue) userIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(q.entries))
	for i, e := range q.entries {
		ids[i] = e.UserID
	}
	return ids
}

func (q *Queue) formMatch() {
	q.countdownActive = false

	n := len(q.entries)
	if n > q.cfg.MaxPlayers {
		n = q.cfg.MaxPlayers
	}
	taken := make([]domain.QueueEntry, n)
	copy(taken, q.entries[:n])
	q.entries = q.entries[n:]
	q.votes = make(map[uuid.UUID]struct{})

	if q.onMatch != nil && len(taken) > 0 {
		q.onMatch(taken)
	}

	if len(q.entries) >= q.cfg.MinPlayers {
		q.startCountdown()
	}
}

func (q *Queue) cleanupIdle() {
	if len(q.entries) != 1 {
		return
	}
	solo := q.entries[0]
	if time.Since(solo.JoinedAt) < q.cfg.IdleQueueTimeout {
		return
	}
	q.entries = nil
	q.countdownActive = false
	delete(q.votes, solo.UserID)
	q.sender.SendToUser(solo.UserID, protocol.QueueLeft{})
}
