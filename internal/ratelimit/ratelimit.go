// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratelimit implements the per-connection token buckets that
// guard the three rate-limited client actions:
// SubmitGuess, JoinQueue, and Heartbeat.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// Action identifies one of the rate-limited client message kinds.
type Action int

const (
	ActionSubmitGuess Action = iota
	ActionJoinQueue
	ActionHeartbeat
)

// perMinute returns a rate.Limit that permits n events per minute,
// with a burst equal to n so a connection can spend its whole budget
// immediately after a quiet period rather than being smoothed to one
// event every 60/n seconds.
func perMinute(n int) (rate.Limit, int) {
	return rate.Limit(float64(n) / 60.0), n
}

// Buckets holds the three token buckets for a single connection.
type Buckets struct {
	guess     *rate.Limiter
	joinQueue *rate.Limiter
	heartbeat *rate.Limiter
}

// NewBuckets constructs a fresh set of buckets at the default
// limits: SubmitGuess 10/min, JoinQueue 5/min, Heartbeat 2/min.
func NewBuckets() *Buckets {
	guessLimit, guessBurst := perMinute(10)
	joinLimit, joinBurst := perMinute(5)
	heartbeatLimit, heartbeatBurst := perMinute(2)
	return &Buckets{
		guess:     rate.NewLimiter(guessLimit, guessBurst),
		joinQueue: rate.NewLimiter(joinLimit, joinBurst),
		heartbeat: rate.NewLimiter(heartbeatLimit, heartbeatBurst),
	}
}

// Allow reports whether the given action may proceed right now,
// consuming a token if so. It never blocks.
func (b *Buckets) Allow(action Action) bool {
	switch action {
	case ActionSubmitGuess:
		return b.guess.AllowN(time.Now(), 1)
	case ActionJoinQueue:
		return b.joinQueue.AllowN(time.Now(), 1)
	case ActionHeartbeat:
		return b.heartbeat.AllowN(time.Now(), 1)
	default:
		return true
	}
}
