// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stats implements the Stats external collaborator: durable
// per-user counters and the leaderboard. Per-user counters are written
// only when a game completes; the process-wide counters are bumped when
// a player authenticates and when a game starts. Active game state is
// never stored here.
package stats

import (
	"context"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

// Stats persists completed-game outcomes and serves leaderboards.
type Stats interface {
	AddPoints(ctx context.Context, userID uuid.UUID, displayName string, delta int) error
	IncrementGames(ctx context.Context, userID uuid.UUID, displayName string) error
	IncrementWins(ctx context.Context, winnerID uuid.UUID, displayName string) error
	GetLeaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	GetUserStats(ctx context.Context, userID uuid.UUID) (domain.LeaderboardEntry, error)

	// IncrementGamesServed and IncrementPlayersServed are process-wide
	// operational counters, not per-user stats.
	IncrementGamesServed(ctx context.Context) error
	IncrementPlayersServed(ctx context.Context) error
}
