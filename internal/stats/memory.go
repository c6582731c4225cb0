// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package stats

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ChristopherJMiller/word-arena/internal/domain"
)

// record is one user's accumulated counters.
type record struct {
	displayName string
	totalPoints int
	totalWins   int
	totalGames  int
}

// Memory is an in-process Stats implementation for development and
// tests: a mutex-guarded map, no durability across restarts.
// Grounded on robalobadob-wordle's internal/store/memory.go.
type Memory struct {
	mu            sync.RWMutex
	users         map[uuid.UUID]*record
	gamesServed   int
	playersServed int
}

// NewMemory constructs an empty in-memory Stats store.
func NewMemory() *Memory {
	return &Memory{users: make(map[uuid.UUID]*record)}
}

func (m *Memory) get(userID uuid.UUID, displayName string) *record {
	r, ok := m.users[userID]
	if !ok {
		r = &record{}
		m.users[userID] = r
	}
	if displayName != "" {
		r.displayName = displayName
	}
	return r
}

func (m *Memory) AddPoints(_ context.Context, userID uuid.UUID, displayName string, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(userID, displayName).totalPoints += delta
	return nil
}

func (m *Memory) IncrementGames(_ context.Context, userID uuid.UUID, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(userID, displayName).totalGames++
	return nil
}

func (m *Memory) IncrementWins(_ context.Context, winnerID uuid.UUID, displayName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(winnerID, displayName).totalWins++
	return nil
}

func (m *Memory) GetLeaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]domain.LeaderboardEntry, 0, len(m.users))
	for id, r := range m.users {
		entries = append(entries, domain.LeaderboardEntry{
			UserID:      id,
			DisplayName: r.displayName,
			TotalPoints: r.totalPoints,
			TotalWins:   r.totalWins,
			TotalGames:  r.totalGames,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *Memory) GetUserStats(_ context.Context, userID uuid.UUID) (domain.LeaderboardEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.users[userID]
	if !ok {
		return domain.LeaderboardEntry{}, fmt.Errorf("stats: no record for user %s", userID)
	}

	rank := 1
	for _, other := range m.users {
		if other.totalPoints > r.totalPoints {
			rank++
		}
	}

	return domain.LeaderboardEntry{
		UserID:      userID,
		DisplayName: r.displayName,
		TotalPoints: r.totalPoints,
		TotalWins:   r.totalWins,
		TotalGames:  r.totalGames,
		Rank:        rank,
	}, nil
}

func (m *Memory) IncrementGamesServed(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gamesServed++
	return nil
}

func (m *Memory) IncrementPlayersServed(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playersServed++
	return nil
}
