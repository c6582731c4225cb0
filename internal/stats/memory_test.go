// SPDX-FileCopyrightText: 2021 Softbear, Inc.
// SPDX-License-Identifier: AGPL-3.0-or-later

package stats

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryLeaderboardOrdering(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	alice, bob := uuid.New(), uuid.New()
	if err := m.AddPoints(ctx, alice, "Alice", 10); err != nil {
		t.Fatal(err)
	}
	if err := m.AddPoints(ctx, bob, "Bob", 25); err != nil {
		t.Fatal(err)
	}

	board, err := m.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(board) != 2 || board[0].UserID != bob || board[0].Rank != 1 {
		t.Fatalf("got %+v", board)
	}
}

func TestMemoryGetUserStatsUnknown(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetUserStats(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestMemoryIncrementCounters(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	u := uuid.New()

	if err := m.IncrementGames(ctx, u, "Ada"); err != nil {
		t.Fatal(err)
	}
	if err := m.IncrementWins(ctx, u, "Ada"); err != nil {
		t.Fatal(err)
	}

	got, err := m.GetUserStats(ctx, u)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalGames != 1 || got.TotalWins != 1 {
		t.Fatalf("got %+v", got)
	}
}
